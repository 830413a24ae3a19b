package repository_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/test/testdb"
)

// createTestAchievement creates a test achievement in the database.
func createTestAchievement(t *testing.T, repo *repository.AchievementRepository, name, category string, threshold int) *models.Achievement {
	t.Helper()

	criteria, _ := json.Marshal(models.AchievementCriteria{Operator: ">=", Value: float64(threshold)})
	achievement := &models.Achievement{
		Name:        name,
		Description: name + " description",
		Icon:        "🏆",
		Category:    category,
		Criteria:    criteria,
	}

	if err := repo.Create(achievement); err != nil {
		t.Fatalf("Failed to create test achievement: %v", err)
	}

	return achievement
}

func TestAchievementRepository_Create(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	achievement := &models.Achievement{
		Name:     "first_post",
		Category: models.AchievementCategoryForum,
		Criteria: json.RawMessage(`{"operator":">=","value":1}`),
	}

	if err := repo.Create(achievement); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if achievement.ID == 0 {
		t.Error("Expected achievement ID to be set after creation")
	}

	if achievement.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestAchievementRepository_GetByIDAndName(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	created := createTestAchievement(t, repo, "chatterbox", models.AchievementCategoryForum, 100)

	byID, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if byID.Name != "chatterbox" {
		t.Errorf("Expected name 'chatterbox', got %q", byID.Name)
	}

	byName, err := repo.GetByName("chatterbox")
	if err != nil {
		t.Fatalf("GetByName() failed: %v", err)
	}
	if byName.ID != created.ID {
		t.Errorf("Expected id %d, got %d", created.ID, byName.ID)
	}

	if _, err := repo.GetByID(999); err == nil {
		t.Error("Expected error for non-existent achievement ID")
	}
}

func TestAchievementRepository_GetByCategory(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	createTestAchievement(t, repo, "level_5", models.AchievementCategoryLevel, 5)
	createTestAchievement(t, repo, "level_10", models.AchievementCategoryLevel, 10)
	createTestAchievement(t, repo, "week_streak", models.AchievementCategoryStreak, 7)

	levelAchievements, err := repo.GetByCategory(models.AchievementCategoryLevel)
	if err != nil {
		t.Fatalf("GetByCategory() failed: %v", err)
	}
	if len(levelAchievements) != 2 {
		t.Errorf("Expected 2 level achievements, got %d", len(levelAchievements))
	}

	all, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 achievements, got %d", len(all))
	}
}

func TestAchievementRepository_Delete(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	achievement := createTestAchievement(t, repo, "temp", models.AchievementCategoryForum, 1)

	if err := repo.Delete(achievement.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := repo.GetByID(achievement.ID); err == nil {
		t.Error("Expected error when retrieving deleted achievement")
	}
}

func TestAchievementRepository_Award_Idempotent(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	user := testdb.CreateUser(t, db, "bob", models.RoleUser)
	achievement := createTestAchievement(t, repo, "first_post", models.AchievementCategoryForum, 1)

	inserted, err := repo.Award(user.ID, achievement.ID)
	if err != nil {
		t.Fatalf("First Award() failed: %v", err)
	}
	if !inserted {
		t.Error("Expected first award to insert a row")
	}

	inserted, err = repo.Award(user.ID, achievement.ID)
	if err != nil {
		t.Fatalf("Second Award() failed: %v", err)
	}
	if inserted {
		t.Error("Expected second award to be a no-op")
	}

	earned, err := repo.GetUserAchievements(user.ID)
	if err != nil {
		t.Fatalf("GetUserAchievements() failed: %v", err)
	}
	if len(earned) != 1 {
		t.Errorf("Expected 1 user achievement entry, got %d", len(earned))
	}
}

func TestAchievementRepository_GetUserAchievements(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	user := testdb.CreateUser(t, db, "charlie", models.RoleUser)
	first := createTestAchievement(t, repo, "a1", models.AchievementCategoryForum, 1)
	second := createTestAchievement(t, repo, "a2", models.AchievementCategoryForum, 10)

	_, _ = repo.Award(user.ID, first.ID)
	time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	_, _ = repo.Award(user.ID, second.ID)

	earned, err := repo.GetUserAchievements(user.ID)
	if err != nil {
		t.Fatalf("GetUserAchievements() failed: %v", err)
	}

	if len(earned) != 2 {
		t.Fatalf("Expected 2 achievements, got %d", len(earned))
	}

	// DESC by earned_at
	if earned[0].Achievement.Name != "a2" {
		t.Errorf("Expected first achievement to be 'a2', got %q", earned[0].Achievement.Name)
	}

	count, err := repo.GetUserAchievementCount(user.ID)
	if err != nil {
		t.Fatalf("GetUserAchievementCount() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestAchievementRepository_Holders(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewAchievementRepository(db)

	user1 := testdb.CreateUser(t, db, "alice", models.RoleUser)
	user2 := testdb.CreateUser(t, db, "bob", models.RoleUser)
	user3 := testdb.CreateUser(t, db, "carol", models.RoleModerator)
	achievement := createTestAchievement(t, repo, "veteran", models.AchievementCategoryLevel, 20)

	count, err := repo.GetHoldersCount(achievement.ID)
	if err != nil {
		t.Fatalf("GetHoldersCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}

	_, _ = repo.Award(user1.ID, achievement.ID)
	_, _ = repo.Award(user3.ID, achievement.ID)

	holders, err := repo.GetHolders(achievement.ID)
	if err != nil {
		t.Fatalf("GetHolders() failed: %v", err)
	}
	if len(holders) != 2 {
		t.Errorf("Expected 2 holders, got %d", len(holders))
	}
	for _, u := range holders {
		if u.ID == user2.ID {
			t.Error("Expected user2 to not hold the achievement")
		}
	}

	hasEarned, err := repo.HasUserEarned(user2.ID, achievement.ID)
	if err != nil {
		t.Fatalf("HasUserEarned() failed: %v", err)
	}
	if hasEarned {
		t.Error("Expected user2 to not have earned the achievement")
	}
}
