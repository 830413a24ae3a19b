package achievements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/internal/service/leveling"
	"github.com/aimd54/forum-progression/pkg/logger"
	"github.com/aimd54/forum-progression/test/testdb"
)

// Mock repository for testing
type mockAchievementRepository struct {
	achievements map[uint]*models.Achievement
	earned       map[uint]map[uint]bool // userID -> achievementID -> exists
	nextID       uint
	awardErr     error
}

func newMockAchievementRepository() *mockAchievementRepository {
	return &mockAchievementRepository{
		achievements: make(map[uint]*models.Achievement),
		earned:       make(map[uint]map[uint]bool),
		nextID:       1,
	}
}

func (m *mockAchievementRepository) Create(a *models.Achievement) error {
	a.ID = m.nextID
	m.nextID++
	m.achievements[a.ID] = a
	return nil
}

func (m *mockAchievementRepository) GetAll() ([]models.Achievement, error) {
	out := make([]models.Achievement, 0, len(m.achievements))
	for id := uint(1); id < m.nextID; id++ {
		if a, ok := m.achievements[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAchievementRepository) GetByID(id uint) (*models.Achievement, error) {
	if a, ok := m.achievements[id]; ok {
		return a, nil
	}
	return nil, errors.New("not found")
}

func (m *mockAchievementRepository) GetByName(name string) (*models.Achievement, error) {
	for _, a := range m.achievements {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockAchievementRepository) GetByCategory(category string) ([]models.Achievement, error) {
	all, _ := m.GetAll()
	var out []models.Achievement
	for _, a := range all {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAchievementRepository) Award(userID, achievementID uint) (bool, error) {
	if m.awardErr != nil {
		return false, m.awardErr
	}
	if m.earned[userID] == nil {
		m.earned[userID] = make(map[uint]bool)
	}
	if m.earned[userID][achievementID] {
		return false, nil
	}
	m.earned[userID][achievementID] = true
	return true, nil
}

func (m *mockAchievementRepository) GetUserAchievements(userID uint) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	for id := range m.earned[userID] {
		out = append(out, models.UserAchievement{UserID: userID, AchievementID: id})
	}
	return out, nil
}

func (m *mockAchievementRepository) GetHolders(achievementID uint) ([]models.User, error) {
	var users []models.User
	for userID, earned := range m.earned {
		if earned[achievementID] {
			users = append(users, models.User{ID: userID})
		}
	}
	return users, nil
}

func (m *mockAchievementRepository) GetHoldersCount(achievementID uint) (int64, error) {
	users, _ := m.GetHolders(achievementID)
	return int64(len(users)), nil
}

func addAchievement(repo *mockAchievementRepository, name, category, operator string, value float64) *models.Achievement {
	criteria, _ := json.Marshal(models.AchievementCriteria{Operator: operator, Value: value})
	a := &models.Achievement{Name: name, Category: category, Criteria: criteria}
	_ = repo.Create(a)
	return a
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		operator  string
		threshold float64
		actual    float64
		expected  bool
		wantErr   bool
	}{
		{">=", 10, 10, true, false},
		{">=", 10, 9, false, false},
		{">", 10, 10, false, false},
		{"<", 5, 4, true, false},
		{"<=", 5, 5, true, false},
		{"==", 3, 3, true, false},
		{"==", 3, 4, false, false},
		{"top", 3, 4, false, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v%s%v", tt.actual, tt.operator, tt.threshold), func(t *testing.T) {
			got, err := evaluate(tt.operator, tt.threshold, tt.actual)
			if (err != nil) != tt.wantErr {
				t.Fatalf("evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("evaluate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCheckAchievements_AwardsOnce(t *testing.T) {
	repo := newMockAchievementRepository()
	addAchievement(repo, "Regular", models.AchievementCategoryStreak, ">=", 7)
	addAchievement(repo, "Devoted", models.AchievementCategoryStreak, ">=", 30)
	addAchievement(repo, "Rising Star", models.AchievementCategoryLevel, ">=", 5)

	svc := NewServiceWithInterfaces(repo, logger.Nop())
	ctx := context.Background()

	earned, err := svc.CheckAchievements(ctx, 1, models.AchievementCategoryStreak, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(earned) != 0 {
		t.Errorf("expected no achievements at streak 6, got %d", len(earned))
	}

	earned, err = svc.CheckAchievements(ctx, 1, models.AchievementCategoryStreak, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(earned) != 1 || earned[0].Name != "Regular" {
		t.Fatalf("expected Regular, got %+v", earned)
	}

	earned, err = svc.CheckAchievements(ctx, 1, models.AchievementCategoryStreak, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(earned) != 0 {
		t.Errorf("expected Regular not to be awarded twice, got %+v", earned)
	}

	// Level achievements are untouched by streak checks.
	count, _ := svc.GetHoldersCount(ctx, 3)
	if count != 0 {
		t.Errorf("expected no Rising Star holders, got %d", count)
	}
}

func TestCheckAchievements_BadCriteriaSkipped(t *testing.T) {
	repo := newMockAchievementRepository()
	_ = repo.Create(&models.Achievement{Name: "Broken", Category: models.AchievementCategoryForum, Criteria: json.RawMessage(`{oops`)})
	addAchievement(repo, "First Post", models.AchievementCategoryForum, ">=", 1)

	svc := NewServiceWithInterfaces(repo, logger.Nop())
	earned, err := svc.CheckAchievements(context.Background(), 2, models.AchievementCategoryForum, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(earned) != 1 || earned[0].Name != "First Post" {
		t.Errorf("expected First Post only, got %+v", earned)
	}
}

func TestCheckAchievements_AwardError(t *testing.T) {
	repo := newMockAchievementRepository()
	addAchievement(repo, "First Post", models.AchievementCategoryForum, ">=", 1)
	repo.awardErr = errors.New("db down")

	svc := NewServiceWithInterfaces(repo, logger.Nop())
	if _, err := svc.CheckAchievements(context.Background(), 2, models.AchievementCategoryForum, 1); err == nil {
		t.Error("expected award error to be returned")
	}
}

func TestSeed(t *testing.T) {
	repo := newMockAchievementRepository()
	svc := NewServiceWithInterfaces(repo, logger.Nop())

	created, err := svc.Seed(context.Background(), DefaultDefinitions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != len(DefaultDefinitions) {
		t.Errorf("expected %d created, got %d", len(DefaultDefinitions), created)
	}

	created, err = svc.Seed(context.Background(), DefaultDefinitions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 0 {
		t.Errorf("expected reseeding to create nothing, got %d", created)
	}

	_, err = svc.Seed(context.Background(), []Definition{{Name: "Bad", Category: "forum", Operator: "top", Value: 1}})
	if err == nil {
		t.Error("expected unsupported operator to be rejected")
	}
}

func TestCheckAchievements_PaysXPReward(t *testing.T) {
	db := testdb.New(t)
	users := repository.NewUserRepository(db)
	curve, err := leveling.NewThresholdCurve([]int64{100, 250})
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(repository.NewAchievementRepository(db), logger.Nop())
	xp := leveling.NewService(db, users, repository.NewXPRepository(db), curve, svc, logger.Nop())
	svc.SetXPAwarder(xp)

	if _, err := svc.Seed(context.Background(), DefaultDefinitions); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user := testdb.CreateUser(t, db, gofakeit.Username(), models.RoleUser)
	earned, err := svc.CheckAchievements(context.Background(), user.ID, models.AchievementCategoryStreak, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(earned) != 1 {
		t.Fatalf("expected one achievement, got %d", len(earned))
	}

	stored, err := users.GetByID(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.XP != 10 {
		t.Errorf("expected 10 reward xp, got %d", stored.XP)
	}

	history, _, err := xp.History(context.Background(), user.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Source != models.XPSourceAchievement {
		t.Errorf("expected one achievement transaction, got %+v", history)
	}

	earnedList, err := svc.GetUserAchievements(context.Background(), user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(earnedList) != 1 || earnedList[0].Achievement.Name != "Regular" {
		t.Errorf("expected Regular in user achievements, got %+v", earnedList)
	}
}

func TestForumPostAward_EarnsFirstPost(t *testing.T) {
	db := testdb.New(t)
	users := repository.NewUserRepository(db)
	curve, err := leveling.NewThresholdCurve([]int64{100, 250})
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(repository.NewAchievementRepository(db), logger.Nop())
	xp := leveling.NewService(db, users, repository.NewXPRepository(db), curve, svc, logger.Nop())
	svc.SetXPAwarder(xp)

	if _, err := svc.Seed(context.Background(), DefaultDefinitions); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	user := testdb.CreateUser(t, db, gofakeit.Username(), models.RoleUser)
	if _, err := xp.AwardXP(context.Background(), leveling.AwardInput{
		UserID: user.ID,
		Amount: 1,
		Source: models.XPSourceForumPost,
	}); err != nil {
		t.Fatalf("award failed: %v", err)
	}

	earnedList, err := svc.GetUserAchievements(context.Background(), user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(earnedList) != 1 || earnedList[0].Achievement.Name != "First Post" {
		t.Fatalf("expected First Post, got %+v", earnedList)
	}

	stored, err := users.GetByID(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.XP != 6 {
		t.Errorf("expected post xp plus the 5 xp reward, got %d", stored.XP)
	}
}
