package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/test/testdb"
)

func TestXPRepository_CreateAndList(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewXPRepository(db)
	user := testdb.CreateUser(t, db, "alice", models.RoleUser)

	postID := uint(42)
	for i, amount := range []int64{5, 10, 15} {
		txn := &models.XPTransaction{
			UserID:      user.ID,
			Amount:      amount,
			Source:      models.XPSourceForumPost,
			Description: "post",
			CreatedAt:   time.Date(2025, 1, 1+i, 12, 0, 0, 0, time.UTC),
		}
		if i == 0 {
			txn.RelatedEntityID = &postID
		}
		require.NoError(t, repo.Create(txn))
	}

	txns, err := repo.ListByUser(user.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(15), txns[0].Amount, "newest first")
	assert.Equal(t, int64(10), txns[1].Amount)

	rest, err := repo.ListByUser(user.ID, 10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.NotNil(t, rest[0].RelatedEntityID)
	assert.Equal(t, postID, *rest[0].RelatedEntityID)

	count, err := repo.CountByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	bySource, err := repo.CountBySource(user.ID, models.XPSourceForumPost)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bySource)
}

func TestXPRepository_SumByUserInRange(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewXPRepository(db)
	alice := testdb.CreateUser(t, db, "alice", models.RoleUser)
	bob := testdb.CreateUser(t, db, "bob", models.RoleUser)

	inRange := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	outOfRange := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := []models.XPTransaction{
		{UserID: alice.ID, Amount: 10, Source: models.XPSourceDailyLogin, CreatedAt: inRange},
		{UserID: alice.ID, Amount: 5, Source: models.XPSourceForumPost, CreatedAt: inRange},
		{UserID: bob.ID, Amount: 30, Source: models.XPSourceForumPost, CreatedAt: inRange},
		{UserID: alice.ID, Amount: 100, Source: models.XPSourceForumPost, CreatedAt: outOfRange},
	}
	for i := range rows {
		require.NoError(t, repo.Create(&rows[i]))
	}

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	totals, err := repo.SumByUserInRange(start, end, 0)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, bob.ID, totals[0].UserID)
	assert.Equal(t, int64(30), totals[0].Total)
	assert.Equal(t, alice.ID, totals[1].UserID)
	assert.Equal(t, int64(15), totals[1].Total)

	aliceTotal, err := repo.SumForUserInRange(alice.ID, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(15), aliceTotal)
}

func TestUserRepository_ProgressAndRole(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewUserRepository(db)

	user := &models.User{Username: "dave"}
	require.NoError(t, repo.Create(user))
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, 1, user.Level)

	require.NoError(t, repo.UpdateProgress(user.ID, 250, 3))
	require.NoError(t, repo.UpdateRole(user.ID, models.RoleModerator))

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.XP)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, models.RoleModerator, got.Role)
}

func TestUserRepository_RefusesSuperadmin(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewUserRepository(db)

	user := testdb.CreateUser(t, db, "eve", models.RoleAdmin)

	err := repo.UpdateRole(user.ID, models.RoleSuperadmin)
	assert.ErrorIs(t, err, repository.ErrSuperadminAssignment)

	err = repo.Create(&models.User{Username: "mallory", Role: models.RoleSuperadmin})
	assert.ErrorIs(t, err, repository.ErrSuperadminAssignment)

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
}

func TestUserRepository_RankLifecycle(t *testing.T) {
	db := testdb.New(t)
	users := repository.NewUserRepository(db)
	ranks := repository.NewRankRepository(db)

	require.NoError(t, ranks.Upsert([]models.DonationRank{
		{ID: 1, Name: "Supporter", SortOrder: 1},
		{ID: 2, Name: "Patron", SortOrder: 2},
	}))

	now := time.Now()
	active := testdb.CreateUser(t, db, "active", models.RoleUser)
	expired := testdb.CreateUser(t, db, "expired", models.RoleUser)

	rankID := uint(2)
	future := now.Add(48 * time.Hour)
	active.DonationRankID = &rankID
	active.RankExpiresAt = &future
	require.NoError(t, users.UpdateRank(active))

	past := now.Add(-time.Hour)
	expired.DonationRankID = &rankID
	expired.RankExpiresAt = &past
	require.NoError(t, users.UpdateRank(expired))

	expiredUsers, err := users.ListExpiredRanks(now)
	require.NoError(t, err)
	require.Len(t, expiredUsers, 1)
	assert.Equal(t, expired.ID, expiredUsers[0].ID)

	holders, err := users.CountActiveRankHolders(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), holders[2])

	expired.ClearRank()
	require.NoError(t, users.UpdateRank(expired))

	got, err := users.GetByIDWithRank(active.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DonationRank)
	assert.Equal(t, "Patron", got.DonationRank.Name)

	cleared, err := users.GetByID(expired.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.DonationRankID)
	assert.Nil(t, cleared.RankExpiresAt)
}

func TestRankRepository_UpsertUpdatesCatalog(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewRankRepository(db)

	require.NoError(t, repo.Upsert([]models.DonationRank{{ID: 1, Name: "Supporter", Color: "#aaa"}}))
	require.NoError(t, repo.Upsert([]models.DonationRank{{ID: 1, Name: "Supporter", Color: "#fff"}}))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "#fff", all[0].Color)
}

func TestStreakRepository_SaveAndTop(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewStreakRepository(db)
	alice := testdb.CreateUser(t, db, "alice", models.RoleUser)
	bob := testdb.CreateUser(t, db, "bob", models.RoleUser)

	missing, err := repo.GetByUser(alice.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(&models.DailyStreak{UserID: alice.ID, CurrentStreak: 3, LongestStreak: 9, LastLoginDate: day}))
	require.NoError(t, repo.Save(&models.DailyStreak{UserID: bob.ID, CurrentStreak: 5, LongestStreak: 5, LastLoginDate: day}))

	current, err := repo.Top("current_streak", 10)
	require.NoError(t, err)
	require.Len(t, current, 2)
	assert.Equal(t, bob.ID, current[0].UserID)

	longest, err := repo.Top("longest_streak", 1)
	require.NoError(t, err)
	require.Len(t, longest, 1)
	assert.Equal(t, alice.ID, longest[0].UserID)

	_, err = repo.Top("xp", 1)
	assert.Error(t, err)
}
