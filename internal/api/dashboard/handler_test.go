//nolint:noctx // Test file uses http.NewRequest for simplicity
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/forum-progression/internal/config"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/service/leaderboard"
	"github.com/aimd54/forum-progression/internal/service/ranks"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// Mock Achievement Service
type mockAchievementService struct {
	userAchievements map[uint][]models.UserAchievement
	achievements     map[uint]*models.Achievement
	holders          map[uint][]models.User
}

func newMockAchievementService() *mockAchievementService {
	return &mockAchievementService{
		userAchievements: make(map[uint][]models.UserAchievement),
		achievements:     make(map[uint]*models.Achievement),
		holders:          make(map[uint][]models.User),
	}
}

func (m *mockAchievementService) GetUserAchievements(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	return m.userAchievements[userID], nil
}

func (m *mockAchievementService) GetCatalog(ctx context.Context) ([]models.Achievement, error) {
	out := make([]models.Achievement, 0, len(m.achievements))
	for _, a := range m.achievements {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockAchievementService) GetByID(ctx context.Context, achievementID uint) (*models.Achievement, error) {
	a, ok := m.achievements[achievementID]
	if !ok {
		return nil, fmt.Errorf("achievement not found")
	}
	return a, nil
}

func (m *mockAchievementService) GetHolders(ctx context.Context, achievementID uint) ([]models.User, error) {
	return m.holders[achievementID], nil
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	boards    map[string][]leaderboard.Entry
	userStats map[uint]*leaderboard.UserStats
	lastLimit int
}

func newMockLeaderboardService() *mockLeaderboardService {
	return &mockLeaderboardService{
		boards:    make(map[string][]leaderboard.Entry),
		userStats: make(map[uint]*leaderboard.UserStats),
	}
}

func (m *mockLeaderboardService) GetLeaderboard(ctx context.Context, metric, period string, limit int) ([]leaderboard.Entry, error) {
	m.lastLimit = limit
	return m.boards[metric+":"+period], nil
}

func (m *mockLeaderboardService) GetUserStats(ctx context.Context, userID uint, period string) (*leaderboard.UserStats, error) {
	stats, ok := m.userStats[userID]
	if !ok {
		return nil, fmt.Errorf("user stats not found")
	}
	return stats, nil
}

// rankCatalog backs the rank endpoints with the real pricing table.
type rankCatalog struct {
	pricing *ranks.Pricing
}

func (r *rankCatalog) Catalog(ctx context.Context) ([]ranks.CatalogEntry, error) {
	out := []ranks.CatalogEntry{}
	for _, id := range r.pricing.RankIDs() {
		price, _ := r.pricing.PricePerDay(id)
		out = append(out, ranks.CatalogEntry{DonationRank: models.DonationRank{ID: id}, PricePerDay: price})
	}
	return out, nil
}

func (r *rankCatalog) QuoteDays(rankID uint, days int) (*ranks.Quote, error) {
	if days < 1 {
		return nil, ranks.ErrInvalidDays
	}
	price, err := r.pricing.PriceForDays(rankID, days)
	if err != nil {
		return nil, err
	}
	return &ranks.Quote{RankID: rankID, Days: days, Price: price}, nil
}

func (r *rankCatalog) QuoteAmount(rankID uint, amount decimal.Decimal) (*ranks.Quote, error) {
	days, err := r.pricing.DaysForPrice(rankID, amount)
	if err != nil {
		return nil, err
	}
	price, _ := r.pricing.PriceForDays(rankID, days)
	return &ranks.Quote{RankID: rankID, Days: days, Price: price}, nil
}

// Test Setup
func setupTestHandler(t *testing.T) (*Handler, *mockAchievementService, *mockLeaderboardService) {
	t.Helper()
	achievementService := newMockAchievementService()
	leaderboardService := newMockLeaderboardService()

	pricing, err := ranks.NewPricing([]config.RankConfig{
		{ID: 1, Name: "Supporter", PricePerDay: "0.10"},
		{ID: 2, Name: "Patron", PricePerDay: "0.25"},
	})
	require.NoError(t, err)

	handler := NewHandlerWithInterfaces(achievementService, leaderboardService, &rankCatalog{pricing: pricing}, logger.Nop())
	return handler, achievementService, leaderboardService
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/api"))
	return router
}

func get(router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req, _ := http.NewRequest("GET", path, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

// Tests

func TestGetLeaderboard_Success(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler(t)
	router := setupRouter(handler)

	leaderboardService.boards["xp:week"] = []leaderboard.Entry{
		{Rank: 1, UserID: 1, Username: "alice", Level: 5, Value: 900},
		{Rank: 2, UserID: 2, Username: "bob", Level: 4, Value: 500},
	}

	w, response := get(router, "/api/leaderboard?metric=xp&period=week&limit=5")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "week", response["period"])
	assert.Equal(t, "xp", response["metric"])
	assert.Equal(t, float64(2), response["total_entries"])
	assert.Equal(t, 5, leaderboardService.lastLimit)
}

func TestGetLeaderboard_Defaults(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler(t)
	router := setupRouter(handler)

	w, response := get(router, "/api/leaderboard")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "xp", response["metric"])
	assert.Equal(t, "all_time", response["period"])
	assert.Equal(t, 10, leaderboardService.lastLimit)
}

func TestGetLeaderboard_InvalidParams(t *testing.T) {
	handler, _, _ := setupTestHandler(t)
	router := setupRouter(handler)

	tests := []struct {
		query string
		want  string
	}{
		{"?metric=karma", "invalid metric"},
		{"?period=decade", "invalid period"},
		{"?limit=abc", "invalid limit"},
		{"?limit=0", "limit must be greater than 0"},
		{"?limit=500", "limit cannot exceed 100"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w, response := get(router, "/api/leaderboard"+tt.query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, response["success"])
			assert.Contains(t, response["error"], tt.want)
		})
	}
}

func TestGetUserStats(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler(t)
	router := setupRouter(handler)

	leaderboardService.userStats[1] = &leaderboard.UserStats{UserID: 1, Username: "alice", XP: 900, Level: 5, GlobalRank: 1}

	w, response := get(router, "/api/users/1/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	stats := response["stats"].(map[string]interface{})
	assert.Equal(t, "alice", stats["username"])
	assert.Equal(t, float64(1), stats["global_rank"])

	w, _ = get(router, "/api/users/abc/stats")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(router, "/api/users/404/stats")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAchievementEndpoints(t *testing.T) {
	handler, achievementService, _ := setupTestHandler(t)
	router := setupRouter(handler)

	regular := &models.Achievement{ID: 3, Name: "Regular", Category: models.AchievementCategoryStreak, XPReward: 10}
	achievementService.achievements[3] = regular
	achievementService.userAchievements[1] = []models.UserAchievement{{UserID: 1, AchievementID: 3, Achievement: *regular}}
	achievementService.holders[3] = []models.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}

	w, response := get(router, "/api/achievements")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), response["total_achievements"])

	w, response = get(router, "/api/users/1/achievements")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), response["total_achievements"])

	w, response = get(router, "/api/achievements/3")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Regular", response["achievement"].(map[string]interface{})["name"])

	w, _ = get(router, "/api/achievements/99")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, response = get(router, "/api/achievements/3/holders?limit=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), response["total_holders"])
	assert.Equal(t, float64(1), response["limited_to"])
}

func TestRankCatalogAndQuote(t *testing.T) {
	handler, _, _ := setupTestHandler(t)
	router := setupRouter(handler)

	w, response := get(router, "/api/ranks")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["ranks"], 2)

	w, response = get(router, "/api/ranks/quote?rankId=2&days=30")
	assert.Equal(t, http.StatusOK, w.Code)
	quote := response["quote"].(map[string]interface{})
	assert.Equal(t, "7.5", quote["price"])

	w, response = get(router, "/api/ranks/quote?rankId=1&amount=3.05")
	assert.Equal(t, http.StatusOK, w.Code)
	quote = response["quote"].(map[string]interface{})
	assert.Equal(t, float64(30), quote["days"])

	tests := []struct {
		query string
		code  int
	}{
		{"", http.StatusBadRequest},
		{"?rankId=1", http.StatusBadRequest},
		{"?rankId=1&days=2&amount=3", http.StatusBadRequest},
		{"?rankId=1&days=x", http.StatusBadRequest},
		{"?rankId=1&days=0", http.StatusBadRequest},
		{"?rankId=1&amount=-1", http.StatusBadRequest},
		{"?rankId=9&days=3", http.StatusNotFound},
	}
	for _, tt := range tests {
		w, _ := get(router, "/api/ranks/quote"+tt.query)
		assert.Equal(t, tt.code, w.Code, "query %q", tt.query)
	}
}
