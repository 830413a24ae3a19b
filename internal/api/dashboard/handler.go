// Package dashboard provides public REST API handlers for leaderboards, user
// statistics, achievements and the donation rank catalog.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/service/achievements"
	"github.com/aimd54/forum-progression/internal/service/leaderboard"
	"github.com/aimd54/forum-progression/internal/service/ranks"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// AchievementService interface for achievement operations.
type AchievementService interface {
	GetUserAchievements(ctx context.Context, userID uint) ([]models.UserAchievement, error)
	GetCatalog(ctx context.Context) ([]models.Achievement, error)
	GetByID(ctx context.Context, achievementID uint) (*models.Achievement, error)
	GetHolders(ctx context.Context, achievementID uint) ([]models.User, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, metric, period string, limit int) ([]leaderboard.Entry, error)
	GetUserStats(ctx context.Context, userID uint, period string) (*leaderboard.UserStats, error)
}

// RankCatalog interface for the donation rank catalog and pricing.
type RankCatalog interface {
	Catalog(ctx context.Context) ([]ranks.CatalogEntry, error)
	QuoteDays(rankID uint, days int) (*ranks.Quote, error)
	QuoteAmount(rankID uint, amount decimal.Decimal) (*ranks.Quote, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	achievementService AchievementService
	leaderboardService LeaderboardService
	rankCatalog        RankCatalog
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(
	achievementService *achievements.Service,
	leaderboardService *leaderboard.Service,
	rankService *ranks.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(achievementService, leaderboardService, rankService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	achievementService AchievementService,
	leaderboardService LeaderboardService,
	rankCatalog RankCatalog,
	log *logger.Logger,
) *Handler {
	return &Handler{
		achievementService: achievementService,
		leaderboardService: leaderboardService,
		rankCatalog:        rankCatalog,
		log:                log,
	}
}

// RegisterRoutes mounts the dashboard routes on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leaderboard", h.GetLeaderboard)
	rg.GET("/users/:id/stats", h.GetUserStats)
	rg.GET("/users/:id/achievements", h.GetUserAchievements)
	rg.GET("/achievements", h.GetAchievementCatalog)
	rg.GET("/achievements/:id", h.GetAchievementByID)
	rg.GET("/achievements/:id/holders", h.GetAchievementHolders)
	rg.GET("/ranks", h.GetRankCatalog)
	rg.GET("/ranks/quote", h.GetRankQuote)
}

// GetLeaderboard returns a leaderboard.
// GET /api/leaderboard?metric=xp&period=week&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	metric := c.DefaultQuery("metric", leaderboard.MetricXP)
	period := c.DefaultQuery("period", "all_time")
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if !leaderboard.ValidMetric(metric) {
		h.errorResponse(c, http.StatusBadRequest,
			fmt.Sprintf("invalid metric: %s (valid: xp, streak, longest_streak)", metric))
		return
	}

	entries, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), metric, period, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Str("metric", metric).
		Str("period", period).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"leaderboard":   entries,
		"metric":        metric,
		"period":        period,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetUserStats returns statistics for a specific user.
// GET /api/users/:id/stats?period=month.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, err := h.parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	period := c.DefaultQuery("period", "all_time")
	if err := h.validatePeriod(period); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), userID, period)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetUserAchievements returns achievements earned by a specific user.
// GET /api/users/:id/achievements.
func (h *Handler) GetUserAchievements(c *gin.Context) {
	userID, err := h.parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	earned, err := h.achievementService.GetUserAchievements(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user achievements")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user achievements")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"user_id":            userID,
		"achievements":       earned,
		"total_achievements": len(earned),
	})
}

// GetAchievementCatalog returns all available achievements.
// GET /api/achievements.
func (h *Handler) GetAchievementCatalog(c *gin.Context) {
	catalog, err := h.achievementService.GetCatalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get achievement catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievement catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"achievements":       catalog,
		"total_achievements": len(catalog),
	})
}

// GetAchievementByID returns details for a specific achievement.
// GET /api/achievements/:id.
func (h *Handler) GetAchievementByID(c *gin.Context) {
	achievementID, err := h.parseID(c, "achievement")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	achievement, err := h.achievementService.GetByID(c.Request.Context(), achievementID)
	if err != nil {
		h.log.Debug().Err(err).Uint("achievement_id", achievementID).Msg("Failed to get achievement")
		h.errorResponse(c, http.StatusNotFound, "Achievement not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"achievement": achievement,
	})
}

// GetAchievementHolders returns users who have earned a specific achievement.
// GET /api/achievements/:id/holders?limit=50.
func (h *Handler) GetAchievementHolders(c *gin.Context) {
	achievementID, err := h.parseID(c, "achievement")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	holders, err := h.achievementService.GetHolders(c.Request.Context(), achievementID)
	if err != nil {
		h.log.Error().Err(err).Uint("achievement_id", achievementID).Msg("Failed to get achievement holders")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve achievement holders")
		return
	}

	totalHolders := len(holders)
	if len(holders) > limit {
		holders = holders[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"achievement_id": achievementID,
		"holders":        holders,
		"total_holders":  totalHolders,
		"limited_to":     len(holders),
	})
}

// GetRankCatalog returns the donation ranks with their price per day.
// GET /api/ranks.
func (h *Handler) GetRankCatalog(c *gin.Context) {
	catalog, err := h.rankCatalog.Catalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get rank catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve rank catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ranks":   catalog,
	})
}

// GetRankQuote prices days of a rank, or converts an amount into days.
// GET /api/ranks/quote?rankId=2&days=30 or ?rankId=2&amount=7.50.
func (h *Handler) GetRankQuote(c *gin.Context) {
	rankID, err := strconv.ParseUint(c.Query("rankId"), 10, 32)
	if err != nil || rankID == 0 {
		h.errorResponse(c, http.StatusBadRequest, "rankId is required")
		return
	}

	daysStr, amountStr := c.Query("days"), c.Query("amount")
	var quote *ranks.Quote
	switch {
	case daysStr != "" && amountStr != "":
		h.errorResponse(c, http.StatusBadRequest, "provide either days or amount, not both")
		return
	case daysStr != "":
		days, convErr := strconv.Atoi(daysStr)
		if convErr != nil {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid days parameter: %s", daysStr))
			return
		}
		quote, err = h.rankCatalog.QuoteDays(uint(rankID), days)
	case amountStr != "":
		amount, convErr := decimal.NewFromString(amountStr)
		if convErr != nil {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid amount parameter: %s", amountStr))
			return
		}
		quote, err = h.rankCatalog.QuoteAmount(uint(rankID), amount)
	default:
		h.errorResponse(c, http.StatusBadRequest, "days or amount is required")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, ranks.ErrUnknownRank):
			h.errorResponse(c, http.StatusNotFound, err.Error())
		case errors.Is(err, ranks.ErrInvalidDays), errors.Is(err, ranks.ErrInvalidAmount):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Uint64("rank_id", rankID).Msg("Failed to quote rank")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to quote rank")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"quote":   quote,
	})
}

// Helper functions

// parseID extracts and validates the :id URL parameter.
func (h *Handler) parseID(c *gin.Context, what string) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 100 {
		return 0, fmt.Errorf("limit cannot exceed 100")
	}

	return limit, nil
}

// validatePeriod validates the period parameter.
func (h *Handler) validatePeriod(period string) error {
	validPeriods := map[string]bool{
		"day":      true,
		"week":     true,
		"month":    true,
		"year":     true,
		"all_time": true,
	}

	if !validPeriods[period] {
		return fmt.Errorf("invalid period: %s (valid: day, week, month, year, all_time)", period)
	}
	return nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
