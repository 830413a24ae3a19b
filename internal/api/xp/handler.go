// Package xp provides the authenticated XP and daily login endpoints.
package xp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/forum-progression/internal/auth"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/service/leveling"
	"github.com/aimd54/forum-progression/internal/service/streak"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// StreakService interface for daily login operations.
type StreakService interface {
	ClaimDailyLogin(ctx context.Context, userID uint) (*streak.ClaimResult, error)
	Status(ctx context.Context, userID uint) (*streak.Status, error)
}

// LevelingService interface for XP reads.
type LevelingService interface {
	Progress(ctx context.Context, userID uint) (*leveling.Progress, error)
	History(ctx context.Context, userID uint, limit, offset int) ([]models.XPTransaction, int64, error)
}

// Handler handles XP API requests.
type Handler struct {
	streaks  StreakService
	leveling LevelingService
	log      *logger.Logger
}

// NewHandler creates a new XP handler.
func NewHandler(streaks StreakService, levelingService LevelingService, log *logger.Logger) *Handler {
	return &Handler{streaks: streaks, leveling: levelingService, log: log}
}

// RegisterRoutes mounts the XP routes on rg. rg must already require authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/daily", h.ClaimDaily)
	rg.GET("/daily", h.GetDaily)
	rg.GET("/me", h.GetProgress)
	rg.GET("/history", h.GetHistory)
}

// ClaimDaily claims today's login reward.
// POST /api/xp/daily.
func (h *Handler) ClaimDaily(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	res, err := h.streaks.ClaimDailyLogin(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, streak.ErrUserNotFound) {
			h.errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to claim daily login")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to claim daily reward")
		return
	}

	if res.AlreadyClaimed {
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"claimed":        false,
			"alreadyClaimed": true,
			"currentStreak":  res.CurrentStreak,
			"longestStreak":  res.LongestStreak,
			"message":        "Daily reward already claimed today",
		})
		return
	}

	message := fmt.Sprintf("Claimed %d XP", res.XPAwarded)
	if res.StreakBonus > 0 {
		message = fmt.Sprintf("Claimed %d XP including a %d XP bonus for a %d day streak",
			res.XPAwarded, res.StreakBonus, res.CurrentStreak)
	}
	if res.LeveledUp {
		message += fmt.Sprintf(". Level up! You reached level %d", res.NewLevel)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"claimed":       true,
		"xpAwarded":     res.XPAwarded,
		"baseXP":        res.BaseXP,
		"streakBonus":   res.StreakBonus,
		"currentStreak": res.CurrentStreak,
		"longestStreak": res.LongestStreak,
		"leveledUp":     res.LeveledUp,
		"newLevel":      res.NewLevel,
		"totalXP":       res.TotalXP,
		"message":       message,
	})
}

// GetDaily returns the caller's streak without claiming.
// GET /api/xp/daily.
func (h *Handler) GetDaily(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	status, err := h.streaks.Status(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get streak status")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve streak")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"hasStreak":     status.HasStreak,
		"currentStreak": status.CurrentStreak,
		"longestStreak": status.LongestStreak,
		"lastLoginDate": status.LastLoginDate,
		"canClaimToday": status.CanClaimToday,
	})
}

// GetProgress returns the caller's level progress.
// GET /api/xp/me.
func (h *Handler) GetProgress(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	progress, err := h.leveling.Progress(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, leveling.ErrUserNotFound) {
			h.errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get progress")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve progress")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"progress": progress,
	})
}

// GetHistory returns the caller's XP transactions.
// GET /api/xp/history?limit=20&offset=0.
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	limit, err := parseInt(c, "limit", 20, 1, 100)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseInt(c, "offset", 0, 0, 1<<30)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	txns, total, err := h.leveling.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get xp history")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txns,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

func parseInt(c *gin.Context, name string, def, minValue, maxValue int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minValue || v > maxValue {
		return 0, fmt.Errorf("invalid %s parameter: %s", name, raw)
	}
	return v, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
