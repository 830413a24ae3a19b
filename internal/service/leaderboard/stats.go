package leaderboard

import (
	"context"
	"fmt"

	"github.com/aimd54/forum-progression/internal/models"
)

// UserStats represents comprehensive statistics for a user.
type UserStats struct {
	UserID        uint                 `json:"user_id"`
	Username      string               `json:"username"`
	Role          string               `json:"role"`
	XP            int64                `json:"xp"`
	Level         int                  `json:"level"`
	Period        string               `json:"period"`
	PeriodXP      int64                `json:"period_xp"`
	CurrentStreak int                  `json:"current_streak"`
	LongestStreak int                  `json:"longest_streak"`
	Achievements  []models.Achievement `json:"achievements"`
	GlobalRank    int                  `json:"global_rank"`
}

// GetUserStats returns comprehensive statistics for a user.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetUserStats(ctx context.Context, userID uint, period string) (*UserStats, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if period == "" {
		period = "all_time"
	}

	stats := &UserStats{
		UserID:       userID,
		Username:     user.Username,
		Role:         user.Role,
		XP:           user.XP,
		Level:        user.Level,
		Period:       period,
		PeriodXP:     user.XP,
		Achievements: []models.Achievement{},
	}

	if period != "all_time" {
		startDate, endDate := calculatePeriodRange(period)
		periodXP, err := s.xpRepo.SumForUserInRange(userID, startDate, endDate)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to sum period xp")
		} else {
			stats.PeriodXP = periodXP
		}
	}

	streak, err := s.streakRepo.GetByUser(userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get streak")
	} else if streak != nil {
		stats.CurrentStreak = streak.CurrentStreak
		stats.LongestStreak = streak.LongestStreak
	}

	earned, err := s.achievementRepo.GetUserAchievements(userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get user achievements")
	} else {
		for _, ua := range earned {
			if ua.Achievement.ID != 0 {
				stats.Achievements = append(stats.Achievements, ua.Achievement)
			}
		}
	}

	ahead, err := s.userRepo.CountWithMoreXP(user.XP)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get global rank")
	} else {
		stats.GlobalRank = int(ahead) + 1
	}

	return stats, nil
}
