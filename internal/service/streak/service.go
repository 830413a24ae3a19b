// Package streak tracks consecutive daily logins and pays the daily reward.
package streak

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/forum-progression/internal/config"
	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/internal/service/leveling"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// ErrUserNotFound is returned when the claiming user does not exist.
var ErrUserNotFound = leveling.ErrUserNotFound

const day = 24 * time.Hour

// XPAwarder awards XP inside the claim transaction.
type XPAwarder interface {
	AwardXPTx(tx *repository.DB, in leveling.AwardInput) (*leveling.AwardResult, error)
	AfterAward(ctx context.Context, userID uint, res *leveling.AwardResult)
}

// ClaimResult is the outcome of a daily claim.
type ClaimResult struct {
	Claimed        bool  `json:"claimed"`
	AlreadyClaimed bool  `json:"already_claimed"`
	CurrentStreak  int   `json:"current_streak"`
	LongestStreak  int   `json:"longest_streak"`
	BaseXP         int64 `json:"base_xp"`
	StreakBonus    int64 `json:"streak_bonus"`
	XPAwarded      int64 `json:"xp_awarded"`
	LeveledUp      bool  `json:"leveled_up"`
	NewLevel       int   `json:"new_level"`
	TotalXP        int64 `json:"total_xp"`
}

// Status is a read-only view of a user's streak.
type Status struct {
	HasStreak     bool       `json:"has_streak"`
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	LastLoginDate *time.Time `json:"last_login_date"`
	CanClaimToday bool       `json:"can_claim_today"`
}

// Service handles daily login claims.
type Service struct {
	db           *repository.DB
	userRepo     *repository.UserRepository
	streakRepo   *repository.StreakRepository
	xp           XPAwarder
	achievements leveling.AchievementChecker
	baseXP       int64
	bonuses      []config.StreakBonus
	loc          *time.Location
	now          func() time.Time
	log          *logger.Logger
}

// NewService creates a new streak service. achievements may be nil.
func NewService(
	db *repository.DB,
	userRepo *repository.UserRepository,
	streakRepo *repository.StreakRepository,
	xp XPAwarder,
	achievements leveling.AchievementChecker,
	cfg *config.StreakConfig,
	log *logger.Logger,
) (*Service, error) {
	loc, err := cfg.GetLocation()
	if err != nil {
		return nil, fmt.Errorf("invalid streak timezone: %w", err)
	}

	bonuses := make([]config.StreakBonus, len(cfg.Bonuses))
	copy(bonuses, cfg.Bonuses)
	sort.Slice(bonuses, func(i, j int) bool { return bonuses[i].Days < bonuses[j].Days })

	return &Service{
		db:           db,
		userRepo:     userRepo,
		streakRepo:   streakRepo,
		xp:           xp,
		achievements: achievements,
		baseXP:       cfg.BaseXP,
		bonuses:      bonuses,
		loc:          loc,
		now:          time.Now,
		log:          log,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Bonus returns the flat bonus for a streak length: the highest tier reached.
func (s *Service) Bonus(streak int) int64 {
	var bonus int64
	for _, b := range s.bonuses {
		if streak < b.Days {
			break
		}
		bonus = b.Bonus
	}
	return bonus
}

// today returns the current calendar date in the streak timezone, as midnight UTC
// so it compares equal to values read back from a DATE column.
func (s *Service) today() time.Time {
	return calendarDate(s.now().In(s.loc))
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(calendarDate(b).Sub(calendarDate(a)) / day)
}

// ClaimDailyLogin records today's login and awards base XP plus the streak bonus.
// A second claim on the same calendar day changes nothing and reports AlreadyClaimed.
func (s *Service) ClaimDailyLogin(ctx context.Context, userID uint) (*ClaimResult, error) {
	today := s.today()

	var (
		result *ClaimResult
		award  *leveling.AwardResult
	)
	err := s.db.InTx(ctx, func(tx *repository.DB) error {
		user, err := s.userRepo.WithTx(tx).LockByID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		streakRepo := s.streakRepo.WithTx(tx)
		streak, err := streakRepo.GetByUser(userID)
		if err != nil {
			return err
		}

		if streak != nil && daysBetween(streak.LastLoginDate, today) == 0 {
			result = &ClaimResult{
				AlreadyClaimed: true,
				CurrentStreak:  streak.CurrentStreak,
				LongestStreak:  streak.LongestStreak,
				NewLevel:       user.Level,
				TotalXP:        user.XP,
			}
			return nil
		}

		streak = advance(streak, userID, today)
		if err := streakRepo.Save(streak); err != nil {
			return err
		}

		bonus := s.Bonus(streak.CurrentStreak)
		total := s.baseXP + bonus
		award, err = s.xp.AwardXPTx(tx, leveling.AwardInput{
			UserID:      userID,
			Amount:      total,
			Source:      models.XPSourceDailyLogin,
			Description: fmt.Sprintf("Daily login (streak: %d days)", streak.CurrentStreak),
		})
		if err != nil {
			return fmt.Errorf("failed to award daily xp: %w", err)
		}

		result = &ClaimResult{
			Claimed:       true,
			CurrentStreak: streak.CurrentStreak,
			LongestStreak: streak.LongestStreak,
			BaseXP:        s.baseXP,
			StreakBonus:   bonus,
			XPAwarded:     total,
			LeveledUp:     award.LeveledUp,
			NewLevel:      award.NewLevel,
			TotalXP:       award.NewXP,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyClaimed {
		prommetrics.RecordDailyClaim("already_claimed")
		return result, nil
	}

	prommetrics.RecordDailyClaim("claimed")
	prommetrics.ObserveStreakLength(result.CurrentStreak)
	s.log.Info().
		Uint("user_id", userID).
		Int("streak", result.CurrentStreak).
		Int64("xp", result.XPAwarded).
		Msg("Daily login claimed")

	s.xp.AfterAward(ctx, userID, award)
	if s.achievements != nil {
		if _, err := s.achievements.CheckAchievements(ctx, userID, models.AchievementCategoryStreak, int64(result.CurrentStreak)); err != nil {
			s.log.Error().
				Err(err).
				Uint("user_id", userID).
				Msg("Failed to check streak achievements")
		}
	}

	return result, nil
}

// advance applies one new-day login to the streak state.
func advance(streak *models.DailyStreak, userID uint, today time.Time) *models.DailyStreak {
	if streak == nil {
		return &models.DailyStreak{
			UserID:        userID,
			CurrentStreak: 1,
			LongestStreak: 1,
			LastLoginDate: today,
		}
	}

	if daysBetween(streak.LastLoginDate, today) == 1 {
		streak.CurrentStreak++
	} else {
		streak.CurrentStreak = 1
	}
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastLoginDate = today
	return streak
}

// Status returns the stored streak without modifying it.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Status(ctx context.Context, userID uint) (*Status, error) {
	streak, err := s.streakRepo.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if streak == nil {
		return &Status{CanClaimToday: true}, nil
	}

	last := calendarDate(streak.LastLoginDate)
	return &Status{
		HasStreak:     true,
		CurrentStreak: streak.CurrentStreak,
		LongestStreak: streak.LongestStreak,
		LastLoginDate: &last,
		CanClaimToday: daysBetween(last, s.today()) != 0,
	}, nil
}
