// Package leaderboard provides leaderboard and ranking services.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aimd54/forum-progression/internal/cache"
	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// Leaderboard metrics.
const (
	MetricXP            = "xp"
	MetricStreak        = "streak"
	MetricLongestStreak = "longest_streak"
)

// ErrUnknownMetric is returned for unsupported leaderboard metrics.
var ErrUnknownMetric = errors.New("unknown leaderboard metric")

// cacheTTL bounds how stale a cached leaderboard may be.
const cacheTTL = 30 * time.Second

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByIDs(ids []uint) (map[uint]models.User, error)
	TopByXP(limit int) ([]models.User, error)
	CountWithMoreXP(xp int64) (int64, error)
}

// XPRepository interface for XP history aggregates.
type XPRepository interface {
	SumByUserInRange(startDate, endDate time.Time, limit int) ([]repository.UserXPTotal, error)
	SumForUserInRange(userID uint, startDate, endDate time.Time) (int64, error)
}

// StreakRepository interface for streak operations.
type StreakRepository interface {
	GetByUser(userID uint) (*models.DailyStreak, error)
	Top(column string, limit int) ([]models.DailyStreak, error)
}

// AchievementRepository interface for achievement operations.
type AchievementRepository interface {
	GetUserAchievementCount(userID uint) (int64, error)
	GetUserAchievements(userID uint) ([]models.UserAchievement, error)
}

// Cache stores computed leaderboards.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	UserID           uint   `json:"user_id"`
	Username         string `json:"username"`
	Level            int    `json:"level"`
	Value            int64  `json:"value"`
	AchievementCount int    `json:"achievement_count"`
	Rank             int    `json:"rank"`
}

// Service handles leaderboard generation and user statistics.
type Service struct {
	userRepo        UserRepository
	xpRepo          XPRepository
	streakRepo      StreakRepository
	achievementRepo AchievementRepository
	cache           Cache
	log             *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
// cache may be nil.
func NewService(
	userRepo *repository.UserRepository,
	xpRepo *repository.XPRepository,
	streakRepo *repository.StreakRepository,
	achievementRepo *repository.AchievementRepository,
	jsonCache *cache.JSONCache,
	log *logger.Logger,
) *Service {
	s := &Service{
		userRepo:        userRepo,
		xpRepo:          xpRepo,
		streakRepo:      streakRepo,
		achievementRepo: achievementRepo,
		log:             log,
	}
	if jsonCache != nil {
		s.cache = jsonCache
	}
	return s
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	userRepo UserRepository,
	xpRepo XPRepository,
	streakRepo StreakRepository,
	achievementRepo AchievementRepository,
	c Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		userRepo:        userRepo,
		xpRepo:          xpRepo,
		streakRepo:      streakRepo,
		achievementRepo: achievementRepo,
		cache:           c,
		log:             log,
	}
}

// ValidMetric reports whether metric is a supported leaderboard metric.
func ValidMetric(metric string) bool {
	switch metric {
	case MetricXP, MetricStreak, MetricLongestStreak:
		return true
	}
	return false
}

// GetLeaderboard returns the top users for a metric. For MetricXP a period other
// than all_time ranks by XP earned within the period.
func (s *Service) GetLeaderboard(ctx context.Context, metric, period string, limit int) ([]Entry, error) {
	if metric == "" {
		metric = MetricXP
	}
	if !ValidMetric(metric) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	if metric != MetricXP {
		period = "all_time"
	}
	if period == "" {
		period = "all_time"
	}

	key := metric + ":" + period + ":" + strconv.Itoa(limit)
	if s.cache != nil {
		var cached []Entry
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			prommetrics.RecordLeaderboardCache("hit")
			return cached, nil
		case errors.Is(err, cache.ErrMiss):
			prommetrics.RecordLeaderboardCache("miss")
		default:
			prommetrics.RecordLeaderboardCache("error")
			s.log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache read failed")
		}
	}

	entries, err := s.buildLeaderboard(metric, period, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, entries, cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Leaderboard cache write failed")
		}
	}
	return entries, nil
}

func (s *Service) buildLeaderboard(metric, period string, limit int) ([]Entry, error) {
	var (
		ids    []uint
		values = make(map[uint]int64)
	)

	switch {
	case metric == MetricXP && period == "all_time":
		users, err := s.userRepo.TopByXP(limit)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(users))
		for _, u := range users {
			entries = append(entries, Entry{UserID: u.ID, Username: u.Username, Level: u.Level, Value: u.XP})
		}
		return s.finish(entries), nil

	case metric == MetricXP:
		startDate, endDate := calculatePeriodRange(period)
		totals, err := s.xpRepo.SumByUserInRange(startDate, endDate, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to sum xp: %w", err)
		}
		for _, t := range totals {
			ids = append(ids, t.UserID)
			values[t.UserID] = t.Total
		}

	default:
		column := "current_streak"
		if metric == MetricLongestStreak {
			column = "longest_streak"
		}
		streaks, err := s.streakRepo.Top(column, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get streaks: %w", err)
		}
		for _, st := range streaks {
			ids = append(ids, st.UserID)
			if metric == MetricLongestStreak {
				values[st.UserID] = int64(st.LongestStreak)
			} else {
				values[st.UserID] = int64(st.CurrentStreak)
			}
		}
	}

	users, err := s.userRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			s.log.Warn().Uint("user_id", id).Msg("Leaderboard row for missing user")
			continue
		}
		entries = append(entries, Entry{UserID: id, Username: u.Username, Level: u.Level, Value: values[id]})
	}
	return s.finish(entries), nil
}

// finish assigns ranks and achievement counts. Entries arrive sorted; ties share a rank.
func (s *Service) finish(entries []Entry) []Entry {
	for i := range entries {
		switch {
		case i > 0 && entries[i].Value == entries[i-1].Value:
			entries[i].Rank = entries[i-1].Rank
		default:
			entries[i].Rank = i + 1
		}

		count, err := s.achievementRepo.GetUserAchievementCount(entries[i].UserID)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", entries[i].UserID).Msg("Failed to get achievement count")
			continue
		}
		entries[i].AchievementCount = int(count)
	}
	return entries
}

// calculatePeriodRange calculates the start and end dates for a period.
func calculatePeriodRange(period string) (startDate, endDate time.Time) {
	now := time.Now()
	endDate = now

	switch period {
	case "day":
		startDate = now.Add(-24 * time.Hour)
	case "week":
		startDate = now.Add(-7 * 24 * time.Hour)
	case "month":
		startDate = now.Add(-30 * 24 * time.Hour)
	case "year":
		startDate = now.Add(-365 * 24 * time.Hour)
	default:
		// All time: use a very old date
		startDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	return startDate, endDate
}
