// Package leveling awards experience points and derives levels from them.
package leveling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/pkg/logger"
)

var (
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidAmount is returned for non-positive awards and for awards that
	// would overflow the user's XP total.
	ErrInvalidAmount = errors.New("xp amount must be positive and keep the total in range")
)

// AchievementChecker evaluates achievements of a category against a cumulative count.
type AchievementChecker interface {
	CheckAchievements(ctx context.Context, userID uint, category string, count int64) ([]models.Achievement, error)
}

// AwardInput describes one XP award.
type AwardInput struct {
	UserID          uint
	Amount          int64
	Source          string
	RelatedEntityID *uint
	Description     string
}

// AwardResult is the outcome of an award.
type AwardResult struct {
	Amount        int64  `json:"amount"`
	Source        string `json:"source"`
	NewXP         int64  `json:"new_xp"`
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	LeveledUp     bool   `json:"leveled_up"`
}

// Progress describes where a user sits on the level curve.
type Progress struct {
	UserID          uint    `json:"user_id"`
	XP              int64   `json:"xp"`
	Level           int     `json:"level"`
	CurrentLevelXP  int64   `json:"current_level_xp"`
	NextLevelXP     *int64  `json:"next_level_xp"`
	ProgressPercent float64 `json:"progress_percent"`
	MaxLevel        bool    `json:"max_level"`
}

// Service handles XP awards and level computation.
type Service struct {
	db           *repository.DB
	userRepo     *repository.UserRepository
	xpRepo       *repository.XPRepository
	curve        Curve
	achievements AchievementChecker
	log          *logger.Logger
}

// NewService creates a new leveling service. achievements may be nil.
func NewService(
	db *repository.DB,
	userRepo *repository.UserRepository,
	xpRepo *repository.XPRepository,
	curve Curve,
	achievements AchievementChecker,
	log *logger.Logger,
) *Service {
	return &Service{
		db:           db,
		userRepo:     userRepo,
		xpRepo:       xpRepo,
		curve:        curve,
		achievements: achievements,
		log:          log,
	}
}

// Curve returns the level curve in use.
func (s *Service) Curve() Curve {
	return s.curve
}

// AwardXP adds XP to a user, records the transaction and detects a level-up.
// Achievement checks run after the award commits and never fail it.
func (s *Service) AwardXP(ctx context.Context, in AwardInput) (*AwardResult, error) {
	var res *AwardResult
	err := s.db.InTx(ctx, func(tx *repository.DB) error {
		var err error
		res, err = s.AwardXPTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.AfterAward(ctx, in.UserID, res)
	return res, nil
}

// AwardXPTx performs the award inside an existing transaction. Callers must call
// AfterAward once the transaction has committed.
func (s *Service) AwardXPTx(tx *repository.DB, in AwardInput) (*AwardResult, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.WithTx(tx).LockByID(in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if in.Amount > math.MaxInt64-user.XP {
		return nil, ErrInvalidAmount
	}

	previousLevel := s.curve.Level(user.XP)
	newXP := user.XP + in.Amount
	newLevel := s.curve.Level(newXP)

	if err := s.userRepo.WithTx(tx).UpdateProgress(user.ID, newXP, newLevel); err != nil {
		return nil, err
	}

	txn := &models.XPTransaction{
		UserID:          user.ID,
		Amount:          in.Amount,
		Source:          in.Source,
		RelatedEntityID: in.RelatedEntityID,
		Description:     in.Description,
		CreatedAt:       time.Now(),
	}
	if err := s.xpRepo.WithTx(tx).Create(txn); err != nil {
		return nil, fmt.Errorf("failed to record xp transaction: %w", err)
	}

	return &AwardResult{
		Amount:        in.Amount,
		Source:        in.Source,
		NewXP:         newXP,
		PreviousLevel: previousLevel,
		NewLevel:      newLevel,
		LeveledUp:     newLevel > previousLevel,
	}, nil
}

// AfterAward records metrics and, on level-up, checks level achievements.
// Failures are logged and swallowed.
func (s *Service) AfterAward(ctx context.Context, userID uint, res *AwardResult) {
	if res == nil {
		return
	}

	prommetrics.RecordXPAwarded(res.Source, res.Amount)
	if res.Source == models.XPSourceForumPost {
		s.checkForumAchievements(ctx, userID)
	}
	if !res.LeveledUp {
		return
	}

	prommetrics.RecordLevelUp(res.NewLevel)
	s.log.Info().
		Uint("user_id", userID).
		Int("previous_level", res.PreviousLevel).
		Int("new_level", res.NewLevel).
		Msg("User leveled up")

	if s.achievements == nil {
		return
	}
	if _, err := s.achievements.CheckAchievements(ctx, userID, models.AchievementCategoryLevel, int64(res.NewLevel)); err != nil {
		s.log.Error().
			Err(err).
			Uint("user_id", userID).
			Int("level", res.NewLevel).
			Msg("Failed to check level achievements")
	}
}

// checkForumAchievements counts the user's post awards; each forum post earns
// exactly one forum_post transaction.
func (s *Service) checkForumAchievements(ctx context.Context, userID uint) {
	if s.achievements == nil {
		return
	}
	posts, err := s.xpRepo.CountBySource(userID, models.XPSourceForumPost)
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to count forum posts")
		return
	}
	if _, err := s.achievements.CheckAchievements(ctx, userID, models.AchievementCategoryForum, posts); err != nil {
		s.log.Error().
			Err(err).
			Uint("user_id", userID).
			Int64("posts", posts).
			Msg("Failed to check forum achievements")
	}
}

// Progress returns a user's position on the level curve.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Progress(ctx context.Context, userID uint) (*Progress, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.progressFor(user), nil
}

func (s *Service) progressFor(user *models.User) *Progress {
	level := s.curve.Level(user.XP)
	current, _ := s.curve.Threshold(level)

	p := &Progress{
		UserID:         user.ID,
		XP:             user.XP,
		Level:          level,
		CurrentLevelXP: current,
	}

	next, ok := s.curve.Threshold(level + 1)
	if !ok {
		p.MaxLevel = true
		p.ProgressPercent = 100
		return p
	}
	p.NextLevelXP = &next
	span := next - current
	if span > 0 {
		p.ProgressPercent = float64(user.XP-current) * 100 / float64(span)
	}
	return p
}

// History lists a user's XP transactions newest first, with the total count.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) History(ctx context.Context, userID uint, limit, offset int) ([]models.XPTransaction, int64, error) {
	txns, err := s.xpRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list xp history: %w", err)
	}
	total, err := s.xpRepo.CountByUser(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count xp history: %w", err)
	}
	return txns, total, nil
}
