// Package achievements awards achievements when a category count crosses a threshold.
package achievements

import (
	"context"
	"encoding/json"
	"fmt"

	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/internal/service/leveling"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// AchievementRepository interface for achievement operations.
type AchievementRepository interface {
	Create(achievement *models.Achievement) error
	GetAll() ([]models.Achievement, error)
	GetByID(id uint) (*models.Achievement, error)
	GetByName(name string) (*models.Achievement, error)
	GetByCategory(category string) ([]models.Achievement, error)
	Award(userID, achievementID uint) (bool, error)
	GetUserAchievements(userID uint) ([]models.UserAchievement, error)
	GetHolders(achievementID uint) ([]models.User, error)
	GetHoldersCount(achievementID uint) (int64, error)
}

// XPAwarder pays the XP reward attached to an achievement.
type XPAwarder interface {
	AwardXP(ctx context.Context, in leveling.AwardInput) (*leveling.AwardResult, error)
}

// Service handles achievement evaluation and awarding.
type Service struct {
	repo AchievementRepository
	xp   XPAwarder
	log  *logger.Logger
}

// NewService creates a new achievement service.
func NewService(repo *repository.AchievementRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// NewServiceWithInterfaces creates a new achievement service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(repo AchievementRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SetXPAwarder enables XP rewards. The leveling service itself depends on this
// service, so the link is made after both exist.
func (s *Service) SetXPAwarder(xp XPAwarder) {
	s.xp = xp
}

// CheckAchievements awards every unearned achievement of category whose criteria
// count satisfies, and returns the newly earned ones. Calling it again with the
// same count awards nothing.
func (s *Service) CheckAchievements(ctx context.Context, userID uint, category string, count int64) ([]models.Achievement, error) {
	candidates, err := s.repo.GetByCategory(category)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s achievements: %w", category, err)
	}

	var newlyEarned []models.Achievement
	for i := range candidates {
		a := candidates[i]

		qualifies, err := Qualifies(&a, count)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("achievement", a.Name).
				Msg("Failed to evaluate achievement")
			continue
		}
		if !qualifies {
			continue
		}

		inserted, err := s.repo.Award(userID, a.ID)
		if err != nil {
			return newlyEarned, fmt.Errorf("failed to award achievement %q: %w", a.Name, err)
		}
		if !inserted {
			continue
		}

		newlyEarned = append(newlyEarned, a)
		prommetrics.RecordAchievementAwarded(a.Name, a.Category)
		s.log.Info().
			Uint("user_id", userID).
			Str("achievement", a.Name).
			Int64("count", count).
			Msg("Achievement awarded")

		s.payReward(ctx, userID, &a)
	}

	return newlyEarned, nil
}

func (s *Service) payReward(ctx context.Context, userID uint, a *models.Achievement) {
	if s.xp == nil || a.XPReward <= 0 {
		return
	}
	id := a.ID
	_, err := s.xp.AwardXP(ctx, leveling.AwardInput{
		UserID:          userID,
		Amount:          a.XPReward,
		Source:          models.XPSourceAchievement,
		RelatedEntityID: &id,
		Description:     "Achievement: " + a.Name,
	})
	if err != nil {
		s.log.Error().
			Err(err).
			Uint("user_id", userID).
			Str("achievement", a.Name).
			Msg("Failed to pay achievement reward")
	}
}

// Definition describes an achievement to seed.
type Definition struct {
	Name        string
	Description string
	Icon        string
	Category    string
	Operator    string
	Value       float64
	XPReward    int64
}

// DefaultDefinitions is the built-in achievement set.
var DefaultDefinitions = []Definition{
	{Name: "First Post", Description: "Write your first forum post", Icon: "✍️", Category: models.AchievementCategoryForum, Operator: ">=", Value: 1, XPReward: 5},
	{Name: "Conversationalist", Description: "Write 100 forum posts", Icon: "💬", Category: models.AchievementCategoryForum, Operator: ">=", Value: 100, XPReward: 50},
	{Name: "Rising Star", Description: "Reach level 5", Icon: "⭐", Category: models.AchievementCategoryLevel, Operator: ">=", Value: 5},
	{Name: "Veteran", Description: "Reach level 20", Icon: "🎖️", Category: models.AchievementCategoryLevel, Operator: ">=", Value: 20},
	{Name: "Regular", Description: "Log in 7 days in a row", Icon: "📅", Category: models.AchievementCategoryStreak, Operator: ">=", Value: 7, XPReward: 10},
	{Name: "Devoted", Description: "Log in 30 days in a row", Icon: "🔥", Category: models.AchievementCategoryStreak, Operator: ">=", Value: 30, XPReward: 50},
}

// Seed creates any definitions missing from the store and returns how many were created.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Seed(ctx context.Context, defs []Definition) (int, error) {
	created := 0
	for _, d := range defs {
		if existing, err := s.repo.GetByName(d.Name); err == nil && existing != nil {
			continue
		}

		criteria, err := json.Marshal(models.AchievementCriteria{Operator: d.Operator, Value: d.Value})
		if err != nil {
			return created, err
		}
		if _, err := evaluate(d.Operator, d.Value, 0); err != nil {
			return created, fmt.Errorf("achievement %q: %w", d.Name, err)
		}

		err = s.repo.Create(&models.Achievement{
			Name:        d.Name,
			Description: d.Description,
			Icon:        d.Icon,
			Category:    d.Category,
			Criteria:    criteria,
			XPReward:    d.XPReward,
		})
		if err != nil {
			return created, fmt.Errorf("failed to create achievement %q: %w", d.Name, err)
		}
		created++
	}
	return created, nil
}

// GetUserAchievements retrieves all achievements earned by a user.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetUserAchievements(ctx context.Context, userID uint) ([]models.UserAchievement, error) {
	return s.repo.GetUserAchievements(userID)
}

// GetCatalog retrieves all available achievements.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetCatalog(ctx context.Context) ([]models.Achievement, error) {
	return s.repo.GetAll()
}

// GetByID retrieves an achievement by its ID.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetByID(ctx context.Context, achievementID uint) (*models.Achievement, error) {
	return s.repo.GetByID(achievementID)
}

// GetHolders retrieves users who have earned a specific achievement.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetHolders(ctx context.Context, achievementID uint) ([]models.User, error) {
	return s.repo.GetHolders(achievementID)
}

// GetHoldersCount retrieves the count of users who have earned an achievement.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) GetHoldersCount(ctx context.Context, achievementID uint) (int64, error) {
	return s.repo.GetHoldersCount(achievementID)
}
