package mocks

import (
	"context"
	"sync"

	"github.com/aimd54/forum-progression/internal/models"
)

// CheckCall records one CheckAchievements invocation.
type CheckCall struct {
	UserID   uint
	Category string
	Count    int64
}

// MockAchievementChecker is a simple mock for the achievement checker
type MockAchievementChecker struct {
	CheckAchievementsFunc func(ctx context.Context, userID uint, category string, count int64) ([]models.Achievement, error)

	mu    sync.Mutex
	Calls []CheckCall
}

func (m *MockAchievementChecker) CheckAchievements(ctx context.Context, userID uint, category string, count int64) ([]models.Achievement, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, CheckCall{UserID: userID, Category: category, Count: count})
	m.mu.Unlock()

	if m.CheckAchievementsFunc != nil {
		return m.CheckAchievementsFunc(ctx, userID, category, count)
	}
	return nil, nil
}

// CallsFor returns the recorded calls for a category.
func (m *MockAchievementChecker) CallsFor(category string) []CheckCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CheckCall
	for _, c := range m.Calls {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}
