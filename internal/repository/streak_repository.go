package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/aimd54/forum-progression/internal/models"
)

// StreakRepository handles daily login streak rows.
type StreakRepository struct {
	db *DB
}

// NewStreakRepository creates a new streak repository.
func NewStreakRepository(db *DB) *StreakRepository {
	return &StreakRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *StreakRepository) WithTx(tx *DB) *StreakRepository {
	return &StreakRepository{db: tx}
}

// GetByUser returns the user's streak row, or nil when the user never claimed.
func (r *StreakRepository) GetByUser(userID uint) (*models.DailyStreak, error) {
	var streak models.DailyStreak
	err := r.db.Where("user_id = ?", userID).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak for user %d: %w", userID, err)
	}
	return &streak, nil
}

// Save inserts or updates the streak row.
func (r *StreakRepository) Save(streak *models.DailyStreak) error {
	if err := r.db.Save(streak).Error; err != nil {
		return fmt.Errorf("failed to save streak for user %d: %w", streak.UserID, err)
	}
	return nil
}

// Top returns streak rows ordered by the given column, highest first.
func (r *StreakRepository) Top(column string, limit int) ([]models.DailyStreak, error) {
	if column != "current_streak" && column != "longest_streak" {
		return nil, fmt.Errorf("unsupported streak column: %s", column)
	}
	var streaks []models.DailyStreak
	query := r.db.Order(column + " DESC").Order("user_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&streaks).Error
	return streaks, err
}
