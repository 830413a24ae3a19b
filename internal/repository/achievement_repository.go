package repository

import (
	"time"

	"gorm.io/gorm/clause"

	"github.com/aimd54/forum-progression/internal/models"
)

// AchievementRepository handles achievement-related database operations.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Create creates a new achievement in the database.
func (r *AchievementRepository) Create(achievement *models.Achievement) error {
	return r.db.Create(achievement).Error
}

// GetByID retrieves an achievement by its ID.
func (r *AchievementRepository) GetByID(id uint) (*models.Achievement, error) {
	var achievement models.Achievement
	err := r.db.First(&achievement, id).Error
	if err != nil {
		return nil, err
	}
	return &achievement, nil
}

// GetByName retrieves an achievement by its name.
func (r *AchievementRepository) GetByName(name string) (*models.Achievement, error) {
	var achievement models.Achievement
	err := r.db.Where("name = ?", name).First(&achievement).Error
	if err != nil {
		return nil, err
	}
	return &achievement, nil
}

// GetAll retrieves all achievements from the database.
func (r *AchievementRepository) GetAll() ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.db.Order("created_at ASC").Order("id ASC").Find(&achievements).Error
	return achievements, err
}

// GetByCategory retrieves the achievements of one category.
func (r *AchievementRepository) GetByCategory(category string) ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.db.Where("category = ?", category).Order("id ASC").Find(&achievements).Error
	return achievements, err
}

// Delete deletes an achievement by its ID.
func (r *AchievementRepository) Delete(id uint) error {
	return r.db.Delete(&models.Achievement{}, id).Error
}

// Award records that a user earned an achievement.
// It reports false without error when the achievement was already earned.
func (r *AchievementRepository) Award(userID, achievementID uint) (bool, error) {
	ua := &models.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		EarnedAt:      time.Now(),
	}
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(ua)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetUserAchievements retrieves all achievements earned by a user with details preloaded.
func (r *AchievementRepository) GetUserAchievements(userID uint) ([]models.UserAchievement, error) {
	var earned []models.UserAchievement
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Achievement").
		Order("earned_at DESC").
		Find(&earned).Error
	return earned, err
}

// HasUserEarned checks if a user has earned a specific achievement.
func (r *AchievementRepository) HasUserEarned(userID, achievementID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetHolders retrieves all users who have earned a specific achievement.
func (r *AchievementRepository) GetHolders(achievementID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.
		Joins("JOIN user_achievements ON user_achievements.user_id = users.id").
		Where("user_achievements.achievement_id = ?", achievementID).
		Order("user_achievements.earned_at DESC").
		Find(&users).Error
	return users, err
}

// GetHoldersCount returns the number of users who have earned a specific achievement.
func (r *AchievementRepository) GetHoldersCount(achievementID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("achievement_id = ?", achievementID).
		Count(&count).Error
	return count, err
}

// GetUserAchievementCount returns the total number of achievements a user has earned.
func (r *AchievementRepository) GetUserAchievementCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
