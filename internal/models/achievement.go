package models

import (
	"encoding/json"
	"time"
)

// Achievement categories.
const (
	AchievementCategoryForum  = "forum"
	AchievementCategoryLevel  = "level"
	AchievementCategoryStreak = "streak"
)

// Achievement represents an achievement that can be earned by users.
type Achievement struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Icon        string          `gorm:"size:50" json:"icon"`
	Category    string          `gorm:"size:50;not null;index" json:"category"`
	Criteria    json.RawMessage `gorm:"type:jsonb" json:"criteria"` // JSON structure for criteria
	XPReward    int64           `gorm:"not null;default:0" json:"xp_reward"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Achievement model.
func (Achievement) TableName() string {
	return "achievements"
}

// AchievementCriteria compares a cumulative count in the achievement's category.
type AchievementCriteria struct {
	Operator string  `json:"operator"` // "<", ">", ">=", "<=", "=="
	Value    float64 `json:"value"`
}

// UserAchievement represents an achievement earned by a user.
type UserAchievement struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uint        `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	User          User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AchievementID uint        `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	EarnedAt      time.Time   `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for UserAchievement model.
func (UserAchievement) TableName() string {
	return "user_achievements"
}
