package models

import (
	"time"
)

// XP sources.
const (
	XPSourceForumPost   = "forum_post"
	XPSourceForumReply  = "forum_reply"
	XPSourceDailyLogin  = "daily_login"
	XPSourceAchievement = "achievement"
	XPSourceAdminGrant  = "admin_grant"
)

// XPTransaction is an append-only record of experience awarded to a user.
// The running total lives on User; these rows are history only.
type XPTransaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Source          string    `gorm:"size:50;not null;index" json:"source"`
	RelatedEntityID *uint     `json:"related_entity_id,omitempty"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for XPTransaction model.
func (XPTransaction) TableName() string {
	return "xp_transactions"
}

// DailyStreak holds a user's consecutive daily login state.
type DailyStreak struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int       `gorm:"not null;default:0" json:"longest_streak"`
	LastLoginDate time.Time `gorm:"type:date;not null" json:"last_login_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for DailyStreak model.
func (DailyStreak) TableName() string {
	return "daily_streaks"
}
