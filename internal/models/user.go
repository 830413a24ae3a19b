// Package models defines domain models for the community progression service.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role constants, ordered from least to most privileged.
const (
	RoleUser       = "user"
	RoleModerator  = "moderator"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// User represents a community member and their progression state.
type User struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Username       string          `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email          string          `gorm:"size:255" json:"email,omitempty"`
	Role           string          `gorm:"size:20;not null;default:user" json:"role"`
	XP             int64           `gorm:"column:xp;not null;default:0" json:"xp"`
	Level          int             `gorm:"not null;default:1;index" json:"level"`
	DonationRankID *uint           `gorm:"index" json:"donation_rank_id"`
	DonationRank   *DonationRank   `gorm:"foreignKey:DonationRankID" json:"donation_rank,omitempty"`
	RankExpiresAt  *time.Time      `json:"rank_expires_at"`
	TotalDonated   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_donated"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// HasActiveRank reports whether the user holds a donation rank that has not expired at now.
func (u *User) HasActiveRank(now time.Time) bool {
	return u.DonationRankID != nil && u.RankExpiresAt != nil && u.RankExpiresAt.After(now)
}

// ClearRank removes the donation rank together with its expiration.
func (u *User) ClearRank() {
	u.DonationRankID = nil
	u.RankExpiresAt = nil
}
