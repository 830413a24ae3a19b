package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationRank is a catalog entry for a donation tier. Prices are not stored here.
type DonationRank struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Color     string    `gorm:"size:20" json:"color"`
	Badge     string    `gorm:"size:100" json:"badge"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for DonationRank model.
func (DonationRank) TableName() string {
	return "donation_ranks"
}

// Donation kinds.
const (
	DonationKindPurchase  = "purchase"
	DonationKindGrant     = "grant"
	DonationKindUpgrade   = "upgrade"
	DonationKindDowngrade = "downgrade"
	DonationKindRemove    = "remove"
	DonationKindExpire    = "expire"
)

// Donation records every change to a user's rank subscription.
type Donation struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	RankID    uint            `gorm:"not null;index" json:"rank_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Days      int             `gorm:"not null" json:"days"`
	Kind      string          `gorm:"size:20;not null" json:"kind"`
	Note      string          `gorm:"type:text" json:"note,omitempty"`
	ExpiresAt time.Time       `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for Donation model.
func (Donation) TableName() string {
	return "donations"
}
