package repository

import (
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/aimd54/forum-progression/internal/models"
)

// RankRepository handles the donation rank catalog and the donation ledger.
type RankRepository struct {
	db *DB
}

// NewRankRepository creates a new rank repository.
func NewRankRepository(db *DB) *RankRepository {
	return &RankRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *RankRepository) WithTx(tx *DB) *RankRepository {
	return &RankRepository{db: tx}
}

// Upsert creates or updates catalog rows by id.
func (r *RankRepository) Upsert(ranks []models.DonationRank) error {
	if len(ranks) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "color", "badge", "sort_order", "updated_at"}),
	}).Create(&ranks).Error
	if err != nil {
		return fmt.Errorf("failed to upsert donation ranks: %w", err)
	}
	return nil
}

// GetByID retrieves a catalog entry.
func (r *RankRepository) GetByID(id uint) (*models.DonationRank, error) {
	var rank models.DonationRank
	if err := r.db.First(&rank, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get donation rank %d: %w", id, err)
	}
	return &rank, nil
}

// GetAll returns the catalog in display order.
func (r *RankRepository) GetAll() ([]models.DonationRank, error) {
	var ranks []models.DonationRank
	err := r.db.Order("sort_order ASC").Order("id ASC").Find(&ranks).Error
	return ranks, err
}

// RecordDonation appends a donation ledger row.
func (r *RankRepository) RecordDonation(d *models.Donation) error {
	if err := r.db.Create(d).Error; err != nil {
		return fmt.Errorf("failed to record donation: %w", err)
	}
	return nil
}

// ListDonations returns a user's donation ledger, newest first.
func (r *RankRepository) ListDonations(userID uint) ([]models.Donation, error) {
	var donations []models.Donation
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&donations).Error
	return donations, err
}
