package repository

import (
	"time"

	"github.com/aimd54/forum-progression/internal/models"
)

// XPRepository handles database operations for the XP transaction ledger.
// Rows are only ever inserted and read.
type XPRepository struct {
	db *DB
}

// NewXPRepository creates a new XP repository.
func NewXPRepository(db *DB) *XPRepository {
	return &XPRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *XPRepository) WithTx(tx *DB) *XPRepository {
	return &XPRepository{db: tx}
}

// Create appends a transaction row.
func (r *XPRepository) Create(txn *models.XPTransaction) error {
	return r.db.Create(txn).Error
}

// ListByUser retrieves a user's transactions, newest first.
func (r *XPRepository) ListByUser(userID uint, limit, offset int) ([]models.XPTransaction, error) {
	var txns []models.XPTransaction
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&txns).Error
	return txns, err
}

// CountByUser returns the number of transactions for a user.
func (r *XPRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.XPTransaction{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountBySource returns how many transactions a user has from one source.
func (r *XPRepository) CountBySource(userID uint, source string) (int64, error) {
	var count int64
	err := r.db.Model(&models.XPTransaction{}).
		Where("user_id = ? AND source = ?", userID, source).
		Count(&count).Error
	return count, err
}

// UserXPTotal is the XP earned by one user in a date range.
type UserXPTotal struct {
	UserID uint
	Total  int64
}

// SumByUserInRange returns XP earned per user between startDate and endDate, highest first.
func (r *XPRepository) SumByUserInRange(startDate, endDate time.Time, limit int) ([]UserXPTotal, error) {
	var results []UserXPTotal
	query := r.db.Model(&models.XPTransaction{}).
		Select("user_id, SUM(amount) AS total").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("user_id").
		Order("total DESC").
		Order("user_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Scan(&results).Error
	return results, err
}

// SumForUserInRange returns XP earned by a user between startDate and endDate.
func (r *XPRepository) SumForUserInRange(userID uint, startDate, endDate time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&models.XPTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, startDate, endDate).
		Scan(&total).Error
	return total, err
}
