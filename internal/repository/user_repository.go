package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/aimd54/forum-progression/internal/models"
)

// ErrSuperadminAssignment is returned when application code tries to persist the superadmin role.
var ErrSuperadminAssignment = errors.New("superadmin role cannot be assigned by the application")

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *UserRepository) WithTx(tx *DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create creates a new user.
func (r *UserRepository) Create(user *models.User) error {
	if user.Role == models.RoleSuperadmin {
		return ErrSuperadminAssignment
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Level == 0 {
		user.Level = 1
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByIDWithRank retrieves a user with the donation rank preloaded.
func (r *UserRepository) GetByIDWithRank(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.Preload("DonationRank").First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// LockByID loads a user with a row lock held until the surrounding transaction ends.
func (r *UserRepository) LockByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return &user, nil
}

// UpdateProgress writes the XP total and derived level.
func (r *UserRepository) UpdateProgress(id uint, xp int64, level int) error {
	err := r.db.Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"xp": xp, "level": level, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to update progress for user %d: %w", id, err)
	}
	return nil
}

// UpdateRank writes the donation rank, its expiration and the donated total.
// A nil rank clears the expiration as well.
func (r *UserRepository) UpdateRank(user *models.User) error {
	if user.DonationRankID == nil {
		user.RankExpiresAt = nil
	}
	err := r.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"donation_rank_id": user.DonationRankID,
			"rank_expires_at":  user.RankExpiresAt,
			"total_donated":    user.TotalDonated,
			"updated_at":       time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update rank for user %d: %w", user.ID, err)
	}
	return nil
}

// UpdateRole changes a user's role. The superadmin role is never written here.
func (r *UserRepository) UpdateRole(id uint, role string) error {
	if role == models.RoleSuperadmin {
		return ErrSuperadminAssignment
	}
	err := r.db.Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"role": role, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to update role for user %d: %w", id, err)
	}
	return nil
}

// ListExpiredRanks returns users whose donation rank expired at or before now.
func (r *UserRepository) ListExpiredRanks(now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.
		Where("donation_rank_id IS NOT NULL AND rank_expires_at <= ?", now).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired ranks: %w", err)
	}
	return users, nil
}

// CountActiveRankHolders counts users holding an unexpired rank, grouped by rank id.
func (r *UserRepository) CountActiveRankHolders(now time.Time) (map[uint]int64, error) {
	type row struct {
		DonationRankID uint
		Holders        int64
	}

	var rows []row
	err := r.db.Model(&models.User{}).
		Select("donation_rank_id, COUNT(*) AS holders").
		Where("donation_rank_id IS NOT NULL AND rank_expires_at > ?", now).
		Group("donation_rank_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count rank holders: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, rw := range rows {
		counts[rw.DonationRankID] = rw.Holders
	}
	return counts, nil
}

// TopByXP returns users ordered by XP descending.
func (r *UserRepository) TopByXP(limit int) ([]models.User, error) {
	var users []models.User
	query := r.db.Order("xp DESC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users by xp: %w", err)
	}
	return users, nil
}

// CountWithMoreXP returns how many users have strictly more XP than xp.
func (r *UserRepository) CountWithMoreXP(xp int64) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("xp > ?", xp).Count(&count).Error
	return count, err
}

// GetByIDs retrieves users keyed by id.
func (r *UserRepository) GetByIDs(ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
