// Package users manages account roles.
package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/rbac"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/pkg/logger"
)

var (
	// ErrUserNotFound is returned when the actor or target does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden is returned when the actor may not make the change.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrInvalidRole is returned for role names outside the hierarchy.
	ErrInvalidRole = errors.New("invalid role")
	// ErrSuperadminAssignment is returned for any attempt to grant superadmin.
	ErrSuperadminAssignment = repository.ErrSuperadminAssignment
)

// Service handles user lookups and role changes.
type Service struct {
	db       *repository.DB
	userRepo *repository.UserRepository
	log      *logger.Logger
}

// NewService creates a new user service.
func NewService(db *repository.DB, userRepo *repository.UserRepository, log *logger.Logger) *Service {
	return &Service{db: db, userRepo: userRepo, log: log}
}

// Get returns a user by id.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Get(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Role returns the parsed role of a user. Unknown role names map to rbac.RoleUnknown.
func (s *Service) Role(ctx context.Context, userID uint) (rbac.Role, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return rbac.RoleUnknown, err
	}
	return rbac.MustRole(user.Role), nil
}

// ChangeRole sets the role of targetID on behalf of actorID.
func (s *Service) ChangeRole(ctx context.Context, actorID, targetID uint, roleName string) (*models.User, error) {
	role, err := rbac.ParseRole(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, roleName)
	}
	if role == rbac.RoleSuperadmin {
		return nil, ErrSuperadminAssignment
	}

	var updated *models.User
	err = s.db.InTx(ctx, func(tx *repository.DB) error {
		repo := s.userRepo.WithTx(tx)

		actor, err := repo.GetByID(actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		target, err := repo.LockByID(targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		actorRole := rbac.MustRole(actor.Role)
		if !rbac.CanModifyUser(actorRole, rbac.MustRole(target.Role)) || !rbac.CanAssignRole(actorRole, role) {
			return ErrForbidden
		}

		if err := repo.UpdateRole(target.ID, role.String()); err != nil {
			return err
		}
		target.Role = role.String()
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("actor_id", actorID).
		Uint("user_id", targetID).
		Str("role", role.String()).
		Msg("User role changed")
	return updated, nil
}
