// Package auth issues and verifies session tokens and guards routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aimd54/forum-progression/internal/rbac"
	"github.com/aimd54/forum-progression/pkg/logger"
)

const (
	// ContextUserIDKey stores the authenticated user id in the gin context.
	ContextUserIDKey = "user_id"
	// ContextRoleKey stores the caller's role once loaded by RequireRole.
	ContextRoleKey = "role"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims defines JWT claims used by the service.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses HS256 tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a token manager. A non-positive ttl defaults to 24 hours.
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues a token for the user.
func (m *Manager) GenerateToken(userID uint, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken validates a token and returns its claims.
func (m *Manager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RoleLookup loads a user's current role.
type RoleLookup interface {
	Role(ctx context.Context, userID uint) (rbac.Role, error)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// AuthRequired ensures the request carries a valid Bearer token.
func AuthRequired(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "authorization header missing")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abort(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// RequireRole loads the caller's role from storage and admits it when allowed
// returns true. It must run after AuthRequired.
func RequireRole(roles RoleLookup, allowed func(rbac.Role) bool, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		role, err := roles.Role(c.Request.Context(), userID)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to load caller role")
			abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		if !allowed(role) {
			abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}

		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireAdmin admits admins and superadmins.
func RequireAdmin(roles RoleLookup, log *logger.Logger) gin.HandlerFunc {
	return RequireRole(roles, rbac.CanAccessAdmin, log)
}

// UserID returns the authenticated user id.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// Role returns the role loaded by RequireRole.
func Role(c *gin.Context) (rbac.Role, bool) {
	v, ok := c.Get(ContextRoleKey)
	if !ok {
		return rbac.RoleUnknown, false
	}
	role, ok := v.(rbac.Role)
	return role, ok
}
