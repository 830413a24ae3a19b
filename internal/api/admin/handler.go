// Package admin provides the admin-only REST API for donation ranks, roles and
// manual XP grants.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/aimd54/forum-progression/internal/auth"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/relay"
	"github.com/aimd54/forum-progression/internal/service/leveling"
	"github.com/aimd54/forum-progression/internal/service/ranks"
	"github.com/aimd54/forum-progression/internal/service/users"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// RankService interface for donation rank operations.
type RankService interface {
	Get(ctx context.Context, userID uint) (*ranks.Subscription, error)
	Assign(ctx context.Context, in ranks.AssignInput) (*ranks.Subscription, error)
	ChangeTier(ctx context.Context, userID, newRankID uint) (*ranks.Subscription, error)
	Remove(ctx context.Context, userID uint) error
	History(ctx context.Context, userID uint) ([]models.Donation, error)
}

// UserService interface for role changes.
type UserService interface {
	ChangeRole(ctx context.Context, actorID, targetID uint, role string) (*models.User, error)
}

// XPService interface for manual awards.
type XPService interface {
	AwardXP(ctx context.Context, in leveling.AwardInput) (*leveling.AwardResult, error)
}

// Handler handles admin API requests.
type Handler struct {
	ranks       RankService
	users       UserService
	xp          XPService
	broadcaster relay.Broadcaster
	sanitizer   *bluemonday.Policy
	log         *logger.Logger
}

// NewHandler creates a new admin handler. broadcaster may be nil.
func NewHandler(rankService RankService, userService UserService, xpService XPService, broadcaster relay.Broadcaster, log *logger.Logger) *Handler {
	return &Handler{
		ranks:       rankService,
		users:       userService,
		xp:          xpService,
		broadcaster: broadcaster,
		sanitizer:   bluemonday.StrictPolicy(),
		log:         log,
	}
}

// RegisterRoutes mounts the admin routes on rg. rg must already require an admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/:id/donation-rank", h.GetDonationRank)
	rg.POST("/users/:id/donation-rank", h.AssignDonationRank)
	rg.PATCH("/users/:id/donation-rank", h.ChangeDonationRank)
	rg.DELETE("/users/:id/donation-rank", h.RemoveDonationRank)
	rg.GET("/users/:id/donations", h.GetDonations)
	rg.PATCH("/users/:id/role", h.ChangeRole)
	rg.POST("/users/:id/xp", h.GrantXP)
}

type assignRequest struct {
	RankID uint             `json:"rankId" binding:"required"`
	Days   int              `json:"days"`
	Amount *decimal.Decimal `json:"amount"`
	Kind   string           `json:"kind"`
	Note   string           `json:"note"`
}

type changeRequest struct {
	RankID uint `json:"rankId" binding:"required"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// maxGrantXP bounds a single manual XP grant.
const maxGrantXP = 1_000_000

type grantRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// GetDonationRank returns a user's rank and expiry.
// GET /api/admin/users/:id/donation-rank.
func (h *Handler) GetDonationRank(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.ranks.Get(c.Request.Context(), userID)
	if err != nil {
		h.rankError(c, userID, "get", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

// AssignDonationRank grants days of a rank, derived from amount when days is absent.
// POST /api/admin/users/:id/donation-rank.
func (h *Handler) AssignDonationRank(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body: rankId is required")
		return
	}
	if req.Days < 0 || req.Days > ranks.MaxDays {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", ranks.MaxDays))
		return
	}
	if req.Days == 0 && (req.Amount == nil || !req.Amount.IsPositive()) {
		h.errorResponse(c, http.StatusBadRequest, "days or a positive amount is required")
		return
	}
	switch req.Kind {
	case "", models.DonationKindGrant, models.DonationKindPurchase:
	default:
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid kind: %s", req.Kind))
		return
	}

	in := ranks.AssignInput{
		UserID: userID,
		RankID: req.RankID,
		Days:   req.Days,
		Kind:   req.Kind,
		Note:   h.sanitizer.Sanitize(req.Note),
	}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}

	sub, err := h.ranks.Assign(c.Request.Context(), in)
	if err != nil {
		h.rankError(c, userID, "assign", err)
		return
	}

	h.notifyRankUpdated(sub)
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

// ChangeDonationRank upgrades or downgrades depending on the new rank's price.
// PATCH /api/admin/users/:id/donation-rank.
func (h *Handler) ChangeDonationRank(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req changeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body: rankId is required")
		return
	}

	sub, err := h.ranks.ChangeTier(c.Request.Context(), userID, req.RankID)
	if err != nil {
		h.rankError(c, userID, "change", err)
		return
	}

	h.notifyRankUpdated(sub)
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

// RemoveDonationRank clears a user's rank.
// DELETE /api/admin/users/:id/donation-rank.
func (h *Handler) RemoveDonationRank(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ranks.Remove(c.Request.Context(), userID); err != nil {
		h.rankError(c, userID, "remove", err)
		return
	}

	relay.Notify(h.broadcaster, h.log, &relay.Event{
		Type:    relay.EventUserRankRemoved,
		UserID:  userID,
		Payload: relay.RankPayload{},
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetDonations returns a user's donation ledger.
// GET /api/admin/users/:id/donations.
func (h *Handler) GetDonations(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	donations, err := h.ranks.History(c.Request.Context(), userID)
	if err != nil {
		h.rankError(c, userID, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "donations": donations})
}

// ChangeRole sets a user's role.
// PATCH /api/admin/users/:id/role.
func (h *Handler) ChangeRole(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	actorID, ok := auth.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body: role is required")
		return
	}
	if req.Role == models.RoleSuperadmin {
		h.errorResponse(c, http.StatusForbidden, "the superadmin role cannot be assigned")
		return
	}

	user, err := h.users.ChangeRole(c.Request.Context(), actorID, userID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrInvalidRole):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, users.ErrForbidden), errors.Is(err, users.ErrSuperadminAssignment):
			h.errorResponse(c, http.StatusForbidden, err.Error())
		case errors.Is(err, users.ErrUserNotFound):
			h.errorResponse(c, http.StatusNotFound, "User not found")
		default:
			h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to change role")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to change role")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// GrantXP awards XP by hand.
// POST /api/admin/users/:id/xp.
func (h *Handler) GrantXP(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 || req.Amount > maxGrantXP {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("amount must be between 1 and %d", maxGrantXP))
		return
	}

	res, err := h.xp.AwardXP(c.Request.Context(), leveling.AwardInput{
		UserID:      userID,
		Amount:      req.Amount,
		Source:      models.XPSourceAdminGrant,
		Description: h.sanitizer.Sanitize(req.Description),
	})
	if err != nil {
		switch {
		case errors.Is(err, leveling.ErrUserNotFound):
			h.errorResponse(c, http.StatusNotFound, "User not found")
		case errors.Is(err, leveling.ErrInvalidAmount):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to grant xp")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to grant XP")
		}
		return
	}

	if res.LeveledUp {
		relay.Notify(h.broadcaster, h.log, &relay.Event{
			Type:    relay.EventUserLevelUp,
			UserID:  userID,
			Payload: gin.H{"level": res.NewLevel, "xp": res.NewXP},
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (h *Handler) notifyRankUpdated(sub *ranks.Subscription) {
	payload := relay.RankPayload{RankID: sub.RankID, ExpiresAt: sub.ExpiresAt}
	if sub.Rank != nil {
		payload.RankName = sub.Rank.Name
		payload.Color = sub.Rank.Color
		payload.Badge = sub.Rank.Badge
	}
	relay.Notify(h.broadcaster, h.log, &relay.Event{
		Type:    relay.EventUserRankUpdated,
		UserID:  sub.UserID,
		Payload: payload,
	})
}

// rankError maps rank service errors to HTTP responses.
func (h *Handler) rankError(c *gin.Context, userID uint, op string, err error) {
	switch {
	case errors.Is(err, ranks.ErrUserNotFound):
		h.errorResponse(c, http.StatusNotFound, "User not found")
	case errors.Is(err, ranks.ErrUnknownRank):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ranks.ErrInvalidDays), errors.Is(err, ranks.ErrInvalidAmount):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ranks.ErrNoActiveRank), errors.Is(err, ranks.ErrInvalidTierChange),
		errors.Is(err, ranks.ErrNoRemainingValue):
		h.errorResponse(c, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Uint("user_id", userID).Str("operation", op).Msg("Donation rank operation failed")
		h.errorResponse(c, http.StatusInternalServerError, "Donation rank operation failed")
	}
}

// parseUserID extracts and validates the user ID from the URL parameter.
func parseUserID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user ID: %s", idStr)
	}
	return uint(id), nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
