// Package ranks implements time-boxed donation rank subscriptions.
package ranks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aimd54/forum-progression/internal/config"
	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/internal/models"
	"github.com/aimd54/forum-progression/internal/repository"
	"github.com/aimd54/forum-progression/pkg/logger"
)

var (
	// ErrUnknownRank is returned for rank ids missing from the pricing table.
	ErrUnknownRank = errors.New("unknown donation rank")
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoActiveRank is returned when a change needs an unexpired rank.
	ErrNoActiveRank = errors.New("user has no active donation rank")
	// ErrInvalidTierChange is returned when an upgrade is not strictly more
	// expensive per day, or a downgrade not strictly cheaper.
	ErrInvalidTierChange = errors.New("invalid rank tier change")
	// ErrNoRemainingValue is returned when converted time rounds down to zero days.
	ErrNoRemainingValue = errors.New("remaining rank time converts to less than one day")
	// ErrInvalidDays is returned for non-positive durations and for expiries
	// more than MaxDays ahead.
	ErrInvalidDays = errors.New("days must be between 1 and 36500")
	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
)

const day = 24 * time.Hour

// MaxDays caps how far ahead a rank may expire, counted from now.
const MaxDays = 36500

// AssignInput describes a rank purchase or grant. When Days is zero it is
// derived from Amount.
type AssignInput struct {
	UserID uint
	RankID uint
	Days   int
	Amount decimal.Decimal
	Kind   string
	Note   string
}

// Subscription is a user's rank state.
type Subscription struct {
	UserID        uint                 `json:"user_id"`
	RankID        *uint                `json:"donation_rank_id"`
	Rank          *models.DonationRank `json:"donation_rank,omitempty"`
	ExpiresAt     *time.Time           `json:"rank_expires_at"`
	Active        bool                 `json:"active"`
	RemainingDays int                  `json:"remaining_days"`
	TotalDonated  decimal.Decimal      `json:"total_donated"`
}

// CatalogEntry is a rank with its price.
type CatalogEntry struct {
	models.DonationRank
	PricePerDay decimal.Decimal `json:"price_per_day"`
}

// Quote is the price of a number of days of a rank.
type Quote struct {
	RankID uint            `json:"rank_id"`
	Days   int             `json:"days"`
	Price  decimal.Decimal `json:"price"`
}

// Service manages donation rank subscriptions.
type Service struct {
	db       *repository.DB
	userRepo *repository.UserRepository
	rankRepo *repository.RankRepository
	pricing  *Pricing
	catalog  []config.RankConfig
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a new rank service.
func NewService(
	db *repository.DB,
	userRepo *repository.UserRepository,
	rankRepo *repository.RankRepository,
	ranks []config.RankConfig,
	log *logger.Logger,
) (*Service, error) {
	pricing, err := NewPricing(ranks)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:       db,
		userRepo: userRepo,
		rankRepo: rankRepo,
		pricing:  pricing,
		catalog:  ranks,
		now:      time.Now,
		log:      log,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Pricing returns the pricing table.
func (s *Service) Pricing() *Pricing {
	return s.pricing
}

// SyncCatalog writes the configured ranks into the catalog table.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) SyncCatalog(ctx context.Context) error {
	rows := make([]models.DonationRank, 0, len(s.catalog))
	for i, r := range s.catalog {
		rows = append(rows, models.DonationRank{
			ID:        r.ID,
			Name:      r.Name,
			Color:     r.Color,
			Badge:     r.Badge,
			SortOrder: i + 1,
		})
	}
	if err := s.rankRepo.Upsert(rows); err != nil {
		return err
	}
	s.log.Info().Int("ranks", len(rows)).Msg("Donation rank catalog synced")
	return nil
}

// Catalog lists the ranks with their price per day.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	ranks, err := s.rankRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load rank catalog: %w", err)
	}
	out := make([]CatalogEntry, 0, len(ranks))
	for _, r := range ranks {
		price, err := s.pricing.PricePerDay(r.ID)
		if err != nil {
			// Catalog rows whose tier was removed from config are not for sale.
			continue
		}
		out = append(out, CatalogEntry{DonationRank: r, PricePerDay: price})
	}
	return out, nil
}

// QuoteDays prices a number of days.
func (s *Service) QuoteDays(rankID uint, days int) (*Quote, error) {
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidDays
	}
	price, err := s.pricing.PriceForDays(rankID, days)
	if err != nil {
		return nil, err
	}
	return &Quote{RankID: rankID, Days: days, Price: price}, nil
}

// QuoteAmount returns how many days amount buys, and what those days cost.
func (s *Service) QuoteAmount(rankID uint, amount decimal.Decimal) (*Quote, error) {
	days, err := s.pricing.DaysForPrice(rankID, amount)
	if err != nil {
		return nil, err
	}
	price, err := s.pricing.PriceForDays(rankID, days)
	if err != nil {
		return nil, err
	}
	return &Quote{RankID: rankID, Days: days, Price: price}, nil
}

// Assign grants days of a rank. Time on the same unexpired rank is extended;
// anything else starts from now.
func (s *Service) Assign(ctx context.Context, in AssignInput) (*Subscription, error) {
	if in.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	days := in.Days
	if days == 0 && in.Amount.IsPositive() {
		var err error
		if days, err = s.pricing.DaysForPrice(in.RankID, in.Amount); err != nil {
			return nil, err
		}
	} else if _, err := s.pricing.PricePerDay(in.RankID); err != nil {
		return nil, err
	}
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidDays
	}
	kind := in.Kind
	if kind == "" {
		kind = models.DonationKindGrant
	}

	now := s.now()
	var sub *Subscription
	err := s.db.InTx(ctx, func(tx *repository.DB) error {
		user, err := s.lockUser(tx, in.UserID)
		if err != nil {
			return err
		}
		rank, err := s.catalogRank(tx, in.RankID)
		if err != nil {
			return err
		}

		base := now
		if user.HasActiveRank(now) && *user.DonationRankID == in.RankID {
			base = *user.RankExpiresAt
		}
		if remainingDays(base, now)+days > MaxDays {
			return ErrInvalidDays
		}
		expiry := base.Add(time.Duration(days) * day)

		rankID := in.RankID
		user.DonationRankID = &rankID
		user.DonationRank = rank
		user.RankExpiresAt = &expiry
		user.TotalDonated = user.TotalDonated.Add(in.Amount)
		if err := s.userRepo.WithTx(tx).UpdateRank(user); err != nil {
			return err
		}

		if err := s.rankRepo.WithTx(tx).RecordDonation(&models.Donation{
			UserID:    user.ID,
			RankID:    rankID,
			Amount:    in.Amount,
			Days:      days,
			Kind:      kind,
			Note:      in.Note,
			ExpiresAt: expiry,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		sub = s.subscriptionFor(user, now)
		return nil
	})
	if err != nil {
		prommetrics.RecordRankOperation(kind, "failure")
		return nil, err
	}

	prommetrics.RecordRankOperation(kind, "success")
	s.log.Info().
		Uint("user_id", in.UserID).
		Uint("rank_id", in.RankID).
		Int("days", days).
		Str("kind", kind).
		Msg("Donation rank assigned")

	return sub, nil
}

// Upgrade moves the remaining value of the current rank onto a more expensive one.
func (s *Service) Upgrade(ctx context.Context, userID, newRankID uint) (*Subscription, error) {
	return s.changeTier(ctx, userID, newRankID, models.DonationKindUpgrade)
}

// Downgrade moves the remaining value of the current rank onto a cheaper one.
func (s *Service) Downgrade(ctx context.Context, userID, newRankID uint) (*Subscription, error) {
	return s.changeTier(ctx, userID, newRankID, models.DonationKindDowngrade)
}

// ChangeTier upgrades or downgrades depending on the price of newRankID
// relative to the user's current rank.
func (s *Service) ChangeTier(ctx context.Context, userID, newRankID uint) (*Subscription, error) {
	newPrice, err := s.pricing.PricePerDay(newRankID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.HasActiveRank(s.now()) {
		return nil, ErrNoActiveRank
	}
	current, err := s.pricing.PricePerDay(*user.DonationRankID)
	if err != nil {
		return nil, err
	}

	switch newPrice.Cmp(current) {
	case 1:
		return s.Upgrade(ctx, userID, newRankID)
	case -1:
		return s.Downgrade(ctx, userID, newRankID)
	default:
		return nil, ErrInvalidTierChange
	}
}

func (s *Service) changeTier(ctx context.Context, userID, newRankID uint, kind string) (*Subscription, error) {
	newPrice, err := s.pricing.PricePerDay(newRankID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		sub     *Subscription
		newDays int
	)
	err = s.db.InTx(ctx, func(tx *repository.DB) error {
		user, err := s.lockUser(tx, userID)
		if err != nil {
			return err
		}
		if !user.HasActiveRank(now) {
			return ErrNoActiveRank
		}
		rank, err := s.catalogRank(tx, newRankID)
		if err != nil {
			return err
		}

		fromRankID := *user.DonationRankID
		current, err := s.pricing.PricePerDay(fromRankID)
		if err != nil {
			return err
		}
		if kind == models.DonationKindUpgrade && !newPrice.GreaterThan(current) {
			return ErrInvalidTierChange
		}
		if kind == models.DonationKindDowngrade && !newPrice.LessThan(current) {
			return ErrInvalidTierChange
		}

		remaining := remainingDays(*user.RankExpiresAt, now)
		newDays, err = s.pricing.ConvertDays(fromRankID, newRankID, remaining)
		if err != nil {
			return err
		}
		if newDays < 1 {
			return ErrNoRemainingValue
		}
		if newDays > MaxDays {
			return ErrInvalidDays
		}

		expiry := now.Add(time.Duration(newDays) * day)
		user.DonationRankID = &newRankID
		user.DonationRank = rank
		user.RankExpiresAt = &expiry
		if err := s.userRepo.WithTx(tx).UpdateRank(user); err != nil {
			return err
		}

		if err := s.rankRepo.WithTx(tx).RecordDonation(&models.Donation{
			UserID:    user.ID,
			RankID:    newRankID,
			Amount:    decimal.Zero,
			Days:      newDays,
			Kind:      kind,
			Note:      fmt.Sprintf("converted %d days of rank %d", remaining, fromRankID),
			ExpiresAt: expiry,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		sub = s.subscriptionFor(user, now)
		return nil
	})
	if err != nil {
		prommetrics.RecordRankOperation(kind, "failure")
		return nil, err
	}

	prommetrics.RecordRankOperation(kind, "success")
	s.log.Info().
		Uint("user_id", userID).
		Uint("rank_id", newRankID).
		Int("days", newDays).
		Str("kind", kind).
		Msg("Donation rank changed")

	return sub, nil
}

// Get returns the user's rank state. An expired rank not yet swept is reported inactive.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) Get(ctx context.Context, userID uint) (*Subscription, error) {
	user, err := s.userRepo.GetByIDWithRank(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.subscriptionFor(user, s.now()), nil
}

// Remove clears the user's rank and its expiration.
func (s *Service) Remove(ctx context.Context, userID uint) error {
	err := s.db.InTx(ctx, func(tx *repository.DB) error {
		user, err := s.lockUser(tx, userID)
		if err != nil {
			return err
		}
		if user.DonationRankID == nil {
			return ErrNoActiveRank
		}
		return s.endRank(tx, user, models.DonationKindRemove, s.now())
	})
	if err != nil {
		prommetrics.RecordRankOperation("remove", "failure")
		return err
	}

	prommetrics.RecordRankOperation("remove", "success")
	s.log.Info().Uint("user_id", userID).Msg("Donation rank removed")
	return nil
}

// SweepExpired clears every rank that has expired and returns the affected user ids.
func (s *Service) SweepExpired(ctx context.Context) ([]uint, error) {
	now := s.now()
	expired, err := s.userRepo.ListExpiredRanks(now)
	if err != nil {
		return nil, err
	}

	cleared := make([]uint, 0, len(expired))
	for _, candidate := range expired {
		var removed bool
		err := s.db.InTx(ctx, func(tx *repository.DB) error {
			user, err := s.lockUser(tx, candidate.ID)
			if err != nil {
				return err
			}
			// Re-check under the lock: the rank may have been renewed meanwhile.
			if user.DonationRankID == nil || user.HasActiveRank(now) {
				return nil
			}
			removed = true
			return s.endRank(tx, user, models.DonationKindExpire, now)
		})
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", candidate.ID).Msg("Failed to clear expired rank")
			continue
		}
		if removed {
			cleared = append(cleared, candidate.ID)
		}
	}

	prommetrics.RecordRanksExpired(len(cleared))
	s.refreshHolderGauges(now)

	if len(cleared) > 0 {
		s.log.Info().Int("count", len(cleared)).Msg("Expired donation ranks cleared")
	}
	return cleared, nil
}

// endRank clears the user's rank and records the closing ledger entry. The
// entry keeps the rank that ended and the days still left on it, if any.
func (s *Service) endRank(tx *repository.DB, user *models.User, kind string, now time.Time) error {
	rankID := *user.DonationRankID
	days := remainingDays(*user.RankExpiresAt, now)

	user.ClearRank()
	if err := s.userRepo.WithTx(tx).UpdateRank(user); err != nil {
		return err
	}
	return s.rankRepo.WithTx(tx).RecordDonation(&models.Donation{
		UserID:    user.ID,
		RankID:    rankID,
		Amount:    decimal.Zero,
		Days:      days,
		Kind:      kind,
		ExpiresAt: now,
		CreatedAt: now,
	})
}

func (s *Service) refreshHolderGauges(now time.Time) {
	counts, err := s.userRepo.CountActiveRankHolders(now)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count rank holders")
		return
	}
	for _, r := range s.catalog {
		prommetrics.SetActiveRankHolders(r.Name, counts[r.ID])
	}
}

// History returns the user's donation ledger.
//
//nolint:revive // ctx reserved for future context-aware operations (tracing, cancellation)
func (s *Service) History(ctx context.Context, userID uint) ([]models.Donation, error) {
	return s.rankRepo.ListDonations(userID)
}

func (s *Service) lockUser(tx *repository.DB, userID uint) (*models.User, error) {
	user, err := s.userRepo.WithTx(tx).LockByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) catalogRank(tx *repository.DB, rankID uint) (*models.DonationRank, error) {
	rank, err := s.rankRepo.WithTx(tx).GetByID(rankID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownRank, rankID)
		}
		return nil, err
	}
	return rank, nil
}

func (s *Service) subscriptionFor(user *models.User, now time.Time) *Subscription {
	sub := &Subscription{
		UserID:       user.ID,
		RankID:       user.DonationRankID,
		Rank:         user.DonationRank,
		ExpiresAt:    user.RankExpiresAt,
		TotalDonated: user.TotalDonated,
		Active:       user.HasActiveRank(now),
	}
	if sub.Active {
		sub.RemainingDays = remainingDays(*user.RankExpiresAt, now)
	}
	return sub
}

// remainingDays rounds the time left up to whole days.
func remainingDays(expiry, now time.Time) int {
	left := expiry.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}
