package ranks

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aimd54/forum-progression/internal/config"
)

// Pricing holds the price per day of every donation rank.
type Pricing struct {
	prices map[uint]decimal.Decimal
	order  []uint
}

// NewPricing builds the pricing table from the configured ranks.
func NewPricing(ranks []config.RankConfig) (*Pricing, error) {
	p := &Pricing{prices: make(map[uint]decimal.Decimal, len(ranks))}
	for _, r := range ranks {
		price, err := r.Price()
		if err != nil {
			return nil, fmt.Errorf("rank %d: invalid price_per_day %q: %w", r.ID, r.PricePerDay, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("rank %d: price_per_day must be positive", r.ID)
		}
		if _, dup := p.prices[r.ID]; dup {
			return nil, fmt.Errorf("rank %d: duplicate id", r.ID)
		}
		p.prices[r.ID] = price
		p.order = append(p.order, r.ID)
	}
	sort.SliceStable(p.order, func(i, j int) bool {
		return p.prices[p.order[i]].LessThan(p.prices[p.order[j]])
	})
	return p, nil
}

// PricePerDay returns the configured price for one day of rankID.
func (p *Pricing) PricePerDay(rankID uint) (decimal.Decimal, error) {
	price, ok := p.prices[rankID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnknownRank, rankID)
	}
	return price, nil
}

// RankIDs returns the priced rank ids, cheapest first.
func (p *Pricing) RankIDs() []uint {
	out := make([]uint, len(p.order))
	copy(out, p.order)
	return out
}

// DaysForPrice returns how many whole days price buys: floor(price / pricePerDay).
func (p *Pricing) DaysForPrice(rankID uint, price decimal.Decimal) (int, error) {
	ppd, err := p.PricePerDay(rankID)
	if err != nil {
		return 0, err
	}
	if price.IsNegative() {
		return 0, ErrInvalidAmount
	}
	q, _ := price.QuoRem(ppd, 0)
	if q.GreaterThan(decimal.NewFromInt(MaxDays)) {
		return 0, ErrInvalidDays
	}
	return int(q.IntPart()), nil
}

// PriceForDays returns the cost of days, rounded to cents.
func (p *Pricing) PriceForDays(rankID uint, days int) (decimal.Decimal, error) {
	ppd, err := p.PricePerDay(rankID)
	if err != nil {
		return decimal.Zero, err
	}
	if days < 0 {
		return decimal.Zero, ErrInvalidDays
	}
	return ppd.Mul(decimal.NewFromInt(int64(days))).Round(2), nil
}

// ConvertDays converts remaining days of one rank into days of another,
// preserving monetary value: floor(days * ppd(from) / ppd(to)).
func (p *Pricing) ConvertDays(fromRankID, toRankID uint, days int) (int, error) {
	from, err := p.PricePerDay(fromRankID)
	if err != nil {
		return 0, err
	}
	to, err := p.PricePerDay(toRankID)
	if err != nil {
		return 0, err
	}
	if days <= 0 {
		return 0, nil
	}
	value := from.Mul(decimal.NewFromInt(int64(days)))
	q, _ := value.QuoRem(to, 0)
	if q.GreaterThan(decimal.NewFromInt(MaxDays)) {
		return 0, ErrInvalidDays
	}
	return int(q.IntPart()), nil
}
