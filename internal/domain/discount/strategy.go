// Package discount prices basket lines against active deals. Strategies are
// pure functions resolved through an explicit registry keyed by the stable
// strategy identifier stored on each deal type.
package discount

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/minhhieu1/electronic-store/internal/domain/deal"
)

// Registered strategy identifiers.
const (
	StrategyPercentage  = "percentage"
	StrategyFixedAmount = "fixed_amount"
	StrategyBuyNHalfOff = "buy_n_half_off"
)

var hundred = decimal.NewFromInt(100)

// LineItem is a priced basket line for discount calculation purposes.
type LineItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns the line's pre-discount total.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// UnknownStrategyError indicates a deal type references a strategy
// identifier with no registered implementation.
type UnknownStrategyError struct {
	StrategyID string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("no discount strategy registered for %q", e.StrategyID)
}

// Strategy computes the discount a single deal grants on a single line.
// Implementations are pure: same inputs, same output.
type Strategy interface {
	Apply(item LineItem, d deal.Deal) decimal.Decimal
}

// Registry maps strategy identifiers to implementations. Resolution fails
// fast on unknown identifiers instead of deferring to a runtime error.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a Registry with the three shipped strategies
// registered under their stable identifiers.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(StrategyPercentage, PercentageStrategy{})
	r.Register(StrategyFixedAmount, FixedAmountStrategy{})
	r.Register(StrategyBuyNHalfOff, BuyNHalfOffStrategy{})
	return r
}

// Register binds a strategy implementation to an identifier, replacing any
// previous binding.
func (r *Registry) Register(id string, s Strategy) {
	r.strategies[id] = s
}

// Resolve returns the strategy for the given identifier.
func (r *Registry) Resolve(id string) (Strategy, error) {
	s, ok := r.strategies[id]
	if !ok {
		return nil, &UnknownStrategyError{StrategyID: id}
	}
	return s, nil
}

// PercentageStrategy discounts a percentage of the line total. Missing,
// zero, or negative percentages yield no discount.
type PercentageStrategy struct{}

func (PercentageStrategy) Apply(item LineItem, d deal.Deal) decimal.Decimal {
	if item.Quantity < minimumQuantity(d, 1) {
		return decimal.Zero
	}
	if d.DiscountPercent == nil || !d.DiscountPercent.IsPositive() {
		return decimal.Zero
	}
	return item.Total().Mul(*d.DiscountPercent).Div(hundred).Round(2)
}

// FixedAmountStrategy discounts a fixed amount, clamped so it never exceeds
// the line's own total. Missing or non-positive amounts yield no discount.
type FixedAmountStrategy struct{}

func (FixedAmountStrategy) Apply(item LineItem, d deal.Deal) decimal.Decimal {
	if item.Quantity < minimumQuantity(d, 1) {
		return decimal.Zero
	}
	if d.DiscountAmount == nil || !d.DiscountAmount.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(*d.DiscountAmount, item.Total())
}

// BuyNHalfOffStrategy discounts one unit per N purchased (N = the deal's
// minimum quantity, default 2) by the deal's percentage (default 50%).
type BuyNHalfOffStrategy struct{}

func (BuyNHalfOffStrategy) Apply(item LineItem, d deal.Deal) decimal.Decimal {
	n := minimumQuantity(d, 2)
	if item.Quantity < n {
		return decimal.Zero
	}

	discountedUnits := item.Quantity / n

	percent := decimal.NewFromInt(50)
	if d.DiscountPercent != nil {
		percent = *d.DiscountPercent
	}

	perUnit := item.UnitPrice.Mul(percent).Div(hundred).Round(2)
	return perUnit.Mul(decimal.NewFromInt(int64(discountedUnits)))
}

func minimumQuantity(d deal.Deal, def int) int {
	if d.MinimumQuantity != nil {
		return *d.MinimumQuantity
	}
	return def
}
