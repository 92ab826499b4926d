package deal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested deal does not exist.
var ErrNotFound = errors.New("deal not found")

// ErrTypeNotFound is returned when a referenced deal type does not exist.
var ErrTypeNotFound = errors.New("deal type not found")

// DuplicateError indicates a second active deal for the same
// product and deal type pair.
type DuplicateError struct {
	ProductName  string
	DealTypeName string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("an active %q deal already exists for product %s",
		e.DealTypeName, e.ProductName)
}

// Type describes a category of deal and names the pricing strategy that
// computes its discount. StrategyID keys into the discount registry.
type Type struct {
	ID          string
	Name        string
	Description string
	StrategyID  string
}

// Deal is a time-bounded discount rule attached to a single product.
// DiscountPercent, DiscountAmount, and MinimumQuantity are optional; each
// strategy applies its own defaults for absent values.
type Deal struct {
	ID              string
	ProductID       string
	Type            Type
	ExpirationDate  time.Time
	DiscountPercent *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	MinimumQuantity *int
	CreatedAt       time.Time
}

// ActiveAt reports whether the deal applies at the given instant. A deal is
// active strictly before its expiration date.
func (d *Deal) ActiveAt(now time.Time) bool {
	return now.Before(d.ExpirationDate)
}

// Repository defines persistence operations for deals and deal types.
type Repository interface {
	// ActiveForProducts returns all deals for the given products that are
	// active at the given instant, grouped by product id.
	ActiveForProducts(ctx context.Context, productIDs []string, now time.Time) (map[string][]Deal, error)
	// Create persists a new deal, failing with DuplicateError when an
	// active deal for the same product and type already exists.
	Create(ctx context.Context, d *Deal) error
	ListTypes(ctx context.Context) ([]Type, error)
	GetType(ctx context.Context, id string) (*Type, error)
}
