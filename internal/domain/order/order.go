package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrEmptyBasket is returned when checkout is attempted on a basket with
// no items.
var ErrEmptyBasket = errors.New("cannot checkout an empty basket")

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is the immutable record of a completed checkout. Prices, discounts,
// and totals are frozen copies: later changes to products or deals never
// affect a placed order.
type Order struct {
	ID            string
	UserID        string
	OrderDate     time.Time
	Items         []Item
	TotalAmount   decimal.Decimal
	TotalDiscount decimal.Decimal
	// FinalAmount is TotalAmount minus TotalDiscount. It may be negative
	// when summed deals exceed the order total.
	FinalAmount decimal.Decimal
	Note        string
}

// Item is a frozen order line. LineTotal is the pre-discount total.
type Item struct {
	OrderID         string
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	LineTotal       decimal.Decimal
	DiscountApplied decimal.Decimal
}

// NetTotal returns the line total after its discount.
func (i Item) NetTotal() decimal.Decimal {
	return i.LineTotal.Sub(i.DiscountApplied)
}

// Repository defines persistence operations for orders. Create must write
// the order and all of its items atomically.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}
