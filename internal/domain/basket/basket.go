package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of a basket. Active baskets accept
// mutations; checked-out and expired baskets are terminal.
type Status string

const (
	StatusActive     Status = "active"
	StatusCheckedOut Status = "checked_out"
	StatusExpired    Status = "expired"
)

// ErrNotFound is returned when a user has no basket at all.
var ErrNotFound = errors.New("basket not found")

// ErrInvalidQuantity is returned when an item mutation specifies a
// quantity below 1 where at least 1 is required.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// InvalidStateError indicates a mutation or checkout was attempted on a
// basket that is no longer active.
type InvalidStateError struct {
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot modify basket with status %q", e.Status)
}

// ItemNotFoundError indicates the basket holds no line for the product.
type ItemNotFoundError struct {
	ProductID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found in basket", e.ProductID)
}

// Basket is a user's in-progress collection of line items. A product
// appears at most once; adding an existing product raises its quantity.
type Basket struct {
	ID        string
	UserID    string
	Status    Status
	CreatedAt time.Time
	Items     []Item
}

// Item is a (product, quantity) line within a basket. Quantity is always
// at least 1; a mutation that would drop it to 0 deletes the line instead.
type Item struct {
	BasketID  string
	ProductID string
	Quantity  int
}

// ItemFor returns the basket's line for the given product, if present.
func (b *Basket) ItemFor(productID string) (Item, bool) {
	for _, it := range b.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Repository defines persistence operations for baskets and their items.
//
// CreateActive must expire any prior active basket for the user and insert
// the fresh one in a single transaction, so the one-active-basket-per-user
// invariant holds at every observable instant.
type Repository interface {
	// GetActiveByUser returns the user's active basket with items loaded,
	// or ErrNotFound.
	GetActiveByUser(ctx context.Context, userID string) (*Basket, error)
	// GetNewestByUser returns the user's most recent basket regardless of
	// status, with items loaded, or ErrNotFound.
	GetNewestByUser(ctx context.Context, userID string) (*Basket, error)
	CreateActive(ctx context.Context, userID string) (*Basket, error)
	UpsertItem(ctx context.Context, basketID, productID string, qty int) error
	// DeleteItem removes the line and reports whether it existed.
	DeleteItem(ctx context.Context, basketID, productID string) (bool, error)
	ClearItems(ctx context.Context, basketID string) error
	// TransitionStatus atomically moves the basket from one status to
	// another. It fails with ErrNotFound when the basket does not exist
	// and with InvalidStateError when its current status is not from, so
	// concurrent checkouts cannot both claim the same basket.
	TransitionStatus(ctx context.Context, basketID string, from, to Status) error
}
