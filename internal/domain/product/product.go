package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrStockConflict is returned by Store.DecrementStock when the conditional
// decrement finds less stock than requested. The stock ledger translates it
// into an InsufficientStockError with full context.
var ErrStockConflict = errors.New("stock conflict")

// Product is a catalog item. Stock is mutated only through the ledger's
// commit path (Store.DecrementStock / Store.IncrementStock).
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	Available   bool
}

// UnavailableError indicates a product exists but is flagged unavailable.
type UnavailableError struct {
	Name string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product is not available: %s", e.Name)
}

// OutOfStockError indicates a product has exactly zero stock.
type OutOfStockError struct {
	Name string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product is out of stock: %s", e.Name)
}

// InsufficientStockError indicates the requested quantity exceeds the
// currently available stock.
type InsufficientStockError struct {
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// Store defines persistence operations for the product catalog.
//
// DecrementStock must be a single atomic conditional update: it reduces
// stock by qty only when at least qty units remain, and returns
// ErrStockConflict otherwise. Implementations must never let stock go
// negative.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	DecrementStock(ctx context.Context, id string, qty int) error
	IncrementStock(ctx context.Context, id string, qty int) error
}
