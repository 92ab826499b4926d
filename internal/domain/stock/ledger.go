// Package stock exposes the stock ledger: the sole read and write path for
// product stock levels. Availability checks are non-committing reads; the
// commit operation is a single atomic conditional decrement, closing the
// check-then-act race between concurrent checkouts.
package stock

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/minhhieu1/electronic-store/internal/domain/product"
)

// Availability is the result of a non-committing stock check.
type Availability struct {
	// Sufficient is true when the product is available and has at least the
	// requested quantity in stock.
	Sufficient bool
	// CurrentStock is the stock level observed at check time.
	CurrentStock int
	// Available reflects the product's availability flag.
	Available bool
}

// Validate maps the availability result for a requested quantity of p onto
// the caller-visible stock error taxonomy. It returns nil when the request
// can be fulfilled.
func (a Availability) Validate(p *product.Product, requested int) error {
	if !a.Available {
		return &product.UnavailableError{Name: p.Name}
	}
	if a.Sufficient {
		return nil
	}
	if a.CurrentStock <= 0 {
		return &product.OutOfStockError{Name: p.Name}
	}
	return &product.InsufficientStockError{
		Name:      p.Name,
		Requested: requested,
		Available: a.CurrentStock,
	}
}

// Ledger mediates all stock reads and mutations over a product store.
type Ledger struct {
	products product.Store
}

// NewLedger creates a Ledger over the given product store.
func NewLedger(products product.Store) *Ledger {
	return &Ledger{products: products}
}

// CheckAvailability reports whether qty units of the product can currently
// be fulfilled. It never mutates stock. A missing product yields the zero
// Availability with a nil error, which callers must treat as "cannot
// fulfill"; any other store failure propagates so an outage is not
// mistaken for an unavailable product.
func (l *Ledger) CheckAvailability(ctx context.Context, productID string, qty int) (Availability, error) {
	p, err := l.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return Availability{}, nil
		}
		return Availability{}, errors.Wrapf(err, "check availability for %s", productID)
	}

	return Availability{
		Sufficient:   p.Available && p.Stock >= qty,
		CurrentStock: p.Stock,
		Available:    p.Available,
	}, nil
}

// CommitDecrement atomically reduces the product's stock by qty. When fewer
// than qty units remain at commit time it returns an InsufficientStockError
// describing the shortfall; stock is left untouched in that case.
func (l *Ledger) CommitDecrement(ctx context.Context, productID string, qty int) error {
	err := l.products.DecrementStock(ctx, productID, qty)
	if err == nil {
		return nil
	}
	if !errors.Is(err, product.ErrStockConflict) {
		return errors.Wrapf(err, "decrement stock for %s", productID)
	}

	// Re-read for error context. The decrement already failed atomically,
	// so this read only affects the message, not correctness.
	name, available := productID, 0
	if p, lookupErr := l.products.GetByID(ctx, productID); lookupErr == nil {
		name, available = p.Name, p.Stock
	}
	return &product.InsufficientStockError{
		Name:      name,
		Requested: qty,
		Available: available,
	}
}

// ReleaseIncrement atomically returns qty units to the product's stock.
// Used to compensate a partially committed multi-item checkout and for
// return or cancellation flows.
func (l *Ledger) ReleaseIncrement(ctx context.Context, productID string, qty int) error {
	if err := l.products.IncrementStock(ctx, productID, qty); err != nil {
		return errors.Wrapf(err, "increment stock for %s", productID)
	}
	return nil
}
