package basket

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/minhhieu1/electronic-store/internal/domain/product"
	"github.com/minhhieu1/electronic-store/internal/domain/stock"
)

// StockChecker is the non-committing availability view of the stock ledger.
type StockChecker interface {
	CheckAvailability(ctx context.Context, productID string, qty int) (stock.Availability, error)
}

// Service implements basket lifecycle and item mutations. Every mutation
// re-validates stock non-committingly; stock is only committed at checkout.
type Service struct {
	baskets  Repository
	products product.Store
	stock    StockChecker
}

// NewService creates a basket Service with the required dependencies.
func NewService(baskets Repository, products product.Store, checker StockChecker) *Service {
	return &Service{
		baskets:  baskets,
		products: products,
		stock:    checker,
	}
}

// GetOrCreateActive returns the user's active basket, creating one if none
// exists. Creation expires any prior active basket for the user.
func (s *Service) GetOrCreateActive(ctx context.Context, userID string) (*Basket, error) {
	b, err := s.baskets.GetActiveByUser(ctx, userID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "get active basket")
	}

	b, err = s.baskets.CreateActive(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "create basket")
	}
	return b, nil
}

// AddItem adds qty units of the product to the user's active basket,
// creating the basket if needed. The stock check runs against the would-be
// total quantity for the product, not the increment alone.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (*Basket, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	b, err := s.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	total := qty
	if existing, ok := b.ItemFor(productID); ok {
		total += existing.Quantity
	}

	if err := s.validateStock(ctx, p, total); err != nil {
		return nil, err
	}

	if err := s.baskets.UpsertItem(ctx, b.ID, productID, total); err != nil {
		return nil, errors.Wrap(err, "upsert basket item")
	}
	return s.baskets.GetActiveByUser(ctx, userID)
}

// UpdateItemQuantity sets the product's line quantity. A quantity of zero
// or below deletes the line. An absent line yields ItemNotFoundError.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID string, qty int) (*Basket, error) {
	b, err := s.activeBasket(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, ok := b.ItemFor(productID); !ok {
		return nil, &ItemNotFoundError{ProductID: productID}
	}

	if qty <= 0 {
		if _, err := s.baskets.DeleteItem(ctx, b.ID, productID); err != nil {
			return nil, errors.Wrap(err, "delete basket item")
		}
		return s.baskets.GetActiveByUser(ctx, userID)
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	// Absolute re-validation: qty replaces the line, it is not incremental.
	if err := s.validateStock(ctx, p, qty); err != nil {
		return nil, err
	}

	if err := s.baskets.UpsertItem(ctx, b.ID, productID, qty); err != nil {
		return nil, errors.Wrap(err, "update basket item")
	}
	return s.baskets.GetActiveByUser(ctx, userID)
}

// RemoveItem deletes the product's line from the user's active basket.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Basket, error) {
	b, err := s.activeBasket(ctx, userID)
	if err != nil {
		return nil, err
	}

	deleted, err := s.baskets.DeleteItem(ctx, b.ID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "delete basket item")
	}
	if !deleted {
		return nil, &ItemNotFoundError{ProductID: productID}
	}
	return s.baskets.GetActiveByUser(ctx, userID)
}

// Clear removes every line from the user's active basket. Clearing an
// already empty basket succeeds.
func (s *Service) Clear(ctx context.Context, userID string) error {
	b, err := s.activeBasket(ctx, userID)
	if err != nil {
		return err
	}
	if len(b.Items) == 0 {
		return nil
	}
	if err := s.baskets.ClearItems(ctx, b.ID); err != nil {
		return errors.Wrap(err, "clear basket items")
	}
	return nil
}

// activeBasket loads the user's newest basket and enforces the active-state
// requirement shared by all mutations.
func (s *Service) activeBasket(ctx context.Context, userID string) (*Basket, error) {
	b, err := s.baskets.GetNewestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusActive {
		return nil, &InvalidStateError{Status: b.Status}
	}
	return b, nil
}

// validateStock runs a non-committing availability check for qty units of p.
func (s *Service) validateStock(ctx context.Context, p *product.Product, qty int) error {
	a, err := s.stock.CheckAvailability(ctx, p.ID, qty)
	if err != nil {
		return errors.Wrap(err, "check availability")
	}
	return a.Validate(p, qty)
}
