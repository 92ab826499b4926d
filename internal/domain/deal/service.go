package deal

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minhhieu1/electronic-store/internal/domain/product"
)

// CreateParams holds the input for creating a deal.
type CreateParams struct {
	ProductID       string
	DealTypeID      string
	ExpirationDate  time.Time
	DiscountPercent *decimal.Decimal
	DiscountAmount  *decimal.Decimal
	MinimumQuantity *int
}

// Service implements deal administration.
type Service struct {
	deals    Repository
	products product.Store
}

// NewService creates a deal Service with the required dependencies.
func NewService(deals Repository, products product.Store) *Service {
	return &Service{deals: deals, products: products}
}

// Create validates the referenced product and deal type and persists a new
// deal. A second active deal for the same product and type pair fails with
// DuplicateError.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Deal, error) {
	if _, err := s.products.GetByID(ctx, params.ProductID); err != nil {
		return nil, err
	}

	t, err := s.deals.GetType(ctx, params.DealTypeID)
	if err != nil {
		return nil, err
	}

	d := &Deal{
		ID:              uuid.New().String(),
		ProductID:       params.ProductID,
		Type:            *t,
		ExpirationDate:  params.ExpirationDate,
		DiscountPercent: params.DiscountPercent,
		DiscountAmount:  params.DiscountAmount,
		MinimumQuantity: params.MinimumQuantity,
	}
	if err := s.deals.Create(ctx, d); err != nil {
		return nil, errors.Wrap(err, "create deal")
	}
	return d, nil
}

// ListTypes returns all configured deal types.
func (s *Service) ListTypes(ctx context.Context) ([]Type, error) {
	return s.deals.ListTypes(ctx)
}
