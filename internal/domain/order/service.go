package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/minhhieu1/electronic-store/internal/domain/basket"
	"github.com/minhhieu1/electronic-store/internal/domain/discount"
	"github.com/minhhieu1/electronic-store/internal/domain/product"
	"github.com/minhhieu1/electronic-store/internal/domain/stock"
)

// StockLedger is the committing view of the stock ledger used at checkout.
type StockLedger interface {
	CheckAvailability(ctx context.Context, productID string, qty int) (stock.Availability, error)
	CommitDecrement(ctx context.Context, productID string, qty int) error
	ReleaseIncrement(ctx context.Context, productID string, qty int) error
}

// ItemPricing is the discount computed for one basket line.
type ItemPricing struct {
	ProductID string
	Discount  decimal.Decimal
}

// BasketPricing is the read-only pricing of an active basket.
type BasketPricing struct {
	Items         []ItemPricing
	TotalDiscount decimal.Decimal
}

// Service orchestrates checkout: it re-validates stock for every basket
// line, commits the decrements all-or-nothing, prices the frozen item set,
// and materializes the immutable order.
type Service struct {
	orders   Repository
	baskets  basket.Repository
	products product.Store
	ledger   StockLedger
	engine   *discount.Engine
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	orders Repository,
	baskets basket.Repository,
	products product.Store,
	ledger StockLedger,
	engine *discount.Engine,
) *Service {
	return &Service{
		orders:   orders,
		baskets:  baskets,
		products: products,
		ledger:   ledger,
		engine:   engine,
		now:      time.Now,
	}
}

// Checkout converts the user's active basket into an order. Stock for all
// lines is committed atomically: if any line cannot be fulfilled, previous
// commits in the batch are released and no order is created.
func (s *Service) Checkout(ctx context.Context, userID string) (*Order, error) {
	lg := zctx.From(ctx)
	start := s.now()

	b, err := s.activeBasket(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(b.Items) == 0 {
		return nil, ErrEmptyBasket
	}

	productsByID, err := s.fetchProducts(ctx, b.Items)
	if err != nil {
		return nil, err
	}

	// Availability re-checks are pure reads and may run concurrently, but
	// all must pass before any write proceeds.
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range b.Items {
		p := productsByID[it.ProductID]
		qty := it.Quantity
		g.Go(func() error {
			a, err := s.ledger.CheckAvailability(gctx, p.ID, qty)
			if err != nil {
				return err
			}
			return a.Validate(p, qty)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.commitStock(ctx, b.Items); err != nil {
		return nil, err
	}

	// Conditional claim of the basket: with two concurrent checkouts only
	// one transition lands, the other gets InvalidStateError and must give
	// back the stock it just committed.
	if err := s.baskets.TransitionStatus(ctx, b.ID, basket.StatusActive, basket.StatusCheckedOut); err != nil {
		s.releaseStock(ctx, b.Items)
		return nil, err
	}

	o, err := s.materialize(ctx, b, productsByID)
	if err != nil {
		// Stock is committed but no order exists; compensate fully so the
		// basket can be retried.
		s.releaseStock(ctx, b.Items)
		if stErr := s.baskets.TransitionStatus(ctx, b.ID, basket.StatusCheckedOut, basket.StatusActive); stErr != nil {
			lg.Error("Failed to reactivate basket after checkout failure",
				zap.String("basket_id", b.ID), zap.Error(stErr))
		}
		return nil, err
	}

	lg.Info("Checkout completed",
		zap.String("user_id", userID),
		zap.String("order_id", o.ID),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return o, nil
}

// PriceBasket computes display pricing for the user's active basket using
// the same engine as checkout, without committing stock.
func (s *Service) PriceBasket(ctx context.Context, userID string) (*BasketPricing, error) {
	b, err := s.activeBasket(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(b.Items) == 0 {
		return &BasketPricing{TotalDiscount: decimal.Zero}, nil
	}

	productsByID, err := s.fetchProducts(ctx, b.Items)
	if err != nil {
		return nil, err
	}

	discounts, err := s.engine.PriceItems(ctx, lineItems(b.Items, productsByID))
	if err != nil {
		return nil, err
	}

	pricing := &BasketPricing{
		Items:         make([]ItemPricing, 0, len(b.Items)),
		TotalDiscount: decimal.Zero,
	}
	for _, it := range b.Items {
		d := discounts[it.ProductID]
		pricing.Items = append(pricing.Items, ItemPricing{ProductID: it.ProductID, Discount: d})
		pricing.TotalDiscount = pricing.TotalDiscount.Add(d)
	}
	return pricing, nil
}

// GetByID returns one of the user's orders. Orders belonging to other
// users are reported as not found rather than forbidden, so order ids
// cannot be probed.
func (s *Service) GetByID(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListByUser returns the user's order history, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// materialize prices the frozen item set and persists the resulting order
// with its items as one atomic write.
func (s *Service) materialize(ctx context.Context, b *basket.Basket, productsByID map[string]*product.Product) (*Order, error) {
	lines := lineItems(b.Items, productsByID)

	dealsByProduct, err := s.engine.ActiveDeals(ctx, distinctIDs(b.Items))
	if err != nil {
		return nil, err
	}
	discounts, err := s.engine.Discounts(lines, dealsByProduct)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        b.UserID,
		OrderDate:     s.now(),
		TotalAmount:   decimal.Zero,
		TotalDiscount: decimal.Zero,
	}

	var applied []string
	for _, it := range b.Items {
		p := productsByID[it.ProductID]
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		lineDiscount := discounts[it.ProductID]

		for _, d := range dealsByProduct[it.ProductID] {
			if d.ActiveAt(o.OrderDate) {
				applied = append(applied, fmt.Sprintf("%s on %s", d.Type.Name, p.Name))
			}
		}

		o.Items = append(o.Items, Item{
			OrderID:         o.ID,
			ProductID:       p.ID,
			Quantity:        it.Quantity,
			UnitPrice:       p.Price,
			LineTotal:       lineTotal,
			DiscountApplied: lineDiscount,
		})
		o.TotalAmount = o.TotalAmount.Add(lineTotal)
		o.TotalDiscount = o.TotalDiscount.Add(lineDiscount)
	}
	o.FinalAmount = o.TotalAmount.Sub(o.TotalDiscount)
	o.Note = dealNote(applied)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// commitStock decrements stock for every line, releasing prior commits in
// the batch when one fails so stock is never left partially decremented.
func (s *Service) commitStock(ctx context.Context, items []basket.Item) error {
	committed := make([]basket.Item, 0, len(items))
	for _, it := range items {
		if err := s.ledger.CommitDecrement(ctx, it.ProductID, it.Quantity); err != nil {
			s.releaseStock(ctx, committed)
			return err
		}
		committed = append(committed, it)
	}
	return nil
}

// releaseStock best-effort compensates committed decrements. It runs on a
// detached context so a cancelled request cannot abandon the rollback.
func (s *Service) releaseStock(ctx context.Context, items []basket.Item) {
	ctx = context.WithoutCancel(ctx)
	lg := zctx.From(ctx)
	for _, it := range items {
		if err := s.ledger.ReleaseIncrement(ctx, it.ProductID, it.Quantity); err != nil {
			lg.Error("Failed to release stock during checkout rollback",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) activeBasket(ctx context.Context, userID string) (*basket.Basket, error) {
	b, err := s.baskets.GetNewestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != basket.StatusActive {
		return nil, &basket.InvalidStateError{Status: b.Status}
	}
	return b, nil
}

func (s *Service) fetchProducts(ctx context.Context, items []basket.Item) (map[string]*product.Product, error) {
	fetched, err := s.products.GetByIDs(ctx, distinctIDs(items))
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}
	for _, it := range items {
		if _, ok := byID[it.ProductID]; !ok {
			return nil, product.ErrNotFound
		}
	}
	return byID, nil
}

func lineItems(items []basket.Item, productsByID map[string]*product.Product) []discount.LineItem {
	lines := make([]discount.LineItem, len(items))
	for i, it := range items {
		lines[i] = discount.LineItem{
			ProductID: it.ProductID,
			UnitPrice: productsByID[it.ProductID].Price,
			Quantity:  it.Quantity,
		}
	}
	return lines
}

func distinctIDs(items []basket.Item) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func dealNote(applied []string) string {
	if len(applied) == 0 {
		return "No deals applied"
	}
	return "Applied Deals: " + strings.Join(applied, "; ")
}
