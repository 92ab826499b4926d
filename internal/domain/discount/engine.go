package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/minhhieu1/electronic-store/internal/domain/deal"
)

// Engine resolves the deals applying to a set of lines, dispatches each
// deal to its strategy, and sums the resulting discounts per product.
//
// Discounts from multiple simultaneously active deals on one product are
// summed, never capped: a line's discount can exceed its own total.
type Engine struct {
	deals    deal.Repository
	registry *Registry
	now      func() time.Time
}

// NewEngine creates an Engine over the given deal repository and registry.
func NewEngine(deals deal.Repository, registry *Registry) *Engine {
	return &Engine{
		deals:    deals,
		registry: registry,
		now:      time.Now,
	}
}

// ActiveDeals fetches the currently active deals for the given products,
// grouped by product id.
func (e *Engine) ActiveDeals(ctx context.Context, productIDs []string) (map[string][]deal.Deal, error) {
	deals, err := e.deals.ActiveForProducts(ctx, productIDs, e.now())
	if err != nil {
		return nil, errors.Wrap(err, "fetch active deals")
	}
	return deals, nil
}

// PriceItems computes the summed discount per product for the given lines.
func (e *Engine) PriceItems(ctx context.Context, items []LineItem) (map[string]decimal.Decimal, error) {
	dealsByProduct, err := e.ActiveDeals(ctx, distinctProductIDs(items))
	if err != nil {
		return nil, err
	}
	return e.Discounts(items, dealsByProduct)
}

// Discounts computes the summed discount per product from a pre-fetched
// deal grouping. It is a pure function of its inputs apart from the clock
// used to skip deals that expired after fetching.
func (e *Engine) Discounts(items []LineItem, dealsByProduct map[string][]deal.Deal) (map[string]decimal.Decimal, error) {
	now := e.now()
	discounts := make(map[string]decimal.Decimal, len(items))

	for _, item := range items {
		total := decimal.Zero
		for _, d := range dealsByProduct[item.ProductID] {
			if !d.ActiveAt(now) {
				continue
			}
			strategy, err := e.registry.Resolve(d.Type.StrategyID)
			if err != nil {
				return nil, err
			}
			total = total.Add(strategy.Apply(item, d))
		}
		discounts[item.ProductID] = total
	}
	return discounts, nil
}

func distinctProductIDs(items []LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
