package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhhieu1/electronic-store/internal/domain/deal"
)

const (
	activeDealsForProductsSQL = `SELECT d.id, d.product_id, d.expiration_date,
			d.discount_percent, d.discount_amount, d.minimum_quantity, d.created_at,
			t.id, t.name, t.description, t.strategy_id
		FROM deals d
		JOIN deal_types t ON t.id = d.deal_type_id
		WHERE d.product_id = ANY($1) AND d.expiration_date > $2
		ORDER BY d.created_at`

	activeDealExistsSQL = `SELECT EXISTS (SELECT 1 FROM deals
		WHERE product_id = $1 AND deal_type_id = $2 AND expiration_date > $3)`

	insertDealSQL = `INSERT INTO deals (id, product_id, deal_type_id, expiration_date,
			discount_percent, discount_amount, minimum_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	getProductNameSQL = `SELECT name FROM products WHERE id = $1`

	listDealTypesSQL = `SELECT id, name, description, strategy_id FROM deal_types ORDER BY id`

	getDealTypeSQL = `SELECT id, name, description, strategy_id FROM deal_types WHERE id = $1`
)

var _ deal.Repository = (*DealRepository)(nil)

// DealRepository implements deal.Repository backed by PostgreSQL.
type DealRepository struct {
	pool *pgxpool.Pool
}

// NewDealRepository returns a DealRepository that uses the given pool.
func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

// ActiveForProducts returns all deals for the given products that are
// active at the given instant, grouped by product id.
func (r *DealRepository) ActiveForProducts(ctx context.Context, productIDs []string, now time.Time) (map[string][]deal.Deal, error) {
	rows, err := r.pool.Query(ctx, activeDealsForProductsSQL, productIDs, now)
	if err != nil {
		return nil, errors.Wrap(err, "querying active deals")
	}

	deals, err := pgx.CollectRows(rows, scanDeal)
	if err != nil {
		return nil, errors.Wrap(err, "scanning active deals")
	}

	grouped := make(map[string][]deal.Deal, len(productIDs))
	for _, d := range deals {
		grouped[d.ProductID] = append(grouped[d.ProductID], d)
	}
	return grouped, nil
}

// Create persists a new deal. A second active deal for the same product and
// deal type fails with deal.DuplicateError. The duplicate check and insert
// run in one transaction.
func (r *DealRepository) Create(ctx context.Context, d *deal.Deal) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var exists bool
	if err := tx.QueryRow(ctx, activeDealExistsSQL, d.ProductID, d.Type.ID, time.Now()).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking duplicate deal")
	}
	if exists {
		var productName string
		if err := tx.QueryRow(ctx, getProductNameSQL, d.ProductID).Scan(&productName); err != nil {
			productName = d.ProductID
		}
		return &deal.DuplicateError{ProductName: productName, DealTypeName: d.Type.Name}
	}

	err = tx.QueryRow(ctx, insertDealSQL,
		d.ID, d.ProductID, d.Type.ID, d.ExpirationDate,
		d.DiscountPercent, d.DiscountAmount, d.MinimumQuantity,
	).Scan(&d.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting deal %q", d.ID)
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// ListTypes returns all deal types ordered by id.
func (r *DealRepository) ListTypes(ctx context.Context) ([]deal.Type, error) {
	rows, err := r.pool.Query(ctx, listDealTypesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing deal types")
	}
	return pgx.CollectRows(rows, scanDealType)
}

// GetType returns a deal type by its identifier.
func (r *DealRepository) GetType(ctx context.Context, id string) (*deal.Type, error) {
	rows, err := r.pool.Query(ctx, getDealTypeSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting deal type %q", id)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanDealType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deal.ErrTypeNotFound
		}
		return nil, errors.Wrapf(err, "getting deal type %q", id)
	}
	return &t, nil
}

func scanDeal(row pgx.CollectableRow) (deal.Deal, error) {
	var d deal.Deal
	err := row.Scan(
		&d.ID, &d.ProductID, &d.ExpirationDate,
		&d.DiscountPercent, &d.DiscountAmount, &d.MinimumQuantity, &d.CreatedAt,
		&d.Type.ID, &d.Type.Name, &d.Type.Description, &d.Type.StrategyID,
	)
	return d, err
}

func scanDealType(row pgx.CollectableRow) (deal.Type, error) {
	var t deal.Type
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.StrategyID)
	return t, err
}
