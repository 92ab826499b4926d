package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhhieu1/electronic-store/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, stock, category, available
		FROM products WHERE available = TRUE ORDER BY id`

	getProductByIDSQL = `SELECT id, name, description, price, stock, category, available
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, description, price, stock, category, available
		FROM products WHERE id = ANY($1)`

	// The WHERE clause makes the decrement conditional: zero rows affected
	// means the remaining stock was below qty and nothing changed.
	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	incrementStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

var _ product.Store = (*ProductRepository)(nil)

// ProductRepository implements product.Store backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all available products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// DecrementStock atomically reduces the product's stock by qty via a
// conditional update checked by affected-row count. It returns
// product.ErrStockConflict when fewer than qty units remain, or
// product.ErrNotFound when the product does not exist.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return errors.Wrapf(err, "decrementing stock for %q", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return errors.Wrapf(err, "checking product %q", id)
	}
	if !exists {
		return product.ErrNotFound
	}
	return product.ErrStockConflict
}

// IncrementStock atomically returns qty units to the product's stock.
func (r *ProductRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	tag, err := r.pool.Exec(ctx, incrementStockSQL, id, qty)
	if err != nil {
		return errors.Wrapf(err, "incrementing stock for %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price,
		&p.Stock, &p.Category, &p.Available,
	)
	return p, err
}
