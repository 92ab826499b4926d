package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhhieu1/electronic-store/internal/domain/basket"
)

const (
	getActiveBasketSQL = `SELECT id, user_id, status, created_at FROM baskets
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`

	getNewestBasketSQL = `SELECT id, user_id, status, created_at FROM baskets
		WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1`

	expireActiveBasketsSQL = `UPDATE baskets SET status = 'expired'
		WHERE user_id = $1 AND status = 'active'`

	insertBasketSQL = `INSERT INTO baskets (id, user_id, status)
		VALUES ($1, $2, 'active') RETURNING created_at`

	getBasketItemsSQL = `SELECT basket_id, product_id, quantity
		FROM basket_items WHERE basket_id = $1 ORDER BY product_id`

	upsertBasketItemSQL = `INSERT INTO basket_items (basket_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (basket_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	deleteBasketItemSQL = `DELETE FROM basket_items
		WHERE basket_id = $1 AND product_id = $2`

	clearBasketItemsSQL = `DELETE FROM basket_items WHERE basket_id = $1`

	// The WHERE clause makes the transition conditional: zero rows affected
	// means another writer moved the basket out of the expected status first.
	transitionBasketStatusSQL = `UPDATE baskets SET status = $3
		WHERE id = $1 AND status = $2`

	getBasketStatusSQL = `SELECT status FROM baskets WHERE id = $1`
)

var _ basket.Repository = (*BasketRepository)(nil)

// BasketRepository implements basket.Repository backed by PostgreSQL.
type BasketRepository struct {
	pool *pgxpool.Pool
}

// NewBasketRepository returns a BasketRepository that uses the given pool.
func NewBasketRepository(pool *pgxpool.Pool) *BasketRepository {
	return &BasketRepository{pool: pool}
}

// GetActiveByUser returns the user's active basket with items loaded.
func (r *BasketRepository) GetActiveByUser(ctx context.Context, userID string) (*basket.Basket, error) {
	return r.getBasket(ctx, getActiveBasketSQL, userID)
}

// GetNewestByUser returns the user's most recent basket regardless of
// status, with items loaded.
func (r *BasketRepository) GetNewestByUser(ctx context.Context, userID string) (*basket.Basket, error) {
	return r.getBasket(ctx, getNewestBasketSQL, userID)
}

func (r *BasketRepository) getBasket(ctx context.Context, query, userID string) (*basket.Basket, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting basket for user %q", userID)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBasket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, basket.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting basket for user %q", userID)
	}

	if err := r.loadItems(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateActive expires any prior active basket for the user and inserts a
// fresh one. Both steps run in a single transaction so the one-active
// invariant holds at every observable instant.
func (r *BasketRepository) CreateActive(ctx context.Context, userID string) (*basket.Basket, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, expireActiveBasketsSQL, userID); err != nil {
		return nil, errors.Wrap(err, "expiring prior baskets")
	}

	b := basket.Basket{
		ID:     uuid.New().String(),
		UserID: userID,
		Status: basket.StatusActive,
	}
	if err := tx.QueryRow(ctx, insertBasketSQL, b.ID, userID).Scan(&b.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "inserting basket")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return &b, nil
}

// UpsertItem inserts the line or replaces its quantity.
func (r *BasketRepository) UpsertItem(ctx context.Context, basketID, productID string, qty int) error {
	if _, err := r.pool.Exec(ctx, upsertBasketItemSQL, basketID, productID, qty); err != nil {
		return errors.Wrapf(err, "upserting item %q", productID)
	}
	return nil
}

// DeleteItem removes the line and reports whether it existed.
func (r *BasketRepository) DeleteItem(ctx context.Context, basketID, productID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteBasketItemSQL, basketID, productID)
	if err != nil {
		return false, errors.Wrapf(err, "deleting item %q", productID)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearItems removes every line from the basket.
func (r *BasketRepository) ClearItems(ctx context.Context, basketID string) error {
	if _, err := r.pool.Exec(ctx, clearBasketItemsSQL, basketID); err != nil {
		return errors.Wrapf(err, "clearing basket %q", basketID)
	}
	return nil
}

// TransitionStatus atomically moves the basket from one status to another
// via a conditional update checked by affected-row count. Zero rows means
// either the basket is gone or a concurrent writer won the transition.
func (r *BasketRepository) TransitionStatus(ctx context.Context, basketID string, from, to basket.Status) error {
	tag, err := r.pool.Exec(ctx, transitionBasketStatusSQL, basketID, string(from), string(to))
	if err != nil {
		return errors.Wrapf(err, "transitioning basket %q status", basketID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	if err := r.pool.QueryRow(ctx, getBasketStatusSQL, basketID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return basket.ErrNotFound
		}
		return errors.Wrapf(err, "checking basket %q status", basketID)
	}
	return &basket.InvalidStateError{Status: basket.Status(current)}
}

func (r *BasketRepository) loadItems(ctx context.Context, b *basket.Basket) error {
	rows, err := r.pool.Query(ctx, getBasketItemsSQL, b.ID)
	if err != nil {
		return errors.Wrapf(err, "loading items for basket %q", b.ID)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (basket.Item, error) {
		var it basket.Item
		err := row.Scan(&it.BasketID, &it.ProductID, &it.Quantity)
		return it, err
	})
	if err != nil {
		return errors.Wrapf(err, "loading items for basket %q", b.ID)
	}
	b.Items = items
	return nil
}

func scanBasket(row pgx.CollectableRow) (basket.Basket, error) {
	var (
		b      basket.Basket
		status string
	)
	err := row.Scan(&b.ID, &b.UserID, &status, &b.CreatedAt)
	b.Status = basket.Status(status)
	return b, err
}
