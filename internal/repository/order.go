package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhhieu1/electronic-store/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, order_date, total_amount, total_discount, final_amount, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price, discount_applied)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderByIDSQL = `SELECT id, user_id, order_date, total_amount, total_discount, final_amount, note
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, order_date, total_amount, total_discount, final_amount, note
		FROM orders WHERE user_id = $1 ORDER BY order_date DESC`

	getOrderItemsSQL = `SELECT order_id, product_id, quantity, unit_price, total_price, discount_applied
		FROM order_items WHERE order_id = $1 ORDER BY product_id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and all of its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.OrderDate,
		o.TotalAmount, o.TotalDiscount, o.FinalAmount, o.Note,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting order %q", o.ID)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, insertOrderItemSQL,
			o.ID, it.ProductID, it.Quantity,
			it.UnitPrice, it.LineTotal, it.DiscountApplied,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting order item %q", it.ProductID)
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// GetByID returns an order with its items loaded.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders newest first, items loaded.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for user %q", userID)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "listing orders for user %q", userID)
	}

	for i := range orders {
		if orders[i].Items, err = r.loadItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading items for order %q", orderID)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(
			&it.OrderID, &it.ProductID, &it.Quantity,
			&it.UnitPrice, &it.LineTotal, &it.DiscountApplied,
		)
		return it, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderDate,
		&o.TotalAmount, &o.TotalDiscount, &o.FinalAmount, &o.Note,
	)
	return o, err
}
