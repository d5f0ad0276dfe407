package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID int64) (*Order, error)
	// UpdateStatus moves the order from one status to another with a
	// conditional update; a lost race or repeated delivery surfaces as
	// ErrInvalidTransition.
	UpdateStatus(ctx context.Context, orderID int64, from, to Status) error
	// OpenOrderIDsWithProduct lists open orders whose snapshot contains
	// the product, used to flag orders affected by catalog changes.
	OpenOrderIDsWithProduct(ctx context.Context, productID int64) ([]int64, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = StatusPending
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, status, subtotal, tax_amount, shipping_cost, discount_amount, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, o.OrderNumber, o.UserID, o.Status, o.Subtotal, o.TaxAmount, o.ShippingCost, o.DiscountAmount, o.TotalAmount).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, o.ID, item.ProductID, item.VariantID, item.ProductName, item.Quantity, item.UnitPrice).
			Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item for product %d: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_number, user_id, status, subtotal, tax_amount, shipping_cost, discount_amount, total_amount, created_at, updated_at
		FROM orders
		WHERE id=$1
	`, orderID).Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Subtotal, &o.TaxAmount, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select order %d: %w", orderID, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, variant_id, product_name, quantity, unit_price
		FROM order_items
		WHERE order_id=$1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items for %d: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ProductID, &item.VariantID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return &o, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID int64, from, to Status) error {
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
	`, orderID, from, to)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the order is gone or another writer moved it first.
		if _, err := r.GetByID(ctx, orderID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *PostgresRepository) OpenOrderIDsWithProduct(ctx context.Context, productID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT o.id
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE i.product_id=$1 AND o.status IN ($2, $3, $4)
		ORDER BY o.id
	`, productID, StatusPending, StatusConfirmed, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("select open orders with product %d: %w", productID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
