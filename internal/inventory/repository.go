package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use, so tests can
// substitute pgxmock.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Tx is the transaction subset the repository and the ledger need. pgx.Tx
// satisfies it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	GetByProduct(ctx context.Context, productID int64) (Record, error)
	GetByVariant(ctx context.Context, variantID int64) (Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	SetQuantity(ctx context.Context, productID int64, quantity int) (Record, error)
	SoftDelete(ctx context.Context, productID int64) error
	Reserve(ctx context.Context, productID int64, quantity int) (Record, error)
	// Fulfill converts a reservation into a permanent deduction and also
	// returns the quantity before the deduction.
	Fulfill(ctx context.Context, productID int64, quantity int) (Record, int, error)
	Release(ctx context.Context, productID int64, quantity int) (Record, error)
}

// TransactionalRepository adds explicit-transaction variants so quantity
// deltas commit atomically with the idempotency ledger.
type TransactionalRepository interface {
	Repository
	BeginTx(ctx context.Context) (Tx, error)
	ReserveTx(ctx context.Context, tx Tx, productID int64, quantity int) (Record, error)
	FulfillTx(ctx context.Context, tx Tx, productID int64, quantity int) (Record, int, error)
	ReleaseTx(ctx context.Context, tx Tx, productID int64, quantity int) (Record, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const recordColumns = `id, product_id, variant_id, quantity, reserved_quantity, reorder_level, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ProductID, &rec.VariantID, &rec.Quantity, &rec.ReservedQuantity, &rec.ReorderLevel, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepository) GetByProduct(ctx context.Context, productID int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM inventory
		WHERE product_id=$1 AND deleted_at IS NULL
	`, productID)
	return scanRecord(row)
}

func (r *PostgresRepository) GetByVariant(ctx context.Context, variantID int64) (Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM inventory
		WHERE variant_id=$1 AND deleted_at IS NULL
	`, variantID)
	return scanRecord(row)
}

func (r *PostgresRepository) Create(ctx context.Context, rec Record) (Record, error) {
	if err := rec.ValidateIdentity(); err != nil {
		return Record{}, err
	}
	if rec.Quantity < 0 || rec.ReservedQuantity < 0 || rec.ReservedQuantity > rec.Quantity {
		return Record{}, fmt.Errorf("invalid quantities: quantity=%d reserved=%d", rec.Quantity, rec.ReservedQuantity)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO inventory (product_id, variant_id, quantity, reserved_quantity, reorder_level)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+recordColumns+`
	`, rec.ProductID, rec.VariantID, rec.Quantity, rec.ReservedQuantity, rec.ReorderLevel)
	return scanRecord(row)
}

// SetQuantity upserts total stock for a product without touching
// reservations. Used by admin seed/adjust endpoints.
func (r *PostgresRepository) SetQuantity(ctx context.Context, productID int64, quantity int) (Record, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO inventory (product_id, quantity)
		VALUES ($1, $2)
		ON CONFLICT (product_id) WHERE product_id IS NOT NULL
		DO UPDATE SET quantity = GREATEST(EXCLUDED.quantity, inventory.reserved_quantity), updated_at = now()
		RETURNING `+recordColumns+`
	`, productID, quantity)
	return scanRecord(row)
}

// SoftDelete marks the record removed; rows stay referenceable by open
// orders so quantities are never hard-deleted.
func (r *PostgresRepository) SoftDelete(ctx context.Context, productID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inventory SET deleted_at = now(), updated_at = now()
		WHERE product_id=$1 AND deleted_at IS NULL
	`, productID)
	if err != nil {
		return fmt.Errorf("soft delete inventory for product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) Reserve(ctx context.Context, productID int64, quantity int) (Record, error) {
	return r.reserve(ctx, r.pool, productID, quantity)
}

func (r *PostgresRepository) ReserveTx(ctx context.Context, tx Tx, productID int64, quantity int) (Record, error) {
	return r.reserve(ctx, tx, productID, quantity)
}

// reserve is a single conditional update: the availability check and the
// increment happen in one statement, so concurrent reservations cannot
// oversell.
func (r *PostgresRepository) reserve(ctx context.Context, exec executor, productID int64, quantity int) (Record, error) {
	if quantity <= 0 {
		return Record{}, fmt.Errorf("reserve quantity must be positive, got %d", quantity)
	}

	row := exec.QueryRow(ctx, `
		UPDATE inventory
		SET reserved_quantity = reserved_quantity + $2, updated_at = now()
		WHERE product_id=$1 AND deleted_at IS NULL AND quantity - reserved_quantity >= $2
		RETURNING `+recordColumns+`
	`, productID, quantity)

	rec, err := scanRecord(row)
	if errors.Is(err, ErrNotFound) {
		return Record{}, r.classifyMiss(ctx, exec, productID, ErrInsufficientStock)
	}
	return rec, err
}

func (r *PostgresRepository) Fulfill(ctx context.Context, productID int64, quantity int) (Record, int, error) {
	return r.fulfill(ctx, r.pool, productID, quantity)
}

func (r *PostgresRepository) FulfillTx(ctx context.Context, tx Tx, productID int64, quantity int) (Record, int, error) {
	return r.fulfill(ctx, tx, productID, quantity)
}

// fulfill deducts quantity from both the total and the reservation, the
// compensating action for a prior reserve.
func (r *PostgresRepository) fulfill(ctx context.Context, exec executor, productID int64, quantity int) (Record, int, error) {
	if quantity <= 0 {
		return Record{}, 0, fmt.Errorf("fulfill quantity must be positive, got %d", quantity)
	}

	row := exec.QueryRow(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2, reserved_quantity = reserved_quantity - $2, updated_at = now()
		WHERE product_id=$1 AND deleted_at IS NULL AND reserved_quantity >= $2
		RETURNING `+recordColumns+`
	`, productID, quantity)

	rec, err := scanRecord(row)
	if errors.Is(err, ErrNotFound) {
		return Record{}, 0, r.classifyMiss(ctx, exec, productID, ErrInsufficientStock)
	}
	if err != nil {
		return Record{}, 0, err
	}
	return rec, rec.Quantity + quantity, nil
}

func (r *PostgresRepository) Release(ctx context.Context, productID int64, quantity int) (Record, error) {
	return r.release(ctx, r.pool, productID, quantity)
}

func (r *PostgresRepository) ReleaseTx(ctx context.Context, tx Tx, productID int64, quantity int) (Record, error) {
	return r.release(ctx, tx, productID, quantity)
}

// release returns reserved units to the available pool without changing the
// total. Releasing more than is reserved clamps at zero.
func (r *PostgresRepository) release(ctx context.Context, exec executor, productID int64, quantity int) (Record, error) {
	if quantity <= 0 {
		return Record{}, fmt.Errorf("release quantity must be positive, got %d", quantity)
	}

	row := exec.QueryRow(ctx, `
		UPDATE inventory
		SET reserved_quantity = GREATEST(reserved_quantity - $2, 0), updated_at = now()
		WHERE product_id=$1 AND deleted_at IS NULL
		RETURNING `+recordColumns+`
	`, productID, quantity)
	return scanRecord(row)
}

// classifyMiss tells a missing row apart from a failed condition: the
// conditional updates report both as zero rows.
func (r *PostgresRepository) classifyMiss(ctx context.Context, exec executor, productID int64, conditionErr error) error {
	row := exec.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM inventory
		WHERE product_id=$1 AND deleted_at IS NULL
	`, productID)
	if _, err := scanRecord(row); err != nil {
		return err
	}
	return conditionErr
}
