// Package ledger records which (event, operation) pairs have been applied.
// Delivery is at-least-once, so every quantity delta checks the ledger in
// the same transaction before applying itself.
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Executor is the subset of pgx methods the ledger needs, so it can run on
// a pool or inside a transaction.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	executor Executor
}

func NewRepository(exec Executor) *Repository {
	return &Repository{executor: exec}
}

// WithExecutor returns a shallow copy bound to the given executor,
// typically the transaction carrying the quantity delta.
func (r *Repository) WithExecutor(exec Executor) *Repository {
	return &Repository{executor: exec}
}

// MarkProcessed claims the (eventID, operation) pair. It returns true when
// this call is the first to claim it; false means the operation was already
// applied and must be skipped. Rolling back the surrounding transaction
// releases the claim.
func (r *Repository) MarkProcessed(ctx context.Context, eventID, operation string) (bool, error) {
	tag, err := r.executor.Exec(ctx, `
		INSERT INTO processed_events (event_id, operation)
		VALUES ($1, $2)
		ON CONFLICT (event_id, operation) DO NOTHING
	`, eventID, operation)
	if err != nil {
		return false, fmt.Errorf("insert processed event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
