package integration

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-events/internal/inventory"
	"github.com/andreasstove999/ecommerce-events/internal/ledger"
	"github.com/andreasstove999/ecommerce-events/internal/order"
	"github.com/andreasstove999/ecommerce-events/internal/testutil"
)

func TestOrderRepositoryRoundTrip(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	pool := testutil.StartPostgres(t, logger)
	ctx := context.Background()

	repo := order.NewPostgresRepository(pool)

	o := &order.Order{
		OrderNumber: "ORD-700",
		UserID:      42,
		Status:      order.StatusPending,
		Subtotal:    decimal.RequireFromString("30.00"),
		TotalAmount: decimal.RequireFromString("30.00"),
		Items: []order.Item{
			{ProductID: 1, ProductName: "widget", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: 2, ProductName: "gadget", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	require.NoError(t, repo.Create(ctx, o))
	require.NotZero(t, o.ID)
	require.NotZero(t, o.Items[0].ID)

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.OrderNumber, got.OrderNumber)
	require.Len(t, got.Items, 2)
	require.True(t, got.TotalAmount.Equal(o.TotalAmount))

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, order.StatusPending, order.StatusConfirmed))

	// Redelivered transition loses the conditional update.
	err = repo.UpdateStatus(ctx, o.ID, order.StatusPending, order.StatusConfirmed)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	ids, err := repo.OpenOrderIDsWithProduct(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, ids, o.ID)

	ids, err = repo.OpenOrderIDsWithProduct(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestInventoryRepositoryConditionalUpdates(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	pool := testutil.StartPostgres(t, logger)
	ctx := context.Background()

	repo := inventory.NewPostgresRepository(pool)

	rec, err := repo.Create(ctx, inventory.Record{ProductID: int64Ptr(10), Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 4, rec.Available())

	rec, err = repo.Reserve(ctx, 10, 3)
	require.NoError(t, err)
	require.Equal(t, 3, rec.ReservedQuantity)

	// Only one unit is still free, so a two-unit claim must not go through.
	_, err = repo.Reserve(ctx, 10, 2)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	rec, prev, err := repo.Fulfill(ctx, 10, 3)
	require.NoError(t, err)
	require.Equal(t, 4, prev)
	require.Equal(t, 1, rec.Quantity)
	require.Equal(t, 0, rec.ReservedQuantity)

	_, err = repo.Reserve(ctx, 99, 1)
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestLedgerMarksProcessedOnce(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	pool := testutil.StartPostgres(t, logger)
	ctx := context.Background()

	repo := ledger.NewRepository(pool)

	first, err := repo.MarkProcessed(ctx, "evt-1", "reserve:10")
	require.NoError(t, err)
	require.True(t, first)

	again, err := repo.MarkProcessed(ctx, "evt-1", "reserve:10")
	require.NoError(t, err)
	require.False(t, again)

	other, err := repo.MarkProcessed(ctx, "evt-1", "fulfill:10")
	require.NoError(t, err)
	require.True(t, other)
}
