package gormstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/gormdb"
)

func newReadModel(t *testing.T) *ReadModel {
	t.Helper()
	db, err := Open(gormdb.Config{
		Driver:   gormdb.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "read.db"),
		LogLevel: "silent",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewReadModel(db)
}

func newOrder(t *testing.T, customer string) *domain.Order {
	t.Helper()
	a, err := domain.NewMoney(decimal.NewFromInt(12), "USD")
	require.NoError(t, err)
	b, err := domain.NewMoney(decimal.NewFromInt(3), "USD")
	require.NoError(t, err)
	o, err := domain.NewOrder(customer, []domain.OrderItem{
		{ProductID: "prod_2", ProductName: "Second", UnitPrice: a, Quantity: 1},
		{ProductID: "prod_1", ProductName: "First", UnitPrice: b, Quantity: 4},
	})
	require.NoError(t, err)
	return o
}

func TestReadModel_UpsertConvergesToSnapshot(t *testing.T) {
	ctx := context.Background()
	rm := newReadModel(t)
	o := newOrder(t, "cust-1")

	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(o)))
	require.NoError(t, o.BeginProcessing())
	require.NoError(t, o.Complete())
	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(o)))
	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(o)))

	got, err := rm.Get(ctx, o.ID())
	require.NoError(t, err)

	want := projection.FromOrder(o)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "Completed", got.Status)
	assert.True(t, want.TotalAmount.Equal(got.TotalAmount), "total %s != %s", got.TotalAmount, want.TotalAmount)
	assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
	require.NotNil(t, got.UpdatedAt)

	require.Len(t, got.Items, 2, "items must not duplicate across upserts")
	assert.Equal(t, "prod_2", got.Items[0].ProductID)
	assert.Equal(t, "prod_1", got.Items[1].ProductID)
	assert.True(t, decimal.NewFromInt(12).Equal(got.Items[1].LineTotal))
}

func TestReadModel_Queries(t *testing.T) {
	ctx := context.Background()
	rm := newReadModel(t)
	a := newOrder(t, "cust-1")
	b := newOrder(t, "cust-2")
	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(a)))
	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(b)))

	all, err := rm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := rm.ListByCustomer(ctx, "cust-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID(), mine[0].ID)
	assert.Len(t, mine[0].Items, 2)

	none, err := rm.ListByCustomer(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = rm.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
