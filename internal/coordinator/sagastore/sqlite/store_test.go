package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagastore"
	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/sqlitedb"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "saga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := New(context.Background(), db)
	require.NoError(t, err)
	return store
}

func sampleState() *saga.State {
	return &saga.State{
		OrderID:     "o-1",
		CustomerID:  "C1",
		TotalAmount: decimal.RequireFromString("20.00"),
		Currency:    "USD",
		Items: []messages.OrderItem{
			{ProductID: "P1", ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
		Terminal: saga.TerminalNone,
		Outbox: []messages.Message{
			messages.ProcessPaymentCommand{OrderID: "o-1", Amount: decimal.RequireFromString("20.00"), Currency: "USD"},
		},
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Load(ctx, "o-1")
	require.ErrorIs(t, err, sagastore.ErrNotFound)

	st := sampleState()
	require.NoError(t, store.Save(ctx, st))
	assert.EqualValues(t, 1, st.Version)

	got, err := store.Load(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "C1", got.CustomerID)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, saga.TerminalNone, got.Terminal)
	assert.Equal(t, saga.PhaseStarted, got.Phase())
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Widget", got.Items[0].ProductName)
	require.Len(t, got.Outbox, 1)
	pay, ok := got.Outbox[0].(messages.ProcessPaymentCommand)
	require.True(t, ok)
	assert.True(t, pay.Amount.Equal(decimal.NewFromInt(20)))
}

func TestStore_OptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Save(ctx, sampleState()))

	first, err := store.Load(ctx, "o-1")
	require.NoError(t, err)
	second, err := store.Load(ctx, "o-1")
	require.NoError(t, err)

	first.PaymentDone = true
	first.Outbox = nil
	require.NoError(t, store.Save(ctx, first))
	assert.EqualValues(t, 2, first.Version)

	second.InventoryDone = true
	assert.ErrorIs(t, store.Save(ctx, second), sagastore.ErrConcurrentModification)

	assert.ErrorIs(t, store.Save(ctx, sampleState()), sagastore.ErrConcurrentModification,
		"a second insert for the same order is a conflict")

	got, err := store.Load(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.PaymentDone)
	assert.False(t, got.InventoryDone)
	assert.Empty(t, got.Outbox)
}

func TestStore_PersistsTerminalState(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	st := sampleState()
	st.Terminal = saga.TerminalFailed
	st.FailureReason = "Payment failed: card declined"
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Load(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.IsTerminal())
	assert.Equal(t, saga.PhaseFailed, got.Phase())
	assert.Equal(t, "Payment failed: card declined", got.FailureReason)
}
