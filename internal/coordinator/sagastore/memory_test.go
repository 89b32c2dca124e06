package sagastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
)

func TestMemory_OptimisticSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, err := store.Load(ctx, "o-1")
	require.ErrorIs(t, err, ErrNotFound)

	st := &saga.State{OrderID: "o-1", Terminal: saga.TerminalNone}
	require.NoError(t, store.Save(ctx, st))
	assert.EqualValues(t, 1, st.Version)

	a, err := store.Load(ctx, "o-1")
	require.NoError(t, err)
	b, err := store.Load(ctx, "o-1")
	require.NoError(t, err)

	a.PaymentDone = true
	require.NoError(t, store.Save(ctx, a))

	b.InventoryDone = true
	assert.ErrorIs(t, store.Save(ctx, b), ErrConcurrentModification)

	dup := &saga.State{OrderID: "o-1"}
	assert.ErrorIs(t, store.Save(ctx, dup), ErrConcurrentModification)

	got, err := store.Load(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.PaymentDone)
	assert.False(t, got.InventoryDone)
	assert.EqualValues(t, 2, got.Version)
}
