package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
)

func newOrder(t *testing.T, customer string) *domain.Order {
	t.Helper()
	price, err := domain.NewMoney(decimal.NewFromInt(10), "USD")
	require.NoError(t, err)
	o, err := domain.NewOrder(customer, []domain.OrderItem{
		{ProductID: "prod_1", ProductName: "Widget", UnitPrice: price, Quantity: 1},
	})
	require.NoError(t, err)
	return o
}

func TestOrderRepository_VersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	o := newOrder(t, "cust-1")

	require.NoError(t, repo.Save(ctx, o))
	assert.Equal(t, int64(1), o.Version())

	a, err := repo.Load(ctx, o.ID())
	require.NoError(t, err)
	b, err := repo.Load(ctx, o.ID())
	require.NoError(t, err)

	require.NoError(t, a.BeginProcessing())
	require.NoError(t, repo.Save(ctx, a))

	require.NoError(t, b.Cancel("customer request"))
	assert.ErrorIs(t, repo.Save(ctx, b), domain.ErrConcurrentModification)

	stored, err := repo.Load(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, stored.Status())

	dup := domain.Rehydrate(o.Snapshot())
	dup.SetVersion(0)
	assert.ErrorIs(t, repo.Save(ctx, dup), domain.ErrConcurrentModification)
}

func TestOrderRepository_NotFound(t *testing.T) {
	repo := NewOrderRepository()
	_, err := repo.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	ok, err := repo.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadModel(t *testing.T) {
	ctx := context.Background()
	rm := NewReadModel()
	a := newOrder(t, "cust-1")
	b := newOrder(t, "cust-2")

	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(a)))
	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(b)))
	require.NoError(t, rm.Upsert(ctx, projection.FromOrder(a)))

	all, err := rm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := rm.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID(), mine[0].ID)

	_, err = rm.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
