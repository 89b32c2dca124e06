package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/adapters/memory"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/retry"
)

var fastRetry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func newService(t *testing.T, stock map[string]int) (*app.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := app.NewService(store, fastRetry, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, svc.Seed(context.Background(), stock))
	return svc, store
}

func line(id string, qty int) app.Line { return app.Line{ProductID: id, Quantity: qty} }

func stockOf(t *testing.T, svc *app.Service, id string) int {
	t.Helper()
	p, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock()
}

func TestReserve_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, app.DefaultStock())

	require.NoError(t, svc.Reserve(ctx, "o-1", []app.Line{line("prod_1", 5), line("prod_2", 10)}))
	assert.Equal(t, 10, stockOf(t, svc, "prod_1"))
	assert.Equal(t, 0, stockOf(t, svc, "prod_2"))

	err := svc.Reserve(ctx, "o-2", []app.Line{line("prod_1", 1), line("prod_9", 1)})
	var rerr *app.ReservationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "prod_9", rerr.ProductID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 10, stockOf(t, svc, "prod_1"), "nothing reserved when one line fails")

	err = svc.Reserve(ctx, "o-3", []app.Line{line("prod_1", 6), line("prod_1", 6)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10, stockOf(t, svc, "prod_1"))
}

func TestReserve_SecondCallForSameOrderIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, map[string]int{"sku": 3})

	require.NoError(t, svc.Reserve(ctx, "o-1", []app.Line{line("sku", 2)}))
	require.NoError(t, svc.Reserve(ctx, "o-1", []app.Line{line("sku", 2)}))
	assert.Equal(t, 1, stockOf(t, svc, "sku"))
}

func TestReserve_InactiveProductRefused(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, map[string]int{"sku": 3})

	_, err := svc.SetActive(ctx, "sku", false)
	require.NoError(t, err)
	err = svc.Reserve(ctx, "o-1", []app.Line{line("sku", 1)})
	assert.ErrorIs(t, err, domain.ErrProductInactive)
	assert.Equal(t, 3, stockOf(t, svc, "sku"))
}

// racingStore makes the first reservation attempt lose a version race.
type racingStore struct {
	*memory.Store
	raced bool
}

func (r *racingStore) ReserveForOrder(ctx context.Context, orderID string, ids []string, fn func(map[string]*domain.Product) error) error {
	if !r.raced {
		r.raced = true
		return domain.ErrConcurrentModification
	}
	return r.Store.ReserveForOrder(ctx, orderID, ids, fn)
}

func TestReserve_RetriesVersionConflict(t *testing.T) {
	ctx := context.Background()
	_, store := newService(t, map[string]int{"sku": 3})
	racing := &racingStore{Store: store}
	svc := app.NewService(racing, fastRetry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, svc.Reserve(ctx, "o-1", []app.Line{line("sku", 2)}))
	assert.True(t, racing.raced)
	assert.Equal(t, 1, stockOf(t, svc, "sku"))
}

func TestProductMaintenance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)

	p, err := svc.Create(ctx, app.CreateProduct{Name: "Lamp", Price: decimal.RequireFromString("20.00"), Currency: "usd", Stock: 2})
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Price().Currency())
	assert.EqualValues(t, 1, p.Version())

	p, err = svc.UpdatePrice(ctx, p.ID(), decimal.RequireFromString("25.50"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "25.5", p.Price().Amount().String())

	_, err = svc.UpdatePrice(ctx, p.ID(), decimal.Zero, "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	p, err = svc.AdjustStock(ctx, p.ID(), -2)
	require.NoError(t, err)
	assert.Zero(t, p.Stock())
	_, err = svc.AdjustStock(ctx, p.ID(), -1)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	p, err = svc.Release(ctx, p.ID(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock())

	_, err = svc.AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSeed_KeepsExistingStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, map[string]int{"sku": 3})
	require.NoError(t, svc.Reserve(ctx, "o-1", []app.Line{line("sku", 3)}))

	require.NoError(t, svc.Seed(ctx, map[string]int{"sku": 3, "new": 1}))
	assert.Zero(t, stockOf(t, svc, "sku"))
	assert.Equal(t, 1, stockOf(t, svc, "new"))
}

func TestReservationError_Unwraps(t *testing.T) {
	err := &app.ReservationError{ProductID: "p", Err: domain.ErrInsufficientStock}
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.Equal(t, "product p: insufficient stock", err.Error())
}
