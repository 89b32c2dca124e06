package coordinator_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmem "github.com/jcmexdev/order-fulfillment/internal/catalog/adapters/memory"
	catalog "github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagastore"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/adapters/memory"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/app"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/idempotency"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
	membus "github.com/jcmexdev/order-fulfillment/internal/pkg/messaging/memory"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/retry"
	"github.com/jcmexdev/order-fulfillment/internal/providers/inventory"
	"github.com/jcmexdev/order-fulfillment/internal/providers/payment"
	"github.com/jcmexdev/order-fulfillment/internal/providers/shipping"
)

type nullCache struct{}

func (nullCache) Get(context.Context, string) ([]byte, error)              { return nil, nil }
func (nullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

type system struct {
	bus     *membus.Bus
	orders  *app.OrderService
	queries *app.Queries
	sagas   *sagastore.Memory
}

// newSystem wires every component the way the binaries do, on the
// in-process bus and in-memory stores.
func newSystem(t *testing.T) *system {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := membus.New(membus.WithLogger(log), membus.WithRedelivery(3, time.Millisecond))

	fast := retry.DefaultConfig
	fast.InitialDelay = time.Millisecond

	rm := memory.NewReadModel()
	orders := app.NewOrderService(
		memory.NewOrderRepository(),
		projection.NewService(rm, log),
		idempotency.NewGate(nullCache{}, time.Hour, log),
		bus, fast, log,
	)
	require.NoError(t, app.NewOutcomeListener(orders, log).Register(bus))

	sagas := sagastore.NewMemory()
	require.NoError(t, coordinator.New(sagas, bus, coordinator.WithLogger(log), coordinator.WithRetry(fast)).Register(bus))

	require.NoError(t, payment.NewService(payment.DefaultLimit, bus, log).Register(bus))
	products := catalog.NewService(catalogmem.NewStore(), fast, log)
	require.NoError(t, products.Seed(context.Background(), catalog.DefaultStock()))
	require.NoError(t, inventory.NewService(products, bus, log).Register(bus))
	require.NoError(t, shipping.NewService(bus, log).Register(bus))

	return &system{bus: bus, orders: orders, queries: app.NewQueries(rm), sagas: sagas}
}

func (s *system) place(t *testing.T, product string, price string, qty int) string {
	t.Helper()
	res, err := s.orders.CreateOrder(context.Background(), app.CreateOrderCommand{
		CustomerID: "C1",
		Items: []app.CreateOrderItem{
			{ProductID: product, ProductName: "Widget", UnitPrice: decimal.RequireFromString(price), Quantity: qty},
		},
	})
	require.NoError(t, err)
	s.bus.Wait()
	return res.Order.ID()
}

func TestFulfillmentFlow(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		price    string
		qty      int
		status   string
		reason   string
		terminal saga.TerminalStatus
	}{
		{
			name: "all steps succeed", product: "prod_1", price: "10.00", qty: 2,
			status: "Completed", terminal: saga.TerminalCompleted,
		},
		{
			name: "payment declined", product: "prod_1", price: "600", qty: 1,
			status: "Failed", reason: "Payment failed: amount exceeds limit", terminal: saga.TerminalFailed,
		},
		{
			name: "out of stock", product: "prod_3", price: "1", qty: 1,
			status: "Failed", reason: "Inventory check failed: insufficient stock for prod_3", terminal: saga.TerminalFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newSystem(t)
			id := sys.place(t, tt.product, tt.price, tt.qty)

			view, err := sys.queries.GetOrder(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.status, view.Status)
			assert.Equal(t, tt.reason, view.Reason)

			st, err := sys.sagas.Load(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.terminal, st.Terminal)
			assert.Empty(t, st.Outbox)
			if tt.terminal == saga.TerminalCompleted {
				assert.Regexp(t, `^TRK-`, st.TrackingNumber)
				assert.True(t, st.ShippingRequested)
			}
		})
	}
}
