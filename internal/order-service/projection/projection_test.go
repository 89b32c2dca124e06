package projection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

type captureStore struct {
	views []OrderView
	err   error
}

func (s *captureStore) Upsert(_ context.Context, v OrderView) error {
	if s.err != nil {
		return s.err
	}
	s.views = append(s.views, v)
	return nil
}

func usd(t *testing.T, amount string) domain.Money {
	t.Helper()
	m, err := domain.NewMoney(decimal.RequireFromString(amount), "USD")
	require.NoError(t, err)
	return m
}

func TestFromOrder(t *testing.T) {
	o, err := domain.NewOrder("cust-1", []domain.OrderItem{
		{ProductID: "prod_1", ProductName: "Widget", UnitPrice: usd(t, "10.50"), Quantity: 2},
		{ProductID: "prod_2", ProductName: "Gadget", UnitPrice: usd(t, "5"), Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, o.Fail("Payment failed: declined"))

	v := FromOrder(o)

	assert.Equal(t, o.ID(), v.ID)
	assert.Equal(t, "cust-1", v.CustomerID)
	assert.Equal(t, "Failed", v.Status)
	assert.Equal(t, "Payment failed: declined", v.Reason)
	assert.True(t, decimal.RequireFromString("26").Equal(v.TotalAmount))
	assert.Equal(t, "USD", v.Currency)
	require.NotNil(t, v.UpdatedAt)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "prod_1", v.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("21").Equal(v.Items[0].LineTotal))
	assert.Equal(t, "prod_2", v.Items[1].ProductID)
}

func TestService_Project(t *testing.T) {
	o, err := domain.NewOrder("cust-1", []domain.OrderItem{
		{ProductID: "prod_1", ProductName: "Widget", UnitPrice: usd(t, "1"), Quantity: 1},
	})
	require.NoError(t, err)

	store := &captureStore{}
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, svc.Project(context.Background(), o))
	require.Len(t, store.views, 1)
	assert.Equal(t, "Pending", store.views[0].Status)

	store.err = errors.New("db down")
	err = svc.Project(context.Background(), o)
	assert.ErrorContains(t, err, "db down")
}
