package mongo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

func sampleOrder(t *testing.T) *domain.Order {
	t.Helper()
	price, err := domain.NewMoney(decimal.RequireFromString("19.99"), "EUR")
	require.NoError(t, err)
	o, err := domain.NewOrder("cust-1", []domain.OrderItem{
		{ProductID: "prod_1", ProductName: "Widget", UnitPrice: price, Quantity: 3},
	})
	require.NoError(t, err)
	require.NoError(t, o.BeginProcessing())
	o.SetVersion(4)
	return o
}

func TestDocumentCodec_PreservesAggregate(t *testing.T) {
	o := sampleOrder(t)

	doc := toDocument(o.Snapshot())
	assert.Equal(t, "59.97", doc.Total)
	assert.Equal(t, "EUR", doc.Currency)
	assert.Equal(t, "Processing", doc.Status)

	s, err := fromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, o.ID(), s.ID)
	assert.True(t, o.Total().Equal(s.Total))
	assert.Equal(t, domain.StatusProcessing, s.Status)
	assert.Equal(t, int64(4), s.Version)
	require.Len(t, s.Items, 1)
	assert.Equal(t, 3, s.Items[0].Quantity)
	assert.True(t, s.Items[0].UnitPrice.Equal(o.Items()[0].UnitPrice))
	require.NotNil(t, s.UpdatedAt)
}

func TestDocumentCodec_BSONFieldNames(t *testing.T) {
	raw, err := bson.Marshal(toDocument(sampleOrder(t).Snapshot()))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Contains(t, m, "_id")
	assert.Equal(t, "59.97", m["totalAmount"])
	assert.NotContains(t, m, "reason")
}

func TestDocumentCodec_RejectsCorruptAmounts(t *testing.T) {
	doc := toDocument(sampleOrder(t).Snapshot())
	doc.Items[0].UnitPrice = "not-a-number"

	_, err := fromDocument(doc)
	assert.Error(t, err)
}
