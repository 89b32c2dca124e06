package mongo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

func newOrder(t *testing.T) *domain.Order {
	t.Helper()
	price, err := domain.NewMoney(decimal.RequireFromString("5.00"), "USD")
	require.NoError(t, err)
	o, err := domain.NewOrder("cust-2", []domain.OrderItem{
		{ProductID: "prod_2", ProductName: "Gadget", UnitPrice: price, Quantity: 2},
	})
	require.NoError(t, err)
	return o
}

func asBSOND(t *testing.T, doc orderDocument) bson.D {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func TestOrderRepository_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("insert sets version 1", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		o := newOrder(mt.T)

		require.NoError(mt, NewOrderRepository(mt.DB).Save(ctx, o))
		assert.Equal(mt, int64(1), o.Version())
	})

	mt.Run("duplicate id on insert is a conflict", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))
		o := newOrder(mt.T)

		err := NewOrderRepository(mt.DB).Save(ctx, o)
		require.ErrorIs(mt, err, domain.ErrConcurrentModification)
		assert.Zero(mt, o.Version())
	})

	mt.Run("replace with matching version bumps it", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})
		o := sampleOrder(mt.T)

		require.NoError(mt, NewOrderRepository(mt.DB).Save(ctx, o))
		assert.Equal(mt, int64(5), o.Version())
	})

	mt.Run("replace with stale version is a conflict", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})
		o := sampleOrder(mt.T)

		err := NewOrderRepository(mt.DB).Save(ctx, o)
		require.ErrorIs(mt, err, domain.ErrConcurrentModification)
		assert.Equal(mt, int64(4), o.Version())
	})

	mt.Run("other write errors are wrapped", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    91,
			Name:    "ShutdownInProgress",
			Message: "shutting down",
		}))
		o := sampleOrder(mt.T)

		err := NewOrderRepository(mt.DB).Save(ctx, o)
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, domain.ErrConcurrentModification)
	})
}

func TestOrderRepository_Load(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("found", func(mt *mtest.T) {
		want := sampleOrder(mt.T)
		ns := mt.DB.Name() + "." + CollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, asBSOND(mt.T, toDocument(want.Snapshot()))))

		got, err := NewOrderRepository(mt.DB).Load(ctx, want.ID())
		require.NoError(mt, err)
		assert.Equal(mt, want.ID(), got.ID())
		assert.Equal(mt, domain.StatusProcessing, got.Status())
		assert.Equal(mt, int64(4), got.Version())
		assert.True(mt, want.Total().Equal(got.Total()))
	})

	mt.Run("missing", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + CollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewOrderRepository(mt.DB).Load(ctx, "nope")
		require.ErrorIs(mt, err, domain.ErrOrderNotFound)
	})
}

func TestOrderRepository_Exists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("counted", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + CollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		ok, err := NewOrderRepository(mt.DB).Exists(ctx, "o-1")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("absent", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + CollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		ok, err := NewOrderRepository(mt.DB).Exists(ctx, "o-2")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}
