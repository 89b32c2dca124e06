package app

import (
	"context"
	"errors"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
)

// ProjectionRepairer rebuilds the read model row of one order from the
// aggregate store. It reports false when no such order exists.
type ProjectionRepairer interface {
	RepairProjection(ctx context.Context, id string) (bool, error)
}

type QueryOption func(*Queries)

// WithReadRepair makes GetOrder rebuild a row that the read model misses
// but the aggregate store has.
func WithReadRepair(r ProjectionRepairer) QueryOption {
	return func(q *Queries) { q.repair = r }
}

// Queries answers reads from the projection only.
type Queries struct {
	reader projection.Reader
	repair ProjectionRepairer
}

func NewQueries(reader projection.Reader, opts ...QueryOption) *Queries {
	q := &Queries{reader: reader}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queries) GetOrder(ctx context.Context, id string) (projection.OrderView, error) {
	view, err := q.reader.Get(ctx, id)
	if !errors.Is(err, domain.ErrOrderNotFound) || q.repair == nil {
		return view, err
	}

	found, rerr := q.repair.RepairProjection(ctx, id)
	if rerr != nil {
		return projection.OrderView{}, rerr
	}
	if !found {
		return projection.OrderView{}, err
	}
	return q.reader.Get(ctx, id)
}

func (q *Queries) ListByCustomer(ctx context.Context, customerID string) ([]projection.OrderView, error) {
	return q.reader.ListByCustomer(ctx, customerID)
}

func (q *Queries) ListAll(ctx context.Context) ([]projection.OrderView, error) {
	return q.reader.List(ctx)
}
