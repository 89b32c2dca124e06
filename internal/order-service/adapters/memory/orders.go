// Package memory holds process-local stores for the order service, used by
// tests and by the single-binary dev setup.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
)

// OrderRepository stores snapshots and enforces the version check.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Snapshot
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]domain.Snapshot)}
}

func (r *OrderRepository) Load(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return domain.Rehydrate(s), nil
}

func (r *OrderRepository) Save(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.orders[o.ID()]
	switch {
	case o.Version() == 0 && exists:
		return domain.ErrConcurrentModification
	case o.Version() != 0 && (!exists || stored.Version != o.Version()):
		return domain.ErrConcurrentModification
	}

	s := o.Snapshot()
	s.Version++
	r.orders[o.ID()] = s
	o.SetVersion(s.Version)
	return nil
}

func (r *OrderRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.orders[id]
	return ok, nil
}

// ReadModel is an in-memory projection.ReadModel.
type ReadModel struct {
	mu    sync.RWMutex
	views map[string]projection.OrderView
}

func NewReadModel() *ReadModel {
	return &ReadModel{views: make(map[string]projection.OrderView)}
}

func (m *ReadModel) Upsert(_ context.Context, v projection.OrderView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[v.ID] = copyView(v)
	return nil
}

func (m *ReadModel) Get(_ context.Context, id string) (projection.OrderView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[id]
	if !ok {
		return projection.OrderView{}, domain.ErrOrderNotFound
	}
	return copyView(v), nil
}

func (m *ReadModel) ListByCustomer(_ context.Context, customerID string) ([]projection.OrderView, error) {
	return m.list(func(v projection.OrderView) bool { return v.CustomerID == customerID }), nil
}

func (m *ReadModel) List(_ context.Context) ([]projection.OrderView, error) {
	return m.list(func(projection.OrderView) bool { return true }), nil
}

// list returns matching views newest first.
func (m *ReadModel) list(keep func(projection.OrderView) bool) []projection.OrderView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]projection.OrderView, 0, len(m.views))
	for _, v := range m.views {
		if keep(v) {
			out = append(out, copyView(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func copyView(v projection.OrderView) projection.OrderView {
	v.Items = append([]projection.ItemView(nil), v.Items...)
	return v
}
