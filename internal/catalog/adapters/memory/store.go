// Package memory is a process-local catalog store for tests and the
// single-binary dev setup.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
)

type Store struct {
	mu           sync.Mutex
	products     map[string]domain.Snapshot
	reservations map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Snapshot),
		reservations: make(map[string]struct{}),
	}
}

func (s *Store) Get(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return domain.Rehydrate(snap), nil
}

// List returns products oldest first.
func (s *Store) List(_ context.Context) ([]*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Product, 0, len(s.products))
	for _, snap := range s.products {
		out = append(out, domain.Rehydrate(snap))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, nil
}

func (s *Store) Save(ctx context.Context, p *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(p); err != nil {
		return err
	}
	s.commit(p)
	return nil
}

func (s *Store) ReserveForOrder(ctx context.Context, orderID string, ids []string, fn func(map[string]*domain.Product) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.reservations[orderID]; done {
		return app.ErrAlreadyReserved
	}
	found := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if snap, ok := s.products[id]; ok {
			found[id] = domain.Rehydrate(snap)
		}
	}
	if err := fn(found); err != nil {
		return err
	}
	for _, p := range found {
		s.commit(p)
	}
	s.reservations[orderID] = struct{}{}
	return nil
}

// check enforces the version rule. Caller holds s.mu.
func (s *Store) check(p *domain.Product) error {
	stored, exists := s.products[p.ID()]
	switch {
	case p.Version() == 0 && exists:
		return domain.ErrConcurrentModification
	case p.Version() != 0 && (!exists || stored.Version != p.Version()):
		return domain.ErrConcurrentModification
	}
	return nil
}

func (s *Store) commit(p *domain.Product) {
	snap := p.Snapshot()
	snap.Version++
	s.products[p.ID()] = snap
	p.SetVersion(snap.Version)
}
