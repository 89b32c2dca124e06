package sagastore

import (
	"context"
	"sync"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
	"github.com/jcmexdev/order-fulfillment/internal/messages"
)

// Memory is a process-local Store with the same version semantics as the
// SQLite one.
type Memory struct {
	mu     sync.Mutex
	states map[string]saga.State
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string]saga.State)}
}

func (m *Memory) Load(_ context.Context, orderID string) (*saga.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(st), nil
}

func (m *Memory) Save(ctx context.Context, state *saga.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.states[state.OrderID]
	switch {
	case state.Version == 0 && exists:
		return ErrConcurrentModification
	case state.Version != 0 && (!exists || stored.Version != state.Version):
		return ErrConcurrentModification
	}

	state.Version++
	m.states[state.OrderID] = *clone(*state)
	return nil
}

func clone(st saga.State) *saga.State {
	st.Items = append([]messages.OrderItem(nil), st.Items...)
	st.Outbox = append([]messages.Message(nil), st.Outbox...)
	return &st
}
