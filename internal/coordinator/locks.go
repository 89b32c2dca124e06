package coordinator

import "sync"

// orderLocks serializes handlers for the same order inside one process.
// Across processes the saga store's version check does the same job.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*orderLock)}
}

// lock blocks until the order is free and returns the matching unlock.
func (l *orderLocks) lock(orderID string) func() {
	l.mu.Lock()
	ol, ok := l.locks[orderID]
	if !ok {
		ol = &orderLock{}
		l.locks[orderID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()

		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, orderID)
		}
		l.mu.Unlock()
	}
}
