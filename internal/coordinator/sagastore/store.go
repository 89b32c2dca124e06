// Package sagastore persists saga instances keyed by order id.
//
// Saves are optimistic: a State carries the Version it was loaded with, and
// Save fails with ErrConcurrentModification when the stored version moved
// on. A successful Save bumps State.Version.
package sagastore

import (
	"context"
	"errors"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
)

var (
	ErrNotFound               = errors.New("sagastore: saga not found")
	ErrConcurrentModification = errors.New("sagastore: concurrent modification")
)

type Store interface {
	Load(ctx context.Context, orderID string) (*saga.State, error)
	Save(ctx context.Context, state *saga.State) error
}
