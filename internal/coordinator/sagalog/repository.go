package sagalog

import "context"

// Repository persists log entries. The coordinator treats it as optional.
type Repository interface {
	// Append adds a row. Rows are never updated.
	Append(ctx context.Context, entry *Entry) error

	// History returns the entries for one order, oldest first.
	History(ctx context.Context, orderID string) ([]Entry, error)
}
