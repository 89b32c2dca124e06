// Package sqlite provides a SQLite-backed implementation of sagalog.Repository.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Not unique: one row per handled message.
    order_id      TEXT NOT NULL,

    phase         TEXT NOT NULL DEFAULT '',
    message_type  TEXT NOT NULL,
    outcome       TEXT NOT NULL,

    -- JSON body of the message.
    payload       TEXT,

    note          TEXT NOT NULL DEFAULT '',

    -- W3C trace_id / span_id of the delivery span.
    trace_id      TEXT NOT NULL DEFAULT '',
    span_id       TEXT NOT NULL DEFAULT '',

    recorded_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_log_order_id ON saga_log(order_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_saga_log_trace_id ON saga_log(trace_id);
`

type Repository struct {
	db *sql.DB
}

// New applies the schema on db and returns the repository.
func New(ctx context.Context, db *sql.DB) (*Repository, error) {
	if err := sqlitedb.ApplySchema(ctx, db, schema); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Append(ctx context.Context, entry *sagalog.Entry) error {
	const q = `
		INSERT INTO saga_log
			(order_id, phase, message_type, outcome, payload, note, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrderID,
		entry.Phase,
		entry.MessageType,
		string(entry.Outcome),
		nullableString(entry.Payload),
		entry.Note,
		entry.TraceID,
		entry.SpanID,
		sqlitedb.FormatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append saga log for %q: %w", entry.OrderID, err)
	}
	return nil
}

func (r *Repository) History(ctx context.Context, orderID string) ([]sagalog.Entry, error) {
	const q = `
		SELECT order_id, phase, message_type, outcome, COALESCE(payload, ''), note,
		       trace_id, span_id, recorded_at
		FROM   saga_log
		WHERE  order_id = ?
		ORDER  BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: saga log for %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []sagalog.Entry
	for rows.Next() {
		var (
			e          sagalog.Entry
			recordedAt string
		)
		if err := rows.Scan(&e.OrderID, &e.Phase, &e.MessageType, &e.Outcome, &e.Payload, &e.Note,
			&e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan saga log row: %w", err)
		}
		if e.RecordedAt, err = sqlitedb.ParseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: saga log for %q: %w", orderID, err)
	}
	return out, nil
}

// nullableString stores NULL instead of an empty payload.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
