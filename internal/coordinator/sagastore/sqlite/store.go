// Package sqlite is the SQLite-backed sagastore.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagastore"
	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/sqlitedb"
)

// One row per order. version is bumped on every save and checked in the
// UPDATE's WHERE clause.
const schema = `
CREATE TABLE IF NOT EXISTS saga_instances (
    order_id            TEXT    PRIMARY KEY,
    customer_id         TEXT    NOT NULL,
    total_amount        TEXT    NOT NULL,
    currency            TEXT    NOT NULL DEFAULT '',
    items               TEXT    NOT NULL DEFAULT '[]',
    payment_done        INTEGER NOT NULL DEFAULT 0,
    inventory_done      INTEGER NOT NULL DEFAULT 0,
    shipping_requested  INTEGER NOT NULL DEFAULT 0,
    shipping_done       INTEGER NOT NULL DEFAULT 0,
    terminal_status     TEXT    NOT NULL DEFAULT 'none',
    failure_reason      TEXT    NOT NULL DEFAULT '',
    tracking_number     TEXT    NOT NULL DEFAULT '',

    -- JSON array of message envelopes still to be published.
    outbox              TEXT    NOT NULL DEFAULT '[]',

    version             INTEGER NOT NULL,
    created_at          TEXT    NOT NULL,
    updated_at          TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_instances_terminal ON saga_instances(terminal_status);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New applies the schema on db and returns the store.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := sqlitedb.ApplySchema(ctx, db, schema); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Load(ctx context.Context, orderID string) (*saga.State, error) {
	const q = `
		SELECT order_id, customer_id, total_amount, currency, items,
		       payment_done, inventory_done, shipping_requested, shipping_done,
		       terminal_status, failure_reason, tracking_number, outbox, version
		FROM   saga_instances
		WHERE  order_id = ?`

	var (
		st           saga.State
		total, items string
		outbox       string
		terminal     string
	)
	err := s.db.QueryRowContext(ctx, q, orderID).Scan(
		&st.OrderID, &st.CustomerID, &total, &st.Currency, &items,
		&st.PaymentDone, &st.InventoryDone, &st.ShippingRequested, &st.ShippingDone,
		&terminal, &st.FailureReason, &st.TrackingNumber, &outbox, &st.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sagastore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load saga %q: %w", orderID, err)
	}

	st.Terminal = saga.TerminalStatus(terminal)
	if st.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("sqlite: saga %q total: %w", orderID, err)
	}
	if err := json.Unmarshal([]byte(items), &st.Items); err != nil {
		return nil, fmt.Errorf("sqlite: saga %q items: %w", orderID, err)
	}
	if st.Outbox, err = decodeOutbox(outbox); err != nil {
		return nil, fmt.Errorf("sqlite: saga %q outbox: %w", orderID, err)
	}
	return &st, nil
}

// Save inserts when state.Version is zero and otherwise updates only if the
// stored version still equals state.Version.
func (s *Store) Save(ctx context.Context, state *saga.State) error {
	items, err := json.Marshal(state.Items)
	if err != nil {
		return fmt.Errorf("sqlite: encode items for %q: %w", state.OrderID, err)
	}
	outbox, err := encodeOutbox(state.Outbox)
	if err != nil {
		return fmt.Errorf("sqlite: encode outbox for %q: %w", state.OrderID, err)
	}
	terminal := state.Terminal
	if terminal == "" {
		terminal = saga.TerminalNone
	}
	now := sqlitedb.FormatTime(s.now())

	var res sql.Result
	if state.Version == 0 {
		const q = `
			INSERT INTO saga_instances
				(order_id, customer_id, total_amount, currency, items,
				 payment_done, inventory_done, shipping_requested, shipping_done,
				 terminal_status, failure_reason, tracking_number, outbox,
				 version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(order_id) DO NOTHING`
		res, err = s.db.ExecContext(ctx, q,
			state.OrderID, state.CustomerID, state.TotalAmount.String(), state.Currency, string(items),
			state.PaymentDone, state.InventoryDone, state.ShippingRequested, state.ShippingDone,
			string(terminal), state.FailureReason, state.TrackingNumber, outbox,
			now, now,
		)
	} else {
		const q = `
			UPDATE saga_instances SET
				customer_id = ?, total_amount = ?, currency = ?, items = ?,
				payment_done = ?, inventory_done = ?, shipping_requested = ?, shipping_done = ?,
				terminal_status = ?, failure_reason = ?, tracking_number = ?, outbox = ?,
				version = version + 1, updated_at = ?
			WHERE order_id = ? AND version = ?`
		res, err = s.db.ExecContext(ctx, q,
			state.CustomerID, state.TotalAmount.String(), state.Currency, string(items),
			state.PaymentDone, state.InventoryDone, state.ShippingRequested, state.ShippingDone,
			string(terminal), state.FailureReason, state.TrackingNumber, outbox,
			now,
			state.OrderID, state.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("sqlite: save saga %q: %w", state.OrderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: save saga %q: %w", state.OrderID, err)
	}
	if n == 0 {
		return fmt.Errorf("saga %q at version %d: %w", state.OrderID, state.Version, sagastore.ErrConcurrentModification)
	}

	state.Version++
	return nil
}

func encodeOutbox(msgs []messages.Message) (string, error) {
	envs := make([]messages.Envelope, 0, len(msgs))
	for _, m := range msgs {
		env, err := messages.Encode(m)
		if err != nil {
			return "", err
		}
		envs = append(envs, env)
	}
	b, err := json.Marshal(envs)
	return string(b), err
}

func decodeOutbox(raw string) ([]messages.Message, error) {
	var envs []messages.Envelope
	if err := json.Unmarshal([]byte(raw), &envs); err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, nil
	}
	out := make([]messages.Message, 0, len(envs))
	for _, env := range envs {
		m, err := messages.Decode(env)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
