// Package sagalog is an append-only audit trail of every message the
// fulfillment coordinator handled, including the ones it discarded.
//
// The saga store only keeps the latest state of each order. The log keeps
// how it got there, and the trace_id on each row links it to the
// distributed trace of the delivery.
package sagalog

import "time"

// Outcome of handling a message, as recorded in the log.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeRejected  Outcome = "rejected"
)

// Entry is a single row in the saga_log table.
type Entry struct {
	OrderID string

	// Phase is the saga phase after the message was handled. Empty when no
	// saga exists for the order.
	Phase string

	MessageType string
	Outcome     Outcome

	// Payload is the JSON body of the handled message.
	Payload string

	// Note carries the failure reason or the reason a message was discarded.
	Note string

	TraceID string
	SpanID  string

	RecordedAt time.Time
}
