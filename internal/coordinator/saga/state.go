// Package saga holds the order-fulfillment state machine. Transition is a
// pure function: it never talks to a broker or a store, it only says what
// the next state is and which messages must be published.
package saga

import (
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
)

// TerminalStatus is the persisted terminal marker of a saga.
type TerminalStatus string

const (
	TerminalNone      TerminalStatus = "none"
	TerminalCompleted TerminalStatus = "completed"
	TerminalFailed    TerminalStatus = "failed"
)

// Phase is the derived position of a saga in the fulfillment flow.
type Phase string

const (
	PhaseStarted            Phase = "Started"
	PhaseAwaitingCompletion Phase = "AwaitingCompletion"
	PhaseShippingRequested  Phase = "ShippingRequested"
	PhaseCompleted          Phase = "Completed"
	PhaseFailed             Phase = "Failed"
)

// State is the per-order saga instance.
type State struct {
	OrderID     string
	CustomerID  string
	TotalAmount decimal.Decimal
	Currency    string
	Items       []messages.OrderItem

	PaymentDone       bool
	InventoryDone     bool
	ShippingRequested bool
	ShippingDone      bool

	Terminal       TerminalStatus
	FailureReason  string
	TrackingNumber string

	// Version is the optimistic-concurrency token. Zero means never saved.
	Version int64

	// Outbox holds effects that were persisted but not yet confirmed
	// published.
	Outbox []messages.Message
}

func (s *State) IsTerminal() bool {
	return s.Terminal == TerminalCompleted || s.Terminal == TerminalFailed
}

func (s *State) Phase() Phase {
	switch {
	case s.Terminal == TerminalCompleted:
		return PhaseCompleted
	case s.Terminal == TerminalFailed:
		return PhaseFailed
	case s.ShippingRequested:
		return PhaseShippingRequested
	case s.PaymentDone || s.InventoryDone:
		return PhaseAwaitingCompletion
	default:
		return PhaseStarted
	}
}

func (s *State) readyToShip() bool {
	return s.PaymentDone && s.InventoryDone && !s.ShippingRequested
}
