package saga

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
)

var (
	// ErrUnknownSaga is returned for a non-start message whose order has no saga.
	ErrUnknownSaga = errors.New("saga: no saga instance for order")

	ErrUnsupportedMessage = errors.New("saga: unsupported message")

	// ErrMalformedMessage is returned for a start message that names no order.
	ErrMalformedMessage = errors.New("saga: malformed message")
)

type Outcome int

const (
	// Applied means the state changed and the effects must be published.
	Applied Outcome = iota + 1
	// Discarded means the message was a duplicate or arrived after the saga
	// ended. Nothing is persisted or published.
	Discarded
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Decision is the result of feeding one message to a saga.
type Decision struct {
	State   State
	Effects []messages.Message
	Outcome Outcome
	// Note explains a discard, for logs.
	Note string
}

// Transition applies msg to current. current is nil when the order has no
// saga yet.
func Transition(current *State, msg messages.Message) (Decision, error) {
	if start, ok := msg.(messages.StartFulfillment); ok {
		if strings.TrimSpace(start.OrderID) == "" {
			return Decision{}, fmt.Errorf("%w: %s without order id", ErrMalformedMessage, start.MessageType())
		}
		return begin(current, start), nil
	}

	if current == nil {
		return Decision{}, fmt.Errorf("%w %s (%s)", ErrUnknownSaga, msg.OrderKey(), msg.MessageType())
	}
	if current.IsTerminal() {
		return discard(current, "saga already "+string(current.Terminal)), nil
	}

	next := *current
	next.Outbox = nil

	switch m := msg.(type) {
	case messages.PaymentResult:
		if !m.Success {
			return fail(next, "Payment failed: "+m.FailureReason), nil
		}
		if next.PaymentDone {
			return discard(current, "payment already confirmed"), nil
		}
		next.PaymentDone = true
		return advance(next), nil

	case messages.InventoryResult:
		if !m.Available {
			return fail(next, "Inventory check failed: "+m.FailureReason), nil
		}
		if next.InventoryDone {
			return discard(current, "inventory already confirmed"), nil
		}
		next.InventoryDone = true
		return advance(next), nil

	case messages.ShippingResult:
		next.ShippingDone = true
		next.TrackingNumber = m.TrackingNumber
		next.Terminal = TerminalCompleted
		return Decision{
			State:   next,
			Effects: []messages.Message{messages.OrderCompleted{OrderID: next.OrderID}},
			Outcome: Applied,
		}, nil
	}

	return Decision{}, fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.MessageType())
}

func begin(current *State, m messages.StartFulfillment) Decision {
	if current != nil {
		return discard(current, "saga already started")
	}
	st := State{
		OrderID:     m.OrderID,
		CustomerID:  m.CustomerID,
		TotalAmount: m.TotalAmount,
		Currency:    m.Currency,
		Items:       append([]messages.OrderItem(nil), m.Items...),
		Terminal:    TerminalNone,
	}
	return Decision{
		State: st,
		Effects: []messages.Message{
			messages.ProcessPaymentCommand{OrderID: st.OrderID, Amount: st.TotalAmount, Currency: st.Currency},
			messages.CheckInventoryCommand{OrderID: st.OrderID, Items: st.Items},
		},
		Outcome: Applied,
	}
}

// advance requests shipping exactly once, when both payment and inventory
// are confirmed, whichever arrived last.
func advance(next State) Decision {
	d := Decision{State: next, Outcome: Applied}
	if next.readyToShip() {
		d.State.ShippingRequested = true
		d.Effects = []messages.Message{messages.ProcessShippingCommand{OrderID: next.OrderID}}
	}
	return d
}

func fail(next State, reason string) Decision {
	next.Terminal = TerminalFailed
	next.FailureReason = reason
	return Decision{
		State:   next,
		Effects: []messages.Message{messages.OrderFailed{OrderID: next.OrderID, Reason: reason}},
		Outcome: Applied,
	}
}

func discard(current *State, note string) Decision {
	return Decision{State: *current, Outcome: Discarded, Note: note}
}
