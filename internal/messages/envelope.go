package messages

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("messages: unknown message type")

// Envelope is the transport-neutral wire form of a Message.
type Envelope struct {
	Type    string          `json:"type"`
	OrderID string          `json:"orderId"`
	Body    json.RawMessage `json:"body"`
}

var registry = map[string]func() Message{
	TypeStartFulfillment: func() Message { return &StartFulfillment{} },
	TypeProcessPayment:   func() Message { return &ProcessPaymentCommand{} },
	TypeCheckInventory:   func() Message { return &CheckInventoryCommand{} },
	TypeProcessShipping:  func() Message { return &ProcessShippingCommand{} },
	TypePaymentResult:    func() Message { return &PaymentResult{} },
	TypeInventoryResult:  func() Message { return &InventoryResult{} },
	TypeShippingResult:   func() Message { return &ShippingResult{} },
	TypeOrderCompleted:   func() Message { return &OrderCompleted{} },
	TypeOrderFailed:      func() Message { return &OrderFailed{} },
}

// Types lists every registered message type.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}

// Encode wraps msg into an Envelope.
func Encode(msg Message) (Envelope, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("messages: marshal %s: %w", msg.MessageType(), err)
	}
	return Envelope{Type: msg.MessageType(), OrderID: msg.OrderKey(), Body: body}, nil
}

// Decode turns an envelope back into its concrete Message value.
func Decode(env Envelope) (Message, error) {
	return Unmarshal(env.Type, env.Body)
}

// Unmarshal decodes a raw body of the given type. The returned Message is a
// value, not a pointer, so callers can type-switch on the plain struct types.
func Unmarshal(messageType string, body []byte) (Message, error) {
	factory, ok := registry[messageType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, messageType)
	}
	ptr := factory()
	if err := json.Unmarshal(body, ptr); err != nil {
		return nil, fmt.Errorf("messages: unmarshal %s: %w", messageType, err)
	}
	return deref(ptr), nil
}

func deref(m Message) Message {
	switch v := m.(type) {
	case *StartFulfillment:
		return *v
	case *ProcessPaymentCommand:
		return *v
	case *CheckInventoryCommand:
		return *v
	case *ProcessShippingCommand:
		return *v
	case *PaymentResult:
		return *v
	case *InventoryResult:
		return *v
	case *ShippingResult:
		return *v
	case *OrderCompleted:
		return *v
	case *OrderFailed:
		return *v
	}
	return m
}
