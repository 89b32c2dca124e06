// Package messaging is the publish/subscribe abstraction between the order
// service, the fulfillment coordinator and the providers. Delivery is
// at-least-once: a handler that returns an error gets the message again.
package messaging

import (
	"context"
	"fmt"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
)

// Handler processes one delivered message. Returning nil acknowledges it.
type Handler func(ctx context.Context, msg messages.Message) error

type Publisher interface {
	Publish(ctx context.Context, msg messages.Message) error
}

type Subscriber interface {
	Subscribe(messageType string, h Handler) error
}

type Bus interface {
	Publisher
	Subscriber
}

// Typed adapts a handler for one concrete message type.
func Typed[T messages.Message](fn func(ctx context.Context, msg T) error) Handler {
	return func(ctx context.Context, msg messages.Message) error {
		m, ok := msg.(T)
		if !ok {
			return fmt.Errorf("messaging: unexpected %T for %s handler", msg, msg.MessageType())
		}
		return fn(ctx, m)
	}
}
