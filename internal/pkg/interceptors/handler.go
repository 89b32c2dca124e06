package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

// Logging wraps a bus handler and logs each delivery with its request id.
func Logging(log *slog.Logger, next messaging.Handler) messaging.Handler {
	return func(ctx context.Context, msg messages.Message) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"type", msg.MessageType(),
			"order_id", msg.OrderKey(),
			"request_id", RequestID(ctx),
			"duration", time.Since(start),
		}
		if err != nil {
			log.WarnContext(ctx, "message handler failed", append(attrs, "error", err)...)
			return err
		}
		log.DebugContext(ctx, "message handled", attrs...)
		return nil
	}
}

// LoggingSubscriber applies Logging to every handler registered through it.
type LoggingSubscriber struct {
	Next messaging.Subscriber
	Log  *slog.Logger
}

func (s LoggingSubscriber) Subscribe(messageType string, h messaging.Handler) error {
	return s.Next.Subscribe(messageType, Logging(s.Log, h))
}
