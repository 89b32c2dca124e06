package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

// OutcomeListener applies the coordinator's final verdict to the aggregate.
type OutcomeListener struct {
	orders *OrderService
	log    *slog.Logger
}

func NewOutcomeListener(orders *OrderService, log *slog.Logger) *OutcomeListener {
	return &OutcomeListener{orders: orders, log: log.With("component", "outcome-listener")}
}

func (l *OutcomeListener) Register(sub messaging.Subscriber) error {
	if err := sub.Subscribe(messages.TypeOrderCompleted, messaging.Typed(l.OnCompleted)); err != nil {
		return err
	}
	return sub.Subscribe(messages.TypeOrderFailed, messaging.Typed(l.OnFailed))
}

func (l *OutcomeListener) OnCompleted(ctx context.Context, msg messages.OrderCompleted) error {
	return l.ack(ctx, msg, l.orders.markCompleted(ctx, msg.OrderID))
}

func (l *OutcomeListener) OnFailed(ctx context.Context, msg messages.OrderFailed) error {
	return l.ack(ctx, msg, l.orders.markFailed(ctx, msg.OrderID, msg.Reason))
}

// ack drops outcomes that redelivery cannot fix. Anything else goes back to
// the bus.
func (l *OutcomeListener) ack(ctx context.Context, msg messages.Message, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidState):
		l.log.WarnContext(ctx, "outcome not applicable, dropping",
			"type", msg.MessageType(), "order_id", msg.OrderKey(), "error", err)
		return nil
	default:
		return err
	}
}
