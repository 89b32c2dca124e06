// Package payment simulates the payment provider: it charges an order once
// and answers every request for that order with the same result.
package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

const ReasonLimitExceeded = "amount exceeds limit"

var DefaultLimit = decimal.NewFromInt(500)

type Service struct {
	limit     decimal.Decimal
	publisher messaging.Publisher
	log       *slog.Logger

	mu      sync.Mutex
	results map[string]messages.PaymentResult
}

func NewService(limit decimal.Decimal, publisher messaging.Publisher, log *slog.Logger) *Service {
	if !limit.IsPositive() {
		limit = DefaultLimit
	}
	return &Service{
		limit:     limit,
		publisher: publisher,
		log:       log.With("component", "payment"),
		results:   make(map[string]messages.PaymentResult),
	}
}

func (s *Service) Register(sub messaging.Subscriber) error {
	return sub.Subscribe(messages.TypeProcessPayment, messaging.Typed(s.Process))
}

// Process charges cmd.Amount and publishes the PaymentResult.
func (s *Service) Process(ctx context.Context, cmd messages.ProcessPaymentCommand) error {
	return s.publisher.Publish(ctx, s.charge(ctx, cmd))
}

func (s *Service) charge(ctx context.Context, cmd messages.ProcessPaymentCommand) messages.PaymentResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.results[cmd.OrderID]; ok {
		s.log.InfoContext(ctx, "payment already processed", "order_id", cmd.OrderID, "success", res.Success)
		return res
	}

	res := messages.PaymentResult{OrderID: cmd.OrderID, Success: true}
	if cmd.Amount.GreaterThan(s.limit) {
		res.Success = false
		res.FailureReason = ReasonLimitExceeded
		s.log.InfoContext(ctx, "payment declined",
			"order_id", cmd.OrderID, "amount", cmd.Amount.StringFixed(2), "limit", s.limit.StringFixed(2))
	} else {
		s.log.InfoContext(ctx, "payment charged",
			"order_id", cmd.OrderID, "amount", cmd.Amount.StringFixed(2), "currency", cmd.Currency)
	}
	s.results[cmd.OrderID] = res
	return res
}
