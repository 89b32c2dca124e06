// Package shipping simulates the carrier. Each order gets one tracking
// number, reused on redelivery.
package shipping

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

type Service struct {
	publisher messaging.Publisher
	log       *slog.Logger

	mu        sync.Mutex
	shipments map[string]string
}

func NewService(publisher messaging.Publisher, log *slog.Logger) *Service {
	return &Service{
		publisher: publisher,
		log:       log.With("component", "shipping"),
		shipments: make(map[string]string),
	}
}

func (s *Service) Register(sub messaging.Subscriber) error {
	return sub.Subscribe(messages.TypeProcessShipping, messaging.Typed(s.Ship))
}

func (s *Service) Ship(ctx context.Context, cmd messages.ProcessShippingCommand) error {
	return s.publisher.Publish(ctx, messages.ShippingResult{
		OrderID:        cmd.OrderID,
		TrackingNumber: s.tracking(ctx, cmd.OrderID),
	})
}

func (s *Service) tracking(ctx context.Context, orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tn, ok := s.shipments[orderID]; ok {
		return tn
	}
	tn := "TRK-" + strings.ToUpper(uuid.NewString()[:8])
	s.shipments[orderID] = tn
	s.log.InfoContext(ctx, "shipment created", "order_id", orderID, "tracking_number", tn)
	return tn
}
