// Package inventory answers CheckInventory commands by reserving the order's
// lines in the product catalog. Every line is reserved or none is.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/domain"
	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

type Reserver interface {
	Reserve(ctx context.Context, orderID string, lines []app.Line) error
}

type Service struct {
	catalog   Reserver
	publisher messaging.Publisher
	log       *slog.Logger
}

func NewService(catalog Reserver, publisher messaging.Publisher, log *slog.Logger) *Service {
	return &Service{
		catalog:   catalog,
		publisher: publisher,
		log:       log.With("component", "inventory"),
	}
}

func (s *Service) Register(sub messaging.Subscriber) error {
	return sub.Subscribe(messages.TypeCheckInventory, messaging.Typed(s.Check))
}

// Check reserves the order's lines and publishes the InventoryResult. A
// storage failure is returned so the command is delivered again.
func (s *Service) Check(ctx context.Context, cmd messages.CheckInventoryCommand) error {
	lines := make([]app.Line, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		lines = append(lines, app.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	res := messages.InventoryResult{OrderID: cmd.OrderID, Available: true}
	err := s.catalog.Reserve(ctx, cmd.OrderID, lines)
	if err != nil {
		reason, ok := failureReason(err)
		if !ok {
			return fmt.Errorf("reserve stock for %s: %w", cmd.OrderID, err)
		}
		res.Available = false
		res.FailureReason = reason
		s.log.InfoContext(ctx, "inventory unavailable", "order_id", cmd.OrderID, "reason", reason)
	}
	return s.publisher.Publish(ctx, res)
}

// failureReason maps a business refusal to the reason reported on the
// result. Other errors are not refusals.
func failureReason(err error) (string, bool) {
	var rerr *app.ReservationError
	if !errors.As(err, &rerr) {
		return "", false
	}
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return fmt.Sprintf("product %s not found", rerr.ProductID), true
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrProductInactive):
		return fmt.Sprintf("insufficient stock for %s", rerr.ProductID), true
	default:
		return fmt.Sprintf("cannot reserve %s: %v", rerr.ProductID, rerr.Err), true
	}
}
