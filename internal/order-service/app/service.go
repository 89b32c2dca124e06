// Package app holds the order service use cases: the write path that creates
// and transitions orders, the listener that applies saga outcomes, and the
// read-side queries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/retry"
)

// OrderRepository is the transactional aggregate store.
type OrderRepository interface {
	Load(ctx context.Context, id string) (*domain.Order, error)
	Save(ctx context.Context, o *domain.Order) error
	Exists(ctx context.Context, id string) (bool, error)
}

type Projector interface {
	Project(ctx context.Context, o *domain.Order) error
}

type IdempotencyGate interface {
	Resolve(ctx context.Context, key string) (string, bool)
	Record(ctx context.Context, key, orderID string)
}

type CreateOrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Currency    string
	Quantity    int
}

type CreateOrderCommand struct {
	CustomerID     string
	Items          []CreateOrderItem
	IdempotencyKey string
}

type CreateOrderResult struct {
	Order *domain.Order
	// Replayed is set when the idempotency key matched an earlier request.
	Replayed bool
}

type OrderService struct {
	orders    OrderRepository
	projector Projector
	gate      IdempotencyGate
	publisher messaging.Publisher
	retry     retry.Config
	log       *slog.Logger
	tracer    trace.Tracer
}

func NewOrderService(
	orders OrderRepository,
	projector Projector,
	gate IdempotencyGate,
	publisher messaging.Publisher,
	retryCfg retry.Config,
	log *slog.Logger,
) *OrderService {
	retryCfg.Retryable = func(err error) bool {
		return errors.Is(err, domain.ErrConcurrentModification)
	}
	return &OrderService{
		orders:    orders,
		projector: projector,
		gate:      gate,
		publisher: publisher,
		retry:     retryCfg,
		log:       log.With("component", "order-service"),
		tracer:    otel.Tracer("order-service"),
	}
}

// CreateOrder persists a new Pending order, projects it and starts
// fulfillment. A known idempotency key returns the stored order instead.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.String("customer.id", cmd.CustomerID)))
	defer span.End()

	if res, ok, err := s.replay(ctx, cmd.IdempotencyKey); ok || err != nil {
		return res, recordErr(span, err)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for i, it := range cmd.Items {
		price, err := domain.NewMoney(it.UnitPrice, it.Currency)
		if err != nil {
			return CreateOrderResult{}, recordErr(span, fmt.Errorf("item %d: %w", i, err))
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   price,
			Quantity:    it.Quantity,
		})
	}

	order, err := domain.NewOrder(cmd.CustomerID, items)
	if err != nil {
		return CreateOrderResult{}, recordErr(span, err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID()))

	events := order.PullEvents()
	if err := s.orders.Save(ctx, order); err != nil {
		return CreateOrderResult{}, recordErr(span, fmt.Errorf("save order: %w", err))
	}
	s.gate.Record(ctx, cmd.IdempotencyKey, order.ID())
	if err := s.project(ctx, order); err != nil {
		return CreateOrderResult{}, recordErr(span, err)
	}

	if err := s.dispatch(ctx, order, events); err != nil {
		return CreateOrderResult{}, recordErr(span, err)
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID(),
		"customer_id", order.CustomerID(),
		"total", order.Total().String(),
	)
	return CreateOrderResult{Order: order}, nil
}

// replay resolves an idempotency key to the stored order. The order is
// projected again and, while still Pending, gets its start message again:
// the first attempt may have stopped before either happened.
func (s *OrderService) replay(ctx context.Context, key string) (CreateOrderResult, bool, error) {
	orderID, ok := s.gate.Resolve(ctx, key)
	if !ok {
		return CreateOrderResult{}, false, nil
	}

	order, err := s.orders.Load(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		s.log.WarnContext(ctx, "idempotency key points at a missing order, creating a new one",
			"key", key, "order_id", orderID)
		return CreateOrderResult{}, false, nil
	}
	if err != nil {
		return CreateOrderResult{}, false, fmt.Errorf("load replayed order: %w", err)
	}

	if err := s.project(ctx, order); err != nil {
		return CreateOrderResult{}, false, err
	}
	if order.Status() == domain.StatusPending {
		if err := s.publisher.Publish(ctx, startFulfillment(order)); err != nil {
			return CreateOrderResult{}, false, fmt.Errorf("republish start for %s: %w", order.ID(), err)
		}
	}
	s.log.InfoContext(ctx, "idempotent replay", "key", key, "order_id", order.ID(), "status", order.Status())
	return CreateOrderResult{Order: order, Replayed: true}, true, nil
}

// ChangeStatus applies a manual status change. A concurrent write is
// reported as domain.ErrConcurrentModification, not retried.
func (s *OrderService) ChangeStatus(ctx context.Context, id, status, reason string) error {
	target, err := domain.ParseStatus(status)
	if err != nil {
		return err
	}
	return s.mutate(ctx, id, func(o *domain.Order) error {
		return o.TransitionTo(target, reason)
	})
}

// markCompleted brings the order to Completed from Pending or Processing.
// An order that is already Completed is left alone.
func (s *OrderService) markCompleted(ctx context.Context, id string) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.mutate(ctx, id, func(o *domain.Order) error {
			switch o.Status() {
			case domain.StatusCompleted:
				return errUnchanged
			case domain.StatusPending:
				if err := o.BeginProcessing(); err != nil {
					return err
				}
			}
			return o.Complete()
		})
	})
}

// markFailed fails the order unless it already reached a terminal status.
func (s *OrderService) markFailed(ctx context.Context, id, reason string) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.mutate(ctx, id, func(o *domain.Order) error {
			if o.Status().IsTerminal() {
				return errUnchanged
			}
			return o.Fail(reason)
		})
	})
}

var errUnchanged = errors.New("order unchanged")

func (s *OrderService) mutate(ctx context.Context, id string, change func(*domain.Order) error) error {
	order, err := s.orders.Load(ctx, id)
	if err != nil {
		return err
	}

	from := order.Status()
	if err := change(order); err != nil {
		if errors.Is(err, errUnchanged) {
			// A redelivery may be repairing a projection that failed last time.
			return s.project(ctx, order)
		}
		return err
	}

	events := order.PullEvents()
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}
	if err := s.project(ctx, order); err != nil {
		return err
	}
	if err := s.dispatch(ctx, order, events); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "order status changed",
		"order_id", order.ID(),
		"from", from,
		"to", order.Status(),
		"reason", order.Reason(),
	)
	return nil
}

// RepairProjection re-projects an order the read model lost or never got.
// Unknown ids are answered by Exists without loading anything.
func (s *OrderService) RepairProjection(ctx context.Context, id string) (bool, error) {
	ok, err := s.orders.Exists(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	order, err := s.orders.Load(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.project(ctx, order); err != nil {
		return false, err
	}
	s.log.InfoContext(ctx, "read model repaired", "order_id", id)
	return true, nil
}

// project rebuilds the read model row. Callers surface the error so the
// request or the delivery is retried; the aggregate is already saved and
// the rebuild is idempotent.
func (s *OrderService) project(ctx context.Context, o *domain.Order) error {
	if err := s.projector.Project(ctx, o); err != nil {
		s.log.ErrorContext(ctx, "projection failed", "order_id", o.ID(), "error", err)
		return fmt.Errorf("project order %s: %w", o.ID(), err)
	}
	return nil
}

// dispatch turns aggregate events into bus messages. Only creation starts a
// saga; the other events are consumed locally by the projection.
func (s *OrderService) dispatch(ctx context.Context, o *domain.Order, events []domain.Event) error {
	for _, e := range events {
		if _, ok := e.(domain.OrderCreated); !ok {
			continue
		}
		if err := s.publisher.Publish(ctx, startFulfillment(o)); err != nil {
			return fmt.Errorf("publish start for %s: %w", o.ID(), err)
		}
	}
	return nil
}

func startFulfillment(o *domain.Order) messages.StartFulfillment {
	items := o.Items()
	msg := messages.StartFulfillment{
		OrderID:     o.ID(),
		CustomerID:  o.CustomerID(),
		TotalAmount: o.Total().Amount(),
		Currency:    o.Total().Currency(),
		Items:       make([]messages.OrderItem, 0, len(items)),
	}
	for _, it := range items {
		msg.Items = append(msg.Items, messages.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice.Amount(),
		})
	}
	return msg
}

func recordErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
