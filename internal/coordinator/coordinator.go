// Package coordinator runs the order-fulfillment saga on top of a message
// bus and a saga store.
//
// For every delivered message the coordinator loads the order's saga, asks
// saga.Transition what to do, persists the new state together with the
// messages to publish (the outbox), publishes them and then clears the
// outbox. State is written only after the decision is complete, and a
// version conflict on save restarts the whole cycle from a fresh load.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator/saga"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/sagastore"
	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/metrics"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/retry"
)

// Coordinator handles StartFulfillment and the provider results.
type Coordinator struct {
	store     sagastore.Store
	publisher messaging.Publisher
	audit     sagalog.Repository // nil-safe
	retry     retry.Config
	log       *slog.Logger
	tracer    trace.Tracer
	locks     *orderLocks
}

type Option func(*Coordinator)

// WithAuditLog records every handled message in repo.
func WithAuditLog(repo sagalog.Repository) Option {
	return func(c *Coordinator) { c.audit = repo }
}

// WithRetry overrides the conflict retry policy. The retryable predicate is
// always the store's concurrent-modification error.
func WithRetry(cfg retry.Config) Option {
	return func(c *Coordinator) { c.retry = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func New(store sagastore.Store, publisher messaging.Publisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		publisher: publisher,
		retry:     retry.DefaultConfig,
		log:       slog.Default(),
		tracer:    otel.Tracer("coordinator"),
		locks:     newOrderLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Retryable = func(err error) bool {
		return errors.Is(err, sagastore.ErrConcurrentModification)
	}
	c.log = c.log.With("component", "coordinator")
	return c
}

// Subscriptions lists the message types the coordinator consumes.
func Subscriptions() []string {
	return []string{
		messages.TypeStartFulfillment,
		messages.TypePaymentResult,
		messages.TypeInventoryResult,
		messages.TypeShippingResult,
	}
}

// Register subscribes Handle to every coordinator message type.
func (c *Coordinator) Register(sub messaging.Subscriber) error {
	for _, typ := range Subscriptions() {
		if err := sub.Subscribe(typ, c.Handle); err != nil {
			return fmt.Errorf("coordinator: subscribe %s: %w", typ, err)
		}
	}
	return nil
}

// Handle processes one delivery. A nil return acknowledges it: that covers
// applied messages, duplicates and protocol errors alike. Infrastructure
// failures are returned so the bus redelivers.
func (c *Coordinator) Handle(ctx context.Context, msg messages.Message) error {
	orderID := msg.OrderKey()
	ctx, span := c.tracer.Start(ctx, "saga.handle "+msg.MessageType(),
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("messaging.message.type", msg.MessageType()),
		))
	defer span.End()

	started := time.Now()
	defer func() {
		metrics.SagaHandleDuration.WithLabelValues(msg.MessageType()).Observe(time.Since(started).Seconds())
	}()

	unlock := c.locks.lock(orderID)
	defer unlock()

	var decision saga.Decision
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		decision, err = c.apply(ctx, msg)
		return err
	})

	switch {
	case errors.Is(err, saga.ErrUnknownSaga), errors.Is(err, saga.ErrUnsupportedMessage), errors.Is(err, saga.ErrMalformedMessage):
		c.log.WarnContext(ctx, "rejecting message", "order_id", orderID, "type", msg.MessageType(), "error", err)
		metrics.SagaMessages.WithLabelValues(msg.MessageType(), string(sagalog.OutcomeRejected)).Inc()
		c.record(ctx, msg, "", sagalog.OutcomeRejected, err.Error())
		return nil

	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.ErrorContext(ctx, "saga handling failed", "order_id", orderID, "type", msg.MessageType(), "error", err)
		return err

	case decision.Outcome == saga.Discarded:
		c.log.InfoContext(ctx, "discarding duplicate or late message",
			"order_id", orderID, "type", msg.MessageType(), "reason", decision.Note)
		metrics.SagaMessages.WithLabelValues(msg.MessageType(), string(sagalog.OutcomeDiscarded)).Inc()
		c.record(ctx, msg, string(decision.State.Phase()), sagalog.OutcomeDiscarded, decision.Note)
		return nil
	}

	phase := decision.State.Phase()
	span.SetAttributes(attribute.String("saga.phase", string(phase)))
	c.log.InfoContext(ctx, "saga advanced",
		"order_id", orderID, "type", msg.MessageType(), "phase", phase, "published", len(decision.Effects))
	metrics.SagaMessages.WithLabelValues(msg.MessageType(), string(sagalog.OutcomeApplied)).Inc()
	if decision.State.IsTerminal() {
		metrics.SagaTerminal.WithLabelValues(string(decision.State.Terminal)).Inc()
	}
	c.record(ctx, msg, string(phase), sagalog.OutcomeApplied, decision.State.FailureReason)
	return nil
}

// apply is one load-decide-save-publish cycle.
func (c *Coordinator) apply(ctx context.Context, msg messages.Message) (saga.Decision, error) {
	current, err := c.store.Load(ctx, msg.OrderKey())
	switch {
	case errors.Is(err, sagastore.ErrNotFound):
		current = nil
	case err != nil:
		return saga.Decision{}, fmt.Errorf("load saga: %w", err)
	}

	// A previous delivery saved effects but failed to publish them.
	if current != nil && len(current.Outbox) > 0 {
		c.log.WarnContext(ctx, "flushing pending outbox", "order_id", current.OrderID, "pending", len(current.Outbox))
		if err := c.flush(ctx, current); err != nil {
			return saga.Decision{}, err
		}
	}

	decision, err := saga.Transition(current, msg)
	if err != nil || decision.Outcome == saga.Discarded {
		return decision, err
	}

	// Nothing is persisted once the caller gave up.
	if err := ctx.Err(); err != nil {
		return decision, err
	}

	next := decision.State
	next.Outbox = decision.Effects
	if err := c.store.Save(ctx, &next); err != nil {
		return decision, fmt.Errorf("save saga: %w", err)
	}
	if err := c.flush(ctx, &next); err != nil {
		return decision, err
	}

	decision.State = next
	return decision, nil
}

// flush publishes st.Outbox concurrently and then saves st with an empty
// outbox.
func (c *Coordinator) flush(ctx context.Context, st *saga.State) error {
	if len(st.Outbox) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range st.Outbox {
		g.Go(func() error {
			if err := c.publisher.Publish(gctx, m); err != nil {
				return fmt.Errorf("publish %s: %w", m.MessageType(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("flush outbox for %s: %w", st.OrderID, err)
	}

	st.Outbox = nil
	if err := c.store.Save(ctx, st); err != nil {
		return fmt.Errorf("clear outbox: %w", err)
	}
	return nil
}

func (c *Coordinator) record(ctx context.Context, msg messages.Message, phase string, outcome sagalog.Outcome, note string) {
	if c.audit == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		payload = nil
	}
	entry := sagalog.NewEntry(ctx, msg.OrderKey(), phase, msg.MessageType(), outcome, string(payload), note)
	if err := c.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		c.log.WarnContext(ctx, "saga log append failed", "order_id", msg.OrderKey(), "error", err)
	}
}
