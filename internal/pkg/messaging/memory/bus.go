// Package memory is an in-process messaging.Bus. Every publish goes through
// the JSON envelope so handlers see exactly what a broker would deliver.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging"
)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]messaging.Handler

	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
	inflight    sync.WaitGroup
}

type Option func(*Bus)

// WithRedelivery sets how many times a failing handler is invoked before
// the message is dropped.
func WithRedelivery(attempts int, delay time.Duration) Option {
	return func(b *Bus) {
		b.maxAttempts = attempts
		b.retryDelay = delay
	}
}

func WithLogger(l *slog.Logger) Option { return func(b *Bus) { b.log = l } }

func New(opts ...Option) *Bus {
	b := &Bus{
		handlers:    make(map[string][]messaging.Handler),
		maxAttempts: 5,
		retryDelay:  10 * time.Millisecond,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(messageType string, h messaging.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[messageType] = append(b.handlers[messageType], h)
	return nil
}

// Publish hands the message to every subscriber asynchronously.
func (b *Bus) Publish(ctx context.Context, msg messages.Message) error {
	env, err := messages.Encode(msg)
	if err != nil {
		return err
	}

	b.mu.RLock()
	handlers := append([]messaging.Handler(nil), b.handlers[env.Type]...)
	b.mu.RUnlock()

	deliveryCtx := context.WithoutCancel(ctx)
	for _, h := range handlers {
		b.inflight.Add(1)
		go b.deliver(deliveryCtx, env, h)
	}
	return nil
}

// Wait blocks until every delivery, including those published by handlers,
// has finished.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) deliver(ctx context.Context, env messages.Envelope, h messaging.Handler) {
	defer b.inflight.Done()

	for attempt := 1; ; attempt++ {
		msg, err := messages.Decode(env)
		if err != nil {
			b.log.ErrorContext(ctx, "dropping undecodable message", "type", env.Type, "error", err)
			return
		}

		err = h(ctx, msg)
		if err == nil {
			return
		}
		if attempt >= b.maxAttempts {
			b.log.ErrorContext(ctx, "dropping message after redeliveries",
				"type", env.Type, "order_id", env.OrderID, "attempts", attempt, "error", err)
			return
		}
		b.log.WarnContext(ctx, "handler failed, redelivering",
			"type", env.Type, "order_id", env.OrderID, "attempt", attempt, "error", err)
		time.Sleep(b.retryDelay)
	}
}
