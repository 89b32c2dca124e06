// Package idempotency maps a client-supplied request key to the order it
// produced, so a retried create returns the same order.
//
// The gate is best effort. A cache error is logged and reads as a miss, so
// during a cache outage a retried request can create a second order. Two
// first-time requests racing with the same key can also both create an
// order; nothing locks the key between Resolve and Record.
package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/metrics"
)

const (
	KeyPrefix  = "idempotency:order:"
	DefaultTTL = 24 * time.Hour
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Gate struct {
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewGate(cache Cache, ttl time.Duration, log *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{cache: cache, ttl: ttl, log: log.With("component", "idempotency")}
}

// Resolve returns the order id recorded for key. An empty key never matches.
func (g *Gate) Resolve(ctx context.Context, key string) (string, bool) {
	if key == "" {
		return "", false
	}

	value, err := g.cache.Get(ctx, KeyPrefix+key)
	if err != nil {
		metrics.IdempotencyLookups.WithLabelValues("error").Inc()
		g.log.WarnContext(ctx, "idempotency lookup failed, treating as miss", "key", key, "error", err)
		return "", false
	}
	if len(value) == 0 {
		metrics.IdempotencyLookups.WithLabelValues("miss").Inc()
		return "", false
	}

	metrics.IdempotencyLookups.WithLabelValues("hit").Inc()
	return string(value), true
}

// Record stores key -> orderID for the gate's TTL. Failures are logged only.
func (g *Gate) Record(ctx context.Context, key, orderID string) {
	if key == "" {
		return
	}
	if err := g.cache.Set(ctx, KeyPrefix+key, []byte(orderID), g.ttl); err != nil {
		g.log.WarnContext(ctx, "idempotency record failed", "key", key, "order_id", orderID, "error", err)
	}
}
