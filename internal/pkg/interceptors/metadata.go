// Package interceptors carries request metadata (request id, idempotency
// key) from the HTTP edge through the message bus, and wraps bus handlers
// with per-delivery logging.
package interceptors

import (
	"context"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors/constants"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, constants.ContextKeyRequestID, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}

func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, constants.ContextKeyIdempotencyKey, key)
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(constants.ContextKeyIdempotencyKey).(string)
	return key
}

// Inject writes the metadata found in ctx through set, e.g. into message
// headers.
func Inject(ctx context.Context, set func(key, value string)) {
	if id := RequestID(ctx); id != "" {
		set(constants.HeaderXRequestId, id)
	}
	if key := IdempotencyKey(ctx); key != "" {
		set(constants.HeaderXIdempotencyKey, key)
	}
}

// Extract is the inverse of Inject.
func Extract(ctx context.Context, get func(key string) string) context.Context {
	ctx = WithRequestID(ctx, get(constants.HeaderXRequestId))
	return WithIdempotencyKey(ctx, get(constants.HeaderXIdempotencyKey))
}
