package constants

type contextKey string

const (
	HeaderXRequestId      = "x-request-id"
	HeaderXIdempotencyKey = "x-idempotency-key"
	// HeaderIdempotencyKey is the IETF draft header name, accepted on HTTP
	// alongside HeaderXIdempotencyKey.
	HeaderIdempotencyKey = "Idempotency-Key"

	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = HeaderXRequestId
	// ContextKeyIdempotencyKey is the context key for the idempotency key.
	ContextKeyIdempotencyKey contextKey = HeaderXIdempotencyKey
)
