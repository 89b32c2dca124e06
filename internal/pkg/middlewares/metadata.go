package middlewares

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors/constants"
)

// AttachRequestMetadata copies the chi request id and the client's
// idempotency key into the context, where the bus publisher picks them up.
// Must run after middleware.RequestID.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := r.Header.Get(constants.HeaderIdempotencyKey)
		if idempotencyKey == "" {
			idempotencyKey = r.Header.Get(constants.HeaderXIdempotencyKey)
		}

		ctx := interceptors.WithRequestID(r.Context(), requestID)
		ctx = interceptors.WithIdempotencyKey(ctx, idempotencyKey)
		if requestID != "" {
			w.Header().Set(middleware.RequestIDHeader, requestID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
