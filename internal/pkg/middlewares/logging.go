package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logging writes one line per request; 5xx at error, 4xx at warn.
func Logging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				log.ErrorContext(r.Context(), "http request", attrs...)
			case ww.Status() >= http.StatusBadRequest:
				log.WarnContext(r.Context(), "http request", attrs...)
			default:
				log.InfoContext(r.Context(), "http request", attrs...)
			}
		})
	}
}
