package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/middlewares"
)

type RouterConfig struct {
	RateLimit float64
	RateBurst int
}

func NewRouter(handler *Handler, cfg RouterConfig, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middlewares.Tracing)
	r.Use(middlewares.Logging(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewares.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/orders", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(middlewares.RateLimit(cfg.RateLimit, cfg.RateBurst))
		}
		r.Post("/", handler.CreateOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/customer/{customerId}", handler.ListByCustomer)
		r.Get("/{id}", handler.GetOrder)
		r.Put("/{id}/status", handler.UpdateStatus)
	})
	return r
}
