// Package metrics declares the Prometheus collectors shared by the services.
// They register on the default registry, which promhttp.Handler exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	SagaMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_messages_total",
			Help: "Messages handled by the fulfillment coordinator, by outcome",
		},
		[]string{"type", "outcome"},
	)

	SagaHandleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saga_handle_duration_seconds",
			Help:    "Time spent handling one coordinator message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	SagaTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_terminal_total",
			Help: "Sagas that reached a terminal state",
		},
		[]string{"status"},
	)

	IdempotencyLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotency_lookups_total",
			Help: "Idempotency cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
