// Package telemetry sets up process-wide logging and tracing.
//
// Call SetupTracer once at the top of main() and defer the returned shutdown
// function; every span created anywhere in the process is then exported.
//
//	shutdown, err := telemetry.SetupTracer(ctx, "orchestrator", cfg.Telemetry, cfg.App.Env)
//	if err != nil { ... }
//	defer shutdown(context.Background())
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/config"
)

// ShutdownFunc must be called before the process exits to flush any
// buffered spans and close the exporter connection cleanly.
type ShutdownFunc func(ctx context.Context) error

// SetupPropagation registers the W3C TraceContext and Baggage propagators.
// Message headers and HTTP headers carry trace context through them, even
// when no exporter is configured.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// SetupTracer initialises the global OpenTelemetry TracerProvider and
// propagators for serviceName. With tracing disabled only the propagators
// are installed and the returned shutdown is a no-op.
func SetupTracer(ctx context.Context, serviceName string, cfg config.TelemetryConfig, env string) (ShutdownFunc, error) {
	SetupPropagation()
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	// The gRPC dialer expects host:port.
	endpoint := stripScheme(cfg.Endpoint)

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to dial OTel Collector at %s: %w", endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(env)),
	)
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: error shutting down TracerProvider: %w", err)
		}
		return conn.Close()
	}

	return shutdown, nil
}

// sampler keeps every trace outside production and a tenth in production.
func sampler(env string) sdktrace.Sampler {
	if env == "production" {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))
	}
	return sdktrace.AlwaysSample()
}

// stripScheme removes "http://" or "https://" prefixes so the raw host:port
// string can be used directly with grpc.NewClient.
func stripScheme(endpoint string) string {
	for _, prefix := range []string{"http://", "https://"} {
		if rest, ok := strings.CutPrefix(endpoint, prefix); ok && rest != "" {
			return rest
		}
	}
	return endpoint
}
