// Package bootstrap is the start-up and shutdown sequence shared by every
// binary: config, logging, tracing, broker connection and the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/config"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/gormdb"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/messaging/rabbitmq"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/telemetry"
)

// ConfigEnv names the variable holding an optional config file path.
const ConfigEnv = "FULFILLMENT_CONFIG"

type Runtime struct {
	Service string
	Config  *config.Config
	Log     *slog.Logger

	closers []func(context.Context) error
}

// Start loads configuration, installs the logger and the tracer.
func Start(ctx context.Context, service string) (*Runtime, error) {
	cfg, err := config.Load(os.Getenv(ConfigEnv))
	if err != nil {
		return nil, err
	}

	log, closeLog := telemetry.InitLogger(cfg.Log)
	log = log.With("service", service)
	slog.SetDefault(log)

	rt := &Runtime{Service: service, Config: cfg, Log: log}
	rt.OnShutdown(func(context.Context) error { return closeLog() })

	shutdown, err := telemetry.SetupTracer(ctx, service, cfg.Telemetry, cfg.App.Env)
	if err != nil {
		rt.Shutdown()
		return nil, err
	}
	rt.OnShutdown(shutdown)
	return rt, nil
}

// OnShutdown registers fn to run at Shutdown, in reverse order.
func (rt *Runtime) OnShutdown(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

func (rt *Runtime) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil && rt.Log != nil {
			rt.Log.Error("shutdown step failed", "error", err)
		}
	}
}

// DialBus connects to RabbitMQ with queues named after the service.
func (rt *Runtime) DialBus() (*rabbitmq.Bus, error) {
	c := rt.Config.RabbitMQ
	bus, err := rabbitmq.Dial(rabbitmq.Config{
		URL:            c.URL,
		Exchange:       c.Exchange,
		Service:        rt.Service,
		Prefetch:       c.Prefetch,
		HandlerTimeout: c.HandlerTimeout,
		MaxAttempts:    c.MaxAttempts,
		RetryDelay:     c.RetryDelay,
	}, rt.Log)
	if err != nil {
		return nil, err
	}
	rt.OnShutdown(func(context.Context) error { return bus.Close() })
	return bus, nil
}

// GORMConfig maps a database section onto the GORM connection settings.
func GORMConfig(c config.DatabaseConfig) gormdb.Config {
	return gormdb.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogLevel:        c.LogLevel,
	}
}

// Serve runs an HTTP server on addr until ctx is done, then drains it.
func (rt *Runtime) Serve(ctx context.Context, addr string, handler http.Handler) error {
	hc := rt.Config.HTTP
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       hc.ReadTimeout,
		ReadHeaderTimeout: hc.ReadTimeout,
		WriteTimeout:      hc.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), hc.ShutdownTimeout)
	defer cancel()
	rt.Log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Wait blocks until ctx is done. Used by consumers without an HTTP surface.
func (rt *Runtime) Wait(ctx context.Context) {
	<-ctx.Done()
	rt.Log.Info("shutting down")
}
