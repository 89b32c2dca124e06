package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcmexdev/order-fulfillment/internal/coordinator"
	"github.com/jcmexdev/order-fulfillment/internal/coordinator/inspect"
	sagalogsqlite "github.com/jcmexdev/order-fulfillment/internal/coordinator/sagalog/sqlite"
	sagastoresqlite "github.com/jcmexdev/order-fulfillment/internal/coordinator/sagastore/sqlite"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/sqlitedb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("orchestrator stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, "orchestrator")
	if err != nil {
		return err
	}
	defer rt.Shutdown()
	cfg, log := rt.Config, rt.Log

	db, err := sqlitedb.Open(cfg.SagaStore.Path)
	if err != nil {
		return err
	}
	rt.OnShutdown(func(context.Context) error { return db.Close() })

	store, err := sagastoresqlite.New(ctx, db)
	if err != nil {
		return err
	}
	audit, err := sagalogsqlite.New(ctx, db)
	if err != nil {
		return err
	}

	bus, err := rt.DialBus()
	if err != nil {
		return err
	}

	coord := coordinator.New(store, bus,
		coordinator.WithAuditLog(audit),
		coordinator.WithRetry(cfg.Retry.Policy()),
		coordinator.WithLogger(log),
	)
	if err := coord.Register(interceptors.LoggingSubscriber{Next: bus, Log: log}); err != nil {
		return err
	}
	if err := bus.Start(ctx); err != nil {
		return err
	}

	return rt.Serve(ctx, cfg.HTTP.Addr, inspect.NewRouter(inspect.NewHandler(store, audit)))
}
