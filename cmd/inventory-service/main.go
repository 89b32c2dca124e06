package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcmexdev/order-fulfillment/internal/catalog/adapters/gormstore"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/adapters/httpx"
	"github.com/jcmexdev/order-fulfillment/internal/catalog/app"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
	"github.com/jcmexdev/order-fulfillment/internal/providers/inventory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("inventory service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, "inventory-service")
	if err != nil {
		return err
	}
	defer rt.Shutdown()
	cfg, log := rt.Config, rt.Log

	db, err := gormstore.Open(bootstrap.GORMConfig(cfg.Catalog), log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		rt.OnShutdown(func(context.Context) error { return sqlDB.Close() })
	}

	catalog := app.NewService(gormstore.NewStore(db), cfg.Retry.Policy(), log)
	stock := cfg.Providers.Stock
	if len(stock) == 0 {
		stock = app.DefaultStock()
	}
	if err := catalog.Seed(ctx, stock); err != nil {
		return err
	}

	bus, err := rt.DialBus()
	if err != nil {
		return err
	}
	svc := inventory.NewService(catalog, bus, log)
	if err := svc.Register(interceptors.LoggingSubscriber{Next: bus, Log: log}); err != nil {
		return err
	}
	if err := bus.Start(ctx); err != nil {
		return err
	}

	log.Info("inventory service consuming", "seeded", len(stock))
	return rt.Serve(ctx, cfg.HTTP.Addr, httpx.NewRouter(httpx.NewHandler(catalog, log), log))
}
