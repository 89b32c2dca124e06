package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/adapters/gormstore"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/adapters/httpx"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/adapters/mongo"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/app"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/idempotency"
	"github.com/jcmexdev/order-fulfillment/internal/order-service/projection"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/cache"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("order service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, "order-service")
	if err != nil {
		return err
	}
	defer rt.Shutdown()
	cfg, log := rt.Config, rt.Log

	client, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		return err
	}
	rt.OnShutdown(client.Disconnect)
	orders := mongo.NewOrderRepository(client.Database(cfg.Mongo.Database))

	db, err := gormstore.Open(bootstrap.GORMConfig(cfg.ReadModel), log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		rt.OnShutdown(func(context.Context) error { return sqlDB.Close() })
	}
	readModel := gormstore.NewReadModel(db)

	redisCache := cache.NewRedisCache(cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisCache.Ping(ctx); err != nil {
		// Idempotency degrades to a miss while Redis is down.
		log.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}
	rt.OnShutdown(func(context.Context) error { return redisCache.Close() })

	bus, err := rt.DialBus()
	if err != nil {
		return err
	}

	svc := app.NewOrderService(
		orders,
		projection.NewService(readModel, log),
		idempotency.NewGate(redisCache, cfg.Idempotency.TTL, log),
		bus,
		cfg.Retry.Policy(),
		log,
	)
	listener := app.NewOutcomeListener(svc, log)
	if err := listener.Register(interceptors.LoggingSubscriber{Next: bus, Log: log}); err != nil {
		return err
	}
	if err := bus.Start(ctx); err != nil {
		return err
	}

	routerCfg := httpx.RouterConfig{}
	if cfg.HTTP.RateLimit.Enabled {
		routerCfg.RateLimit = cfg.HTTP.RateLimit.Rate
		routerCfg.RateBurst = cfg.HTTP.RateLimit.Burst
	}
	router := httpx.NewRouter(httpx.NewHandler(svc, app.NewQueries(readModel, app.WithReadRepair(svc)), log), routerCfg, log)
	return rt.Serve(ctx, cfg.HTTP.Addr, router)
}
