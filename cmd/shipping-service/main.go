package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcmexdev/order-fulfillment/internal/pkg/bootstrap"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors"
	"github.com/jcmexdev/order-fulfillment/internal/providers/shipping"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("shipping service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rt, err := bootstrap.Start(ctx, "shipping-service")
	if err != nil {
		return err
	}
	defer rt.Shutdown()

	bus, err := rt.DialBus()
	if err != nil {
		return err
	}

	svc := shipping.NewService(bus, rt.Log)
	if err := svc.Register(interceptors.LoggingSubscriber{Next: bus, Log: rt.Log}); err != nil {
		return err
	}
	if err := bus.Start(ctx); err != nil {
		return err
	}

	rt.Log.Info("shipping service consuming")
	rt.Wait(ctx)
	return nil
}
