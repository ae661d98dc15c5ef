package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/leadassign-backend/internal/bootstrap"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/registry"
	"github.com/angelmondragon/leadassign-backend/pkg/pubsub"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	ctx := context.Background()
	proc, err := bootstrap.Start(ctx, "outbox-publisher", bootstrap.Options{})
	if err != nil {
		bootstrap.Exit(ctx, nil, "startup", err)
	}
	defer proc.Close(ctx)

	service, err := build(ctx, proc)
	if err != nil {
		proc.Fail(ctx, "outbox publisher", err)
	}

	runCtx, stop := proc.SignalContext(ctx)
	defer stop()

	if addr := proc.Config.Outbox.MetricsAddr; addr != "" {
		shutdown := serveMetrics(runCtx, addr, proc.Logger)
		defer shutdown()
	}
	proc.Logger.Info(runCtx, "starting outbox publisher")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		proc.Fail(runCtx, "outbox publisher", err)
	}
	proc.Logger.Info(runCtx, "outbox publisher shutting down gracefully")
}

func build(ctx context.Context, proc *bootstrap.Process) (*Service, error) {
	cfg := proc.Config

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, proc.Logger)
	if err != nil {
		return nil, err
	}
	proc.OnClose("pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return nil, err
	}
	gdb := proc.DB.DB()
	return NewService(ServiceParams{
		Config:        cfg,
		Logger:        proc.Logger,
		DB:            proc.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(gdb),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(gdb),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
}

// serveMetrics exposes /metrics on its own listener; the returned func
// shuts it down.
func serveMetrics(ctx context.Context, addr string, logg *logger.Logger) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: metricsShutdownTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Warn(ctx, "metrics server shutdown: "+err.Error())
		}
	}
}
