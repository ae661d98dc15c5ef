package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/leadassign-backend/api/routes"
	"github.com/angelmondragon/leadassign-backend/internal/bootstrap"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	ctx := context.Background()
	proc, err := bootstrap.Start(ctx, "api", bootstrap.Options{Redis: true})
	if err != nil {
		bootstrap.Exit(ctx, nil, "startup", err)
	}
	defer proc.Close(ctx)
	logg := proc.Logger

	services, err := proc.Services()
	if err != nil {
		proc.Fail(ctx, "assignment services", err)
	}

	addr := ":" + listenPort(proc.Config.App.Port)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			proc.Config,
			logg,
			proc.DB,
			proc.Redis,
			prometheus.DefaultGatherer,
			metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			services.Engine,
			services.Ledger,
			services.Rules,
			services.Employees,
		),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	sigCtx, stop := proc.SignalContext(ctx)
	defer stop()
	runCtx := logg.WithFields(sigCtx, map[string]any{"addr": addr, "instance": instanceID()})
	logg.Info(runCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			proc.Fail(runCtx, "api server", err)
		}
	case <-sigCtx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

// listenPort prefers the platform-provided PORT.
func listenPort(fallback string) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return fallback
}

func instanceID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "local"
}
