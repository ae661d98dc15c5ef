package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/leadassign-backend/internal/bootstrap"
	"github.com/angelmondragon/leadassign-backend/internal/cron"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	proc, err := bootstrap.Start(ctx, "cron-worker", bootstrap.Options{Redis: true})
	if err != nil {
		bootstrap.Exit(ctx, nil, "startup", err)
	}
	defer proc.Close(ctx)

	service, err := build(proc)
	if err != nil {
		proc.Fail(ctx, "cron service", err)
	}

	runCtx, stop := proc.SignalContext(ctx)
	defer stop()
	proc.Logger.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		proc.Fail(runCtx, "cron worker", err)
	}
	proc.Logger.Info(runCtx, "cron worker shutting down gracefully")
}

func build(proc *bootstrap.Process) (*cron.Service, error) {
	cfg := proc.Config

	services, err := proc.Services()
	if err != nil {
		return nil, err
	}

	locker, err := redis.NewLocker(proc.Redis, cfg.Cron.LockTTL, 0)
	if err != nil {
		return nil, fmt.Errorf("cron locker: %w", err)
	}
	lock, err := cron.NewRedisLock(locker, lockName(cfg.App.Env))
	if err != nil {
		return nil, err
	}

	sweep, err := cron.NewUnassignedSweepJob(cron.UnassignedSweepJobParams{
		Logger:    proc.Logger,
		Leads:     services.Leads,
		Assigner:  services.Engine,
		MinAge:    cfg.Cron.SweepMinAge,
		BatchSize: cfg.Cron.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      proc.Logger,
		DB:          proc.DB,
		Repository:  outbox.NewRepository(proc.DB.DB()),
		Retention:   cfg.Cron.OutboxRetentionDays,
		MinAttempts: cfg.Cron.OutboxRetentionLimit,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   proc.Logger,
		Registry: cron.NewRegistry(sweep, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Cron.Schedule,
	})
}

// lockName scopes the leader lock per environment so staging and prod
// sharing a redis do not starve each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
