package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/leadassign-backend/internal/bootstrap"
	"github.com/angelmondragon/leadassign-backend/internal/consumers/leads"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/leadassign-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	proc, err := bootstrap.Start(ctx, "worker", bootstrap.Options{Redis: true})
	if err != nil {
		bootstrap.Exit(ctx, nil, "startup", err)
	}
	defer proc.Close(ctx)

	service, err := build(ctx, proc)
	if err != nil {
		proc.Fail(ctx, "lead worker", err)
	}

	runCtx, stop := proc.SignalContext(ctx)
	defer stop()
	proc.Logger.Info(runCtx, "starting lead assignment worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		proc.Fail(runCtx, "worker", err)
	}
	proc.Logger.Info(runCtx, "worker shutting down gracefully")
}

func build(ctx context.Context, proc *bootstrap.Process) (*Service, error) {
	cfg := proc.Config

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, proc.Logger)
	if err != nil {
		return nil, err
	}
	proc.OnClose("pubsub", pubsubClient.Close)

	subscription := pubsubClient.LeadsSubscription()
	if subscription == nil {
		return nil, errors.New("leads subscription not configured")
	}

	services, err := proc.Services()
	if err != nil {
		return nil, err
	}
	manager, err := idempotency.NewManager(proc.Redis, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return nil, err
	}
	consumer, err := leads.NewConsumer(subscription, services.Engine, leads.NewDecoders(), manager, proc.Logger)
	if err != nil {
		return nil, err
	}

	return NewService(ServiceParams{
		Logger:       proc.Logger,
		LeadConsumer: consumer,
		Dependencies: []dependency{
			{name: "database", ping: proc.DB.Ping},
			{name: "redis", ping: proc.Redis.Ping},
			{name: "pubsub", ping: pubsubClient.Ping},
		},
	})
}
