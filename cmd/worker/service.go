package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/leadassign-backend/pkg/logger"
)

const (
	heartbeatInterval = time.Minute
	pingTimeout       = 5 * time.Second
)

type runner interface {
	Run(ctx context.Context) error
}

// dependency is a backing service the consumer cannot work without.
type dependency struct {
	name string
	ping func(context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	LeadConsumer runner
	Dependencies []dependency
}

// Service gates the lead_created consumer on dependency readiness and keeps
// a heartbeat in the logs while it runs.
type Service struct {
	logg     *logger.Logger
	consumer runner
	deps     []dependency
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.LeadConsumer == nil:
		return nil, errors.New("lead consumer is required")
	}
	return &Service{logg: params.Logger, consumer: params.LeadConsumer, deps: params.Dependencies}, nil
}

// checkDependencies pings every dependency and reports all failures, not
// just the first, so one restart fixes every misconfiguration it can.
func (s *Service) checkDependencies(ctx context.Context) error {
	var errs error
	for _, dep := range s.deps {
		if dep.ping == nil {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := dep.ping(pingCtx)
		cancel()
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "dependency ping failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s ping failed: %w", dep.name, err))
		}
	}
	return errs
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}
	s.logg.Info(ctx, "worker dependencies ready")

	done := make(chan error, 1)
	go func() { done <- s.consumer.Run(ctx) }()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "lead consumer stopped", err)
			}
			return err
		case <-heartbeat.C:
			s.logg.Debug(ctx, "worker.heartbeat")
		}
	}
}
