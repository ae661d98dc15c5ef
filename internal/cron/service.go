package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
	robfigcron "github.com/robfig/cron/v3"
)

const defaultSchedule = "*/5 * * * *"

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Schedule is a standard five-field cron expression.
	Schedule string
}

// Service runs every registered job once per schedule activation, on at most
// one replica at a time.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	schedule robfigcron.Schedule
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	spec := params.Schedule
	if spec == "" {
		spec = defaultSchedule
	}
	schedule, err := robfigcron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", spec, err)
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// Run executes one cycle immediately, then hands the schedule to a robfig
// scheduler until ctx is canceled. Overlapping activations are skipped.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)

	adapter := cronLogger{logg: s.logg, ctx: ctx}
	scheduler := robfigcron.New(
		robfigcron.WithLogger(adapter),
		robfigcron.WithChain(robfigcron.Recover(adapter), robfigcron.SkipIfStillRunning(adapter)),
	)
	scheduler.Schedule(s.schedule, robfigcron.FuncJob(func() { s.tick(ctx) }))
	scheduler.Start()
	s.logg.Info(s.logg.WithField(ctx, "next_run_in", s.untilNext().String()), "cron scheduler started")

	<-ctx.Done()
	<-scheduler.Stop().Done()
	s.logg.Info(ctx, "cron scheduler stopped")
	return ctx.Err()
}

func (s *Service) tick(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
}

// untilNext is the wait before the next activation of the schedule.
func (s *Service) untilNext() time.Duration {
	now := s.now()
	return max(s.schedule.Next(now).Sub(now), 0)
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	s.logg.Info(s.logg.WithField(ctx, "jobs", s.registry.Names()), "scheduled run starting")
	failed := 0
	for _, job := range s.registry.Jobs() {
		if !s.runJob(ctx, job) {
			failed++
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "failed_jobs", failed), "scheduled run complete")
	return nil
}

// runJob reports whether job succeeded. A failure never stops later jobs.
func (s *Service) runJob(ctx context.Context, job Job) bool {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Info(jobCtx, "job start")

	start := s.now()
	err := job.Run(jobCtx)
	end := s.now()
	took := end.Sub(start)
	s.metrics.Observe(job.Name(), took, end, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return false
	}
	s.logg.Info(jobCtx, "job completed")
	return true
}

// cronLogger routes robfig's scheduler diagnostics into the service logger.
type cronLogger struct {
	logg *logger.Logger
	ctx  context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logg.Debug(l.withPairs(keysAndValues), "robfig: "+msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logg.Error(l.withPairs(keysAndValues), "robfig: "+msg, err)
}

func (l cronLogger) withPairs(kv []any) context.Context {
	if len(kv) < 2 {
		return l.ctx
	}
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.logg.WithFields(l.ctx, fields)
}
