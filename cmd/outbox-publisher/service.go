package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/leadassign-backend/pkg/config"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	AssignmentsPublisher() *gcppubsub.Publisher
	Publisher(name string) *gcppubsub.Publisher
}

type publishMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncDeadLettered(eventType, reason string)
}

type noopMetrics struct{}

func (noopMetrics) IncPublished(string)            {}
func (noopMetrics) IncFailed(string)               {}
func (noopMetrics) IncDeadLettered(string, string) {}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// ServiceParams wires the publisher loop. Metrics and PublisherFactory are
// optional.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          publishMetrics
}

// Service drains outbox_events onto Pub/Sub. Each batch runs inside one
// transaction so the row locks taken by the fetch cover the status updates.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	metrics          publishMetrics
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func (p ServiceParams) validate() error {
	missing := ""
	switch {
	case p.Config == nil:
		missing = "config"
	case p.Logger == nil:
		missing = "logger"
	case p.DB == nil:
		missing = "database client"
	case p.PubSub == nil:
		missing = "pubsub client"
	case p.Repository == nil:
		missing = "outbox repository"
	case p.Registry == nil:
		missing = "event registry"
	case p.DLQRepository == nil:
		missing = "dlq repository"
	}
	if missing != "" {
		return fmt.Errorf("%s is required", missing)
	}
	return nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = topicPublisherFactory(params.PubSub, params.Config.PubSub.AssignmentsTopic)
	}
	var m publishMetrics = noopMetrics{}
	if params.Metrics != nil {
		m = params.Metrics
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		publisherFactory: factory,
		metrics:          m,
		batchSize:        orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(orDefault(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "dependency ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "outbox publisher dependencies ready")
	return nil
}

// Run polls until ctx is canceled. An empty batch sleeps one poll interval; a
// failed batch backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		wait := time.Duration(0)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = backoff
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			wait = s.pollInterval
		}

		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			if errors.Is(err, context.Canceled) {
				s.logg.Info(ctx, "outbox publisher stopping")
			}
			return err
		}
	}
}
