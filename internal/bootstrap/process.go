package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/leadassign-backend/pkg/config"
	"github.com/angelmondragon/leadassign-backend/pkg/db"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/migrate"
	"github.com/angelmondragon/leadassign-backend/pkg/redis"
)

// Process is the infrastructure shared by every binary: config, logger,
// database and (optionally) redis. Resources are released in reverse order.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Options selects the optional resources a process needs.
type Options struct {
	Redis bool
}

// Start loads .env and config, opens the database, runs dev migrations and
// connects redis when asked. On error everything opened so far is closed.
func Start(ctx context.Context, kind string, opts Options) (*Process, error) {
	p := &Process{Kind: kind, Logger: logger.New(logger.Options{ServiceName: kind})}

	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Service.Kind = kind
	p.Config = cfg
	p.Logger = logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := p.open(ctx, opts); err != nil {
		p.Close(ctx)
		return nil, err
	}
	return p, nil
}

func (p *Process) open(ctx context.Context, opts Options) error {
	dbClient, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	p.DB = dbClient
	p.OnClose("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	if !opts.Redis {
		return nil
	}
	redisClient, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	p.Redis = redisClient
	p.OnClose("redis", redisClient.Close)
	return nil
}

// OnClose registers a resource to release when the process stops.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

// Close releases resources last-opened first and logs failures.
func (p *Process) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(ctx, "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Services wires the domain layer on top of the opened infrastructure.
func (p *Process) Services() (*Services, error) {
	return NewServices(Params{
		Config:     p.Config,
		Logger:     p.Logger,
		DB:         p.DB,
		Redis:      p.Redis,
		Registerer: prometheus.DefaultRegisterer,
	})
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the
// process identity as log fields.
func (p *Process) SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
	})
	return ctx, stop
}

// Exit logs a fatal startup failure and terminates the process. A nil
// logger falls back to a bare one so config errors are still reported.
func Exit(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "bootstrap"})
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}

// Fail releases the process resources before exiting with status 1.
func (p *Process) Fail(ctx context.Context, resource string, err error) {
	p.Close(ctx)
	Exit(ctx, p.Logger, resource, err)
}
