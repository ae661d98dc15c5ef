package bootstrap

import (
	"fmt"

	"github.com/angelmondragon/leadassign-backend/internal/assignment"
	"github.com/angelmondragon/leadassign-backend/internal/branches"
	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/internal/leads"
	"github.com/angelmondragon/leadassign-backend/internal/ledger"
	"github.com/angelmondragon/leadassign-backend/internal/rules"
	"github.com/angelmondragon/leadassign-backend/pkg/config"
	"github.com/angelmondragon/leadassign-backend/pkg/db"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

// Services is the domain layer shared by every process.
type Services struct {
	Engine    *assignment.Engine
	Rules     rules.Service
	Ledger    ledger.Service
	Employees employees.Service
	Leads     leads.Repository
}

// Params carries the infrastructure a process has already opened. Redis and
// Registerer may be nil.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// NewServices builds repositories, services and the assignment engine.
func NewServices(p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and db are required")
	}
	gdb := p.DB.DB()

	directory, err := employees.NewService(employees.NewRepository(gdb))
	if err != nil {
		return nil, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb))
	if err != nil {
		return nil, err
	}
	rulesRepo := rules.NewRepository(gdb)
	rulesSvc, err := rules.NewService(rulesRepo, directory)
	if err != nil {
		return nil, err
	}
	leadsRepo := leads.NewRepository(gdb)

	params := assignment.EngineParams{
		Tx:              p.DB,
		Branches:        branches.NewRepository(gdb),
		Leads:           leadsRepo,
		Rules:           rulesRepo,
		Directory:       directory,
		Ledger:          ledgerSvc,
		Outbox:          outbox.NewService(outbox.NewRepository(gdb), p.Logger),
		Metrics:         metrics.NewAssignmentMetrics(p.Registerer),
		Logger:          p.Logger,
		DefaultLocation: p.Config.Assignment.Location(),
		DecisionTimeout: p.Config.Assignment.DecisionTimeout,
	}
	if p.Redis != nil && p.Config.Assignment.LockEnabled {
		locker, err := redis.NewLocker(p.Redis, p.Config.Assignment.LockTTL, p.Config.Assignment.LockWait)
		if err != nil {
			return nil, err
		}
		params.Locker = locker
	}
	engine, err := assignment.NewEngine(params)
	if err != nil {
		return nil, err
	}

	return &Services{
		Engine:    engine,
		Rules:     rulesSvc,
		Ledger:    ledgerSvc,
		Employees: directory,
		Leads:     leadsRepo,
	}, nil
}
