package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/leadassign-backend/api/controllers"
	"github.com/angelmondragon/leadassign-backend/api/middleware"
	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/internal/ledger"
	"github.com/angelmondragon/leadassign-backend/internal/rules"
	"github.com/angelmondragon/leadassign-backend/pkg/config"
	"github.com/angelmondragon/leadassign-backend/pkg/db"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
	"github.com/angelmondragon/leadassign-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient may be nil, which disables
// idempotency replay and the redis readiness check.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	engine controllers.LeadAssigner,
	ledgerService ledger.Service,
	rulesService rules.Service,
	employeesService employees.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	var (
		redisPinger      controllers.Pinger
		idempotencyStore redis.IdempotencyStore
	)
	if redisClient != nil {
		redisPinger = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.BranchContext(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/leads/{leadId}", func(r chi.Router) {
			r.Post("/assign", controllers.LeadAssign(engine, logg))
			r.Get("/assignments", controllers.LeadAssignments(ledgerService, logg))
			r.With(middleware.RequireRole(logg, enums.StaffRoleAdmin, enums.StaffRoleManager)).
				Post("/override", controllers.LeadOverride(engine, logg))
		})

		r.Route("/rules", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.StaffRoleAdmin))
			r.Get("/", controllers.RulesList(rulesService, logg))
			r.Post("/", controllers.RuleCreate(rulesService, logg))
			r.Get("/{ruleId}", controllers.RuleGet(rulesService, logg))
			r.Put("/{ruleId}", controllers.RuleUpdate(rulesService, logg))
			r.Post("/{ruleId}/deactivate", controllers.RuleDeactivate(rulesService, logg))
		})

		r.With(middleware.RequireRole(logg, enums.StaffRoleAdmin, enums.StaffRoleManager)).
			Get("/employees/workload", controllers.EmployeesWorkload(employeesService, logg))
	})

	return r
}
