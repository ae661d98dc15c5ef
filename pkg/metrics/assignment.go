package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes reported by the assignment engine.
const (
	OutcomeAssigned        = "assigned"
	OutcomeAlreadyAssigned = "already_assigned"
	OutcomeNoCandidate     = "no_candidate"
	OutcomeError           = "error"
)

// AssignmentMetrics tracks lead assignment decisions.
type AssignmentMetrics struct {
	decisions      *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	ruleErrors     prometheus.Counter
	auditFailures  prometheus.Counter
	lockContention prometheus.Counter
}

// NewAssignmentMetrics registers the assignment metrics on reg. A nil
// registerer yields a no-op recorder.
func NewAssignmentMetrics(reg prometheus.Registerer) *AssignmentMetrics {
	if reg == nil {
		return &AssignmentMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "decisions_total",
		Help:      "Lead assignment decisions by outcome and method.",
	}, []string{"outcome", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "decision_duration_seconds",
		Help:      "Time spent deciding a single lead.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"outcome"})
	ruleErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "rule_evaluation_errors_total",
		Help:      "Rules skipped because their condition set could not be evaluated.",
	})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "audit_write_failures_total",
		Help:      "Ledger appends that failed after a lead was assigned.",
	})
	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "lock_not_obtained_total",
		Help:      "Decisions that proceeded without the branch lock.",
	})
	reg.MustRegister(decisions, duration, ruleErrors, auditFailures, lockContention)
	return &AssignmentMetrics{
		decisions:      decisions,
		duration:       duration,
		ruleErrors:     ruleErrors,
		auditFailures:  auditFailures,
		lockContention: lockContention,
	}
}

// ObserveDecision records one finished decision.
func (m *AssignmentMetrics) ObserveDecision(outcome, method string, elapsed time.Duration) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(outcome), normalizeLabel(method)).Inc()
	m.duration.WithLabelValues(normalizeLabel(outcome)).Observe(elapsed.Seconds())
}

func (m *AssignmentMetrics) IncRuleEvaluationError() {
	if m == nil || m.ruleErrors == nil {
		return
	}
	m.ruleErrors.Inc()
}

func (m *AssignmentMetrics) IncAuditWriteFailure() {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *AssignmentMetrics) IncLockNotObtained() {
	if m == nil || m.lockContention == nil {
		return
	}
	m.lockContention.Inc()
}
