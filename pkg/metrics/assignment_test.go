package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestAssignmentMetricsRecordsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssignmentMetrics(reg)

	m.ObserveDecision(OutcomeAssigned, "direct", 20*time.Millisecond)
	m.ObserveDecision(OutcomeAssigned, "direct", 10*time.Millisecond)
	m.ObserveDecision(OutcomeNoCandidate, "", time.Millisecond)
	m.IncRuleEvaluationError()
	m.IncAuditWriteFailure()
	m.IncAuditWriteFailure()
	m.IncLockNotObtained()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	decisions := metricsNamed(mfs, "leadassign_assignment_decisions_total")
	if len(decisions) == 0 {
		t.Fatalf("decisions metric missing")
	}
	var direct, unknown float64
	for _, metric := range decisions {
		if hasLabel(metric, "outcome", OutcomeAssigned) && hasLabel(metric, "method", "direct") {
			direct = metric.GetCounter().GetValue()
		}
		if hasLabel(metric, "outcome", OutcomeNoCandidate) && hasLabel(metric, "method", "unknown") {
			unknown = metric.GetCounter().GetValue()
		}
	}
	if direct != 2 {
		t.Fatalf("expected 2 direct assignments, got %f", direct)
	}
	if unknown != 1 {
		t.Fatalf("expected empty method to be normalized, got %f", unknown)
	}

	if got, err := fetchHistogramSum(mfs, "leadassign_assignment_decision_duration_seconds", "outcome", OutcomeAssigned); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got := plainCounter(t, mfs, "leadassign_assignment_audit_write_failures_total"); got != 2 {
		t.Fatalf("expected 2 audit failures, got %f", got)
	}
	if got := plainCounter(t, mfs, "leadassign_assignment_rule_evaluation_errors_total"); got != 1 {
		t.Fatalf("expected 1 rule error, got %f", got)
	}
	if got := plainCounter(t, mfs, "leadassign_assignment_lock_not_obtained_total"); got != 1 {
		t.Fatalf("expected 1 lock miss, got %f", got)
	}
}

func TestAssignmentMetricsNilSafe(t *testing.T) {
	var m *AssignmentMetrics
	m.ObserveDecision(OutcomeAssigned, "direct", time.Millisecond)
	m.IncAuditWriteFailure()

	noop := NewAssignmentMetrics(nil)
	noop.ObserveDecision(OutcomeError, "", time.Millisecond)
	noop.IncRuleEvaluationError()
	noop.IncLockNotObtained()
}

func plainCounter(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	found := metricsNamed(mfs, name)
	if len(found) == 0 {
		t.Fatalf("metric %q not found", name)
	}
	return found[0].GetCounter().GetValue()
}
