package assignment

import (
	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/google/uuid"
)

// Resolve picks the employee a rule's method selects from the snapshot, or
// reports false when the method yields nobody under the rule's ceiling.
// lastRoundRobin is the most recent rotation assignee from the ledger.
func Resolve(rule models.AssignmentRule, snapshot employees.Snapshot, lastRoundRobin *uuid.UUID) (employees.Candidate, bool) {
	var (
		candidate employees.Candidate
		ok        bool
	)
	switch rule.Method {
	case enums.AssignmentMethodDirect, enums.AssignmentMethodSkillBased:
		// skill_based has no skill taxonomy yet and uses the rule target.
		candidate, ok = resolveTarget(rule, snapshot)
	case enums.AssignmentMethodRoundRobin:
		candidate, ok = NextRoundRobin(snapshot.Candidates, lastRoundRobin)
	case enums.AssignmentMethodWorkloadBalanced:
		candidate, ok = leastLoaded(snapshot.Candidates)
	default:
		return employees.Candidate{}, false
	}
	if !ok || atCeiling(rule, candidate) {
		return employees.Candidate{}, false
	}
	return candidate, true
}

func resolveTarget(rule models.AssignmentRule, snapshot employees.Snapshot) (employees.Candidate, bool) {
	if rule.TargetEmployeeID == nil {
		return employees.Candidate{}, false
	}
	return snapshot.Find(*rule.TargetEmployeeID)
}

// NextRoundRobin returns the candidate after last in id order, wrapping to
// the first. With no previous assignee, or one no longer in the pool, the
// first candidate is chosen. candidates must be sorted by id.
func NextRoundRobin(candidates []employees.Candidate, last *uuid.UUID) (employees.Candidate, bool) {
	if len(candidates) == 0 {
		return employees.Candidate{}, false
	}
	if last == nil {
		return candidates[0], true
	}
	for i, c := range candidates {
		if c.ID == *last {
			return candidates[(i+1)%len(candidates)], true
		}
	}
	return candidates[0], true
}

// leastLoaded returns the candidate with the strictly lowest workload. Ties
// keep the earlier candidate in id order.
func leastLoaded(candidates []employees.Candidate) (employees.Candidate, bool) {
	if len(candidates) == 0 {
		return employees.Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.CurrentWorkload < best.CurrentWorkload {
			best = c
		}
	}
	return best, true
}

// atCeiling applies the rule's workload_limit, falling back to the
// employee's own max_workload.
func atCeiling(rule models.AssignmentRule, candidate employees.Candidate) bool {
	ceiling := rule.WorkloadLimit
	if ceiling == nil {
		ceiling = candidate.MaxWorkload
	}
	return ceiling != nil && candidate.CurrentWorkload >= *ceiling
}
