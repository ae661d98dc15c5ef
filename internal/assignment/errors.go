package assignment

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/google/uuid"
)

// RuleEvaluationError marks a rule whose stored conditions could not be
// evaluated. The rule is skipped and the decision continues.
type RuleEvaluationError struct {
	RuleID   uuid.UUID
	RuleName string
	Err      error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s (%s): %v", e.RuleName, e.RuleID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}

func errNoEligibleCandidate(branchID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNoEligibleCandidate, "no eligible employee found; please assign manually").
		WithDetails(map[string]any{"branch_id": branchID})
}

// IsNoEligibleCandidate reports whether err is the soft "nobody to assign" failure.
func IsNoEligibleCandidate(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleCandidate)
}
