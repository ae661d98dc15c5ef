package rules

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/types"
	"github.com/google/uuid"
)

// RuleDTO is the API shape of an assignment rule.
type RuleDTO struct {
	ID               uuid.UUID              `json:"id"`
	BranchID         uuid.UUID              `json:"branch_id"`
	Name             string                 `json:"name"`
	Priority         int                    `json:"priority"`
	IsActive         bool                   `json:"is_active"`
	TargetEmployeeID *uuid.UUID             `json:"target_employee_id,omitempty"`
	Method           enums.AssignmentMethod `json:"method"`
	WorkloadLimit    *int                   `json:"workload_limit,omitempty"`
	Conditions       json.RawMessage        `json:"conditions"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// CreateRuleInput is the payload for a new rule. IsActive defaults to true.
type CreateRuleInput struct {
	Name             string                 `json:"name" validate:"required,notblank,max=120"`
	Priority         int                    `json:"priority" validate:"min=0"`
	IsActive         *bool                  `json:"is_active,omitempty"`
	TargetEmployeeID *uuid.UUID             `json:"target_employee_id,omitempty"`
	Method           enums.AssignmentMethod `json:"method" validate:"required,assignmethod"`
	WorkloadLimit    *int                   `json:"workload_limit,omitempty" validate:"omitempty,min=0"`
	Conditions       json.RawMessage        `json:"conditions,omitempty"`
}

// UpdateRuleInput patches a rule. Absent fields keep their value; explicit
// nulls clear target_employee_id and workload_limit.
type UpdateRuleInput struct {
	Name             *string                 `json:"name,omitempty" validate:"omitempty,notblank,max=120"`
	Priority         *int                    `json:"priority,omitempty" validate:"omitempty,min=0"`
	IsActive         *bool                   `json:"is_active,omitempty"`
	TargetEmployeeID types.NullableUUID      `json:"target_employee_id"`
	Method           *enums.AssignmentMethod `json:"method,omitempty" validate:"omitempty,assignmethod"`
	WorkloadLimit    types.NullableInt       `json:"workload_limit"`
	Conditions       json.RawMessage         `json:"conditions,omitempty"`
}

// FromModel converts a rule row to its API shape.
func FromModel(rule models.AssignmentRule) RuleDTO {
	conds := rule.Conditions
	if len(conds) == 0 {
		conds = emptyConditions
	}
	return RuleDTO{
		ID:               rule.ID,
		BranchID:         rule.BranchID,
		Name:             rule.Name,
		Priority:         rule.Priority,
		IsActive:         rule.IsActive,
		TargetEmployeeID: rule.TargetEmployeeID,
		Method:           rule.Method,
		WorkloadLimit:    rule.WorkloadLimit,
		Conditions:       conds,
		CreatedAt:        rule.CreatedAt,
		UpdatedAt:        rule.UpdatedAt,
	}
}
