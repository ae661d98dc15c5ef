package assignment

import (
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/google/uuid"
)

// Labels stored in leads.assignment_rule when no rule produced the decision.
const (
	RuleLabelRelationship = "relationship"
	RuleLabelFallback     = "round_robin_fallback"
	RuleLabelManual       = "manual_override"
)

// AssignInput requests a decision for one lead.
type AssignInput struct {
	LeadID        uuid.UUID
	BranchID      uuid.UUID
	ForceReassign bool
	ActorUserID   *uuid.UUID
	ActorRole     enums.StaffRole
}

// OverrideInput pins a lead to an explicit employee.
type OverrideInput struct {
	LeadID      uuid.UUID
	BranchID    uuid.UUID
	EmployeeID  uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.StaffRole
}

// Result is the outcome of AssignLead or Override.
type Result struct {
	LeadID               uuid.UUID            `json:"lead_id"`
	AssignedEmployeeID   uuid.UUID            `json:"assigned_employee_id"`
	AssignedEmployeeName string               `json:"assigned_employee_name"`
	RuleID               *uuid.UUID           `json:"rule_id,omitempty"`
	RuleName             *string              `json:"rule_name,omitempty"`
	Method               enums.DecisionMethod `json:"method,omitempty"`
	AlreadyAssigned      bool                 `json:"already_assigned"`
	AssignedAt           *time.Time           `json:"assigned_at,omitempty"`
}
