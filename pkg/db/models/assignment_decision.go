package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
)

// AssignmentDecision is an append-only ledger entry for one assignment.
type AssignmentDecision struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID           uuid.UUID            `gorm:"column:branch_id;type:uuid;not null"`
	LeadID             uuid.UUID            `gorm:"column:lead_id;type:uuid;not null"`
	EmployeeID         uuid.UUID            `gorm:"column:employee_id;type:uuid;not null"`
	RuleID             *uuid.UUID           `gorm:"column:rule_id;type:uuid"`
	RuleName           *string              `gorm:"column:rule_name"`
	Method             enums.DecisionMethod `gorm:"column:method;type:decision_method_enum;not null"`
	IsManualOverride   bool                 `gorm:"column:is_manual_override;not null;default:false"`
	PreviousEmployeeID *uuid.UUID           `gorm:"column:previous_employee_id;type:uuid"`
	ActorUserID        *uuid.UUID           `gorm:"column:actor_user_id;type:uuid"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
}
