package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
)

// AssignmentRule is one branch-scoped routing policy. Conditions hold the raw
// JSON condition set and are decoded per evaluation.
type AssignmentRule struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID         uuid.UUID              `gorm:"column:branch_id;type:uuid;not null"`
	Name             string                 `gorm:"column:name;not null"`
	Priority         int                    `gorm:"column:priority;not null"`
	IsActive         bool                   `gorm:"column:is_active;not null"`
	TargetEmployeeID *uuid.UUID             `gorm:"column:target_employee_id;type:uuid"`
	Method           enums.AssignmentMethod `gorm:"column:method;type:assignment_method_enum;not null"`
	WorkloadLimit    *int                   `gorm:"column:workload_limit"`
	Conditions       json.RawMessage        `gorm:"column:conditions;type:jsonb;not null;default:'{}'"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
