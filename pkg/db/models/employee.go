package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Employee is a branch member eligible to receive leads.
type Employee struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID    uuid.UUID      `gorm:"column:branch_id;type:uuid;not null"`
	Name        string         `gorm:"column:name;not null"`
	Role        *string        `gorm:"column:role"`
	Department  *string        `gorm:"column:department"`
	Territories pq.StringArray `gorm:"column:territories;type:text[];not null;default:ARRAY[]::text[]"`
	MaxWorkload *int           `gorm:"column:max_workload"`
	IsActive    bool           `gorm:"column:is_active;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
