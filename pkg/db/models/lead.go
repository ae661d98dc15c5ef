package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
)

// Lead is a sales inquiry created by ingestion and owned by the assignment engine
// only through AssignedTo, AssignmentRule and AssignedAt.
type Lead struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID       uuid.UUID           `gorm:"column:branch_id;type:uuid;not null"`
	Source         enums.LeadSource    `gorm:"column:source;type:lead_source_enum;not null"`
	Value          decimal.NullDecimal `gorm:"column:value;type:numeric(14,2)"`
	Region         *string             `gorm:"column:region"`
	State          *string             `gorm:"column:state"`
	City           *string             `gorm:"column:city"`
	Country        *string             `gorm:"column:country"`
	Industry       *string             `gorm:"column:industry"`
	CustomerID     *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	Status         enums.LeadStatus    `gorm:"column:status;type:lead_status_enum;not null;default:'new'"`
	AssignedTo     *uuid.UUID          `gorm:"column:assigned_to;type:uuid"`
	AssignmentRule *string             `gorm:"column:assignment_rule"`
	AssignedAt     *time.Time          `gorm:"column:assigned_at"`
	Payload        json.RawMessage     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
