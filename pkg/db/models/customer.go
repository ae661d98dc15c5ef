package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID  uuid.UUID `gorm:"column:branch_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// CustomerOrder carries only the columns the relationship lookup reads.
type CustomerOrder struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BranchID   uuid.UUID  `gorm:"column:branch_id;type:uuid;not null"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null"`
	AssignedTo *uuid.UUID `gorm:"column:assigned_to;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
