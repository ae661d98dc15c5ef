package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
)

// OutboxEvent is a lead_assigned / lead_assignment_failed row written in the
// same transaction as the lead update and drained by the outbox publisher.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// LeadID returns the aggregate id when the event is about a lead.
func (e OutboxEvent) LeadID() (uuid.UUID, bool) {
	if e.AggregateType != enums.AggregateLead {
		return uuid.Nil, false
	}
	return e.AggregateID, true
}

func (e OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}
