package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/leadassign-backend/pkg/config"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor ties an event type to the aggregate it belongs to, the
// topic it is published on, and the payload shape stored in the envelope.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation and was decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry is read-only after construction.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

type validatable interface {
	Validate() error
}

// leadScoped payloads must describe the same lead as the row's aggregate_id.
type leadScoped interface {
	Lead() uuid.UUID
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry registers every event the assignment service emits.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.AssignmentsTopic == "" {
		return nil, errors.New("assignments topic is required")
	}
	topic := cfg.AssignmentsTopic

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(describe[payloads.LeadAssignedEvent](enums.EventLeadAssigned, enums.AggregateLead, topic))
	reg.add(describe[payloads.LeadAssignmentFailedEvent](enums.EventLeadAssignmentFailed, enums.AggregateLead, topic))
	return reg, nil
}

func (r *EventRegistry) add(desc EventDescriptor) {
	r.entries[desc.EventType] = desc
}

// Lookup returns the descriptor for an event type.
func (r *EventRegistry) Lookup(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row content will not change on retry.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.descriptorFor(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if !envelope.HasData() {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if err := checkPayload(event, payload); err != nil {
		return nil, NewNonRetryableError(err)
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) descriptorFor(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return EventDescriptor{}, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return EventDescriptor{}, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return EventDescriptor{}, errors.New("missing aggregate_id")
	}
	return desc, nil
}

func checkPayload(event models.OutboxEvent, payload any) error {
	if v, ok := payload.(validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid %s payload: %w", event.EventType, err)
		}
	}
	if scoped, ok := payload.(leadScoped); ok && scoped.Lead() != event.AggregateID {
		return fmt.Errorf("payload lead %s does not match aggregate %s", scoped.Lead(), event.AggregateID)
	}
	return nil
}
