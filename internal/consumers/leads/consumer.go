package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/leadassign-backend/internal/assignment"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

const consumerName = "lead-assigner"

type assigner interface {
	AssignLead(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer assigns every lead announced on the lead_created subscription.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	engine       assigner
	decoders     *registry.DecoderRegistry
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer wires the lead_created consumer.
func NewConsumer(subscription *gcppubsub.Subscriber, engine assigner, decoders *registry.DecoderRegistry, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("leads subscription is required")
	}
	if engine == nil {
		return nil, errors.New("assignment engine is required")
	}
	if decoders == nil {
		return nil, errors.New("decoder registry is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		engine:       engine,
		decoders:     decoders,
		manager:      manager,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run receives messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		c.logg.Warn(logCtx, "unknown event type on leads subscription")
		return processResult{}
	}
	if eventType != enums.EventLeadCreated {
		return processResult{}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "invalid lead_created envelope")
		return processResult{}
	}
	eventIDRaw := strings.TrimSpace(envelope.EventID)
	if eventIDRaw == "" {
		eventIDRaw = strings.TrimSpace(msg.Attributes["event_id"])
	}
	eventID, err := uuid.Parse(eventIDRaw)
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}
	fields["event_id"] = eventID.String()

	version := envelope.Version
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if errors.Is(err, registry.ErrDecoderNotRegistered) {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"event_id": eventID.String(), "version": version}), "unsupported lead_created version")
		return processResult{}
	}
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"event_id": eventID.String(), "error": err.Error()}), "undecodable lead_created payload")
		return processResult{}
	}
	event, ok := decoded.(payloads.LeadCreatedEvent)
	if !ok {
		c.logg.Error(logCtx, "unexpected lead_created payload type", fmt.Errorf("got %T", decoded))
		return processResult{}
	}
	fields["lead_id"] = event.LeadID.String()
	fields["branch_id"] = event.BranchID.String()
	logCtx = c.logg.WithFields(ctx, fields)

	already, err := c.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	result, err := c.engine.AssignLead(logCtx, assignment.AssignInput{LeadID: event.LeadID, BranchID: event.BranchID})
	if err != nil {
		if !retryable(err) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "lead_created left unassigned")
			return processResult{}
		}
		c.logg.Error(logCtx, "lead assignment failed; will retry", err)
		if delErr := c.manager.Delete(logCtx, consumerName, eventID); delErr != nil {
			c.logg.Error(logCtx, "idempotency release failed", delErr)
		}
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"employee_id":      result.AssignedEmployeeID.String(),
		"already_assigned": result.AlreadyAssigned,
	}), "lead_created handled")
	return processResult{}
}

// retryable reports whether redelivery could change the outcome. A lead with
// no eligible employee already has its failure event queued.
func retryable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	if typed.Code() == pkgerrors.CodeNoEligibleCandidate {
		return false
	}
	return pkgerrors.MetadataFor(typed.Code()).Retryable
}
