package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/registry"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublisherFactory routes the assignments topic to the client's cached
// publisher and any other topic to a named one.
func topicPublisherFactory(client pubSubClient, assignmentsTopic string) publisherFactory {
	return func(topic string) publisher {
		var p *gcppubsub.Publisher
		if topic == assignmentsTopic {
			p = client.AssignmentsPublisher()
		} else {
			p = client.Publisher(topic)
		}
		if p == nil {
			return nil
		}
		return &gcpPublisher{Publisher: p}
	}
}

// buildMessage publishes the stored envelope verbatim. Attributes let
// subscribers filter by lead or branch without decoding the body.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	if leadID, ok := event.LeadID(); ok {
		attrs["lead_id"] = leadID.String()
	}
	if actor := resolved.Envelope.Actor; actor != nil && actor.BranchID != nil {
		attrs["branch_id"] = actor.BranchID.String()
	}
	return &gcppubsub.Message{Data: event.Payload, Attributes: attrs}
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, buildMessage(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return gcpPublishResult{p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	res *gcppubsub.PublishResult
}

func (r gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.res == nil {
		return "", errors.New("publish result is nil")
	}
	return r.res.Get(ctx)
}
