package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/config"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

const testAssignmentsTopic = "lead-assignments"

func leadEvent(t *testing.T, eventType enums.OutboxEventType, eventID string) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateLead,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, eventID),
	}
}

func assignedResolution() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventLeadAssigned,
			Topic:         testAssignmentsTopic,
			AggregateType: enums.AggregateLead,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.LeadAssignedEvent{},
	}
}

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			leadEvent(t, enums.EventLeadAssigned, "event-one"),
			leadEvent(t, enums.EventLeadAssigned, "event-two"),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	metrics := &fakeMetrics{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: assignedResolution()}, &fakeDLQRepo{}, nil)
	service.metrics = metrics

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
	if metrics.published != 1 || metrics.failed != 1 {
		t.Fatalf("metrics published=%d failed=%d, want 1/1", metrics.published, metrics.failed)
	}
}

func TestPublishResolvedSetsLeadAttributes(t *testing.T) {
	branchID := uuid.New()
	event := leadEvent(t, enums.EventLeadAssigned, "assigned")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	resolved := assignedResolution()
	resolved.Envelope.Actor = &outbox.ActorRef{UserID: uuid.New(), BranchID: &branchID, Role: "sales"}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}

	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, nil)
	service.publisherFactory = func(topic string) publisher {
		if topic != testAssignmentsTopic {
			t.Fatalf("unexpected topic %q", topic)
		}
		return pub
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["lead_id"] != event.AggregateID.String() {
		t.Fatalf("lead_id attribute = %q", attrs["lead_id"])
	}
	if attrs["branch_id"] != branchID.String() {
		t.Fatalf("branch_id attribute = %q", attrs["branch_id"])
	}
	if attrs["event_type"] != string(enums.EventLeadAssigned) {
		t.Fatalf("event_type attribute = %q", attrs["event_type"])
	}
	if !bytes.Equal(pub.sent[0].Data, event.Payload) {
		t.Fatalf("message data should be the stored payload")
	}
}

func TestDefaultFactoryUsesAssignmentsPublisher(t *testing.T) {
	client := &fakePubSubClient{}
	cfg := &config.Config{PubSub: config.PubSubConfig{AssignmentsTopic: testAssignmentsTopic}}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        testLogger(),
		DB:            &fakeDB{},
		PubSub:        client,
		Repository:    &fakeRepo{},
		Registry:      &fakeRegistry{},
		DLQRepository: &fakeDLQRepo{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if pub := service.publisherFactory(testAssignmentsTopic); pub != nil {
		t.Fatalf("expected nil publisher when client has none configured")
	}
	service.publisherFactory("other-topic")
	if client.assignmentsCalls != 1 || client.namedCalls != 1 {
		t.Fatalf("assignments=%d named=%d, want 1/1", client.assignmentsCalls, client.namedCalls)
	}
}

func TestServiceProcessBatchDeadLetters(t *testing.T) {
	cases := map[string]struct {
		attempts int
		registry *fakeRegistry
		results  []publishResult
		reason   enums.OutboxDLQErrorReason
	}{
		"non-retryable resolve": {
			registry: &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		"max attempts": {
			attempts: 1,
			registry: &fakeRegistry{resolved: assignedResolution()},
			results:  []publishResult{fakePublishResult{err: errors.New("transient")}},
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			event := leadEvent(t, enums.EventLeadAssigned, name)
			event.AttemptCount = tc.attempts
			repo := &fakeRepo{events: []models.OutboxEvent{event}}
			dlqRepo := &fakeDLQRepo{}
			metrics := &fakeMetrics{}
			service := newTestService(t, repo, &fakePublisher{results: tc.results}, tc.registry, dlqRepo, &config.OutboxConfig{
				BatchSize:      1,
				PollIntervalMS: 100,
				MaxAttempts:    2,
			})
			service.metrics = metrics

			processed, err := service.processBatch(context.Background())
			if err != nil || !processed {
				t.Fatalf("processed=%v err=%v", processed, err)
			}
			if len(dlqRepo.entries) != 1 {
				t.Fatalf("expected one dlq entry, got %d", len(dlqRepo.entries))
			}
			entry := dlqRepo.entries[0]
			if entry.EventID != event.ID || entry.ErrorReason != tc.reason {
				t.Fatalf("unexpected dlq entry %+v", entry)
			}
			if !bytes.Equal(entry.Payload, event.Payload) {
				t.Fatalf("dlq payload should be the stored payload")
			}
			if metrics.dead != 1 || len(repo.published) != 0 {
				t.Fatalf("dead=%d published=%d", metrics.dead, len(repo.published))
			}
		})
	}
}

func TestServiceDeadLettersRowsTheRegistryRejects(t *testing.T) {
	reg, err := registry.NewEventRegistry(config.PubSubConfig{AssignmentsTopic: testAssignmentsTopic})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	// envelope data is {} so leadId and employeeId are missing.
	event := leadEvent(t, enums.EventLeadAssigned, "incomplete")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	dlqRepo := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, reg, dlqRepo, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("invalid rows must not reach pubsub")
	}
	if len(dlqRepo.entries) != 1 || dlqRepo.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected dlq entries %+v", dlqRepo.entries)
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("nextBackoff from zero = %s, want 1s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("nextBackoff should cap at %s, got %s", maxBackoff, got)
	}
	for range 20 {
		if got := withJitter(time.Second); got < time.Second || got >= time.Second+jitterWindow {
			t.Fatalf("jitter out of window: %s", got)
		}
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, registry registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: config.PubSubConfig{AssignmentsTopic: testAssignmentsTopic},
	}
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           testLogger(),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         registry,
		PublisherFactory: func(_ string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}
