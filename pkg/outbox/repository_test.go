package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	outboxDLQ := `
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(outboxEvents).Error)
	require.NoError(t, db.Exec(outboxDLQ).Error)
	return db
}

func insertEvent(t *testing.T, db *gorm.DB, createdAt time.Time, attempts int, published bool) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventLeadAssigned,
		AggregateType: enums.AggregateLead,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     createdAt,
		AttemptCount:  attempts,
	}
	if published {
		at := createdAt.Add(time.Second)
		row.PublishedAt = &at
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestRepositoryFetchUnpublishedForPublishOrdersAndFilters(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	second := insertEvent(t, db, base.Add(time.Minute), 0, false)
	first := insertEvent(t, db, base, 2, false)
	insertEvent(t, db, base, 0, true)
	insertEvent(t, db, base, 10, false)

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, first.ID, rows[0].ID)
	require.Equal(t, second.ID, rows[1].ID)

	rows, err = repo.FetchUnpublishedForPublish(db, 1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRepositoryMarkTransitions(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	row := insertEvent(t, db, time.Now().UTC(), 0, false)

	require.NoError(t, repo.MarkFailedTx(db, row.ID, errors.New("pubsub timeout")))
	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 1, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	require.Equal(t, "pubsub timeout", *stored.LastError)

	require.NoError(t, repo.MarkTerminalTx(db, row.ID, errors.New("gave up"), 10))
	var terminal models.OutboxEvent
	require.NoError(t, db.First(&terminal, "id = ?", row.ID).Error)
	require.Equal(t, 10, terminal.AttemptCount)

	other := insertEvent(t, db, time.Now().UTC(), 0, false)
	require.NoError(t, repo.MarkPublishedTx(db, other.ID))
	var published models.OutboxEvent
	require.NoError(t, db.First(&published, "id = ?", other.ID).Error)
	require.NotNil(t, published.PublishedAt)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	insertEvent(t, db, old, 0, true)
	insertEvent(t, db, old, 5, false)
	pending := insertEvent(t, db, old, 1, false)
	insertEvent(t, db, recent, 0, true)

	deleted, err := repo.DeletePublishedBefore(context.Background(), db, cutoff, 5)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Order("created_at ASC").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	require.Equal(t, pending.ID, remaining[0].ID)
}

func TestServiceEmitIfNotExists(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	leadID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventLeadAssignmentFailed,
		AggregateType: enums.AggregateLead,
		AggregateID:   leadID,
		Data:          map[string]string{"reason": "no eligible employee"},
	}
	ctx := context.Background()
	require.NoError(t, svc.EmitIfNotExists(ctx, db, event))
	require.NoError(t, svc.EmitIfNotExists(ctx, db, event))

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, CurrentVersion, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.JSONEq(t, `{"reason":"no eligible employee"}`, string(envelope.Data))

	exists, err := repo.ExistsTx(db, enums.EventLeadAssigned, enums.AggregateLead, leadID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestServiceEmitRequiresTx(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
}

func TestDLQRepositoryInsertTruncates(t *testing.T) {
	db := setupOutboxTestDB(t)
	dlq := NewDLQRepository(db)
	long := make([]byte, maxDLQErrorLen+100)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()

	require.NoError(t, dlq.InsertTx(db, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventLeadAssigned,
		AggregateType: enums.AggregateLead,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		FailedAt:      time.Now().UTC(),
	}))

	stored, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, *stored.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestServiceEmitRejectsInvalidEvents(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	valid := DomainEvent{
		EventType:     enums.EventLeadAssigned,
		AggregateType: enums.AggregateLead,
		AggregateID:   uuid.New(),
		Data:          map[string]string{"leadId": "x"},
	}

	bad := valid
	bad.EventType = "order_created"
	require.Error(t, svc.Emit(context.Background(), db, bad))

	bad = valid
	bad.AggregateID = uuid.Nil
	require.Error(t, svc.Emit(context.Background(), db, bad))

	bad = valid
	bad.Data = nil
	require.Error(t, svc.Emit(context.Background(), db, bad))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDLQRepositoryIgnoresDuplicateEvent(t *testing.T) {
	db := setupOutboxTestDB(t)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_outbox_dlq_event ON outbox_dlq (event_id)`).Error)
	dlq := NewDLQRepository(db)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventLeadAssignmentFailed,
		AggregateType: enums.AggregateLead,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	entry := models.NewOutboxDLQ(event, enums.OutboxDLQReasonNonRetryable, nil, time.Now())
	require.NoError(t, dlq.InsertTx(db, entry))
	require.NoError(t, dlq.InsertTx(db, entry))

	var count int64
	require.NoError(t, db.Model(&models.OutboxDLQ{}).Where("event_id = ?", event.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Error(t, dlq.InsertTx(db, models.OutboxDLQ{}))
}

func TestClipKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "abc", clip("abc", 10))
	require.Equal(t, "ab", clip("abcdef", 2))
	// "é" is two bytes; cutting at 2 would split it.
	require.Equal(t, "a", clip("aé", 2))
}
