package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/db/dbtest"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertDecision(t *testing.T, db *gorm.DB, branchID, leadID uuid.UUID, method enums.DecisionMethod, at time.Time) models.AssignmentDecision {
	t.Helper()
	row := models.AssignmentDecision{
		ID:         uuid.New(),
		BranchID:   branchID,
		LeadID:     leadID,
		EmployeeID: uuid.New(),
		Method:     method,
		CreatedAt:  at,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestRepositoryLastByMethodsPicksNewestRotationEntry(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	insertDecision(t, db, branchID, uuid.New(), enums.DecisionMethodRoundRobin, base)
	want := insertDecision(t, db, branchID, uuid.New(), enums.DecisionMethodFallbackRoundRobin, base.Add(time.Minute))
	insertDecision(t, db, branchID, uuid.New(), enums.DecisionMethodDirect, base.Add(2*time.Minute))
	insertDecision(t, db, uuid.New(), uuid.New(), enums.DecisionMethodRoundRobin, base.Add(3*time.Minute))

	got, err := repo.LastByMethods(ctx, branchID, enums.RoundRobinDecisionMethods)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.EmployeeID, got.EmployeeID)

	none, err := repo.LastByMethods(ctx, uuid.New(), enums.RoundRobinDecisionMethods)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestServiceHistoryPaginatesNewestFirst(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()
	branchID := uuid.New()
	leadID := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	var rows []models.AssignmentDecision
	for i := 0; i < 3; i++ {
		rows = append(rows, insertDecision(t, db, branchID, leadID, enums.DecisionMethodManual, base.Add(time.Duration(i)*time.Minute)))
	}
	insertDecision(t, db, branchID, uuid.New(), enums.DecisionMethodManual, base)

	first, err := svc.History(ctx, HistoryParams{BranchID: branchID, LeadID: leadID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, rows[2].ID, first.Items[0].ID)
	require.Equal(t, rows[1].ID, first.Items[1].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.History(ctx, HistoryParams{BranchID: branchID, LeadID: leadID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, rows[0].ID, second.Items[0].ID)
	require.Empty(t, second.Cursor)
}
