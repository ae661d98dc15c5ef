package leads

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/db/dbtest"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertLead(t *testing.T, db *gorm.DB, branchID uuid.UUID, mutate func(*models.Lead)) models.Lead {
	t.Helper()
	lead := models.Lead{
		ID:        uuid.New(),
		BranchID:  branchID,
		Source:    enums.LeadSourceWebForm,
		Status:    enums.LeadStatusNew,
		CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&lead)
	}
	require.NoError(t, db.Create(&lead).Error)
	return lead
}

func TestRepositoryAssignIfUnassignedIsCompareAndSwap(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	lead := insertLead(t, db, branchID, nil)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	first := uuid.New()
	ok, err := repo.AssignIfUnassigned(ctx, AssignParams{BranchID: branchID, LeadID: lead.ID, EmployeeID: first, RuleLabel: "R1", AssignedAt: at})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AssignIfUnassigned(ctx, AssignParams{BranchID: branchID, LeadID: lead.ID, EmployeeID: uuid.New(), RuleLabel: "R2", AssignedAt: at})
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.FindByID(ctx, branchID, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	require.Equal(t, first, *got.AssignedTo)
	require.Equal(t, "R1", *got.AssignmentRule)
	require.NotNil(t, got.AssignedAt)
}

func TestRepositoryForceAssignOverwrites(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	previous := uuid.New()
	lead := insertLead(t, db, branchID, func(l *models.Lead) { l.AssignedTo = &previous })

	next := uuid.New()
	ok, err := repo.ForceAssign(ctx, AssignParams{BranchID: branchID, LeadID: lead.ID, EmployeeID: next, RuleLabel: "manual", AssignedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.FindByID(ctx, branchID, lead.ID)
	require.NoError(t, err)
	require.Equal(t, next, *got.AssignedTo)

	ok, err = repo.ForceAssign(ctx, AssignParams{BranchID: uuid.New(), LeadID: lead.ID, EmployeeID: next, AssignedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.False(t, ok, "other branch must not be able to write the lead")
}

func TestRepositoryFindByIDScopedToBranch(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	lead := insertLead(t, db, uuid.New(), nil)

	_, err := repo.FindByID(context.Background(), uuid.New(), lead.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func insertEmployee(t *testing.T, db *gorm.DB, branchID uuid.UUID, active bool) uuid.UUID {
	t.Helper()
	row := models.Employee{ID: uuid.New(), BranchID: branchID, Name: "rep", Territories: pq.StringArray{}, IsActive: active}
	require.NoError(t, db.Create(&row).Error)
	return row.ID
}

func TestRepositoryPriorAssigneePrefersMostRecent(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	customerID := uuid.New()
	current := insertLead(t, db, branchID, func(l *models.Lead) { l.CustomerID = &customerID })

	leadOwner := insertEmployee(t, db, branchID, true)
	leadAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	insertLead(t, db, branchID, func(l *models.Lead) {
		l.CustomerID = &customerID
		l.AssignedTo = &leadOwner
		l.AssignedAt = &leadAt
	})

	got, err := repo.PriorAssignee(ctx, branchID, customerID, current.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, leadOwner, *got)

	orderOwner := insertEmployee(t, db, branchID, true)
	require.NoError(t, db.Create(&models.CustomerOrder{
		ID:         uuid.New(),
		BranchID:   branchID,
		CustomerID: customerID,
		AssignedTo: &orderOwner,
		CreatedAt:  leadAt.Add(24 * time.Hour),
	}).Error)

	got, err = repo.PriorAssignee(ctx, branchID, customerID, current.ID)
	require.NoError(t, err)
	require.Equal(t, orderOwner, *got)

	none, err := repo.PriorAssignee(ctx, uuid.New(), customerID, current.ID)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestRepositoryPriorAssigneeSkipsInactiveOwners(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	customerID := uuid.New()
	current := insertLead(t, db, branchID, func(l *models.Lead) { l.CustomerID = &customerID })

	earlier := insertEmployee(t, db, branchID, true)
	departed := insertEmployee(t, db, branchID, false)
	earlierAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	laterAt := earlierAt.Add(30 * 24 * time.Hour)
	insertLead(t, db, branchID, func(l *models.Lead) {
		l.CustomerID = &customerID
		l.AssignedTo = &earlier
		l.AssignedAt = &earlierAt
	})
	insertLead(t, db, branchID, func(l *models.Lead) {
		l.CustomerID = &customerID
		l.AssignedTo = &departed
		l.AssignedAt = &laterAt
	})
	require.NoError(t, db.Create(&models.CustomerOrder{
		ID:         uuid.New(),
		BranchID:   branchID,
		CustomerID: customerID,
		AssignedTo: &departed,
		CreatedAt:  laterAt,
	}).Error)

	got, err := repo.PriorAssignee(ctx, branchID, customerID, current.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, earlier, *got)
}

func TestRepositoryListUnassignedBefore(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	branchID := uuid.New()
	cutoff := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	old := insertLead(t, db, branchID, func(l *models.Lead) { l.CreatedAt = cutoff.Add(-time.Hour) })
	insertLead(t, db, branchID, func(l *models.Lead) { l.CreatedAt = cutoff.Add(time.Hour) })
	owner := uuid.New()
	insertLead(t, db, branchID, func(l *models.Lead) {
		l.CreatedAt = cutoff.Add(-2 * time.Hour)
		l.AssignedTo = &owner
	})

	rows, err := repo.ListUnassignedBefore(context.Background(), cutoff, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, old.ID, rows[0].ID)
}

func TestRepositoryListUnassignedBeforePagesFromCursor(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	branchID := uuid.New()
	cutoff := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	first := insertLead(t, db, branchID, func(l *models.Lead) { l.CreatedAt = cutoff.Add(-3 * time.Hour) })
	second := insertLead(t, db, branchID, func(l *models.Lead) { l.CreatedAt = cutoff.Add(-2 * time.Hour) })
	third := insertLead(t, db, branchID, func(l *models.Lead) { l.CreatedAt = cutoff.Add(-time.Hour) })

	page, err := repo.ListUnassignedBefore(ctx, cutoff, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, first.ID, page[0].ID)
	require.Equal(t, second.ID, page[1].ID)

	page, err = repo.ListUnassignedBefore(ctx, cutoff, CursorAfter(page[1]), 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, third.ID, page[0].ID)

	page, err = repo.ListUnassignedBefore(ctx, cutoff, CursorAfter(page[0]), 2)
	require.NoError(t, err)
	require.Empty(t, page)
}
