package repo

import (
	"context"
	"testing"

	"github.com/angelmondragon/leadassign-backend/pkg/db/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestBaseDBBindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx)
	require.NotNil(t, withCtx.Statement)
	require.Equal(t, ctx, withCtx.Statement.Context)

	require.Same(t, db, base.DB(nil))
}

func TestBaseBindSwapsHandle(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	require.Same(t, db, base.Bind(nil).DB(nil))

	tx := db.Begin()
	t.Cleanup(func() { tx.Rollback() })
	bound := base.Bind(tx)
	require.Same(t, tx, bound.DB(nil))
	require.Same(t, db, base.DB(nil), "original base is untouched")
}

type branchRow struct {
	ID       int
	BranchID uuid.UUID `gorm:"type:text"`
}

func TestBaseInBranchFiltersRows(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.AutoMigrate(&branchRow{}))

	mine, other := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&[]branchRow{{BranchID: mine}, {BranchID: other}, {BranchID: mine}}).Error)

	var rows []branchRow
	require.NoError(t, NewBase(db).InBranch(context.Background(), mine).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, mine, row.BranchID)
	}
}
