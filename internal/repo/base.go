package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by branch-owned repositories (rules, ledger). Every read
// and write of those tables is scoped to one branch.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// InBranch is DB(ctx) filtered to rows owned by branchID.
func (b Base) InBranch(ctx context.Context, branchID uuid.UUID) *gorm.DB {
	return b.DB(ctx).Where("branch_id = ?", branchID)
}

// Bind returns a copy of b that runs on tx. A nil tx keeps the current handle.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
