package assignment

import (
	"context"

	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/internal/ledger"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	redispkg "github.com/angelmondragon/leadassign-backend/pkg/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BranchReader resolves the tenant a decision runs in.
type BranchReader interface {
	FindByID(ctx context.Context, branchID uuid.UUID) (*models.Branch, error)
}

// RuleReader returns a branch's active rules in evaluation order.
type RuleReader interface {
	ListActive(ctx context.Context, branchID uuid.UUID) ([]models.AssignmentRule, error)
}

// Directory supplies the candidate pool and employee lookups.
type Directory interface {
	Snapshot(ctx context.Context, branchID uuid.UUID) (*employees.Snapshot, error)
	Find(ctx context.Context, branchID, employeeID uuid.UUID) (*employees.Candidate, error)
	FindActive(ctx context.Context, branchID, employeeID uuid.UUID) (*employees.Candidate, error)
}

// Ledger appends decisions and exposes the round-robin position.
type Ledger interface {
	Append(ctx context.Context, input ledger.RecordDecisionInput) (*models.AssignmentDecision, error)
	LastRoundRobinAssignee(ctx context.Context, branchID uuid.UUID) (*uuid.UUID, error)
	History(ctx context.Context, params ledger.HistoryParams) (*ledger.HistoryResult, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BranchLocker serializes decisions within a branch.
type BranchLocker interface {
	Obtain(ctx context.Context, scope, id string) (*redispkg.Lease, error)
}
