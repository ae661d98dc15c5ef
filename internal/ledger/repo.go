package ledger

import (
	"context"
	"errors"

	"github.com/angelmondragon/leadassign-backend/internal/repo"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/angelmondragon/leadassign-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for assignment decisions. Rows are never
// updated or deleted once written.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, decision *models.AssignmentDecision) error
	LastByMethods(ctx context.Context, branchID uuid.UUID, methods []enums.DecisionMethod) (*models.AssignmentDecision, error)
	ListByLead(ctx context.Context, params listDecisionsParams) ([]models.AssignmentDecision, *pagination.Cursor, error)
}

type repository struct {
	repo.Base
}

type listDecisionsParams struct {
	BranchID uuid.UUID
	LeadID   uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, decision *models.AssignmentDecision) error {
	return r.DB(ctx).Create(decision).Error
}

// LastByMethods returns the newest decision in the branch whose method is one
// of methods, or nil when the branch has none.
func (r *repository) LastByMethods(ctx context.Context, branchID uuid.UUID, methods []enums.DecisionMethod) (*models.AssignmentDecision, error) {
	var decision models.AssignmentDecision
	err := r.InBranch(ctx, branchID).
		Where("method IN ?", methods).
		Order("created_at DESC, id DESC").
		Take(&decision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

func (r *repository) ListByLead(ctx context.Context, params listDecisionsParams) ([]models.AssignmentDecision, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.InBranch(ctx, params.BranchID).
		Model(&models.AssignmentDecision{}).
		Where("lead_id = ?", params.LeadID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var decisions []models.AssignmentDecision
	if err := query.Order("created_at DESC, id DESC").Limit(normalized + 1).Find(&decisions).Error; err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(decisions, normalized, func(d models.AssignmentDecision) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	return page, next, nil
}
