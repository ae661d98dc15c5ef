package rules

import (
	"context"
	"time"

	"github.com/angelmondragon/leadassign-backend/internal/repo"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists assignment rules. Rules are never hard deleted.
type Repository interface {
	ListActive(ctx context.Context, branchID uuid.UUID) ([]models.AssignmentRule, error)
	List(ctx context.Context, branchID uuid.UUID, includeInactive bool) ([]models.AssignmentRule, error)
	FindByID(ctx context.Context, branchID, ruleID uuid.UUID) (*models.AssignmentRule, error)
	Create(ctx context.Context, rule *models.AssignmentRule) error
	Update(ctx context.Context, rule *models.AssignmentRule) error
	Deactivate(ctx context.Context, branchID, ruleID uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a rules repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

// ListActive returns the branch's active rules in evaluation order. Ties on
// priority are broken by creation time, then id.
func (r *repository) ListActive(ctx context.Context, branchID uuid.UUID) ([]models.AssignmentRule, error) {
	var rules []models.AssignmentRule
	err := r.InBranch(ctx, branchID).
		Where("is_active = ?", true).
		Order("priority ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) List(ctx context.Context, branchID uuid.UUID, includeInactive bool) ([]models.AssignmentRule, error) {
	if !includeInactive {
		return r.ListActive(ctx, branchID)
	}
	var rules []models.AssignmentRule
	err := r.InBranch(ctx, branchID).
		Order("is_active DESC").
		Order("priority ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) FindByID(ctx context.Context, branchID, ruleID uuid.UUID) (*models.AssignmentRule, error) {
	var rule models.AssignmentRule
	if err := r.InBranch(ctx, branchID).
		Where("id = ?", ruleID).
		Take(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create inserts the rule as given. is_active carries no gorm default, so a
// rule created switched off stays off.
func (r *repository) Create(ctx context.Context, rule *models.AssignmentRule) error {
	return r.DB(ctx).Create(rule).Error
}

// Update writes every mutable column. branch_id and created_at never change.
func (r *repository) Update(ctx context.Context, rule *models.AssignmentRule) error {
	res := r.InBranch(ctx, rule.BranchID).
		Model(&models.AssignmentRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"name":               rule.Name,
			"priority":           rule.Priority,
			"is_active":          rule.IsActive,
			"target_employee_id": rule.TargetEmployeeID,
			"method":             rule.Method,
			"workload_limit":     rule.WorkloadLimit,
			"conditions":         rule.Conditions,
			"updated_at":         rule.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Deactivate reports whether an active rule was switched off.
func (r *repository) Deactivate(ctx context.Context, branchID, ruleID uuid.UUID, at time.Time) (bool, error) {
	res := r.InBranch(ctx, branchID).
		Model(&models.AssignmentRule{}).
		Where("id = ? AND is_active = ?", ruleID, true).
		Updates(map[string]any{"is_active": false, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
