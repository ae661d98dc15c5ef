package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads leads and writes the three assignment columns. It never
// creates or deletes leads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, branchID, leadID uuid.UUID) (*models.Lead, error)
	AssignIfUnassigned(ctx context.Context, params AssignParams) (bool, error)
	ForceAssign(ctx context.Context, params AssignParams) (bool, error)
	PriorAssignee(ctx context.Context, branchID, customerID, excludeLeadID uuid.UUID) (*uuid.UUID, error)
	ListUnassignedBefore(ctx context.Context, cutoff time.Time, after *SweepCursor, limit int) ([]models.Lead, error)
}

// SweepCursor is the (created_at, id) position of the last lead a sweep
// page returned. A nil cursor starts from the oldest lead.
type SweepCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the position just past lead.
func CursorAfter(lead models.Lead) *SweepCursor {
	return &SweepCursor{CreatedAt: lead.CreatedAt, ID: lead.ID}
}

// AssignParams describes one write of a lead's assignment columns.
type AssignParams struct {
	BranchID   uuid.UUID
	LeadID     uuid.UUID
	EmployeeID uuid.UUID
	RuleLabel  string
	AssignedAt time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a leads repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, branchID, leadID uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.WithContext(ctx).
		Where("id = ? AND branch_id = ?", leadID, branchID).
		Take(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// AssignIfUnassigned is the compare-and-swap write: it only succeeds while
// assigned_to is still null. The bool reports whether a row changed.
func (r *repository) AssignIfUnassigned(ctx context.Context, params AssignParams) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ? AND branch_id = ? AND assigned_to IS NULL", params.LeadID, params.BranchID).
		Updates(assignmentColumns(params))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ForceAssign overwrites the assignment regardless of the current assignee.
func (r *repository) ForceAssign(ctx context.Context, params AssignParams) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ? AND branch_id = ?", params.LeadID, params.BranchID).
		Updates(assignmentColumns(params))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func assignmentColumns(params AssignParams) map[string]any {
	return map[string]any{
		"assigned_to":     params.EmployeeID,
		"assignment_rule": params.RuleLabel,
		"assigned_at":     params.AssignedAt,
		"updated_at":      params.AssignedAt,
	}
}

type assigneeRow struct {
	AssignedTo uuid.UUID
	At         time.Time
}

// activeOwner limits an assignee lookup to employees still active in the
// same branch, so continuity falls back to earlier owners after turnover.
const activeOwner = "JOIN employees ON employees.id = %[1]s.assigned_to AND employees.branch_id = %[1]s.branch_id AND employees.is_active = ?"

// PriorAssignee returns the active employee most recently responsible for
// the customer in the branch, across the customer's other leads and orders.
func (r *repository) PriorAssignee(ctx context.Context, branchID, customerID, excludeLeadID uuid.UUID) (*uuid.UUID, error) {
	var fromLead assigneeRow
	leadErr := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Select("leads.assigned_to, leads.assigned_at AS at").
		Joins(fmt.Sprintf(activeOwner, "leads"), true).
		Where("leads.branch_id = ? AND leads.customer_id = ? AND leads.id <> ? AND leads.assigned_at IS NOT NULL",
			branchID, customerID, excludeLeadID).
		Order("leads.assigned_at DESC").
		Limit(1).
		Take(&fromLead).Error
	if leadErr != nil && !errors.Is(leadErr, gorm.ErrRecordNotFound) {
		return nil, leadErr
	}

	var fromOrder assigneeRow
	orderErr := r.db.WithContext(ctx).
		Model(&models.CustomerOrder{}).
		Select("customer_orders.assigned_to, customer_orders.created_at AS at").
		Joins(fmt.Sprintf(activeOwner, "customer_orders"), true).
		Where("customer_orders.branch_id = ? AND customer_orders.customer_id = ?", branchID, customerID).
		Order("customer_orders.created_at DESC").
		Limit(1).
		Take(&fromOrder).Error
	if orderErr != nil && !errors.Is(orderErr, gorm.ErrRecordNotFound) {
		return nil, orderErr
	}

	hasLead := leadErr == nil
	hasOrder := orderErr == nil
	switch {
	case hasLead && hasOrder:
		if fromOrder.At.After(fromLead.At) {
			return &fromOrder.AssignedTo, nil
		}
		return &fromLead.AssignedTo, nil
	case hasLead:
		return &fromLead.AssignedTo, nil
	case hasOrder:
		return &fromOrder.AssignedTo, nil
	default:
		return nil, nil
	}
}

// ListUnassignedBefore pages through unassigned leads created before cutoff
// in (created_at, id) order, starting after the cursor.
func (r *repository) ListUnassignedBefore(ctx context.Context, cutoff time.Time, after *SweepCursor, limit int) ([]models.Lead, error) {
	var rows []models.Lead
	query := r.db.WithContext(ctx).
		Where("assigned_to IS NULL AND created_at < ?", cutoff)
	if after != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	query = query.Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
