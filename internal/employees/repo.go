package employees

import (
	"context"

	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the employee directory and the workload read model.
type Repository interface {
	ListActive(ctx context.Context, branchID uuid.UUID) ([]models.Employee, error)
	FindByID(ctx context.Context, branchID, employeeID uuid.UUID) (*models.Employee, error)
	WorkloadCounts(ctx context.Context, branchID uuid.UUID) (map[uuid.UUID]int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an employees repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListActive(ctx context.Context, branchID uuid.UUID) ([]models.Employee, error) {
	var rows []models.Employee
	if err := r.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ?", branchID, true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, branchID, employeeID uuid.UUID) (*models.Employee, error) {
	var employee models.Employee
	if err := r.db.WithContext(ctx).
		Where("id = ? AND branch_id = ?", employeeID, branchID).
		Take(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

type workloadRow struct {
	AssignedTo uuid.UUID
	OpenCount  int
}

// WorkloadCounts counts open leads per assignee in the branch. Employees with
// no open leads are absent from the map.
func (r *repository) WorkloadCounts(ctx context.Context, branchID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []workloadRow
	if err := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Select("assigned_to, COUNT(*) AS open_count").
		Where("branch_id = ? AND assigned_to IS NOT NULL AND status IN ?", branchID, enums.OpenLeadStatuses).
		Group("assigned_to").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		counts[row.AssignedTo] = row.OpenCount
	}
	return counts, nil
}
