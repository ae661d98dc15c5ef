package branches

import (
	"context"

	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads tenant branches.
type Repository interface {
	FindByID(ctx context.Context, branchID uuid.UUID) (*models.Branch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a branches repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, branchID uuid.UUID) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).Where("id = ?", branchID).Take(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}
