package employees

import (
	"context"
	"sort"

	dbpkg "github.com/angelmondragon/leadassign-backend/pkg/db"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/google/uuid"
)

// Candidate is an active employee together with their current open-lead count.
type Candidate struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Role            *string   `json:"role,omitempty"`
	Department      *string   `json:"department,omitempty"`
	Territories     []string  `json:"territories"`
	MaxWorkload     *int      `json:"max_workload,omitempty"`
	CurrentWorkload int       `json:"current_workload"`
}

// Snapshot is the candidate pool for one decision, sorted by id.
type Snapshot struct {
	BranchID   uuid.UUID   `json:"branch_id"`
	Candidates []Candidate `json:"candidates"`
}

// Find returns the candidate with the given id.
func (s Snapshot) Find(id uuid.UUID) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// Service builds workload snapshots.
type Service interface {
	Snapshot(ctx context.Context, branchID uuid.UUID) (*Snapshot, error)
	Find(ctx context.Context, branchID, employeeID uuid.UUID) (*Candidate, error)
	FindActive(ctx context.Context, branchID, employeeID uuid.UUID) (*Candidate, error)
}

type service struct {
	repo Repository
}

// NewService wires the employee directory.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "employees repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Snapshot(ctx context.Context, branchID uuid.UUID) (*Snapshot, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}

	rows, err := s.repo.ListActive(ctx, branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active employees")
	}
	counts, err := s.repo.WorkloadCounts(ctx, branchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count employee workload")
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		candidates = append(candidates, toCandidate(row, counts[row.ID]))
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	return &Snapshot{BranchID: branchID, Candidates: candidates}, nil
}

// Find returns the employee whether or not they are still active.
func (s *service) Find(ctx context.Context, branchID, employeeID uuid.UUID) (*Candidate, error) {
	row, err := s.find(ctx, branchID, employeeID)
	if err != nil {
		return nil, err
	}
	candidate := toCandidate(*row, 0)
	return &candidate, nil
}

// FindActive returns the employee when they exist in the branch and are active.
func (s *service) FindActive(ctx context.Context, branchID, employeeID uuid.UUID) (*Candidate, error) {
	row, err := s.find(ctx, branchID, employeeID)
	if err != nil {
		return nil, err
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "employee is inactive")
	}
	candidate := toCandidate(*row, 0)
	return &candidate, nil
}

func (s *service) find(ctx context.Context, branchID, employeeID uuid.UUID) (*models.Employee, error) {
	if branchID == uuid.Nil || employeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id and employee id are required")
	}
	row, err := s.repo.FindByID(ctx, branchID, employeeID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "employee not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load employee")
	}
	return row, nil
}

func toCandidate(row models.Employee, workload int) Candidate {
	territories := []string(row.Territories)
	if territories == nil {
		territories = []string{}
	}
	return Candidate{
		ID:              row.ID,
		Name:            row.Name,
		Role:            row.Role,
		Department:      row.Department,
		Territories:     territories,
		MaxWorkload:     row.MaxWorkload,
		CurrentWorkload: workload,
	}
}
