package rules

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/leadassign-backend/internal/employees"
	dbpkg "github.com/angelmondragon/leadassign-backend/pkg/db"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/google/uuid"
)

const uniqueNameConstraint = "ux_assignment_rules_branch_name"

type employeeLookup interface {
	FindActive(ctx context.Context, branchID, employeeID uuid.UUID) (*employees.Candidate, error)
}

// Service administers a branch's assignment rules.
type Service interface {
	List(ctx context.Context, branchID uuid.UUID, includeInactive bool) ([]RuleDTO, error)
	Get(ctx context.Context, branchID, ruleID uuid.UUID) (*RuleDTO, error)
	Create(ctx context.Context, branchID uuid.UUID, input CreateRuleInput) (*RuleDTO, error)
	Update(ctx context.Context, branchID, ruleID uuid.UUID, input UpdateRuleInput) (*RuleDTO, error)
	Deactivate(ctx context.Context, branchID, ruleID uuid.UUID) (*RuleDTO, error)
}

type service struct {
	repo      Repository
	employees employeeLookup
	now       func() time.Time
}

// NewService wires the rule admin service.
func NewService(repo Repository, employees employeeLookup) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rules repository required")
	}
	if employees == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "employee lookup required")
	}
	return &service{repo: repo, employees: employees, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, branchID uuid.UUID, includeInactive bool) ([]RuleDTO, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	rows, err := s.repo.List(ctx, branchID, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignment rules")
	}
	out := make([]RuleDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, branchID, ruleID uuid.UUID) (*RuleDTO, error) {
	rule, err := s.load(ctx, branchID, ruleID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*rule)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, branchID uuid.UUID, input CreateRuleInput) (*RuleDTO, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	conds, err := normalizeConditions(input.Conditions)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rule := &models.AssignmentRule{
		ID:               uuid.New(),
		BranchID:         branchID,
		Name:             strings.TrimSpace(input.Name),
		Priority:         input.Priority,
		IsActive:         true,
		TargetEmployeeID: input.TargetEmployeeID,
		Method:           input.Method,
		WorkloadLimit:    input.WorkloadLimit,
		Conditions:       conds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, s.writeError(err, "create assignment rule")
	}
	dto := FromModel(*rule)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, branchID, ruleID uuid.UUID, input UpdateRuleInput) (*RuleDTO, error) {
	rule, err := s.load(ctx, branchID, ruleID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		rule.Name = strings.TrimSpace(*input.Name)
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if input.Method != nil {
		rule.Method = *input.Method
	}
	input.TargetEmployeeID.Apply(&rule.TargetEmployeeID)
	input.WorkloadLimit.Apply(&rule.WorkloadLimit)
	if input.Conditions != nil {
		conds, err := normalizeConditions(input.Conditions)
		if err != nil {
			return nil, err
		}
		rule.Conditions = conds
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}
	rule.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, s.writeError(err, "update assignment rule")
	}
	dto := FromModel(*rule)
	return &dto, nil
}

// Deactivate switches a rule off. Deactivating an inactive rule is a no-op.
func (s *service) Deactivate(ctx context.Context, branchID, ruleID uuid.UUID) (*RuleDTO, error) {
	rule, err := s.load(ctx, branchID, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		dto := FromModel(*rule)
		return &dto, nil
	}
	at := s.now().UTC()
	if _, err := s.repo.Deactivate(ctx, branchID, ruleID, at); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment rule")
	}
	rule.IsActive = false
	rule.UpdatedAt = at
	dto := FromModel(*rule)
	return &dto, nil
}

func (s *service) load(ctx context.Context, branchID, ruleID uuid.UUID) (*models.AssignmentRule, error) {
	if branchID == uuid.Nil || ruleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id and rule id are required")
	}
	rule, err := s.repo.FindByID(ctx, branchID, ruleID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment rule")
	}
	return rule, nil
}

func (s *service) validate(ctx context.Context, rule *models.AssignmentRule) error {
	if rule.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if rule.Priority < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "priority must not be negative")
	}
	if !rule.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment method").
			WithDetails(map[string]any{"method": rule.Method})
	}
	if rule.WorkloadLimit != nil && *rule.WorkloadLimit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "workload_limit must not be negative")
	}
	if rule.Method.RequiresTarget() && rule.TargetEmployeeID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "target_employee_id is required for this method").
			WithDetails(map[string]any{"method": rule.Method})
	}
	if rule.TargetEmployeeID == nil {
		return nil
	}
	if _, err := s.employees.FindActive(ctx, rule.BranchID, *rule.TargetEmployeeID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "target employee must be an active employee of the branch")
		}
		return err
	}
	return nil
}

func (s *service) writeError(err error, msg string) error {
	if dbpkg.IsUniqueViolation(err, uniqueNameConstraint) {
		return pkgerrors.New(pkgerrors.CodeConflict, "a rule with this name already exists")
	}
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "assignment rule not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
