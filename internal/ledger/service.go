package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Service records and reads the assignment audit trail.
type Service interface {
	Append(ctx context.Context, input RecordDecisionInput) (*models.AssignmentDecision, error)
	LastRoundRobinAssignee(ctx context.Context, branchID uuid.UUID) (*uuid.UUID, error)
	History(ctx context.Context, params HistoryParams) (*HistoryResult, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RecordDecisionInput captures the immutable data a ledger entry requires.
type RecordDecisionInput struct {
	BranchID           uuid.UUID
	LeadID             uuid.UUID
	EmployeeID         uuid.UUID
	RuleID             *uuid.UUID
	RuleName           *string
	Method             enums.DecisionMethod
	IsManualOverride   bool
	PreviousEmployeeID *uuid.UUID
	ActorUserID        *uuid.UUID
}

// HistoryParams selects one page of a lead's decisions, newest first.
type HistoryParams struct {
	BranchID uuid.UUID
	LeadID   uuid.UUID
	Limit    int
	Cursor   string
}

// DecisionDTO is the API shape of a ledger entry.
type DecisionDTO struct {
	ID                 uuid.UUID            `json:"id"`
	LeadID             uuid.UUID            `json:"lead_id"`
	EmployeeID         uuid.UUID            `json:"employee_id"`
	RuleID             *uuid.UUID           `json:"rule_id,omitempty"`
	RuleName           *string              `json:"rule_name,omitempty"`
	Method             enums.DecisionMethod `json:"method"`
	IsManualOverride   bool                 `json:"is_manual_override"`
	PreviousEmployeeID *uuid.UUID           `json:"previous_employee_id,omitempty"`
	ActorUserID        *uuid.UUID           `json:"actor_user_id,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// HistoryResult wraps returned decisions and the cursor for the next page.
type HistoryResult struct {
	Items  []DecisionDTO `json:"items"`
	Cursor string        `json:"cursor"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Append(ctx context.Context, input RecordDecisionInput) (*models.AssignmentDecision, error) {
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	if input.LeadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id is required")
	}
	if input.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision method").
			WithDetails(map[string]any{"method": input.Method})
	}
	if input.IsManualOverride && input.Method != enums.DecisionMethodManual {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual overrides must use the manual method")
	}

	decision := &models.AssignmentDecision{
		ID:                 uuid.New(),
		BranchID:           input.BranchID,
		LeadID:             input.LeadID,
		EmployeeID:         input.EmployeeID,
		RuleID:             input.RuleID,
		RuleName:           input.RuleName,
		Method:             input.Method,
		IsManualOverride:   input.IsManualOverride,
		PreviousEmployeeID: input.PreviousEmployeeID,
		ActorUserID:        input.ActorUserID,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.repo.Create(ctx, decision); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append assignment decision")
	}
	return decision, nil
}

// LastRoundRobinAssignee reports who received the branch's most recent
// rotation-based assignment. Rule round-robin and fallback share one rotation.
func (s *service) LastRoundRobinAssignee(ctx context.Context, branchID uuid.UUID) (*uuid.UUID, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	last, err := s.repo.LastByMethods(ctx, branchID, enums.RoundRobinDecisionMethods)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read round robin position")
	}
	if last == nil {
		return nil, nil
	}
	id := last.EmployeeID
	return &id, nil
}

func (s *service) History(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	if params.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id is required")
	}
	if params.LeadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id is required")
	}

	query := listDecisionsParams{
		BranchID: params.BranchID,
		LeadID:   params.LeadID,
		Limit:    params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByLead(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignment decisions")
	}

	items := make([]DecisionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDecisionDTO(row))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &HistoryResult{Items: items, Cursor: cursor}, nil
}

func toDecisionDTO(row models.AssignmentDecision) DecisionDTO {
	return DecisionDTO{
		ID:                 row.ID,
		LeadID:             row.LeadID,
		EmployeeID:         row.EmployeeID,
		RuleID:             row.RuleID,
		RuleName:           row.RuleName,
		Method:             row.Method,
		IsManualOverride:   row.IsManualOverride,
		PreviousEmployeeID: row.PreviousEmployeeID,
		ActorUserID:        row.ActorUserID,
		CreatedAt:          row.CreatedAt,
	}
}
