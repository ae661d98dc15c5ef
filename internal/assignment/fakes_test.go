package assignment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/internal/leads"
	"github.com/angelmondragon/leadassign-backend/internal/ledger"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

type fakeBranches struct {
	branches map[uuid.UUID]*models.Branch
}

func (f *fakeBranches) FindByID(ctx context.Context, branchID uuid.UUID) (*models.Branch, error) {
	branch, ok := f.branches[branchID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return branch, nil
}

type fakeLeads struct {
	mu        sync.Mutex
	leads     map[uuid.UUID]*models.Lead
	prior     map[uuid.UUID]uuid.UUID
	writes    int
	beforeCAS func(lead *models.Lead)
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{leads: map[uuid.UUID]*models.Lead{}, prior: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeLeads) WithTx(tx *gorm.DB) leads.Repository {
	return f
}

func (f *fakeLeads) FindByID(ctx context.Context, branchID, leadID uuid.UUID) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok || lead.BranchID != branchID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeLeads) AssignIfUnassigned(ctx context.Context, params leads.AssignParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[params.LeadID]
	if !ok || lead.BranchID != params.BranchID {
		return false, nil
	}
	if f.beforeCAS != nil {
		f.beforeCAS(lead)
	}
	if lead.AssignedTo != nil {
		return false, nil
	}
	f.apply(lead, params)
	return true, nil
}

func (f *fakeLeads) ForceAssign(ctx context.Context, params leads.AssignParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[params.LeadID]
	if !ok || lead.BranchID != params.BranchID {
		return false, nil
	}
	f.apply(lead, params)
	return true, nil
}

func (f *fakeLeads) apply(lead *models.Lead, params leads.AssignParams) {
	employeeID := params.EmployeeID
	label := params.RuleLabel
	at := params.AssignedAt
	lead.AssignedTo = &employeeID
	lead.AssignmentRule = &label
	lead.AssignedAt = &at
	f.writes++
}

func (f *fakeLeads) PriorAssignee(ctx context.Context, branchID, customerID, excludeLeadID uuid.UUID) (*uuid.UUID, error) {
	id, ok := f.prior[customerID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeLeads) ListUnassignedBefore(ctx context.Context, cutoff time.Time, after *leads.SweepCursor, limit int) ([]models.Lead, error) {
	return nil, nil
}

type fakeRules struct {
	rules []models.AssignmentRule
	err   error
}

func (f *fakeRules) ListActive(ctx context.Context, branchID uuid.UUID) ([]models.AssignmentRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.AssignmentRule, 0, len(f.rules))
	for _, rule := range f.rules {
		if rule.BranchID == branchID && rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

type fakeDirectory struct {
	candidates []employees.Candidate
	inactive   map[uuid.UUID]employees.Candidate
}

func (f *fakeDirectory) Snapshot(ctx context.Context, branchID uuid.UUID) (*employees.Snapshot, error) {
	out := append([]employees.Candidate(nil), f.candidates...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return &employees.Snapshot{BranchID: branchID, Candidates: out}, nil
}

func (f *fakeDirectory) Find(ctx context.Context, branchID, employeeID uuid.UUID) (*employees.Candidate, error) {
	for _, c := range f.candidates {
		if c.ID == employeeID {
			found := c
			return &found, nil
		}
	}
	if c, ok := f.inactive[employeeID]; ok {
		return &c, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "employee not found")
}

func (f *fakeDirectory) FindActive(ctx context.Context, branchID, employeeID uuid.UUID) (*employees.Candidate, error) {
	for _, c := range f.candidates {
		if c.ID == employeeID {
			found := c
			return &found, nil
		}
	}
	if _, ok := f.inactive[employeeID]; ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "employee is inactive")
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "employee not found")
}

type fakeLedger struct {
	entries   []ledger.RecordDecisionInput
	appendErr error
}

func (f *fakeLedger) Append(ctx context.Context, input ledger.RecordDecisionInput) (*models.AssignmentDecision, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.entries = append(f.entries, input)
	return &models.AssignmentDecision{ID: uuid.New(), LeadID: input.LeadID, EmployeeID: input.EmployeeID, Method: input.Method}, nil
}

func (f *fakeLedger) LastRoundRobinAssignee(ctx context.Context, branchID uuid.UUID) (*uuid.UUID, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		entry := f.entries[i]
		if entry.BranchID != branchID {
			continue
		}
		if entry.Method == enums.DecisionMethodRoundRobin || entry.Method == enums.DecisionMethodFallbackRoundRobin {
			id := entry.EmployeeID
			return &id, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) History(ctx context.Context, params ledger.HistoryParams) (*ledger.HistoryResult, error) {
	result := &ledger.HistoryResult{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		entry := f.entries[i]
		if entry.LeadID != params.LeadID {
			continue
		}
		result.Items = append(result.Items, ledger.DecisionDTO{
			LeadID:     entry.LeadID,
			EmployeeID: entry.EmployeeID,
			RuleID:     entry.RuleID,
			RuleName:   entry.RuleName,
			Method:     entry.Method,
		})
		if params.Limit > 0 && len(result.Items) == params.Limit {
			break
		}
	}
	return result, nil
}

func (f *fakeLedger) countFor(leadID uuid.UUID) int {
	n := 0
	for _, entry := range f.entries {
		if entry.LeadID == leadID {
			n++
		}
	}
	return n
}

type fakeOutbox struct {
	events  []outbox.DomainEvent
	emitErr error
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range f.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	return f.Emit(ctx, tx, event)
}

func (f *fakeOutbox) count(eventType enums.OutboxEventType) int {
	n := 0
	for _, event := range f.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}
