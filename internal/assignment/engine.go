package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/leadassign-backend/internal/employees"
	"github.com/angelmondragon/leadassign-backend/internal/leads"
	"github.com/angelmondragon/leadassign-backend/internal/ledger"
	dbpkg "github.com/angelmondragon/leadassign-backend/pkg/db"
	"github.com/angelmondragon/leadassign-backend/pkg/db/models"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
	"github.com/angelmondragon/leadassign-backend/pkg/metrics"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox"
	"github.com/angelmondragon/leadassign-backend/pkg/outbox/payloads"
	redispkg "github.com/angelmondragon/leadassign-backend/pkg/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const lockScope = "assign-branch"

// Service is the lead assignment surface used by the API, the lead_created
// consumer and the unassigned sweep.
type Service interface {
	AssignLead(ctx context.Context, input AssignInput) (*Result, error)
	Override(ctx context.Context, input OverrideInput) (*Result, error)
}

// EngineParams wires the engine's collaborators. Locker and Metrics are optional.
type EngineParams struct {
	Tx              txRunner
	Branches        BranchReader
	Leads           leads.Repository
	Rules           RuleReader
	Directory       Directory
	Ledger          Ledger
	Outbox          outboxEmitter
	Locker          BranchLocker
	Metrics         *metrics.AssignmentMetrics
	Logger          *logger.Logger
	DefaultLocation *time.Location
	DecisionTimeout time.Duration
	Now             func() time.Time
}

// Engine runs the assignment state machine for one lead at a time.
type Engine struct {
	tx        txRunner
	branches  BranchReader
	leads     leads.Repository
	rules     RuleReader
	directory Directory
	ledger    Ledger
	outbox    outboxEmitter
	locker    BranchLocker
	metrics   *metrics.AssignmentMetrics
	logg      *logger.Logger
	location  *time.Location
	timeout   time.Duration
	now       func() time.Time
}

// NewEngine validates params and returns a ready engine.
func NewEngine(p EngineParams) (*Engine, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Branches == nil {
		return nil, fmt.Errorf("branch reader required")
	}
	if p.Leads == nil {
		return nil, fmt.Errorf("leads repository required")
	}
	if p.Rules == nil {
		return nil, fmt.Errorf("rule reader required")
	}
	if p.Directory == nil {
		return nil, fmt.Errorf("employee directory required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	loc := p.DefaultLocation
	if loc == nil {
		loc = time.UTC
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		tx:        p.Tx,
		branches:  p.Branches,
		leads:     p.Leads,
		rules:     p.Rules,
		directory: p.Directory,
		ledger:    p.Ledger,
		outbox:    p.Outbox,
		locker:    p.Locker,
		metrics:   p.Metrics,
		logg:      p.Logger,
		location:  loc,
		timeout:   p.DecisionTimeout,
		now:       now,
	}, nil
}

// choice is a decided but not yet persisted assignment.
type choice struct {
	candidate employees.Candidate
	rule      *models.AssignmentRule
	method    enums.DecisionMethod
	label     string
}

// commit carries everything persist needs to write one assignment.
type commit struct {
	lead      *models.Lead
	choice    choice
	force     bool
	manual    bool
	actorID   *uuid.UUID
	actorRole enums.StaffRole
	at        time.Time
}

// AssignLead picks an owner for the lead. An already assigned lead is
// returned unchanged unless ForceReassign is set.
func (e *Engine) AssignLead(ctx context.Context, input AssignInput) (*Result, error) {
	if input.LeadID == uuid.Nil || input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id and branch id are required")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	started := time.Now()
	ctx = e.logg.WithLeadID(ctx, input.LeadID.String())
	ctx = e.logg.WithBranchID(ctx, input.BranchID.String())

	branch, lead, err := e.load(ctx, input.BranchID, input.LeadID)
	if err != nil {
		e.metrics.ObserveDecision(metrics.OutcomeError, "", time.Since(started))
		return nil, err
	}
	if lead.AssignedTo != nil && !input.ForceReassign {
		result := e.existingAssignment(ctx, lead)
		e.metrics.ObserveDecision(metrics.OutcomeAlreadyAssigned, string(result.Method), time.Since(started))
		return result, nil
	}

	lease := e.lockBranch(ctx, input.BranchID)
	defer e.release(ctx, lease)

	now := e.now().UTC()
	snapshot, err := e.directory.Snapshot(ctx, input.BranchID)
	if err != nil {
		e.metrics.ObserveDecision(metrics.OutcomeError, "", time.Since(started))
		return nil, err
	}

	decided, err := e.decide(ctx, branch, lead, snapshot, now)
	if err != nil {
		if IsNoEligibleCandidate(err) {
			e.recordFailure(ctx, lead, now)
			e.metrics.ObserveDecision(metrics.OutcomeNoCandidate, "", time.Since(started))
			return nil, err
		}
		e.metrics.ObserveDecision(metrics.OutcomeError, "", time.Since(started))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		e.metrics.ObserveDecision(metrics.OutcomeError, string(decided.method), time.Since(started))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assignment decision aborted")
	}

	result, err := e.persist(ctx, commit{
		lead:      lead,
		choice:    *decided,
		force:     input.ForceReassign,
		actorID:   input.ActorUserID,
		actorRole: input.ActorRole,
		at:        now,
	})
	if err != nil {
		e.metrics.ObserveDecision(metrics.OutcomeError, string(decided.method), time.Since(started))
		return nil, err
	}
	outcome := metrics.OutcomeAssigned
	if result.AlreadyAssigned {
		outcome = metrics.OutcomeAlreadyAssigned
	}
	e.metrics.ObserveDecision(outcome, string(result.Method), time.Since(started))
	e.logDecision(ctx, result, outcome)
	return result, nil
}

// Override pins the lead to an explicit active employee regardless of its
// current assignee.
func (e *Engine) Override(ctx context.Context, input OverrideInput) (*Result, error) {
	if input.LeadID == uuid.Nil || input.BranchID == uuid.Nil || input.EmployeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id, branch id and employee id are required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	started := time.Now()
	ctx = e.logg.WithLeadID(ctx, input.LeadID.String())
	ctx = e.logg.WithBranchID(ctx, input.BranchID.String())

	_, lead, err := e.load(ctx, input.BranchID, input.LeadID)
	if err != nil {
		return nil, err
	}
	candidate, err := e.directory.FindActive(ctx, input.BranchID, input.EmployeeID)
	if err != nil {
		return nil, err
	}

	actorID := input.ActorUserID
	result, err := e.persist(ctx, commit{
		lead: lead,
		choice: choice{
			candidate: *candidate,
			method:    enums.DecisionMethodManual,
			label:     RuleLabelManual,
		},
		force:     true,
		manual:    true,
		actorID:   &actorID,
		actorRole: input.ActorRole,
		at:        e.now().UTC(),
	})
	if err != nil {
		e.metrics.ObserveDecision(metrics.OutcomeError, string(enums.DecisionMethodManual), time.Since(started))
		return nil, err
	}
	e.metrics.ObserveDecision(metrics.OutcomeAssigned, string(result.Method), time.Since(started))
	e.logDecision(ctx, result, metrics.OutcomeAssigned)
	return result, nil
}

func (e *Engine) load(ctx context.Context, branchID, leadID uuid.UUID) (*models.Branch, *models.Lead, error) {
	branch, err := e.branches.FindByID(ctx, branchID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "branch not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch")
	}
	lead, err := e.leads.FindByID(ctx, branchID, leadID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lead")
	}
	return branch, lead, nil
}

// decide walks relationship, rules and fallback in that order.
func (e *Engine) decide(ctx context.Context, branch *models.Branch, lead *models.Lead, snapshot *employees.Snapshot, now time.Time) (*choice, error) {
	related, err := e.relationship(ctx, lead, snapshot)
	if err != nil {
		return nil, err
	}
	if related != nil {
		return related, nil
	}

	rules, err := e.rules.ListActive(ctx, lead.BranchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignment rules")
	}

	var (
		lastRR       *uuid.UUID
		lastRRLoaded bool
	)
	lastRoundRobin := func() (*uuid.UUID, error) {
		if lastRRLoaded {
			return lastRR, nil
		}
		last, err := e.ledger.LastRoundRobinAssignee(ctx, lead.BranchID)
		if err != nil {
			return nil, err
		}
		lastRR, lastRRLoaded = last, true
		return lastRR, nil
	}

	local := now.In(e.branchLocation(ctx, branch))
	for i := range rules {
		rule := rules[i]
		if !rule.IsActive {
			continue
		}
		conds, err := DecodeConditions(rule.Conditions)
		if err != nil {
			e.ruleFailed(ctx, &RuleEvaluationError{RuleID: rule.ID, RuleName: rule.Name, Err: err})
			continue
		}
		var last *uuid.UUID
		if rule.Method == enums.AssignmentMethodRoundRobin {
			if last, err = lastRoundRobin(); err != nil {
				return nil, err
			}
		}
		candidate, ok := Resolve(rule, *snapshot, last)
		if !ok {
			continue
		}
		if !Matches(*lead, conds, &candidate, local) {
			continue
		}
		return &choice{
			candidate: candidate,
			rule:      &rule,
			method:    enums.DecisionMethodFor(rule.Method),
			label:     rule.Name,
		}, nil
	}

	if len(snapshot.Candidates) == 0 {
		return nil, errNoEligibleCandidate(lead.BranchID)
	}
	last, err := lastRoundRobin()
	if err != nil {
		return nil, err
	}
	candidate, _ := NextRoundRobin(snapshot.Candidates, last)
	return &choice{
		candidate: candidate,
		method:    enums.DecisionMethodFallbackRoundRobin,
		label:     RuleLabelFallback,
	}, nil
}

// relationship keeps an existing customer with the employee who last served
// them, provided that employee is still an active candidate.
func (e *Engine) relationship(ctx context.Context, lead *models.Lead, snapshot *employees.Snapshot) (*choice, error) {
	if lead.CustomerID == nil {
		return nil, nil
	}
	prior, err := e.leads.PriorAssignee(ctx, lead.BranchID, *lead.CustomerID, lead.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup prior relationship")
	}
	if prior == nil {
		return nil, nil
	}
	candidate, ok := snapshot.Find(*prior)
	if !ok {
		e.logg.Debug(e.logg.WithField(ctx, "prior_employee_id", prior.String()), "prior relationship owner is not an active candidate")
		return nil, nil
	}
	return &choice{
		candidate: candidate,
		method:    enums.DecisionMethodRelationship,
		label:     RuleLabelRelationship,
	}, nil
}

// persist writes the lead and queues lead_assigned in one transaction, then
// appends the ledger entry outside it.
func (e *Engine) persist(ctx context.Context, c commit) (*Result, error) {
	previous := c.lead.AssignedTo
	params := leads.AssignParams{
		BranchID:   c.lead.BranchID,
		LeadID:     c.lead.ID,
		EmployeeID: c.choice.candidate.ID,
		RuleLabel:  c.choice.label,
		AssignedAt: c.at,
	}

	var ruleID *uuid.UUID
	var ruleName *string
	if c.choice.rule != nil {
		id, name := c.choice.rule.ID, c.choice.rule.Name
		ruleID, ruleName = &id, &name
	}

	applied := false
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.leads.WithTx(tx)
		var err error
		if c.force {
			applied, err = repo.ForceAssign(ctx, params)
		} else {
			applied, err = repo.AssignIfUnassigned(ctx, params)
		}
		if err != nil || !applied {
			return err
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLeadAssigned,
			AggregateType: enums.AggregateLead,
			AggregateID:   c.lead.ID,
			Actor:         actorRef(c),
			OccurredAt:    c.at,
			Data: payloads.LeadAssignedEvent{
				LeadID:             c.lead.ID,
				BranchID:           c.lead.BranchID,
				EmployeeID:         c.choice.candidate.ID,
				PreviousEmployeeID: previous,
				RuleID:             ruleID,
				RuleName:           ruleName,
				Method:             string(c.choice.method),
				IsManualOverride:   c.manual,
				AssignedAt:         c.at,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist lead assignment")
	}

	if !applied {
		if c.force {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		}
		// Lost the compare-and-swap to a concurrent decision.
		current, err := e.leads.FindByID(ctx, c.lead.BranchID, c.lead.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload lead after conflict")
		}
		if current.AssignedTo == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "lead assignment did not apply")
		}
		return e.existingAssignment(ctx, current), nil
	}

	e.appendLedger(ctx, ledger.RecordDecisionInput{
		BranchID:           c.lead.BranchID,
		LeadID:             c.lead.ID,
		EmployeeID:         c.choice.candidate.ID,
		RuleID:             ruleID,
		RuleName:           ruleName,
		Method:             c.choice.method,
		IsManualOverride:   c.manual,
		PreviousEmployeeID: previous,
		ActorUserID:        c.actorID,
	})

	at := c.at
	return &Result{
		LeadID:               c.lead.ID,
		AssignedEmployeeID:   c.choice.candidate.ID,
		AssignedEmployeeName: c.choice.candidate.Name,
		RuleID:               ruleID,
		RuleName:             ruleName,
		Method:               c.choice.method,
		AssignedAt:           &at,
	}, nil
}

// appendLedger is best-effort: the assignment is already committed, so a
// failure is logged and counted but never returned.
func (e *Engine) appendLedger(ctx context.Context, input ledger.RecordDecisionInput) {
	if _, err := e.ledger.Append(context.WithoutCancel(ctx), input); err != nil {
		e.metrics.IncAuditWriteFailure()
		e.logg.Error(ctx, "assignment ledger append failed", err)
	}
}

// existingAssignment describes the lead's current owner, enriching it from
// the newest ledger entry when that entry still matches.
func (e *Engine) existingAssignment(ctx context.Context, lead *models.Lead) *Result {
	result := &Result{
		LeadID:             lead.ID,
		AssignedEmployeeID: *lead.AssignedTo,
		AlreadyAssigned:    true,
		AssignedAt:         lead.AssignedAt,
	}
	if employee, err := e.directory.Find(ctx, lead.BranchID, *lead.AssignedTo); err == nil {
		result.AssignedEmployeeName = employee.Name
	}

	history, err := e.ledger.History(ctx, ledger.HistoryParams{BranchID: lead.BranchID, LeadID: lead.ID, Limit: 1})
	if err == nil && len(history.Items) > 0 && history.Items[0].EmployeeID == *lead.AssignedTo {
		latest := history.Items[0]
		result.RuleID = latest.RuleID
		result.RuleName = latest.RuleName
		result.Method = latest.Method
		return result
	}
	if lead.AssignmentRule != nil {
		result.Method = methodForLabel(*lead.AssignmentRule)
		if result.Method == "" {
			label := *lead.AssignmentRule
			result.RuleName = &label
		}
	}
	return result
}

func methodForLabel(label string) enums.DecisionMethod {
	switch label {
	case RuleLabelRelationship:
		return enums.DecisionMethodRelationship
	case RuleLabelFallback:
		return enums.DecisionMethodFallbackRoundRobin
	case RuleLabelManual:
		return enums.DecisionMethodManual
	}
	return ""
}

// recordFailure queues a single lead_assignment_failed event per lead for
// manual triage. Errors are logged only.
func (e *Engine) recordFailure(ctx context.Context, lead *models.Lead, at time.Time) {
	detached := context.WithoutCancel(ctx)
	err := e.tx.WithTx(detached, func(tx *gorm.DB) error {
		return e.outbox.EmitIfNotExists(detached, tx, outbox.DomainEvent{
			EventType:     enums.EventLeadAssignmentFailed,
			AggregateType: enums.AggregateLead,
			AggregateID:   lead.ID,
			OccurredAt:    at,
			Data: payloads.LeadAssignmentFailedEvent{
				LeadID:   lead.ID,
				BranchID: lead.BranchID,
				Reason:   string(pkgerrors.CodeNoEligibleCandidate),
				FailedAt: at,
			},
		})
	})
	if err != nil {
		e.logg.Error(ctx, "queue lead_assignment_failed event", err)
		return
	}
	e.logg.Warn(ctx, "no eligible employee for lead")
}

func (e *Engine) ruleFailed(ctx context.Context, err *RuleEvaluationError) {
	e.metrics.IncRuleEvaluationError()
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"rule_id":   err.RuleID.String(),
		"rule_name": err.RuleName,
	})
	e.logg.Error(logCtx, "skipping rule with invalid conditions", err)
}

func (e *Engine) branchLocation(ctx context.Context, branch *models.Branch) *time.Location {
	if branch == nil || branch.Timezone == "" {
		return e.location
	}
	loc, err := time.LoadLocation(branch.Timezone)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "timezone", branch.Timezone), "invalid branch timezone; using default")
		return e.location
	}
	return loc
}

func (e *Engine) lockBranch(ctx context.Context, branchID uuid.UUID) *redispkg.Lease {
	if e.locker == nil {
		return nil
	}
	lease, err := e.locker.Obtain(ctx, lockScope, branchID.String())
	if err != nil {
		e.metrics.IncLockNotObtained()
		if errors.Is(err, redispkg.ErrLockNotObtained) {
			e.logg.Warn(ctx, "branch assignment lock busy; continuing without it")
		} else {
			e.logg.Error(ctx, "obtain branch assignment lock", err)
		}
		return nil
	}
	return lease
}

func (e *Engine) release(ctx context.Context, lease *redispkg.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "release branch assignment lock")
	}
}

func (e *Engine) logDecision(ctx context.Context, result *Result, outcome string) {
	fields := map[string]any{
		"employee_id": result.AssignedEmployeeID.String(),
		"method":      string(result.Method),
		"outcome":     outcome,
	}
	if result.RuleID != nil {
		fields["rule_id"] = result.RuleID.String()
	}
	e.logg.Info(e.logg.WithFields(ctx, fields), "lead assignment decided")
}

func actorRef(c commit) *outbox.ActorRef {
	if c.actorID == nil {
		return nil
	}
	branchID := c.lead.BranchID
	return &outbox.ActorRef{
		UserID:   *c.actorID,
		BranchID: &branchID,
		Role:     string(c.actorRole),
	}
}
