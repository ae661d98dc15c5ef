package payloads

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	errMissingLead     = errors.New("leadId is required")
	errMissingEmployee = errors.New("employeeId is required")
	errMissingBranch   = errors.New("branchId is required")
)

// LeadCreatedEvent is published by lead ingestion once a normalized lead is stored.
type LeadCreatedEvent struct {
	LeadID   uuid.UUID `json:"leadId"`
	BranchID uuid.UUID `json:"branchId"`
}

func (e LeadCreatedEvent) Validate() error {
	if e.LeadID == uuid.Nil {
		return errMissingLead
	}
	if e.BranchID == uuid.Nil {
		return errMissingBranch
	}
	return nil
}

// LeadAssignedEvent announces a new owner for a lead.
type LeadAssignedEvent struct {
	LeadID             uuid.UUID  `json:"leadId"`
	BranchID           uuid.UUID  `json:"branchId"`
	EmployeeID         uuid.UUID  `json:"employeeId"`
	PreviousEmployeeID *uuid.UUID `json:"previousEmployeeId,omitempty"`
	RuleID             *uuid.UUID `json:"ruleId,omitempty"`
	RuleName           *string    `json:"ruleName,omitempty"`
	Method             string     `json:"method"`
	IsManualOverride   bool       `json:"isManualOverride"`
	AssignedAt         time.Time  `json:"assignedAt"`
}

func (e LeadAssignedEvent) Lead() uuid.UUID { return e.LeadID }

func (e LeadAssignedEvent) Validate() error {
	if e.LeadID == uuid.Nil {
		return errMissingLead
	}
	if e.EmployeeID == uuid.Nil {
		return errMissingEmployee
	}
	return nil
}

// LeadAssignmentFailedEvent flags a lead that needs manual triage.
type LeadAssignmentFailedEvent struct {
	LeadID   uuid.UUID `json:"leadId"`
	BranchID uuid.UUID `json:"branchId"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

func (e LeadAssignmentFailedEvent) Lead() uuid.UUID { return e.LeadID }

func (e LeadAssignmentFailedEvent) Validate() error {
	if e.LeadID == uuid.Nil {
		return errMissingLead
	}
	return nil
}
