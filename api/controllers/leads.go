package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/api/responses"
	"github.com/angelmondragon/leadassign-backend/api/validators"
	"github.com/angelmondragon/leadassign-backend/internal/assignment"
	"github.com/angelmondragon/leadassign-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
)

// LeadAssigner is the slice of the assignment engine the lead routes need.
type LeadAssigner interface {
	AssignLead(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
	Override(ctx context.Context, input assignment.OverrideInput) (*assignment.Result, error)
}

type assignLeadRequest struct {
	ForceReassign bool `json:"force_reassign"`
}

type overrideLeadRequest struct {
	EmployeeID string `json:"employee_id" validate:"required,uuid"`
}

// LeadAssign runs the assignment engine for one lead of the caller's branch.
func LeadAssign(engine LeadAssigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment engine unavailable"))
			return
		}
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		leadID, err := uuidParam(r, "leadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assignLeadRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.ForceReassign && !caller.Role.CanManageAssignments() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "force reassign requires a manager or admin"))
			return
		}

		result, err := engine.AssignLead(r.Context(), assignment.AssignInput{
			LeadID:        leadID,
			BranchID:      caller.BranchID,
			ForceReassign: body.ForceReassign,
			ActorUserID:   &caller.UserID,
			ActorRole:     caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LeadOverride pins a lead to the requested employee.
func LeadOverride(engine LeadAssigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment engine unavailable"))
			return
		}
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		leadID, err := uuidParam(r, "leadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body overrideLeadRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		employeeID, err := uuid.Parse(strings.TrimSpace(body.EmployeeID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid employee_id"))
			return
		}

		result, err := engine.Override(r.Context(), assignment.OverrideInput{
			LeadID:      leadID,
			BranchID:    caller.BranchID,
			EmployeeID:  employeeID,
			ActorUserID: caller.UserID,
			ActorRole:   caller.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LeadAssignments pages through a lead's decision history, newest first.
func LeadAssignments(history ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		leadID, err := uuidParam(r, "leadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.ParseCursor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := history.History(r.Context(), ledger.HistoryParams{
			BranchID: caller.BranchID,
			LeadID:   leadID,
			Limit:    limit,
			Cursor:   cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
