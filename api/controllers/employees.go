package controllers

import (
	"net/http"

	"github.com/angelmondragon/leadassign-backend/api/responses"
	"github.com/angelmondragon/leadassign-backend/internal/employees"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
)

// EmployeesWorkload returns the active employees of the caller's branch with
// their open-lead counts.
func EmployeesWorkload(svc employees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "employees service unavailable"))
			return
		}
		caller, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Snapshot(r.Context(), caller.BranchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
