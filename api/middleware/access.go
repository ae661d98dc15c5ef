package middleware

import (
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/api/responses"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
	"github.com/angelmondragon/leadassign-backend/pkg/logger"
)

// RequireRole admits callers holding one of allowed. A request that never
// went through Auth has no role and gets 401 rather than 403.
func RequireRole(logg *logger.Logger, allowed ...enums.StaffRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			switch {
			case role == "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !slices.Contains(allowed, enums.StaffRole(role)):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role "+role+" may not perform this action"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// BranchContext requires a well-formed branch id from the token; every
// lead, rule and employee query is scoped by it.
func BranchContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := uuid.Parse(BranchIDFromContext(r.Context())); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
