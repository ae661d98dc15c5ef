package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/leadassign-backend/api/middleware"
	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
)

type actor struct {
	UserID   uuid.UUID
	BranchID uuid.UUID
	Role     enums.StaffRole
}

// actorFromRequest reads the verified caller placed in the context by the auth middleware.
func actorFromRequest(r *http.Request) (actor, error) {
	ctx := r.Context()
	branchRaw := middleware.BranchIDFromContext(ctx)
	if branchRaw == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
	}
	branchID, err := uuid.Parse(branchRaw)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid branch id")
	}
	userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseStaffRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid role")
	}
	return actor{UserID: userID, BranchID: branchID, Role: role}, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
