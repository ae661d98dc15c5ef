package auth

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/leadassign-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidClaims wraps every failure of the staff-specific claim checks.
var ErrInvalidClaims = errors.New("invalid staff claims")

// AccessTokenPayload is what tooling supplies when minting a token.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	BranchID uuid.UUID
	Role     enums.StaffRole
	JTI      string
}

// AccessTokenClaims is the token staff clients present. Every request is
// scoped to BranchID, and Role gates rule management and overrides.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	BranchID uuid.UUID       `json:"branch_id"`
	Role     enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing.
func (c AccessTokenClaims) Validate() error {
	switch {
	case c.UserID == uuid.Nil:
		return fmt.Errorf("%w: missing user_id", ErrInvalidClaims)
	case c.BranchID == uuid.Nil:
		return fmt.Errorf("%w: missing branch_id", ErrInvalidClaims)
	case !c.Role.IsValid():
		return fmt.Errorf("%w: unknown role %q", ErrInvalidClaims, c.Role)
	case c.Subject != "" && c.Subject != c.UserID.String():
		return fmt.Errorf("%w: subject does not match user_id", ErrInvalidClaims)
	}
	return nil
}
