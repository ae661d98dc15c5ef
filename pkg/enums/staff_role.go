package enums

import "fmt"

// StaffRole is the branch-level role carried in access tokens.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleManager StaffRole = "manager"
	StaffRoleSales   StaffRole = "sales"
)

var validStaffRoles = []StaffRole{
	StaffRoleAdmin,
	StaffRoleManager,
	StaffRoleSales,
}

// String implements fmt.Stringer.
func (r StaffRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StaffRole.
func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanManageAssignments reports whether the role may override assignments.
func (r StaffRole) CanManageAssignments() bool {
	return r == StaffRoleAdmin || r == StaffRoleManager
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
