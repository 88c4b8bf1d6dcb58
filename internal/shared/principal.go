package shared

import "github.com/google/uuid"

// Role enumerates user roles within a company.
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// ValidRole reports whether the value is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Principal identifies the authenticated caller. It is resolved once by the
// auth middleware and passed explicitly into every service call; no ambient
// per-request state exists outside of it.
type Principal struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CompanyID uuid.UUID `json:"company_id"`
}

// IsAdmin reports whether the principal holds the Admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
