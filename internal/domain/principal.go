package domain

import (
	"fmt"
	"strings"
)

// Role enumerates caller roles.
type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleTechnician    Role = "TECHNICIAN"
	RoleClient        Role = "CLIENT"
)

// ParseRole normalizes user input into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleAdministrator, RoleTechnician, RoleClient:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Principal is the authenticated caller. TechnicianID is set for technicians.
type Principal struct {
	UserID       int64
	Role         Role
	TechnicianID *int64
}

// IsAdmin reports whether the principal is an administrator.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdministrator
}
