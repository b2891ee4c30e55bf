package shared

import "strings"

// Role is the closed set of roles a user may hold.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleSystemAdministrator
	RoleCompanyAdministrator
	RoleRegularUser
)

// Stored role names.
const (
	RoleNameSystemAdministrator  = "Systems Administrator"
	RoleNameCompanyAdministrator = "Company Administrator"
	RoleNameRegularUser          = "Regular User"
)

// ParseRole maps a stored role name onto Role. Unknown names yield RoleUnknown.
func ParseRole(name string) Role {
	switch strings.TrimSpace(name) {
	case RoleNameSystemAdministrator:
		return RoleSystemAdministrator
	case RoleNameCompanyAdministrator:
		return RoleCompanyAdministrator
	case RoleNameRegularUser:
		return RoleRegularUser
	default:
		return RoleUnknown
	}
}

// Name returns the stored role name.
func (r Role) Name() string {
	switch r {
	case RoleSystemAdministrator:
		return RoleNameSystemAdministrator
	case RoleCompanyAdministrator:
		return RoleNameCompanyAdministrator
	case RoleRegularUser:
		return RoleNameRegularUser
	default:
		return ""
	}
}

func (r Role) String() string {
	if name := r.Name(); name != "" {
		return name
	}
	return "unknown"
}

// IsSystemAdmin reports whether the role grants unrestricted access.
func (r Role) IsSystemAdmin() bool { return r == RoleSystemAdministrator }

// IsCompanyAdmin reports whether the role administers its companies.
func (r Role) IsCompanyAdmin() bool { return r == RoleCompanyAdministrator }

// RoleNames lists all stored role names in seed order.
func RoleNames() []string {
	return []string{
		RoleNameSystemAdministrator,
		RoleNameCompanyAdministrator,
		RoleNameRegularUser,
	}
}
