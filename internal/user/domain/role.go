package domain

// Role is the account-level role of a user, or the role a user holds within one scope.
// RoleSuperAdmin is the single cross-tenant role; the others are tenant scoped and ordered
// owner > admin > member.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleMember     Role = "member"
)

// AllRoles lists every role, global first.
var AllRoles = []Role{RoleSuperAdmin, RoleOwner, RoleAdmin, RoleMember}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// IsGlobal reports whether r applies across tenants.
func (r Role) IsGlobal() bool { return r == RoleSuperAdmin }

// TenantScoped reports whether r may be held within a scope (membership).
func (r Role) TenantScoped() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Rank orders tenant-scoped roles by privilege; higher is more privileged. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 4
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// AtLeast reports whether r is at least as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() > 0 && r.Rank() >= other.Rank()
}
