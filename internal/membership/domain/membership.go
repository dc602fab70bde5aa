package domain

import (
	"time"

	userdomain "saas-core/backend/internal/user/domain"
)

// Membership grants a user a tenant-scoped role within one scope (the tenant itself or a workspace).
// A user may hold different roles in different scopes.
type Membership struct {
	ID        string
	TenantID  string
	UserID    string
	ScopeID   string
	Role      userdomain.Role
	CreatedAt time.Time
}
