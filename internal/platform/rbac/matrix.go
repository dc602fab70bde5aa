// Package rbac decides whether a principal may perform an action on a resource.
//
// The permission matrix is plain data: (resource, action) maps to the global roles that are allowed
// everywhere and the tenant-scoped roles that are allowed within a scope the principal belongs to.
// Anything the table does not name is denied.
package rbac

import userdomain "saas-core/backend/internal/user/domain"

// Resource is a protected kind of object.
type Resource string

// Action is an operation on a resource.
type Action string

const (
	ResourceTenant        Resource = "tenant"
	ResourceWorkspace     Resource = "workspace"
	ResourceMember        Resource = "member"
	ResourceSession       Resource = "session"
	ResourceImpersonation Resource = "impersonation"
	ResourceAuditLog      Resource = "audit_log"
	ResourceBilling       Resource = "billing"
)

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
	ActionRemove Action = "remove"
	ActionRevoke Action = "revoke"
	ActionStart  Action = "start"
	ActionEnd    Action = "end"
)

// Rule lists the roles allowed for one (resource, action).
type Rule struct {
	GlobalRoles       []userdomain.Role
	TenantScopedRoles []userdomain.Role
}

type ruleKey struct {
	resource Resource
	action   Action
}

var (
	global     = []userdomain.Role{userdomain.RoleSuperAdmin}
	ownerOnly  = []userdomain.Role{userdomain.RoleOwner}
	admins     = []userdomain.Role{userdomain.RoleOwner, userdomain.RoleAdmin}
	allMembers = []userdomain.Role{userdomain.RoleOwner, userdomain.RoleAdmin, userdomain.RoleMember}
)

var matrix = map[ruleKey]Rule{
	{ResourceTenant, ActionRead}:   {GlobalRoles: global, TenantScopedRoles: allMembers},
	{ResourceTenant, ActionUpdate}: {GlobalRoles: global, TenantScopedRoles: ownerOnly},
	{ResourceTenant, ActionDelete}: {GlobalRoles: global},

	{ResourceWorkspace, ActionRead}:   {GlobalRoles: global, TenantScopedRoles: allMembers},
	{ResourceWorkspace, ActionCreate}: {GlobalRoles: global, TenantScopedRoles: admins},
	{ResourceWorkspace, ActionUpdate}: {GlobalRoles: global, TenantScopedRoles: admins},
	{ResourceWorkspace, ActionDelete}: {GlobalRoles: global, TenantScopedRoles: ownerOnly},

	{ResourceMember, ActionRead}:   {GlobalRoles: global, TenantScopedRoles: allMembers},
	{ResourceMember, ActionInvite}: {GlobalRoles: global, TenantScopedRoles: admins},
	{ResourceMember, ActionUpdate}: {GlobalRoles: global, TenantScopedRoles: ownerOnly},
	{ResourceMember, ActionRemove}: {GlobalRoles: global, TenantScopedRoles: admins},

	{ResourceSession, ActionRead}:   {GlobalRoles: global, TenantScopedRoles: admins},
	{ResourceSession, ActionRevoke}: {GlobalRoles: global, TenantScopedRoles: admins},

	{ResourceImpersonation, ActionStart}: {GlobalRoles: global},
	{ResourceImpersonation, ActionEnd}:   {GlobalRoles: global},

	{ResourceAuditLog, ActionRead}: {GlobalRoles: global, TenantScopedRoles: admins},

	{ResourceBilling, ActionRead}:   {GlobalRoles: global, TenantScopedRoles: admins},
	{ResourceBilling, ActionUpdate}: {GlobalRoles: global, TenantScopedRoles: ownerOnly},
}

// Lookup returns the rule for (resource, action).
func Lookup(resource Resource, action Action) (Rule, bool) {
	r, ok := matrix[ruleKey{resource, action}]
	return r, ok
}

// Resources returns every resource named by the matrix.
func Resources() []Resource {
	return []Resource{
		ResourceTenant, ResourceWorkspace, ResourceMember, ResourceSession,
		ResourceImpersonation, ResourceAuditLog, ResourceBilling,
	}
}

// Actions returns every action named by the matrix.
func Actions() []Action {
	return []Action{
		ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionInvite,
		ActionRemove, ActionRevoke, ActionStart, ActionEnd,
	}
}

func containsRole(set []userdomain.Role, r userdomain.Role) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}
