package rbac

import (
	"context"
	"fmt"

	apperrors "saas-core/backend/internal/platform/errors"
	userdomain "saas-core/backend/internal/user/domain"
)

// Scope narrows a decision to one tenant-scoped object (a tenant or a workspace). An empty
// TenantScopeID means no scope: only global roles can be allowed.
type Scope struct {
	TenantScopeID string
}

// ScopeRoleResolver returns the role a user holds within a scope, or "" when it holds none.
// The membership repository implements it.
type ScopeRoleResolver interface {
	GetRole(ctx context.Context, userID, scopeID string) (userdomain.Role, error)
}

// Authorizer is implemented by the table and Rego evaluators.
type Authorizer interface {
	Can(ctx context.Context, p *userdomain.Principal, action Action, resource Resource, scope Scope) (bool, error)
}

// Evaluator decides against the Go permission matrix.
type Evaluator struct {
	roles ScopeRoleResolver
}

// NewEvaluator returns an evaluator that resolves scoped roles with roles. roles may be nil, in
// which case scoped rules never allow.
func NewEvaluator(roles ScopeRoleResolver) *Evaluator {
	return &Evaluator{roles: roles}
}

// Can reports whether p may perform action on resource within scope.
func (e *Evaluator) Can(ctx context.Context, p *userdomain.Principal, action Action, resource Resource, scope Scope) (bool, error) {
	if p == nil || p.Role == "" {
		return false, nil
	}
	rule, ok := Lookup(resource, action)
	if !ok {
		return false, nil
	}
	if containsRole(rule.GlobalRoles, p.Role) {
		return true, nil
	}
	if scope.TenantScopeID == "" || len(rule.TenantScopedRoles) == 0 || e.roles == nil {
		return false, nil
	}
	scoped, err := e.roles.GetRole(ctx, p.ID, scope.TenantScopeID)
	if err != nil {
		return false, fmt.Errorf("rbac: resolve role in scope %s: %w", scope.TenantScopeID, err)
	}
	return scoped != "" && containsRole(rule.TenantScopedRoles, scoped), nil
}

// Require returns nil when authz allows the request, a PERMISSION_DENIED error carrying the action,
// resource and scope when it denies, and the lookup error otherwise.
func Require(ctx context.Context, authz Authorizer, p *userdomain.Principal, action Action, resource Resource, scope Scope) error {
	ok, err := authz.Can(ctx, p, action, resource, scope)
	if err != nil {
		return err
	}
	if !ok {
		return Denied(action, resource, scope)
	}
	return nil
}

// Require is the method form of the package-level Require.
func (e *Evaluator) Require(ctx context.Context, p *userdomain.Principal, action Action, resource Resource, scope Scope) error {
	return Require(ctx, e, p, action, resource, scope)
}

// Denied builds the PERMISSION_DENIED error for (action, resource, scope).
func Denied(action Action, resource Resource, scope Scope) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodePermissionDenied, "permission denied", map[string]string{
		"action":   string(action),
		"resource": string(resource),
		"scope":    scope.TenantScopeID,
	})
}
