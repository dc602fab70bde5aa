package rbac

import (
	"context"
	"errors"
	"testing"

	apperrors "saas-core/backend/internal/platform/errors"
	userdomain "saas-core/backend/internal/user/domain"
)

// mockRoles implements ScopeRoleResolver for tests, keyed by "user:scope".
type mockRoles struct {
	roles map[string]userdomain.Role
	err   error
	calls int
}

func (m *mockRoles) GetRole(_ context.Context, userID, scopeID string) (userdomain.Role, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.roles[userID+":"+scopeID], nil
}

func principal(id string, role userdomain.Role) *userdomain.Principal {
	return &userdomain.Principal{ID: id, TenantID: "tenant-1", Role: role, Status: userdomain.UserStatusActive}
}

func TestEvaluator_Can(t *testing.T) {
	roles := &mockRoles{roles: map[string]userdomain.Role{
		"owner-1:ws-1":  userdomain.RoleOwner,
		"admin-1:ws-1":  userdomain.RoleAdmin,
		"member-1:ws-1": userdomain.RoleMember,
		// account-level member who administers one workspace
		"member-2:ws-2": userdomain.RoleAdmin,
	}}
	e := NewEvaluator(roles)

	tests := []struct {
		name     string
		p        *userdomain.Principal
		action   Action
		resource Resource
		scope    Scope
		want     bool
	}{
		{"nil principal", nil, ActionRead, ResourceWorkspace, Scope{"ws-1"}, false},
		{"no role", principal("u", ""), ActionRead, ResourceWorkspace, Scope{"ws-1"}, false},
		{"unknown rule", principal("sa", userdomain.RoleSuperAdmin), Action("export"), ResourceWorkspace, Scope{}, false},
		{"super admin without scope", principal("sa", userdomain.RoleSuperAdmin), ActionDelete, ResourceTenant, Scope{}, true},
		{"super admin other scope", principal("sa", userdomain.RoleSuperAdmin), ActionRead, ResourceAuditLog, Scope{"ws-9"}, true},
		{"owner without scope", principal("owner-1", userdomain.RoleOwner), ActionRead, ResourceWorkspace, Scope{}, false},
		{"owner in scope", principal("owner-1", userdomain.RoleOwner), ActionDelete, ResourceWorkspace, Scope{"ws-1"}, true},
		{"admin cannot delete workspace", principal("admin-1", userdomain.RoleAdmin), ActionDelete, ResourceWorkspace, Scope{"ws-1"}, false},
		{"member reads workspace", principal("member-1", userdomain.RoleMember), ActionRead, ResourceWorkspace, Scope{"ws-1"}, true},
		{"member cannot read audit", principal("member-1", userdomain.RoleMember), ActionRead, ResourceAuditLog, Scope{"ws-1"}, false},
		{"not a member of scope", principal("member-1", userdomain.RoleMember), ActionRead, ResourceWorkspace, Scope{"ws-2"}, false},
		{"scoped role differs from account role", principal("member-2", userdomain.RoleMember), ActionCreate, ResourceWorkspace, Scope{"ws-2"}, true},
		{"owner cannot impersonate", principal("owner-1", userdomain.RoleOwner), ActionStart, ResourceImpersonation, Scope{"ws-1"}, false},
		{"tenant delete has no scoped roles", principal("owner-1", userdomain.RoleOwner), ActionDelete, ResourceTenant, Scope{"ws-1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Can(context.Background(), tt.p, tt.action, tt.resource, tt.scope)
			if err != nil {
				t.Fatalf("Can: %v", err)
			}
			if got != tt.want {
				t.Errorf("Can = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluator_GlobalRoleSkipsMembershipLookup(t *testing.T) {
	roles := &mockRoles{}
	e := NewEvaluator(roles)
	ok, err := e.Can(context.Background(), principal("sa", userdomain.RoleSuperAdmin), ActionRead, ResourceWorkspace, Scope{"ws-1"})
	if err != nil || !ok {
		t.Fatalf("Can = %v, %v; want true, nil", ok, err)
	}
	if roles.calls != 0 {
		t.Errorf("membership lookups = %d, want 0", roles.calls)
	}
}

func TestEvaluator_ScopedRoleWithoutScopeIdIsDenied(t *testing.T) {
	// holds owner in ws-1 but the request names no scope
	roles := &mockRoles{roles: map[string]userdomain.Role{"owner-1:ws-1": userdomain.RoleOwner}}
	e := NewEvaluator(roles)
	for _, res := range Resources() {
		for _, act := range Actions() {
			ok, err := e.Can(context.Background(), principal("owner-1", userdomain.RoleOwner), act, res, Scope{})
			if err != nil {
				t.Fatalf("Can: %v", err)
			}
			if ok {
				t.Errorf("Can(%s, %s) without scope = true, want false", act, res)
			}
		}
	}
	if roles.calls != 0 {
		t.Errorf("membership lookups = %d, want 0", roles.calls)
	}
}

func TestEvaluator_ResolverError(t *testing.T) {
	boom := errors.New("db down")
	e := NewEvaluator(&mockRoles{err: boom})
	_, err := e.Can(context.Background(), principal("admin-1", userdomain.RoleAdmin), ActionRead, ResourceWorkspace, Scope{"ws-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("Can error = %v, want %v", err, boom)
	}
	if err := e.Require(context.Background(), principal("admin-1", userdomain.RoleAdmin), ActionRead, ResourceWorkspace, Scope{"ws-1"}); apperrors.CodeOf(err) == apperrors.CodePermissionDenied {
		t.Fatal("lookup failure must not be reported as a denial")
	}
}

func TestRequire_DeniedCarriesMetadata(t *testing.T) {
	e := NewEvaluator(&mockRoles{})
	err := e.Require(context.Background(), principal("member-1", userdomain.RoleMember), ActionRevoke, ResourceSession, Scope{"ws-1"})
	ae, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("Require error = %v, want *apperrors.Error", err)
	}
	if ae.Code != apperrors.CodePermissionDenied {
		t.Errorf("code = %s, want %s", ae.Code, apperrors.CodePermissionDenied)
	}
	want := map[string]string{"action": "revoke", "resource": "session", "scope": "ws-1"}
	for k, v := range want {
		if ae.Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, ae.Metadata[k], v)
		}
	}
	if err := e.Require(context.Background(), principal("sa", userdomain.RoleSuperAdmin), ActionRevoke, ResourceSession, Scope{}); err != nil {
		t.Errorf("Require for super admin: %v", err)
	}
}

func TestMatrix_EveryRuleIsWellFormed(t *testing.T) {
	for key, rule := range matrix {
		if len(rule.GlobalRoles) == 0 && len(rule.TenantScopedRoles) == 0 {
			t.Errorf("%s/%s allows nobody", key.resource, key.action)
		}
		for _, r := range rule.GlobalRoles {
			if !r.IsGlobal() {
				t.Errorf("%s/%s lists %s as global", key.resource, key.action, r)
			}
		}
		for _, r := range rule.TenantScopedRoles {
			if !r.TenantScoped() {
				t.Errorf("%s/%s lists %s as tenant scoped", key.resource, key.action, r)
			}
		}
	}
}
