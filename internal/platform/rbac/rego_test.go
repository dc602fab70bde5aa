package rbac

import (
	"context"
	"testing"

	userdomain "saas-core/backend/internal/user/domain"
)

func TestRegoEvaluator_MatchesTable(t *testing.T) {
	ctx := context.Background()
	roles := &mockRoles{roles: map[string]userdomain.Role{}}
	// every account role paired with every scoped role (or none) in ws-1
	scopedRoles := append([]userdomain.Role{""}, userdomain.AllRoles...)
	accountRoles := append([]userdomain.Role{""}, userdomain.AllRoles...)

	table := NewEvaluator(roles)
	regoEval, err := NewRegoEvaluator(ctx, roles)
	if err != nil {
		t.Fatalf("NewRegoEvaluator: %v", err)
	}

	resources := append(Resources(), Resource("plan"))
	actions := append(Actions(), Action("export"))
	scopes := []Scope{{}, {TenantScopeID: "ws-1"}}

	checked := 0
	for _, account := range accountRoles {
		for _, scoped := range scopedRoles {
			id := "u-" + string(account) + "-" + string(scoped)
			if scoped != "" {
				roles.roles[id+":ws-1"] = scoped
			}
			p := principal(id, account)
			for _, res := range resources {
				for _, act := range actions {
					for _, sc := range scopes {
						want, err := table.Can(ctx, p, act, res, sc)
						if err != nil {
							t.Fatalf("table.Can: %v", err)
						}
						got, err := regoEval.Can(ctx, p, act, res, sc)
						if err != nil {
							t.Fatalf("rego.Can: %v", err)
						}
						if got != want {
							t.Errorf("role=%q scoped=%q %s/%s scope=%q: rego=%v table=%v",
								account, scoped, res, act, sc.TenantScopeID, got, want)
						}
						checked++
					}
				}
			}
		}
	}
	if checked == 0 {
		t.Fatal("no combinations checked")
	}
}

func TestRegoEvaluator_Require(t *testing.T) {
	ctx := context.Background()
	e, err := NewRegoEvaluator(ctx, &mockRoles{})
	if err != nil {
		t.Fatalf("NewRegoEvaluator: %v", err)
	}
	if err := e.Require(ctx, principal("sa", userdomain.RoleSuperAdmin), ActionStart, ResourceImpersonation, Scope{}); err != nil {
		t.Errorf("super admin start impersonation: %v", err)
	}
	if err := e.Require(ctx, principal("o", userdomain.RoleOwner), ActionStart, ResourceImpersonation, Scope{"ws-1"}); err == nil {
		t.Error("owner must not start impersonation")
	}
}
