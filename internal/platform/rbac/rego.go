package rbac

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"

	userdomain "saas-core/backend/internal/user/domain"
)

const regoQuery = "data.saas.authz.allow"

// regoPolicy evaluates data.matrix, which holds the same rules as the Go table.
const regoPolicy = `package saas.authz

default allow := false

rule := data.matrix[input.resource][input.action]

allow if {
	input.role != ""
	some r in rule.global
	r == input.role
}

allow if {
	input.role != ""
	input.scope_id != ""
	input.scoped_role != ""
	some r in rule.scoped
	r == input.scoped_role
}
`

// RegoEvaluator decides with OPA. The policy is compiled once; the matrix is loaded as OPA data.
type RegoEvaluator struct {
	roles ScopeRoleResolver
	query rego.PreparedEvalQuery
}

// NewRegoEvaluator compiles the authorization policy and loads the permission matrix into its store.
func NewRegoEvaluator(ctx context.Context, roles ScopeRoleResolver) (*RegoEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": regoPolicy})
	if err != nil {
		return nil, fmt.Errorf("rbac: compile policy: %w", err)
	}
	store := inmem.NewFromObject(map[string]interface{}{"matrix": matrixData()})
	q, err := rego.New(
		rego.Query(regoQuery),
		rego.Compiler(compiler),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: prepare policy: %w", err)
	}
	return &RegoEvaluator{roles: roles, query: q}, nil
}

// Can reports whether p may perform action on resource within scope.
func (e *RegoEvaluator) Can(ctx context.Context, p *userdomain.Principal, action Action, resource Resource, scope Scope) (bool, error) {
	if p == nil || p.Role == "" {
		return false, nil
	}
	scoped := userdomain.Role("")
	if scope.TenantScopeID != "" && e.roles != nil {
		r, err := e.roles.GetRole(ctx, p.ID, scope.TenantScopeID)
		if err != nil {
			return false, fmt.Errorf("rbac: resolve role in scope %s: %w", scope.TenantScopeID, err)
		}
		scoped = r
	}
	input := map[string]interface{}{
		"role":        string(p.Role),
		"action":      string(action),
		"resource":    string(resource),
		"scope_id":    scope.TenantScopeID,
		"scoped_role": string(scoped),
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("rbac: eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// Require is the method form of the package-level Require.
func (e *RegoEvaluator) Require(ctx context.Context, p *userdomain.Principal, action Action, resource Resource, scope Scope) error {
	return Require(ctx, e, p, action, resource, scope)
}

func matrixData() map[string]interface{} {
	out := make(map[string]interface{})
	for key, rule := range matrix {
		actions, ok := out[string(key.resource)].(map[string]interface{})
		if !ok {
			actions = make(map[string]interface{})
			out[string(key.resource)] = actions
		}
		actions[string(key.action)] = map[string]interface{}{
			"global": roleList(rule.GlobalRoles),
			"scoped": roleList(rule.TenantScopedRoles),
		}
	}
	return out
}

func roleList(roles []userdomain.Role) []interface{} {
	out := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
