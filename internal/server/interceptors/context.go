package interceptors

import (
	"context"

	"go.uber.org/zap"

	userdomain "saas-core/backend/internal/user/domain"
)

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// WithPrincipal returns a context carrying the verified principal of the request.
// Handlers and services read it via PrincipalFromContext.
func WithPrincipal(ctx context.Context, p *userdomain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by AuthUnary and true if set; otherwise nil, false.
func PrincipalFromContext(ctx context.Context) (*userdomain.Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey).(*userdomain.Principal)
	return p, ok && p != nil
}

// PrincipalLogFields adds principal_id (and impersonator_id while impersonating) to request logs.
// Pass to logging.FromContext.
func PrincipalLogFields(ctx context.Context) []zap.Field {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil
	}
	fields := []zap.Field{zap.String("principal_id", p.ID)}
	if p.IsImpersonated() {
		fields = append(fields, zap.String("impersonator_id", p.ImpersonatorID))
	}
	return fields
}
