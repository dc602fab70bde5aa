package interceptors

import (
	"context"

	"google.golang.org/grpc"
)

// TenantRunner runs a handler inside one tenant-bound transaction. Implemented by tenancy.Runner.
type TenantRunner interface {
	Enabled() bool
	Run(ctx context.Context, tenantID string, adminBypass bool, fn func(ctx context.Context) error) error
}

// TenantUnary returns a unary server interceptor that runs every RPC not in exemptMethods inside a
// transaction bound to the principal's tenant (or the admin bypass for global administrators that
// are not impersonating). It must run after AuthUnary. A non-exempt call without a principal is
// rejected rather than served unbound. When the runner is disabled every call is served unbound.
func TenantUnary(runner TenantRunner, exemptMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if runner == nil || !runner.Enabled() || exemptMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		p, ok := PrincipalFromContext(ctx)
		if !ok {
			return nil, errMissingAuthorization
		}

		var resp interface{}
		err := runner.Run(ctx, p.TenantID, p.AdminBypass(), func(txCtx context.Context) error {
			var herr error
			resp, herr = handler(txCtx, req)
			return herr
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}
