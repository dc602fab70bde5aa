package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "saas-core/backend/internal/platform/errors"
	userdomain "saas-core/backend/internal/user/domain"
)

const bearerPrefix = "bearer "

var errMissingAuthorization = apperrors.New(apperrors.CodeUnauthenticated, "missing or invalid authorization")

// Verifier resolves a bearer access token into a principal, checking session, impersonation and
// account state. Implemented by the identity service's Verifier.
type Verifier interface {
	VerifyRequest(ctx context.Context, token string) (*userdomain.Principal, error)
}

// AuthUnary returns a unary server interceptor that verifies the Bearer (access) token from gRPC
// metadata and stores the resulting principal in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. AuthService SignIn and Refresh, health checks). A public method called with a token that
// verifies still gets the principal; one that does not is served anonymously.
func AuthUnary(verifier Verifier, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, errMissingAuthorization
		}

		p, err := verifier.VerifyRequest(ctx, token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, err
		}

		recordPrincipal(ctx, p)
		ctx = WithPrincipal(ctx, p)
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
