package interceptors

import (
	"context"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"saas-core/backend/internal/audit"
	"saas-core/backend/internal/events"
	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/platform/requestctx"
)

// EventPublisher records an event. Implemented by events.Dispatcher.
type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// AuditUnary returns a unary server interceptor that records an rpc.<resource>.<action> event after
// each successful mutating RPC. Inside a tenant transaction the event is enqueued only after commit.
// skipMethods is the set of full method names to not audit (e.g. methods that emit their own events).
// Publish is best-effort: failures are logged and do not fail the RPC. Only authenticated calls are audited.
func AuditUnary(publisher EventPublisher, skipMethods map[string]bool, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil || publisher == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		p, ok := PrincipalFromContext(ctx)
		if !ok {
			return resp, err
		}
		ar := audit.ParseFullMethod(info.FullMethod)
		if !ar.Mutating() {
			return resp, err
		}
		aggregateID := requestctx.RequestIDFromContext(ctx)
		if aggregateID == "" {
			aggregateID = requestctx.NewRequestID()
		}
		payload := map[string]any{
			"method":       info.FullMethod,
			"principal_id": p.ID,
			"client_ip":    ClientIP(ctx),
		}
		if p.IsImpersonated() {
			payload["impersonation_id"] = p.ImpersonationID
		}
		e := events.New(ctx, ar.EventName(), aggregateID, payload).WithTenant(p.TenantID, p.ActorID())
		if pubErr := publisher.Publish(ctx, e); pubErr != nil {
			logging.FromContext(ctx, logger).Warn("audit: failed to record rpc event",
				zap.String("event", e.Name), zap.Error(pubErr))
		}
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// UserAgent returns the caller's user-agent metadata, or "".
func UserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("user-agent"); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
