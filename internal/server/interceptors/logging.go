package interceptors

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/logging"
	userdomain "saas-core/backend/internal/user/domain"
)

// callState is shared between LoggingUnary and the interceptors it wraps, so the final log line can
// name the principal that AuthUnary resolved further down the chain.
type callState struct {
	principal *userdomain.Principal
}

var callStateKey = contextKey{"call_state"}

func recordPrincipal(ctx context.Context, p *userdomain.Principal) {
	if st, ok := ctx.Value(callStateKey).(*callState); ok {
		st.principal = p
	}
}

// LoggingUnary returns a unary server interceptor that writes one log line per RPC and converts the
// handler's error into a gRPC status. Domain errors keep their code and details. Any other error is
// reported to the caller as codes.Internal "internal error" and logged with its cause.
// Must run inside CorrelationUnary so the request id is available.
func LoggingUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		st := &callState{}
		resp, err := handler(context.WithValue(ctx, callStateKey, st), req)

		log := logging.FromContext(ctx, logger).With(
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		)
		if st.principal != nil {
			log = log.With(zap.String("principal_id", st.principal.ID), zap.String("tenant_id", st.principal.TenantID))
			if st.principal.IsImpersonated() {
				log = log.With(zap.String("impersonator_id", st.principal.ImpersonatorID))
			}
		}

		if err == nil {
			log.Info("rpc", zap.String("code", codes.OK.String()))
			return resp, nil
		}
		out := toStatus(err)
		code := status.Code(out)
		if code == codes.Internal || code == codes.Unknown {
			log.Error("rpc failed", zap.String("code", code.String()), zap.Error(err))
		} else {
			log.Info("rpc", zap.String("code", code.String()), zap.String("reason", string(apperrors.CodeOf(err))))
		}
		return nil, out
	}
}

// toStatus maps err onto the status returned to the caller.
func toStatus(err error) error {
	if e, ok := apperrors.As(err); ok {
		if e.Code == apperrors.CodeInternal || e.Code == apperrors.CodeUnknown {
			return status.Error(codes.Internal, "internal error")
		}
		return e.ToGRPCStatus()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return err
	}
	return status.Error(codes.Internal, "internal error")
}
