package interceptors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/platform/requestctx"
	userdomain "saas-core/backend/internal/user/domain"
)

func errHandler(err error) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, err
	}
}

func TestLoggingUnary_Success(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	interceptor := LoggingUnary(zap.New(core))
	ctx := requestctx.WithRequestID(context.Background(), "req-1")

	resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: revokeMethod}, okHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != revokeMethod || fields["request_id"] != "req-1" || fields["code"] != "OK" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLoggingUnary_DomainErrorKeepsCodeAndReason(t *testing.T) {
	interceptor := LoggingUnary(nil)

	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: revokeMethod},
		errHandler(fmt.Errorf("wrapped: %w", apperrors.New(apperrors.CodeSessionRevoked, "session revoked"))))
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", st.Code(), codes.Unauthenticated)
	}
	if got := apperrors.ReasonFromStatus(err); got != string(apperrors.CodeSessionRevoked) {
		t.Errorf("reason = %q, want %q", got, apperrors.CodeSessionRevoked)
	}
}

func TestLoggingUnary_LockoutCarriesRetryInfo(t *testing.T) {
	interceptor := LoggingUnary(nil)

	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: revokeMethod},
		errHandler(apperrors.Locked(15*time.Minute)))
	st, _ := status.FromError(err)
	if st.Code() != codes.ResourceExhausted {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.ResourceExhausted)
	}
	var retry *errdetails.RetryInfo
	for _, d := range st.Details() {
		if r, ok := d.(*errdetails.RetryInfo); ok {
			retry = r
		}
	}
	if retry == nil || retry.GetRetryDelay().AsDuration() != 15*time.Minute {
		t.Errorf("retry info = %v, want 15m", retry)
	}
}

func TestLoggingUnary_InternalErrorIsMaskedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	interceptor := LoggingUnary(zap.New(core))
	ctx := requestctx.WithRequestID(context.Background(), "req-2")
	p := &userdomain.Principal{ID: "user-1", TenantID: "tenant-1"}

	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: revokeMethod},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			recordPrincipal(ctx, p)
			return nil, errors.New("pq: connection refused to 10.0.0.5")
		})
	st, _ := status.FromError(err)
	if st.Code() != codes.Internal || st.Message() != "internal error" {
		t.Errorf("status = %v %q, want Internal \"internal error\"", st.Code(), st.Message())
	}

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(entries) != 1 {
		t.Fatalf("error entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-2" || fields["method"] != revokeMethod || fields["principal_id"] != "user-1" {
		t.Errorf("fields = %v, want request id, method and principal", fields)
	}
	if fields["error"] != "pq: connection refused to 10.0.0.5" {
		t.Errorf("error field = %v, want the cause", fields["error"])
	}
}

func TestToStatus(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want codes.Code
		msg  string
	}{
		{"internal domain error", apperrors.Wrap(apperrors.CodeInternal, "record impersonation start", errors.New("queue")), codes.Internal, "internal error"},
		{"plain error", errors.New("boom"), codes.Internal, "internal error"},
		{"cancelled", context.Canceled, codes.Canceled, "request cancelled"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), codes.DeadlineExceeded, "deadline exceeded"},
		{"existing status", status.Error(codes.InvalidArgument, "bad input"), codes.InvalidArgument, "bad input"},
		{"permission denied", apperrors.New(apperrors.CodePermissionDenied, "permission denied"), codes.PermissionDenied, "permission denied"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st, _ := status.FromError(toStatus(tc.err))
			if st.Code() != tc.want || st.Message() != tc.msg {
				t.Errorf("status = %v %q, want %v %q", st.Code(), st.Message(), tc.want, tc.msg)
			}
		})
	}
}
