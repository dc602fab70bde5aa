package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"saas-core/backend/internal/platform/requestctx"
)

const maxRequestIDLength = 128

// CorrelationUnary returns a unary server interceptor that binds the request id to the context.
// The caller's x-request-id is reused when it is printable and short enough; otherwise a new id is
// generated. The id is echoed back in the response header.
func CorrelationUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := incomingRequestID(ctx)
		if id == "" {
			id = requestctx.NewRequestID()
		}
		ctx = requestctx.WithRequestID(ctx, id)
		// fails only outside a real server stream (unit tests)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestctx.MetadataKey, id))
		return handler(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(requestctx.MetadataKey)
	if len(vals) == 0 {
		return ""
	}
	id := strings.TrimSpace(vals[0])
	if len(id) > maxRequestIDLength {
		return ""
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return id
}
