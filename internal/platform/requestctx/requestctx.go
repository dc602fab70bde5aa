// Package requestctx carries the per-request correlation id through context.Context.
//
// The id is bound once at the top of request handling and travels with the context into every
// goroutine the handler spawns. It is never stored in package-level state, so concurrent requests
// cannot observe each other's id.
package requestctx

import (
	"context"

	"github.com/google/uuid"
)

// MetadataKey is the incoming/outgoing gRPC metadata key for the correlation id.
const MetadataKey = "x-request-id"

type requestIDContextKey struct{}

// WithRequestID stores a request id in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request id stored in context, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}

// NewRequestID returns a fresh random request id.
func NewRequestID() string {
	return uuid.NewString()
}

// Detach returns a context for fire-and-forget work started by a request. It keeps every value of
// ctx (request id, principal, logger fields) but is not cancelled when the request finishes.
func Detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
