// Package rpc builds gRPC services whose requests and responses are google.protobuf.Struct
// messages, and reads typed fields out of them.
package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "saas-core/backend/internal/platform/errors"
)

// UnaryFunc is a unary method body.
type UnaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Method returns the descriptor for one unary method of service. pick selects the implementation
// from the registered server value.
func Method(service, name string, pick func(srv any) UnaryFunc) grpc.MethodDesc {
	fullMethod := FullMethod(service, name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			fn := pick(srv)
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FullMethod returns the /service/method name interceptors see.
func FullMethod(service, name string) string {
	return "/" + service + "/" + name
}

// Invoke calls a Struct-message method on conn. Used by clients and tests.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, fullMethod string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Reply encodes fields as a response message. time.Time values are written as RFC 3339 strings
// and string slices as lists.
func Reply(fields map[string]any) (*structpb.Struct, error) {
	converted := make(map[string]any, len(fields))
	for k, v := range fields {
		converted[k] = normalize(v)
	}
	out, err := structpb.NewStruct(converted)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "encode response", err)
	}
	return out, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return normalize(*t)
	case []string:
		list := make([]any, len(t))
		for i, s := range t {
			list[i] = s
		}
		return list
	case []map[string]any:
		list := make([]any, len(t))
		for i, m := range t {
			list[i] = normalizeMap(m)
		}
		return list
	case map[string]any:
		return normalizeMap(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// String returns the trimmed string field key, or "" when it is absent or not a string.
func String(req *structpb.Struct, key string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s.StringValue)
}

// RequiredString returns the string field key or an INVALID_ARGUMENT error naming it.
func RequiredString(req *structpb.Struct, key string) (string, error) {
	s := String(req, key)
	if s == "" {
		return "", apperrors.WithMetadata(apperrors.CodeInvalidArgument, key+" is required", map[string]string{"field": key})
	}
	return s, nil
}

// Int32 returns the numeric field key clamped to [min, max], or def when it is absent or zero.
func Int32(req *structpb.Struct, key string, def, min, max int32) int32 {
	v, ok := req.GetFields()[key]
	if !ok {
		return def
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue == 0 {
		return def
	}
	switch {
	case n.NumberValue < float64(min):
		return min
	case n.NumberValue > float64(max):
		return max
	}
	return int32(n.NumberValue)
}
