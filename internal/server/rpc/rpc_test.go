package rpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "saas-core/backend/internal/platform/errors"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestMethod_DecodesAndRunsThroughInterceptor(t *testing.T) {
	type server struct{ greet UnaryFunc }
	srv := &server{greet: func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
		return Reply(map[string]any{"hello": String(req, "name")})
	}}
	desc := Method("saas.test.v1.GreeterService", "Greet", func(s any) UnaryFunc { return s.(*server).greet })
	if desc.MethodName != "Greet" {
		t.Errorf("MethodName = %q, want Greet", desc.MethodName)
	}

	req := mustStruct(t, map[string]any{"name": " ada "})
	dec := func(m any) error {
		proto.Merge(m.(*structpb.Struct), req)
		return nil
	}
	var sawMethod string
	interceptor := func(ctx context.Context, r any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		sawMethod = info.FullMethod
		return handler(ctx, r)
	}

	out, err := desc.Handler(srv, context.Background(), dec, interceptor)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if sawMethod != "/saas.test.v1.GreeterService/Greet" {
		t.Errorf("FullMethod = %q", sawMethod)
	}
	if got := String(out.(*structpb.Struct), "hello"); got != "ada" {
		t.Errorf("hello = %q, want ada", got)
	}

	out, err = desc.Handler(srv, context.Background(), dec, nil)
	if err != nil || String(out.(*structpb.Struct), "hello") != "ada" {
		t.Errorf("Handler without interceptor = %v, %v", out, err)
	}
}

func TestReply_NormalizesValues(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var nilTime *time.Time
	out, err := Reply(map[string]any{
		"at":     at,
		"never":  time.Time{},
		"maybe":  nilTime,
		"ids":    []string{"a", "b"},
		"items":  []map[string]any{{"at": at}},
		"count":  int32(3),
		"active": true,
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	f := out.GetFields()
	if got := f["at"].GetStringValue(); got != "2026-03-02T09:00:00Z" {
		t.Errorf("at = %q", got)
	}
	if _, ok := f["never"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Errorf("zero time = %v, want null", f["never"])
	}
	if _, ok := f["maybe"].GetKind().(*structpb.Value_NullValue); !ok {
		t.Errorf("nil time = %v, want null", f["maybe"])
	}
	if got := len(f["ids"].GetListValue().GetValues()); got != 2 {
		t.Errorf("ids len = %d, want 2", got)
	}
	item := f["items"].GetListValue().GetValues()[0].GetStructValue()
	if item.GetFields()["at"].GetStringValue() != "2026-03-02T09:00:00Z" {
		t.Errorf("nested time = %v", item)
	}
	if f["count"].GetNumberValue() != 3 || !f["active"].GetBoolValue() {
		t.Errorf("count/active = %v/%v", f["count"], f["active"])
	}
}

func TestRequiredString(t *testing.T) {
	req := mustStruct(t, map[string]any{"email": "a@example.com", "blank": "  ", "num": 4})
	if got, err := RequiredString(req, "email"); err != nil || got != "a@example.com" {
		t.Errorf("email = %q, %v", got, err)
	}
	for _, key := range []string{"blank", "num", "absent"} {
		_, err := RequiredString(req, key)
		e, ok := apperrors.As(err)
		if !ok || e.Code != apperrors.CodeInvalidArgument || e.Metadata["field"] != key {
			t.Errorf("RequiredString(%q) err = %v, want INVALID_ARGUMENT for the field", key, err)
		}
	}
}

func TestInt32(t *testing.T) {
	req := mustStruct(t, map[string]any{"limit": 500, "small": -3, "zero": 0, "ok": 20, "text": "7"})
	testCases := []struct {
		key  string
		want int32
	}{
		{"limit", 100},
		{"small", 1},
		{"zero", 50},
		{"ok", 20},
		{"text", 50},
		{"absent", 50},
	}
	for _, tc := range testCases {
		if got := Int32(req, tc.key, 50, 1, 100); got != tc.want {
			t.Errorf("Int32(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}
}
