package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"saas-core/backend/internal/identity/service"
	apperrors "saas-core/backend/internal/platform/errors"
	"saas-core/backend/internal/server/interceptors"
	"saas-core/backend/internal/server/rpc"
	userdomain "saas-core/backend/internal/user/domain"
)

type fakeAuth struct {
	email, password, refresh string
	client                   service.ClientInfo
	loggedOut                *userdomain.Principal
	revokedAll               int64
	err                      error
}

var issuedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func (f *fakeAuth) result() *service.AuthResult {
	return &service.AuthResult{
		AccessToken:      "access",
		AccessExpiresAt:  issuedAt.Add(15 * time.Minute),
		RefreshToken:     "refresh",
		SessionID:        "session-1",
		SessionExpiresAt: issuedAt.Add(168 * time.Hour),
		UserID:           "user-1",
		TenantID:         "tenant-1",
	}
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string, client service.ClientInfo) (*service.AuthResult, error) {
	f.email, f.password, f.client = email, password, client
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeAuth) Refresh(ctx context.Context, token string, client service.ClientInfo) (*service.AuthResult, error) {
	f.refresh, f.client = token, client
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeAuth) Logout(ctx context.Context, p *userdomain.Principal) error {
	f.loggedOut = p
	return f.err
}

func (f *fakeAuth) LogoutAll(ctx context.Context, p *userdomain.Principal) (int64, error) {
	f.loggedOut = p
	return f.revokedAll, f.err
}

type fakeImpersonator struct {
	target, reason, endID string
	actor                 *userdomain.Principal
	ended                 bool
}

func (f *fakeImpersonator) Start(ctx context.Context, actor *userdomain.Principal, targetID, reason string, client service.ClientInfo) (*service.StartResult, error) {
	f.actor, f.target, f.reason = actor, targetID, reason
	return &service.StartResult{
		ImpersonationID: "imp-1",
		TargetID:        targetID,
		TenantID:        "tenant-1",
		SessionID:       "session-2",
		AccessToken:     "imp-access",
		AccessExpiresAt: issuedAt.Add(15 * time.Minute),
		ExpiresAt:       issuedAt.Add(time.Hour),
	}, nil
}

func (f *fakeImpersonator) End(ctx context.Context, actor *userdomain.Principal, id string) (bool, error) {
	f.actor, f.endID = actor, id
	return f.ended, nil
}

func request(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

var admin = &userdomain.Principal{ID: "admin-1", TenantID: "tenant-0", Role: userdomain.RoleSuperAdmin, SessionID: "s-a"}

func TestAuthServer_SignIn(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewAuthServer(auth, &fakeImpersonator{})
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"x-forwarded-for": "203.0.113.7",
		"user-agent":      "cli/1.0",
	}))

	out, err := srv.SignIn(ctx, request(t, map[string]any{"email": "owner@example.com", "password": "pw", "device_id": "laptop"}))
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if auth.email != "owner@example.com" || auth.password != "pw" {
		t.Errorf("credentials = %q/%q", auth.email, auth.password)
	}
	want := service.ClientInfo{DeviceID: "laptop", IPAddress: "203.0.113.7", UserAgent: "cli/1.0"}
	if auth.client != want {
		t.Errorf("client = %+v, want %+v", auth.client, want)
	}
	f := out.GetFields()
	if f["access_token"].GetStringValue() != "access" || f["refresh_token"].GetStringValue() != "refresh" {
		t.Errorf("tokens = %v", out)
	}
	if f["session_expires_at"].GetStringValue() != "2026-03-09T09:00:00Z" {
		t.Errorf("session_expires_at = %v", f["session_expires_at"])
	}
}

func TestAuthServer_SignInErrorPassesThrough(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{err: service.ErrInvalidCredentials}, &fakeImpersonator{})
	_, err := srv.SignIn(context.Background(), request(t, map[string]any{"email": "x@example.com", "password": "bad"}))
	if apperrors.CodeOf(err) != apperrors.CodeInvalidCredentials {
		t.Errorf("err = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestAuthServer_Refresh(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewAuthServer(auth, &fakeImpersonator{})
	if _, err := srv.Refresh(context.Background(), request(t, map[string]any{"refresh_token": "rt-1"})); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if auth.refresh != "rt-1" {
		t.Errorf("refresh token = %q, want rt-1", auth.refresh)
	}
}

func TestAuthServer_AuthenticatedMethodsNeedPrincipal(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{}, &fakeImpersonator{})
	calls := map[string]func(context.Context, *structpb.Struct) (*structpb.Struct, error){
		"Logout":             srv.Logout,
		"LogoutAll":          srv.LogoutAll,
		"StartImpersonation": srv.StartImpersonation,
		"EndImpersonation":   srv.EndImpersonation,
	}
	for name, call := range calls {
		if _, err := call(context.Background(), request(t, nil)); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
			t.Errorf("%s without principal: err = %v, want UNAUTHENTICATED", name, err)
		}
	}
}

func TestAuthServer_LogoutAll(t *testing.T) {
	auth := &fakeAuth{revokedAll: 3}
	srv := NewAuthServer(auth, &fakeImpersonator{})
	ctx := interceptors.WithPrincipal(context.Background(), admin)

	out, err := srv.LogoutAll(ctx, request(t, nil))
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if auth.loggedOut != admin {
		t.Errorf("logged out principal = %+v", auth.loggedOut)
	}
	if got := out.GetFields()["revoked"].GetNumberValue(); got != 3 {
		t.Errorf("revoked = %v, want 3", got)
	}
}

func TestAuthServer_Impersonation(t *testing.T) {
	imp := &fakeImpersonator{ended: true}
	srv := NewAuthServer(&fakeAuth{}, imp)
	ctx := interceptors.WithPrincipal(context.Background(), admin)

	out, err := srv.StartImpersonation(ctx, request(t, map[string]any{"target_id": "user-9", "reason": "ticket 4411 billing"}))
	if err != nil {
		t.Fatalf("StartImpersonation: %v", err)
	}
	if imp.actor != admin || imp.target != "user-9" || imp.reason != "ticket 4411 billing" {
		t.Errorf("start args = %+v", imp)
	}
	f := out.GetFields()
	if f["impersonation_id"].GetStringValue() != "imp-1" || f["access_token"].GetStringValue() != "imp-access" {
		t.Errorf("reply = %v", out)
	}
	if _, ok := f["refresh_token"]; ok {
		t.Error("impersonation must not hand out a refresh token")
	}

	out, err = srv.EndImpersonation(ctx, request(t, map[string]any{"impersonation_id": "imp-1"}))
	if err != nil {
		t.Fatalf("EndImpersonation: %v", err)
	}
	if imp.endID != "imp-1" || !out.GetFields()["ended"].GetBoolValue() {
		t.Errorf("end = %q, reply %v", imp.endID, out)
	}
}

type recordingRegistrar struct {
	desc *grpc.ServiceDesc
	impl any
}

func (r *recordingRegistrar) RegisterService(desc *grpc.ServiceDesc, impl any) {
	r.desc, r.impl = desc, impl
}

func TestRegister_DescribesEveryMethod(t *testing.T) {
	reg := &recordingRegistrar{}
	Register(reg, NewAuthServer(&fakeAuth{}, &fakeImpersonator{}))
	if reg.desc.ServiceName != ServiceName {
		t.Errorf("ServiceName = %q", reg.desc.ServiceName)
	}
	want := []string{SignInMethod, RefreshMethod, LogoutMethod, LogoutAllMethod, StartImpersonationMethod, EndImpersonationMethod}
	if len(reg.desc.Methods) != len(want) {
		t.Fatalf("methods = %d, want %d", len(reg.desc.Methods), len(want))
	}
	for i, m := range reg.desc.Methods {
		if got := rpc.FullMethod(ServiceName, m.MethodName); got != want[i] {
			t.Errorf("method %d = %q, want %q", i, got, want[i])
		}
	}
}
