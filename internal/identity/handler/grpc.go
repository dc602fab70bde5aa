package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"saas-core/backend/internal/identity/service"
	"saas-core/backend/internal/server/interceptors"
	"saas-core/backend/internal/server/rpc"
	userdomain "saas-core/backend/internal/user/domain"
)

// ServiceName is the gRPC service implemented by AuthServer.
const ServiceName = "saas.auth.v1.AuthService"

// Full method names, for allow-lists.
const (
	SignInMethod             = "/" + ServiceName + "/SignIn"
	RefreshMethod            = "/" + ServiceName + "/Refresh"
	LogoutMethod             = "/" + ServiceName + "/Logout"
	LogoutAllMethod          = "/" + ServiceName + "/LogoutAll"
	StartImpersonationMethod = "/" + ServiceName + "/StartImpersonation"
	EndImpersonationMethod   = "/" + ServiceName + "/EndImpersonation"
)

// Authenticator is the sign-in and session lifecycle used by AuthServer.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string, client service.ClientInfo) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, client service.ClientInfo) (*service.AuthResult, error)
	Logout(ctx context.Context, p *userdomain.Principal) error
	LogoutAll(ctx context.Context, p *userdomain.Principal) (int64, error)
}

// Impersonator starts and ends impersonation.
type Impersonator interface {
	Start(ctx context.Context, actor *userdomain.Principal, targetID, reason string, client service.ClientInfo) (*service.StartResult, error)
	End(ctx context.Context, actor *userdomain.Principal, impersonationID string) (bool, error)
}

// AuthServiceServer is the server API of saas.auth.v1.AuthService.
type AuthServiceServer interface {
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogoutAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartImpersonation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndImpersonation(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func authMethod(name string, pick func(AuthServiceServer) rpc.UnaryFunc) grpc.MethodDesc {
	return rpc.Method(ServiceName, name, func(srv any) rpc.UnaryFunc { return pick(srv.(AuthServiceServer)) })
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		authMethod("SignIn", func(s AuthServiceServer) rpc.UnaryFunc { return s.SignIn }),
		authMethod("Refresh", func(s AuthServiceServer) rpc.UnaryFunc { return s.Refresh }),
		authMethod("Logout", func(s AuthServiceServer) rpc.UnaryFunc { return s.Logout }),
		authMethod("LogoutAll", func(s AuthServiceServer) rpc.UnaryFunc { return s.LogoutAll }),
		authMethod("StartImpersonation", func(s AuthServiceServer) rpc.UnaryFunc { return s.StartImpersonation }),
		authMethod("EndImpersonation", func(s AuthServiceServer) rpc.UnaryFunc { return s.EndImpersonation }),
	},
	Streams: []grpc.StreamDesc{},
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// AuthServer implements AuthService for sign-in, token refresh, logout and impersonation.
type AuthServer struct {
	auth          Authenticator
	impersonation Impersonator
}

// NewAuthServer returns a new Auth gRPC server.
func NewAuthServer(auth Authenticator, impersonation Impersonator) *AuthServer {
	return &AuthServer{auth: auth, impersonation: impersonation}
}

func clientInfo(ctx context.Context, req *structpb.Struct) service.ClientInfo {
	return service.ClientInfo{
		DeviceID:  rpc.String(req, "device_id"),
		IPAddress: interceptors.ClientIP(ctx),
		UserAgent: interceptors.UserAgent(ctx),
	}
}

func principal(ctx context.Context) (*userdomain.Principal, error) {
	p, ok := interceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, service.ErrUnauthenticated
	}
	return p, nil
}

func authReply(r *service.AuthResult) (*structpb.Struct, error) {
	return rpc.Reply(map[string]any{
		"access_token":       r.AccessToken,
		"access_expires_at":  r.AccessExpiresAt,
		"refresh_token":      r.RefreshToken,
		"session_id":         r.SessionID,
		"session_expires_at": r.SessionExpiresAt,
		"user_id":            r.UserID,
		"tenant_id":          r.TenantID,
	})
}

// SignIn exchanges email and password for an access and refresh token pair.
func (s *AuthServer) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.auth.SignIn(ctx, rpc.String(req, "email"), rpc.String(req, "password"), clientInfo(ctx, req))
	if err != nil {
		return nil, err
	}
	return authReply(res)
}

// Refresh rotates a refresh token.
func (s *AuthServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.auth.Refresh(ctx, rpc.String(req, "refresh_token"), clientInfo(ctx, req))
	if err != nil {
		return nil, err
	}
	return authReply(res)
}

// Logout revokes the caller's session.
func (s *AuthServer) Logout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, p); err != nil {
		return nil, err
	}
	return rpc.Reply(nil)
}

// LogoutAll revokes every session of the caller.
func (s *AuthServer) LogoutAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.auth.LogoutAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return rpc.Reply(map[string]any{"revoked": n})
}

// StartImpersonation lets a global administrator act as target_id for a bounded time.
func (s *AuthServer) StartImpersonation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.impersonation.Start(ctx, p, rpc.String(req, "target_id"), rpc.String(req, "reason"), clientInfo(ctx, req))
	if err != nil {
		return nil, err
	}
	return rpc.Reply(map[string]any{
		"impersonation_id":  res.ImpersonationID,
		"target_id":         res.TargetID,
		"tenant_id":         res.TenantID,
		"session_id":        res.SessionID,
		"access_token":      res.AccessToken,
		"access_expires_at": res.AccessExpiresAt,
		"expires_at":        res.ExpiresAt,
	})
}

// EndImpersonation ends impersonation_id, or the impersonation the caller's token belongs to.
func (s *AuthServer) EndImpersonation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	ended, err := s.impersonation.End(ctx, p, rpc.String(req, "impersonation_id"))
	if err != nil {
		return nil, err
	}
	return rpc.Reply(map[string]any{"ended": ended})
}
