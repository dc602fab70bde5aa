// Package server assembles the gRPC server: services, the interceptor chain and the method
// allow-lists that decide which calls skip authentication and tenant binding.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	audithandler "saas-core/backend/internal/audit/handler"
	auditrepo "saas-core/backend/internal/audit/repository"
	healthhandler "saas-core/backend/internal/health/handler"
	identityhandler "saas-core/backend/internal/identity/handler"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/server/interceptors"
	sessionhandler "saas-core/backend/internal/session/handler"
	tenanthandler "saas-core/backend/internal/tenant/handler"
	tenantrepo "saas-core/backend/internal/tenant/repository"
)

// Deps holds the service dependencies for gRPC handlers.
type Deps struct {
	Auth          identityhandler.Authenticator
	Impersonation identityhandler.Impersonator
	Sessions      sessionhandler.Sessions
	Workspaces    tenantrepo.WorkspaceRepository
	AuditLogs     auditrepo.Repository
	Authz         rbac.Authorizer
	// Health is registered as grpc.health.v1.Health. If nil, no health service is served.
	Health *healthhandler.Server
}

// ServiceNames lists the application services RegisterServices registers, for health reporting.
func ServiceNames() []string {
	return []string{
		identityhandler.ServiceName,
		sessionhandler.ServiceName,
		tenanthandler.ServiceName,
		audithandler.ServiceName,
	}
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - saas.auth.v1.AuthService       → internal/identity/handler
//   - saas.session.v1.SessionService → internal/session/handler
//   - saas.tenant.v1.WorkspaceService → internal/tenant/handler
//   - saas.audit.v1.AuditLogService  → internal/audit/handler
//   - grpc.health.v1.Health          → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	identityhandler.Register(s, identityhandler.NewAuthServer(deps.Auth, deps.Impersonation))
	sessionhandler.Register(s, sessionhandler.NewServer(deps.Sessions))
	tenanthandler.Register(s, tenanthandler.NewServer(deps.Workspaces, deps.Authz))
	audithandler.Register(s, audithandler.NewServer(deps.AuditLogs, deps.Authz))
	if deps.Health != nil {
		deps.Health.Register(s)
	}
}

// PublicMethods returns the methods served without a bearer token and without a tenant binding:
// sign-in, refresh and health checks, plus extra.
func PublicMethods(extra ...string) map[string]bool {
	m := map[string]bool{
		identityhandler.SignInMethod:  true,
		identityhandler.RefreshMethod: true,
	}
	for _, name := range healthhandler.Methods() {
		m[name] = true
	}
	for _, name := range extra {
		m[name] = true
	}
	return m
}

// AuditSkipMethods returns the methods the audit interceptor ignores because their service emits
// its own, richer events.
func AuditSkipMethods() map[string]bool {
	return map[string]bool{
		identityhandler.SignInMethod:             true,
		identityhandler.RefreshMethod:            true,
		identityhandler.LogoutMethod:             true,
		identityhandler.LogoutAllMethod:          true,
		identityhandler.StartImpersonationMethod: true,
		identityhandler.EndImpersonationMethod:   true,
	}
}

// Options configures the interceptor chain.
type Options struct {
	Verifier  interceptors.Verifier
	Tenancy   interceptors.TenantRunner
	Publisher interceptors.EventPublisher
	// ExtraPublicMethods are added to PublicMethods, e.g. from TENANT_PUBLIC_METHODS.
	ExtraPublicMethods []string
	// Reflection registers the gRPC reflection service. Leave off in production.
	Reflection bool
	Logger     *zap.Logger
}

// NewServer returns a gRPC server with all services registered. Every unary call passes through
// correlation, logging, authentication, tenant binding and auditing, in that order, so the
// handler and the audit record share one transaction.
func NewServer(deps Deps, opts Options) *grpc.Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	public := PublicMethods(opts.ExtraPublicMethods...)
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.CorrelationUnary(),
			interceptors.LoggingUnary(logger),
			interceptors.AuthUnary(opts.Verifier, public),
			interceptors.TenantUnary(opts.Tenancy, public),
			interceptors.AuditUnary(opts.Publisher, AuditSkipMethods(), logger),
		),
	)
	RegisterServices(s, deps)
	if opts.Reflection {
		reflection.Register(s)
	}
	return s
}
