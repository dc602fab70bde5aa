// Server runs the gRPC API: sign-in, token refresh, sessions, impersonation, workspaces and the
// audit trail. Configuration comes from the environment (see internal/config).
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	auditrepo "saas-core/backend/internal/audit/repository"
	"saas-core/backend/internal/config"
	"saas-core/backend/internal/db"
	"saas-core/backend/internal/events"
	healthhandler "saas-core/backend/internal/health/handler"
	identityrepo "saas-core/backend/internal/identity/repository"
	identityservice "saas-core/backend/internal/identity/service"
	impersonationrepo "saas-core/backend/internal/impersonation/repository"
	"saas-core/backend/internal/jobqueue"
	loginattemptrepo "saas-core/backend/internal/loginattempt/repository"
	membershiprepo "saas-core/backend/internal/membership/repository"
	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/security"
	"saas-core/backend/internal/server"
	sessionrepo "saas-core/backend/internal/session/repository"
	sessionservice "saas-core/backend/internal/session/service"
	telemetryotel "saas-core/backend/internal/telemetry/otel"
	"saas-core/backend/internal/tenancy"
	tenantrepo "saas-core/backend/internal/tenant/repository"
	userrepo "saas-core/backend/internal/user/repository"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 20 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		ServiceName: cfg.OTelServiceName,
		SampleRatio: cfg.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.OpenContext(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	queue, closeQueue, err := openQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	dispatcher := events.NewDispatcher(queue, logger)
	runner := tenancy.NewRunner(db.SQLBeginner{DB: conn}, dispatcher, cfg.TenantEnforcement, logger)
	if !cfg.TenantEnforcement {
		logger.Warn("tenant enforcement is disabled; requests run without a tenant binding")
	}

	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	attempts := loginattemptrepo.NewPostgresRepository(conn)
	impersonations := impersonationrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	workspaces := tenantrepo.NewWorkspacePostgresRepository(conn)
	auditLogs := auditrepo.NewPostgresRepository(conn)

	authz, err := newAuthorizer(ctx, cfg.AuthzEngine, memberships)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenProviderFromPEM(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		return fmt.Errorf("token provider: %w", err)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	authSvc := identityservice.NewAuthService(users, identities, sessions, attempts, hasher, tokens, dispatcher, cfg.RefreshTTL(), logger)
	impersonationSvc := identityservice.NewImpersonationService(users, sessions, impersonations, tokens, authz, dispatcher, logger)
	verifier := identityservice.NewVerifier(tokens, sessions, users, impersonations, logger)
	sessionSvc := sessionservice.NewSessionService(sessions, users, authz, dispatcher)

	health := healthhandler.NewServer(conn, logger, server.ServiceNames()...)
	go health.Run(ctx, healthInterval)

	srv := server.NewServer(server.Deps{
		Auth:          authSvc,
		Impersonation: impersonationSvc,
		Sessions:      sessionSvc,
		Workspaces:    workspaces,
		AuditLogs:     auditLogs,
		Authz:         authz,
		Health:        health,
	}, server.Options{
		Verifier:           verifier,
		Tenancy:            runner,
		Publisher:          dispatcher,
		ExtraPublicMethods: cfg.PublicMethodsList(),
		Reflection:         cfg.Env != "production",
		Logger:             logger,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening",
			zap.String("addr", cfg.GRPCAddr),
			zap.String("authz_engine", cfg.AuthzEngine),
			zap.String("queue_backend", cfg.QueueBackend))
		serveErr <- srv.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down gRPC server")
	health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out; closing open connections")
		srv.Stop()
	}
	logger.Info("gRPC server stopped")
	return nil
}

func newAuthorizer(ctx context.Context, engine string, roles rbac.ScopeRoleResolver) (rbac.Authorizer, error) {
	if engine == config.AuthzEngineRego {
		ev, err := rbac.NewRegoEvaluator(ctx, roles)
		if err != nil {
			return nil, fmt.Errorf("authz: %w", err)
		}
		return ev, nil
	}
	return rbac.NewEvaluator(roles), nil
}

// openQueue returns the producer side of the configured job queue and a func releasing it.
func openQueue(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Queue, func(), error) {
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		client, err := jobqueue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return jobqueue.NewRedisQueue(client, cfg.JobQueueKey, 0), func() { _ = client.Close() }, nil
	case config.QueueBackendKafka:
		q, err := jobqueue.NewKafkaQueue(cfg.KafkaBrokersList(), cfg.JobQueueTopic)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		logger.Warn("QUEUE_BACKEND=log: events are logged and never persisted")
		return jobqueue.NewLogQueue(logger.Named("jobs")), func() {}, nil
	}
}
