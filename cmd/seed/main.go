// seed inserts development sample data: a platform tenant with a super admin, and an "acme" tenant
// with an owner, a member and one workspace. Idempotent: it does nothing once the owner exists.
// Every account uses the password in devPassword.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"saas-core/backend/internal/config"
	"saas-core/backend/internal/db"
	identitydomain "saas-core/backend/internal/identity/domain"
	identityrepo "saas-core/backend/internal/identity/repository"
	membershipdomain "saas-core/backend/internal/membership/domain"
	membershiprepo "saas-core/backend/internal/membership/repository"
	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/security"
	"saas-core/backend/internal/tenancy"
	tenantdomain "saas-core/backend/internal/tenant/domain"
	tenantrepo "saas-core/backend/internal/tenant/repository"
	userdomain "saas-core/backend/internal/user/domain"
	userrepo "saas-core/backend/internal/user/repository"
)

const devPassword = "password123"

const (
	platformTenantID = "00000000-0000-4000-8000-000000000001"
	acmeTenantID     = "00000000-0000-4000-8000-000000000002"
	opsWorkspaceID   = "00000000-0000-4000-8000-000000000010"
	rootUserID       = "00000000-0000-4000-8000-000000000100"
	ownerUserID      = "00000000-0000-4000-8000-000000000101"
	memberUserID     = "00000000-0000-4000-8000-000000000102"

	ownerEmail = "owner@acme.test"
)

type seedUser struct {
	id, tenantID, email, name string
	role                      userdomain.Role
}

var seedUsers = []seedUser{
	{rootUserID, platformTenantID, "root@platform.test", "Platform Admin", userdomain.RoleSuperAdmin},
	{ownerUserID, acmeTenantID, ownerEmail, "Acme Owner", userdomain.RoleOwner},
	{memberUserID, acmeTenantID, "member@acme.test", "Acme Member", userdomain.RoleMember},
}

// memberships are (user, scope, role); the scope is a tenant or a workspace id.
var seedMemberships = []struct {
	id, userID, scopeID string
	role                userdomain.Role
}{
	{"00000000-0000-4000-8000-000000001001", ownerUserID, acmeTenantID, userdomain.RoleOwner},
	{"00000000-0000-4000-8000-000000001002", memberUserID, acmeTenantID, userdomain.RoleMember},
	{"00000000-0000-4000-8000-000000001003", memberUserID, opsWorkspaceID, userdomain.RoleAdmin},
}

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
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set; create a .env or export DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.OpenContext(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	existing, err := users.GetByEmail(ctx, ownerEmail)
	if err != nil {
		logger.Fatal("seed check", zap.Error(err))
	}
	if existing != nil {
		logger.Info("seed already applied; skipping", zap.String("email", ownerEmail))
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}

	runner := tenancy.NewRunner(db.SQLBeginner{DB: conn}, nil, true, logger)
	err = runner.Run(ctx, "", true, func(ctx context.Context) error {
		return seed(ctx, conn, hash, time.Now().UTC())
	})
	if err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
	logger.Info("seed applied", zap.Int("users", len(seedUsers)))
}

// seed writes everything inside the caller's bypass transaction.
func seed(ctx context.Context, conn db.DBTX, passwordHash string, now time.Time) error {
	tenants := tenantrepo.NewTenantPostgresRepository(conn)
	workspaces := tenantrepo.NewWorkspacePostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)

	for _, t := range []*tenantdomain.Tenant{
		{ID: platformTenantID, Name: "Platform", Slug: "platform", CreatedAt: now},
		{ID: acmeTenantID, Name: "Acme Inc", Slug: "acme", CreatedAt: now},
	} {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tenant %s: %w", t.Slug, err)
		}
		if err := tenants.Create(ctx, t); err != nil {
			return fmt.Errorf("create tenant %s: %w", t.Slug, err)
		}
	}

	ws := &tenantdomain.Workspace{ID: opsWorkspaceID, TenantID: acmeTenantID, Name: "Operations", CreatedAt: now}
	if err := workspaces.Create(ctx, ws); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	for i, su := range seedUsers {
		u := &userdomain.User{
			ID: su.id, TenantID: su.tenantID, Email: su.email, Name: su.name, Role: su.role,
			Status: userdomain.UserStatusActive, EmailVerified: true, CreatedAt: now, UpdatedAt: now,
		}
		if err := u.Validate(); err != nil {
			return fmt.Errorf("user %s: %w", su.email, err)
		}
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", su.email, err)
		}
		ident := &identitydomain.Identity{
			ID:           fmt.Sprintf("00000000-0000-4000-8000-%012d", 2001+i),
			UserID:       su.id,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   su.email,
			PasswordHash: passwordHash,
			CreatedAt:    now,
		}
		if err := identities.Create(ctx, ident); err != nil {
			return fmt.Errorf("create identity %s: %w", su.email, err)
		}
	}

	for _, sm := range seedMemberships {
		m := &membershipdomain.Membership{
			ID: sm.id, TenantID: acmeTenantID, UserID: sm.userID, ScopeID: sm.scopeID, Role: sm.role, CreatedAt: now,
		}
		if err := memberships.Upsert(ctx, m); err != nil {
			return fmt.Errorf("membership %s in %s: %w", sm.userID, sm.scopeID, err)
		}
	}
	return nil
}
