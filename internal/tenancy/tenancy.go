// Package tenancy binds the verified principal's tenant to the single database transaction that
// serves a request.
//
// The binding lives in two places for the lifetime of the transaction only: the transaction's
// Postgres settings app.tenant_id and app.admin_bypass (set with is_local = true, so commit or
// rollback clears them before the connection returns to the pool), and the request context, where
// Current exposes it read-only. Nothing is stored in package state.
package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/events"
	"saas-core/backend/internal/platform/logging"
)

const bindSQL = `SELECT set_config('app.tenant_id', $1, true), set_config('app.admin_bypass', $2, true)`

// ErrNoTenant is returned when Run is asked to bind an empty tenant without the admin bypass.
var ErrNoTenant = errors.New("tenancy: tenant id is required")

// Binding is the tenant bound to the current transaction.
type Binding struct {
	TenantID    string
	AdminBypass bool
}

type bindingContextKey struct{}

// Current returns the binding of the transaction ctx runs in. ok is false outside a tenant transaction.
func Current(ctx context.Context) (Binding, bool) {
	if ctx == nil {
		return Binding{}, false
	}
	b, ok := ctx.Value(bindingContextKey{}).(Binding)
	return b, ok
}

func withBinding(ctx context.Context, b Binding) context.Context {
	return context.WithValue(ctx, bindingContextKey{}, b)
}

// LogFields adds tenant_id to request logs. Pass to logging.FromContext.
func LogFields(ctx context.Context) []zap.Field {
	b, ok := Current(ctx)
	if !ok {
		return nil
	}
	return []zap.Field{zap.String("tenant_id", b.TenantID), zap.Bool("admin_bypass", b.AdminBypass)}
}

// Flusher enqueues events collected during a committed transaction.
type Flusher interface {
	Flush(ctx context.Context, events []events.Event) error
}

// Runner runs functions inside a tenant-bound transaction.
type Runner struct {
	beginner db.Beginner
	flusher  Flusher
	enabled  bool
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewRunner returns a runner. enabled is the global enforcement switch; flusher may be nil when no
// events are produced.
func NewRunner(beginner db.Beginner, flusher Flusher, enabled bool, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		beginner: beginner,
		flusher:  flusher,
		enabled:  enabled,
		logger:   logger,
		tracer:   otel.Tracer("saas-core/tenancy"),
	}
}

// Enabled reports the global enforcement switch.
func (r *Runner) Enabled() bool { return r != nil && r.enabled }

// Run opens one transaction, binds tenantID and adminBypass to it, and calls fn with a context
// carrying the transaction, the binding and an event collector. It commits when fn returns nil and
// rolls back when fn returns an error, panics, or ctx is done. Events fn published are enqueued
// after the commit; a flush failure is returned although the transaction stays committed.
func (r *Runner) Run(ctx context.Context, tenantID string, adminBypass bool, fn func(ctx context.Context) error) (err error) {
	if tenantID == "" && !adminBypass {
		return ErrNoTenant
	}
	if _, nested := Current(ctx); nested {
		return errors.New("tenancy: nested tenant transaction")
	}

	ctx, span := r.tracer.Start(ctx, "tenancy.Run", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Bool("tenant.admin_bypass", adminBypass),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := r.beginner.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("tenancy: begin: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Warn("tenancy: rollback failed", zap.Error(rbErr))
		}
	}()

	if _, err := tx.ExecContext(ctx, bindSQL, tenantID, bypassValue(adminBypass)); err != nil {
		return fmt.Errorf("tenancy: bind tenant: %w", err)
	}

	binding := Binding{TenantID: tenantID, AdminBypass: adminBypass}
	txCtx := withBinding(db.WithTx(ctx, tx), binding)
	txCtx, collector := events.WithCollector(txCtx)

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tenancy: commit: %w", err)
	}
	committed = true

	pending := collector.Drain()
	if len(pending) == 0 || r.flusher == nil {
		return nil
	}
	if err := r.flusher.Flush(ctx, pending); err != nil {
		logging.FromContext(ctx, r.logger).Error("tenancy: event flush after commit failed",
			zap.String("tenant_id", tenantID), zap.Int("events", len(pending)), zap.Error(err))
		return fmt.Errorf("tenancy: flush events: %w", err)
	}
	return nil
}

func bypassValue(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
