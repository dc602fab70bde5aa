// Package audit turns domain events into the tenant audit trail: it names audited RPCs and persists
// events consumed from the job queue.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saas-core/backend/internal/audit/domain"
	auditrepo "saas-core/backend/internal/audit/repository"
	"saas-core/backend/internal/events"
	"saas-core/backend/internal/jobqueue"
)

// TxRunner runs fn in a tenant-bound transaction. Implemented by tenancy.Runner.
type TxRunner interface {
	Run(ctx context.Context, tenantID string, adminBypass bool, fn func(ctx context.Context) error) error
}

// Persister writes events taken off the job queue to audit_logs. Redelivered events are absorbed by
// the (event name, aggregate id, occurred at) uniqueness, so the job can be acked either way.
type Persister struct {
	repo   auditrepo.Repository
	runner TxRunner
	logger *zap.Logger
}

// NewPersister returns a Persister. logger may be nil.
func NewPersister(repo auditrepo.Repository, runner TxRunner, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{repo: repo, runner: runner, logger: logger}
}

// HandleJob persists one event. A payload that does not decode is dropped (logged and acked);
// a storage failure is returned so the job is redelivered.
func (p *Persister) HandleJob(ctx context.Context, job jobqueue.Job) error {
	e, err := events.Unmarshal(job.Payload)
	if err != nil {
		p.logger.Warn("audit: dropping undecodable event", zap.String("job", job.Name), zap.Error(err))
		return nil
	}
	if e.Name == "" {
		e.Name = job.Name
	}
	entry := domain.FromEvent(e)
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = job.EnqueuedAt
	}

	var inserted bool
	// the worker is a system actor: it writes every tenant's trail, and events without a tenant
	err = p.runner.Run(ctx, entry.TenantID, true, func(ctx context.Context) error {
		var saveErr error
		inserted, saveErr = p.repo.Save(ctx, entry)
		return saveErr
	})
	if err != nil {
		return fmt.Errorf("audit: persist %s/%s: %w", entry.EventName, entry.AggregateID, err)
	}
	if !inserted {
		p.logger.Debug("audit: duplicate event ignored",
			zap.String("event", entry.EventName), zap.String("aggregate_id", entry.AggregateID))
	}
	return nil
}
