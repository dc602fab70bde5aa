package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"saas-core/backend/internal/audit/domain"
	"saas-core/backend/internal/events"
	"saas-core/backend/internal/jobqueue"
)

// memAuditRepo enforces the (event name, aggregate id, occurred at) uniqueness of audit_logs.
type memAuditRepo struct {
	entries []*domain.AuditLog
	saveErr error
}

func (m *memAuditRepo) Save(ctx context.Context, a *domain.AuditLog) (bool, error) {
	if m.saveErr != nil {
		return false, m.saveErr
	}
	for _, e := range m.entries {
		if e.EventName == a.EventName && e.AggregateID == a.AggregateID && e.OccurredAt.Equal(a.OccurredAt) {
			return false, nil
		}
	}
	m.entries = append(m.entries, a)
	return true, nil
}

func (m *memAuditRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

type runCall struct {
	tenantID    string
	adminBypass bool
}

type recordingRunner struct {
	calls []runCall
	err   error
}

func (r *recordingRunner) Run(ctx context.Context, tenantID string, adminBypass bool, fn func(ctx context.Context) error) error {
	r.calls = append(r.calls, runCall{tenantID, adminBypass})
	if r.err != nil {
		return r.err
	}
	return fn(ctx)
}

func eventJob(t *testing.T, e events.Event) jobqueue.Job {
	t.Helper()
	b, err := e.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return jobqueue.Job{Name: e.Name, Payload: b, EnqueuedAt: time.Now().UTC()}
}

func TestPersister_HandleJob_SavesUnderBypass(t *testing.T) {
	repo := &memAuditRepo{}
	runner := &recordingRunner{}
	p := NewPersister(repo, runner, zaptest.NewLogger(t))

	e := events.New(context.Background(), events.SessionRevoked, "session-1", map[string]any{"by": "u-1"}).
		WithTenant("tenant-1", "u-1")
	if err := p.HandleJob(context.Background(), eventJob(t, e)); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	got := repo.entries[0]
	if got.EventName != events.SessionRevoked || got.AggregateID != "session-1" || got.TenantID != "tenant-1" || got.ActorID != "u-1" {
		t.Errorf("entry = %+v", got)
	}
	if got.Payload["by"] != "u-1" {
		t.Errorf("payload = %v, want by=u-1", got.Payload)
	}
	if len(runner.calls) != 1 || runner.calls[0] != (runCall{"tenant-1", true}) {
		t.Errorf("runner calls = %+v, want one bypass run for tenant-1", runner.calls)
	}
}

func TestPersister_HandleJob_RedeliveryIsIdempotent(t *testing.T) {
	repo := &memAuditRepo{}
	p := NewPersister(repo, &recordingRunner{}, nil)
	job := eventJob(t, events.New(context.Background(), events.LoggedOut, "session-1", nil).WithTenant("tenant-1", "u-1"))

	for i := 0; i < 3; i++ {
		if err := p.HandleJob(context.Background(), job); err != nil {
			t.Fatalf("HandleJob #%d: %v", i+1, err)
		}
	}
	if len(repo.entries) != 1 {
		t.Errorf("entries = %d, want 1 after redelivery", len(repo.entries))
	}
}

func TestPersister_HandleJob_SystemEventWithoutTenant(t *testing.T) {
	repo := &memAuditRepo{}
	runner := &recordingRunner{}
	p := NewPersister(repo, runner, nil)

	e := events.New(context.Background(), events.SignInFailed, "nobody@example.com", nil)
	if err := p.HandleJob(context.Background(), eventJob(t, e)); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if len(repo.entries) != 1 || repo.entries[0].TenantID != "" {
		t.Fatalf("entries = %+v, want one entry without tenant", repo.entries)
	}
	if runner.calls[0] != (runCall{"", true}) {
		t.Errorf("runner call = %+v, want bypass without tenant", runner.calls[0])
	}
}

func TestPersister_HandleJob_UndecodableIsDropped(t *testing.T) {
	repo := &memAuditRepo{}
	runner := &recordingRunner{}
	p := NewPersister(repo, runner, zaptest.NewLogger(t))

	job := jobqueue.Job{Name: events.LoggedOut, Payload: json.RawMessage(`"not an event"`)}
	if err := p.HandleJob(context.Background(), job); err != nil {
		t.Fatalf("HandleJob: %v, want nil so the job is acked", err)
	}
	if len(repo.entries) != 0 || len(runner.calls) != 0 {
		t.Errorf("nothing should be stored: entries=%d runs=%d", len(repo.entries), len(runner.calls))
	}
}

func TestPersister_HandleJob_StorageFailureIsReturned(t *testing.T) {
	p := NewPersister(&memAuditRepo{saveErr: errors.New("db down")}, &recordingRunner{}, nil)
	job := eventJob(t, events.New(context.Background(), events.LoggedOut, "session-1", nil))
	if err := p.HandleJob(context.Background(), job); err == nil {
		t.Fatal("HandleJob should return the storage error so the job is redelivered")
	}

	p = NewPersister(&memAuditRepo{}, &recordingRunner{err: errors.New("begin failed")}, nil)
	if err := p.HandleJob(context.Background(), job); err == nil {
		t.Fatal("HandleJob should return the transaction error")
	}
}
