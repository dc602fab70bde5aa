package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"

	"saas-core/backend/internal/events"
	"saas-core/backend/internal/jobqueue"
)

const eventScope = "saas-core/events"

// recordEmitter is the part of otellog.Logger the exporter uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// EventExporter forwards domain events taken off the job queue to the collector as log records, so
// the security trail is searchable next to traces. It complements the audit table; it never blocks
// or fails a job.
type EventExporter struct {
	logger recordEmitter
	log    *zap.Logger
}

// NewEventExporter returns an exporter writing through provider. A nil provider yields an exporter
// that drops everything.
func NewEventExporter(provider *sdklog.LoggerProvider, log *zap.Logger) *EventExporter {
	if provider == nil {
		return newEventExporter(nil, log)
	}
	return newEventExporter(provider.Logger(eventScope), log)
}

func newEventExporter(logger recordEmitter, log *zap.Logger) *EventExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventExporter{logger: logger, log: log}
}

// Export emits e as one log record. Security events are raised to WARN severity.
func (x *EventExporter) Export(ctx context.Context, e events.Event) {
	if x == nil || x.logger == nil {
		return
	}
	var rec otellog.Record
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetEventName(e.Name)
	rec.SetSeverity(severityOf(e.Name))
	rec.SetSeverityText(rec.Severity().String())
	if len(e.Payload) > 0 {
		if b, err := json.Marshal(e.Payload); err == nil {
			rec.SetBody(otellog.StringValue(string(b)))
		}
	}
	attrs := []otellog.KeyValue{
		otellog.String("event.id", e.ID),
		otellog.String("event.name", e.Name),
		otellog.String("aggregate_id", e.AggregateID),
	}
	for k, v := range map[string]string{"tenant_id": e.TenantID, "actor_id": e.ActorID, "request_id": e.RequestID} {
		if v != "" {
			attrs = append(attrs, otellog.String(k, v))
		}
	}
	rec.AddAttributes(attrs...)
	x.logger.Emit(ctx, rec)
}

// HandleJob decodes the job as an event and exports it. Undecodable payloads are skipped.
func (x *EventExporter) HandleJob(ctx context.Context, job jobqueue.Job) error {
	e, err := events.Unmarshal(job.Payload)
	if err != nil {
		x.log.Debug("telemetry: skipping undecodable job", zap.String("job", job.Name), zap.Error(err))
		return nil
	}
	if e.Name == "" {
		e.Name = job.Name
	}
	x.Export(ctx, e)
	return nil
}

func severityOf(name string) otellog.Severity {
	switch name {
	case events.SignInFailed, events.AccountLocked, events.TokenReuseDetected,
		events.ImpersonationStarted, events.ImpersonationEnded:
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}
