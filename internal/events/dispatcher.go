package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"saas-core/backend/internal/platform/logging"
	"saas-core/backend/internal/platform/requestctx"
)

// asyncTimeout bounds a single PublishAsync enqueue.
const asyncTimeout = 5 * time.Second

// Queue is the durable job queue. Enqueue must not return before the job is stored.
type Queue interface {
	Enqueue(ctx context.Context, eventName string, payload []byte) error
}

// Dispatcher publishes events to a Queue, deferring to the transaction collector when one is bound.
type Dispatcher struct {
	queue    Queue
	logger   *zap.Logger
	enqueued metric.Int64Counter
	failed   metric.Int64Counter
}

// NewDispatcher returns a dispatcher that enqueues to queue. logger may be nil.
func NewDispatcher(queue Queue, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter("saas-core/events")
	enqueued, _ := meter.Int64Counter("events.enqueued", metric.WithDescription("Events handed to the job queue"))
	failed, _ := meter.Int64Counter("events.enqueue_failed", metric.WithDescription("Events the job queue rejected"))
	return &Dispatcher{queue: queue, logger: logger, enqueued: enqueued, failed: failed}
}

// Publish records e. Inside a tenant transaction the event is buffered and enqueued after commit;
// otherwise it is enqueued now and any queue error is returned.
func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	if c := CollectorFromContext(ctx); c != nil {
		c.Add(e)
		return nil
	}
	return d.enqueue(ctx, e)
}

// PublishAsync enqueues e in the background, detached from ctx cancellation. Failures are logged
// only; use it for best-effort events whose loss is acceptable.
func (d *Dispatcher) PublishAsync(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	detached := requestctx.Detach(ctx)
	go func() {
		enqueueCtx, cancel := context.WithTimeout(detached, asyncTimeout)
		defer cancel()
		_ = d.enqueue(enqueueCtx, e)
	}()
}

// Flush enqueues events collected by a committed transaction. Every event is attempted; the
// returned error joins all failures.
func (d *Dispatcher) Flush(ctx context.Context, events []Event) error {
	var errs []error
	for _, e := range events {
		if err := d.enqueue(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueue(ctx context.Context, e Event) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("events: no queue configured for %s", e.Name)
	}
	payload, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Name, err)
	}
	attrs := metric.WithAttributes(attribute.String("event", e.Name))
	if err := d.queue.Enqueue(ctx, e.Name, payload); err != nil {
		d.failed.Add(ctx, 1, attrs)
		logging.FromContext(ctx, d.logger).Error("event enqueue failed",
			zap.String("event", e.Name), zap.String("aggregate_id", e.AggregateID), zap.Error(err))
		return fmt.Errorf("events: enqueue %s: %w", e.Name, err)
	}
	d.enqueued.Add(ctx, 1, attrs)
	return nil
}
