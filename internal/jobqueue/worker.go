package jobqueue

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Handler processes one job. Returning an error nacks the job for redelivery.
type Handler func(ctx context.Context, job Job) error

// Worker pulls jobs from a Consumer and dispatches them by name prefix.
type Worker struct {
	consumer Consumer
	logger   *zap.Logger
	routes   []route
	// handleTimeout bounds one handler call.
	handleTimeout time.Duration
	// errorBackoff is the pause after a Reserve error.
	errorBackoff time.Duration
}

type route struct {
	prefix  string
	handler Handler
}

// NewWorker returns a worker reading from consumer.
func NewWorker(consumer Consumer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{consumer: consumer, logger: logger, handleTimeout: 10 * time.Second, errorBackoff: time.Second}
}

// Handle routes jobs whose name starts with prefix to h. The longest matching prefix wins; the
// empty prefix matches everything.
func (w *Worker) Handle(prefix string, h Handler) {
	w.routes = append(w.routes, route{prefix: prefix, handler: h})
	sort.SliceStable(w.routes, func(i, j int) bool { return len(w.routes[i].prefix) > len(w.routes[j].prefix) })
}

// Chain returns a handler that runs handlers in order and stops at the first error. Every handler
// must tolerate redelivery, since an error after an earlier success requeues the whole job.
func Chain(handlers ...Handler) Handler {
	return func(ctx context.Context, job Job) error {
		for _, h := range handlers {
			if err := h(ctx, job); err != nil {
				return err
			}
		}
		return nil
	}
}

func (w *Worker) handlerFor(name string) Handler {
	for _, r := range w.routes {
		if strings.HasPrefix(name, r.prefix) {
			return r.handler
		}
	}
	return nil
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return nil
			}
			w.logger.Warn("worker: reserve failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.errorBackoff):
			}
		}
	}
}

// ProcessOne reserves at most one job and handles it. Handler failures are nacked and logged, not
// returned; only consumer errors are returned.
func (w *Worker) ProcessOne(ctx context.Context) error {
	d, err := w.consumer.Reserve(ctx)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	log := w.logger.With(zap.String("job", d.Job.Name))
	h := w.handlerFor(d.Job.Name)
	if h == nil {
		log.Warn("worker: no handler, dropping job")
		return w.consumer.Ack(ctx, d)
	}

	handleCtx, cancel := context.WithTimeout(ctx, w.handleTimeout)
	herr := h(handleCtx, d.Job)
	cancel()
	if herr != nil {
		log.Error("worker: handler failed, requeueing", zap.Error(herr))
		if err := w.consumer.Nack(ctx, d); err != nil {
			log.Error("worker: nack failed", zap.Error(err))
		}
		return nil
	}
	if err := w.consumer.Ack(ctx, d); err != nil {
		log.Error("worker: ack failed", zap.Error(err))
	}
	return nil
}
