package jobqueue

import (
	"context"

	"go.uber.org/zap"
)

// LogQueue writes jobs to the logger instead of a broker. For local development only: nothing
// consumes them.
type LogQueue struct {
	logger *zap.Logger
}

func NewLogQueue(logger *zap.Logger) *LogQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogQueue{logger: logger}
}

func (q *LogQueue) Enqueue(_ context.Context, eventName string, payload []byte) error {
	q.logger.Info("job enqueued", zap.String("event", eventName), zap.ByteString("payload", payload))
	return nil
}
