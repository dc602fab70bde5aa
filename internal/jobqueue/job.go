// Package jobqueue is the durable job queue behind events.Queue: a Redis list, a Kafka topic, or a
// log-only sink for local runs. Consumers get at-least-once delivery.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Job is the envelope stored on the queue.
type Job struct {
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Delivery is a reserved job. It stays owned by the consumer until acked or nacked.
type Delivery struct {
	Job Job
	// raw is the backend handle used to ack (Redis list element or Kafka message).
	raw any
}

// ErrClosed is returned by consumers after Close.
var ErrClosed = errors.New("jobqueue: closed")

// Consumer reserves and acknowledges jobs.
type Consumer interface {
	// Reserve blocks up to the backend's poll interval for a job. It returns (nil, nil) when none arrived.
	Reserve(ctx context.Context) (*Delivery, error)
	// Ack removes a handled job permanently.
	Ack(ctx context.Context, d *Delivery) error
	// Nack returns a job to the queue for another attempt.
	Nack(ctx context.Context, d *Delivery) error
}

func encodeJob(name string, payload []byte, now time.Time) ([]byte, error) {
	return json.Marshal(Job{Name: name, Payload: payload, EnqueuedAt: now.UTC()})
}

func decodeJob(b []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(b, &j)
	return j, err
}
