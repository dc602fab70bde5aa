package jobqueue

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaQueue writes jobs to a Kafka topic, keyed by event name.
type KafkaQueue struct {
	writer *kafka.Writer
}

// NewKafkaQueue creates a producer for topic. brokers must be non-empty. Call Close when shutting down.
func NewKafkaQueue(brokers []string, topic string) (*KafkaQueue, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("jobqueue: kafka brokers and topic are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaQueue{writer: writer}, nil
}

// Enqueue implements events.Queue. The write is synchronous: it returns once the brokers acked.
func (q *KafkaQueue) Enqueue(ctx context.Context, eventName string, payload []byte) error {
	b, err := encodeJob(eventName, payload, time.Now())
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return q.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(eventName), Value: b})
}

// Close closes the Kafka writer. Safe to call on a nil queue.
func (q *KafkaQueue) Close() error {
	if q == nil || q.writer == nil {
		return nil
	}
	return q.writer.Close()
}

// KafkaConsumer reads jobs from a topic as part of a consumer group. Offsets are committed on Ack,
// so unacked jobs are redelivered after a restart or rebalance.
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer returns a consumer for topic in groupID.
func NewKafkaConsumer(brokers []string, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})}
}

func (c *KafkaConsumer) Reserve(ctx context.Context) (*Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	job, err := decodeJob(msg.Value)
	if err != nil {
		// Commit past the poison message.
		_ = c.reader.CommitMessages(ctx, msg)
		return nil, err
	}
	return &Delivery{Job: job, raw: msg}, nil
}

func (c *KafkaConsumer) Ack(ctx context.Context, d *Delivery) error {
	msg, ok := d.raw.(kafka.Message)
	if !ok {
		return errors.New("jobqueue: delivery not from kafka")
	}
	return c.reader.CommitMessages(ctx, msg)
}

// Nack leaves the offset uncommitted; the message is redelivered after the next rebalance.
func (c *KafkaConsumer) Nack(context.Context, *Delivery) error { return nil }

// Close closes the reader.
func (c *KafkaConsumer) Close() error { return c.reader.Close() }
