package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores jobs in a Redis list. Producers LPUSH to key; consumers atomically move the
// oldest job to key+":processing" and remove it from there on ack, so a crashed consumer's job can
// be recovered.
type RedisQueue struct {
	client        redis.UniversalClient
	key           string
	processingKey string
	pollTimeout   time.Duration
}

// NewRedisQueue returns a queue on the given list key. pollTimeout bounds each Reserve; 0 means 1s.
func NewRedisQueue(client redis.UniversalClient, key string, pollTimeout time.Duration) *RedisQueue {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &RedisQueue{client: client, key: key, processingKey: key + ":processing", pollTimeout: pollTimeout}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("jobqueue: redis ping: %w", err)
	}
	return client, nil
}

// Enqueue implements events.Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, eventName string, payload []byte) error {
	b, err := encodeJob(eventName, payload, time.Now())
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Reserve(ctx context.Context) (*Delivery, error) {
	raw, err := q.client.BLMove(ctx, q.key, q.processingKey, "RIGHT", "LEFT", q.pollTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job, err := decodeJob([]byte(raw))
	if err != nil {
		// Drop unparseable entries from processing.
		_ = q.client.LRem(ctx, q.processingKey, 1, raw).Err()
		return nil, fmt.Errorf("jobqueue: decode job: %w", err)
	}
	return &Delivery{Job: job, raw: raw}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	raw, ok := d.raw.(string)
	if !ok {
		return errors.New("jobqueue: delivery not from redis")
	}
	return q.client.LRem(ctx, q.processingKey, 1, raw).Err()
}

// Nack moves the job back to the consuming end of the queue.
func (q *RedisQueue) Nack(ctx context.Context, d *Delivery) error {
	raw, ok := d.raw.(string)
	if !ok {
		return errors.New("jobqueue: delivery not from redis")
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, raw)
	pipe.RPush(ctx, q.key, raw)
	_, err := pipe.Exec(ctx)
	return err
}

// Recover moves every job left in the processing list (by a consumer that died before acking)
// back onto the queue. Call once at worker start, before any Reserve. Returns the number moved.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processingKey, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Len returns the number of jobs waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
