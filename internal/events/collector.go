package events

import (
	"context"
	"sync"
)

// Collector buffers events recorded during one transaction.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

type collectorContextKey struct{}

// WithCollector returns a context carrying a fresh collector, and the collector.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorContextKey{}, c), c
}

// CollectorFromContext returns the collector bound to ctx, or nil.
func CollectorFromContext(ctx context.Context) *Collector {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(collectorContextKey{}).(*Collector)
	return c
}

// Add appends e. Safe for concurrent use by goroutines of the same request.
func (c *Collector) Add(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Drain returns the buffered events in order and empties the collector.
func (c *Collector) Drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

// Len returns the number of buffered events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
