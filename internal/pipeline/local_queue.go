package pipeline

import (
	"context"
	"sync"

	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/models"
)

// LocalQueue is the in-process EventSink: a bounded FIFO that drops its
// oldest entries on overflow. Dropping stale statistics updates is the
// backpressure valve; the user-facing write path never waits on the queue.
type LocalQueue struct {
	mu      sync.Mutex
	events  []*models.InteractionEvent
	max     int
	closed  bool
	notify  chan struct{}
	metrics *metrics.Metrics
}

// NewLocalQueue creates a bounded local event queue.
func NewLocalQueue(size int, m *metrics.Metrics) *LocalQueue {
	if size < 1 {
		size = 1
	}
	q := &LocalQueue{
		max:     size,
		notify:  make(chan struct{}, 1),
		metrics: m,
	}
	if m != nil {
		m.SetQueueDepthFunc(q.Depth)
	}
	return q
}

// Publish enqueues the event, evicting the oldest entry when full.
func (q *LocalQueue) Publish(event *models.InteractionEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.events) >= q.max {
		q.events = q.events[1:]
		if q.metrics != nil {
			q.metrics.EventDropped()
		}
	}
	q.events = append(q.events, event)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.EventPublished()
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or the queue closes.
func (q *LocalQueue) Next(ctx context.Context) (*models.InteractionEvent, bool) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			event := q.events[0]
			q.events = q.events[1:]
			q.mu.Unlock()
			return event, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Depth reports the number of queued events.
func (q *LocalQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops the queue. Queued events remain drainable via Next until
// empty; new publishes are discarded silently.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}
