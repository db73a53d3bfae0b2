// Package pipeline decouples interaction ingestion from statistics updates.
// The synchronous request path publishes events and returns; a background
// consumer applies them to the exploration model.
package pipeline

import (
	"context"

	"github.com/dailylens/internal/models"
)

// EventSink accepts interaction events after the synchronous state write
// succeeds. Publish must never block the caller: a full local queue drops
// its oldest events and counts them instead of applying backpressure.
type EventSink interface {
	// Publish enqueues an event. Never blocks and never fails the caller.
	Publish(event *models.InteractionEvent)
	// Depth reports queued events, or -1 when the backing transport does
	// not expose a depth.
	Depth() int
	Close() error
}

// EventSource is the consumer side of a sink. Next blocks until an event
// is available, returning false when the source is closed or the context
// is canceled.
type EventSource interface {
	Next(ctx context.Context) (*models.InteractionEvent, bool)
}
