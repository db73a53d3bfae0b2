package pipeline

import (
	"context"
	"sync"

	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/ranking"
)

// Consumer is the single background worker that applies interaction events
// to the exploration model. Redelivered events are no-ops because the model
// deduplicates by event ID, so at-least-once sources are safe.
type Consumer struct {
	source      EventSource
	exploration *ranking.ExplorationModel
	metrics     *metrics.Metrics
	logger      *logging.Logger

	wg sync.WaitGroup
}

// NewConsumer creates an event consumer over the given source.
func NewConsumer(source EventSource, exploration *ranking.ExplorationModel, m *metrics.Metrics, logger *logging.Logger) *Consumer {
	return &Consumer{
		source:      source,
		exploration: exploration,
		metrics:     m,
		logger:      logger,
	}
}

// Start launches the consume loop. It runs until the context is canceled
// or the source closes.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Wait blocks until the consume loop has exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	c.logger.Info("Event consumer started")
	for {
		event, ok := c.source.Next(ctx)
		if !ok {
			c.logger.Info("Event consumer stopped")
			return
		}

		if applied := c.exploration.Apply(event); !applied {
			c.logger.WithField("event_id", event.EventID).Debug("Skipping duplicate interaction event")
			continue
		}
		if c.metrics != nil {
			c.metrics.EventProcessed()
		}
	}
}
