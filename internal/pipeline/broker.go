package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/models"
)

// BrokerSink is the broker-backed EventSink. Delivery is at-least-once;
// the consumer tolerates redelivery because the exploration model
// deduplicates by event ID.
type BrokerSink struct {
	pubsub   *gochannel.GoChannel
	topic    string
	messages <-chan *message.Message
	cancel   context.CancelFunc
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewBrokerSink creates a broker-mode sink on an in-process pub/sub
// channel with the given topic and buffer size.
func NewBrokerSink(topic string, buffer int, m *metrics.Metrics, logger *logging.Logger) (*BrokerSink, error) {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(buffer)},
		watermillAdapter{logger: logger},
	)

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	return &BrokerSink{
		pubsub:   pubsub,
		topic:    topic,
		messages: messages,
		cancel:   cancel,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Publish sends the event to the broker. Failures are logged and counted,
// never surfaced to the interaction request.
func (s *BrokerSink) Publish(event *models.InteractionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal interaction event")
		if s.metrics != nil {
			s.metrics.EventFailed()
		}
		return
	}

	msg := message.NewMessage(event.EventID, payload)
	if err := s.pubsub.Publish(s.topic, msg); err != nil {
		s.logger.WithError(err).Error("Failed to publish interaction event")
		if s.metrics != nil {
			s.metrics.EventFailed()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.EventPublished()
	}
}

// Next delivers the next event from the subscription.
func (s *BrokerSink) Next(ctx context.Context) (*models.InteractionEvent, bool) {
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return nil, false
			}
			var event models.InteractionEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				s.logger.WithError(err).WithField("message_id", msg.UUID).Error("Failed to decode interaction event")
				if s.metrics != nil {
					s.metrics.EventFailed()
				}
				msg.Ack()
				continue
			}
			msg.Ack()
			return &event, true
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Depth is unavailable for the broker transport.
func (s *BrokerSink) Depth() int {
	return -1
}

// Close tears down the subscription and the broker.
func (s *BrokerSink) Close() error {
	s.cancel()
	return s.pubsub.Close()
}

// watermillAdapter routes watermill's internal logging through the
// application logger.
type watermillAdapter struct {
	logger *logging.Logger
	fields watermill.LogFields
}

func (a watermillAdapter) toLogFields(fields watermill.LogFields) map[string]interface{} {
	merged := make(map[string]interface{}, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func (a watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.WithError(err).WithFields(a.toLogFields(fields)).Error(msg)
}

func (a watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.WithFields(a.toLogFields(fields)).Info(msg)
}

func (a watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.WithFields(a.toLogFields(fields)).Debug(msg)
}

func (a watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.WithFields(a.toLogFields(fields)).Debug(msg)
}

func (a watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillAdapter{logger: a.logger, fields: watermill.LogFields(a.toLogFields(fields))}
}
