package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"steamwash-cloud/internal/observability/metrics"
	"steamwash-cloud/internal/telemetry/application/events"
)

const eventTypeTickCompleted = "telemetry.tick_completed"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends completed ticks to a Kafka topic.
type Publisher struct {
	writer MessageWriter
	site   string
}

// NewWriter builds an async writer. Delivery failures are counted and
// logged from the completion callback so a slow broker never holds a tick.
func NewWriter(brokers []string, topic string, logger *log.Logger) (*kafkago.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: empty topic")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				metrics.IncPublish(metrics.ResultError)
				logger.Printf("kafka publish failed: messages=%d err=%v", len(messages), err)
			}
		},
	}, nil
}

// NewPublisher constructs a Publisher. site keys every message.
func NewPublisher(writer MessageWriter, site string) (*Publisher, error) {
	if writer == nil {
		return nil, errors.New("kafka publisher: nil writer")
	}
	if site == "" {
		site = "steamwash"
	}
	return &Publisher{writer: writer, site: site}, nil
}

// PublishTick implements TickPublisher.
func (p *Publisher) PublishTick(ctx context.Context, event events.TickCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(p.site),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventTypeTickCompleted)},
			{Key: "sequence", Value: []byte(strconv.FormatUint(event.Sequence, 10))},
		},
	})
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
