// Package kafka publishes turn events to a Kafka topic with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/tether/pkg/eventstream"
)

// MessageWriter is the subset of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// Writer overrides the kafka-go writer built from Brokers and Topic.
	Writer MessageWriter

	Logger *slog.Logger
}

// Publisher writes one Kafka message per turn event, keyed by conversation
// so events of a conversation stay ordered within a partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(c Config) (*Publisher, error) {
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	writer := c.Writer
	if writer == nil {
		if len(c.Brokers) == 0 {
			return nil, errors.New("kafka brokers are required")
		}
		if c.Topic == "" {
			return nil, errors.New("kafka topic is required")
		}
		writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  c.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		}
	}

	return &Publisher{
		writer: writer,
		topic:  c.Topic,
		logger: c.Logger,
	}, nil
}

// PublishTurn encodes the event as JSON and writes it to the topic.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding turn event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(event.ConversationID, 10)),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing turn event to kafka: %w", err)
	}

	p.logger.Debug("published turn event",
		"topic", p.topic,
		"event_id", event.EventID,
		"conversation_id", event.ConversationID,
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
