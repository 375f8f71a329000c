package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
)

type Config struct {
	Brokers      []string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the broker uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBroker writes each message to the topic named at publish time. Messages
// with the same key land on the same partition.
type KafkaBroker struct {
	writer messageWriter
	logger *logger.Logger
}

func NewKafkaBroker(config Config, logger *logger.Logger) (*KafkaBroker, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 10 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           config.BatchTimeout,
		WriteTimeout:           config.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaBroker{writer: writer, logger: logger}, nil
}

func (b *KafkaBroker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	key := msg.Key
	if key == "" {
		key = msg.ID
	}
	err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msg.Payload,
		Time:  msg.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.ID)},
			{Key: "event_type", Value: []byte(msg.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	b.logger.Debug("Published message", "topic", topic, "message_id", msg.ID)
	return nil
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}
