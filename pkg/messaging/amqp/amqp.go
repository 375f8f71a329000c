package amqp

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
)

type Config struct {
	URL      string
	Exchange string
}

// AMQPBroker publishes to a durable topic exchange using the topic as routing key.
type AMQPBroker struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logger.Logger
	mu       sync.Mutex
}

func NewAMQPBroker(config Config, logger *logger.Logger) (*AMQPBroker, error) {
	if config.Exchange == "" {
		config.Exchange = "salon.events"
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if err := channel.ExchangeDeclare(config.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", config.Exchange, err)
	}

	return &AMQPBroker{conn: conn, channel: channel, exchange: config.Exchange, logger: logger}, nil
}

func (b *AMQPBroker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.channel.PublishWithContext(ctx, b.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Type,
		Timestamp:    msg.OccurredAt,
		Body:         msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", b.exchange, topic, err)
	}
	b.logger.Debug("Published message", "exchange", b.exchange, "routing_key", topic, "message_id", msg.ID)
	return nil
}

func (b *AMQPBroker) Close() error {
	if err := b.channel.Close(); err != nil {
		b.logger.Warn("Failed to close RabbitMQ channel", "error", err.Error())
	}
	return b.conn.Close()
}
