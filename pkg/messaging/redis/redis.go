package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
)

type RedisBroker struct {
	client redis.UniversalClient
	logger *logger.Logger
	owned  bool
}

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// NewRedisBroker dials its own client from config.URL.
func NewRedisBroker(ctx context.Context, config Config, logger *logger.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBroker{client: client, logger: logger, owned: true}, nil
}

// NewRedisBrokerWithClient publishes over an existing client. Close leaves the client open.
func NewRedisBrokerWithClient(client redis.UniversalClient, logger *logger.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, msg messaging.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	receivers, err := b.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	b.logger.Debug("Published message", "channel", channel, "message_id", msg.ID, "receivers", receivers)
	return nil
}

func (b *RedisBroker) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}
