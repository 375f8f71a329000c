// Package lock provides short-lived mutual exclusion keyed by string.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock not acquired")

// ReleaseFunc gives the lock back. It is safe to call after the TTL expired.
type ReleaseFunc func(ctx context.Context) error

// Locker acquires a lock for key that expires after ttl.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	retries    int
	retryDelay time.Duration
}

func NewRedisLocker(client redis.UniversalClient, prefix string, retries int, retryDelay time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock"
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	return &RedisLocker{client: client, prefix: prefix, retries: retries, retryDelay: retryDelay}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	fullKey := l.prefix + ":" + key
	token := uuid.NewString()

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		if attempt >= l.retries {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", fullKey, err)
		}
		return nil
	}, nil
}

// NopLocker always succeeds. Used when redis is not configured; the database
// exclusion constraint still rejects overlapping bookings.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string, time.Duration) (ReleaseFunc, error) {
	return func(context.Context) error { return nil }, nil
}
