package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jwalitptl/salon-api/pkg/circuitbreaker"
)

// Message is the envelope published for every outbox event.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

// Discard drops every message. It backs the "none" driver so the outbox still drains.
type Discard struct{}

func (Discard) Publish(context.Context, string, Message) error { return nil }
func (Discard) Close() error                                    { return nil }

type breakerBroker struct {
	Broker
	cb *circuitbreaker.CircuitBreaker
}

// WithBreaker routes publishes through cb. While the breaker is open Publish
// fails fast with circuitbreaker.ErrOpen.
func WithBreaker(b Broker, cb *circuitbreaker.CircuitBreaker) Broker {
	return &breakerBroker{Broker: b, cb: cb}
}

func (b *breakerBroker) Publish(ctx context.Context, topic string, msg Message) error {
	return b.cb.Execute(func() error {
		return b.Broker.Publish(ctx, topic, msg)
	})
}
