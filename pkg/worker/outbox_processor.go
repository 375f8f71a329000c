package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts is the total number of deliveries before an event is dead-lettered.
	RetryAttempts int
	// RetryDelay is the first backoff; it doubles with every retry.
	RetryDelay  time.Duration
	TopicPrefix string
}

// Handler consumes one outbox event in process instead of publishing it.
type Handler func(ctx context.Context, event *model.OutboxEvent) error

type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	handlers map[string]Handler
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		handlers: map[string]Handler{},
		config:   config,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Handle registers h for eventType. Events without a handler are published to
// the broker on topic TopicPrefix + event type.
func (p *OutboxProcessor) Handle(eventType string, h Handler) *OutboxProcessor {
	p.handlers[eventType] = h
	return p
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims and delivers one batch, returning how many events were claimed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount)
		}
	}
	return len(events), nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.deliver(ctx, event); err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		p.fail(ctx, event, err)
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	if h, ok := p.handlers[event.EventType]; ok {
		return h(ctx, event)
	}
	return p.broker.Publish(ctx, p.config.TopicPrefix+event.EventType, messaging.Message{
		ID:         event.ID.String(),
		Type:       event.EventType,
		Key:        partitionKey(event.Payload),
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	})
}

// fail schedules the next attempt with exponential backoff, or moves the event
// to the dead letter table once RetryAttempts deliveries have failed.
func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	msg := cause.Error()
	if event.RetryCount+1 >= p.config.RetryAttempts {
		if err := p.repo.MoveToDeadLetter(ctx, event, msg); err != nil {
			p.logger.Error(err, "Failed to dead-letter event", "event_id", event.ID.String())
			return
		}
		p.metrics.OutboxDeadLettered.Inc()
		p.logger.Warn("Event moved to dead letter",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"attempts", event.RetryCount+1)
		return
	}

	retryAt := p.now().Add(p.config.RetryDelay << event.RetryCount)
	if err := p.repo.MarkRetry(ctx, event.ID, msg, retryAt); err != nil {
		p.logger.Error(err, "Failed to schedule event retry", "event_id", event.ID.String())
		return
	}
	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
}

// partitionKey keeps the events of one appointment in order on keyed brokers.
func partitionKey(payload json.RawMessage) string {
	var probe struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.AppointmentID
}
