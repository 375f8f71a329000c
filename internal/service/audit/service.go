package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

const writeTimeout = 5 * time.Second

// Entry describes one appointment mutation.
type Entry struct {
	TenantID      uuid.UUID
	AppointmentID uuid.UUID
	Type          model.AppointmentEventType
	Actor         model.Actor
	Payload       model.JSONMap
}

// Service appends to the appointment event trail. Writes are best-effort: a
// failed write never fails the mutation it documents. Instead it is queued on
// the outbox for the worker to retry and, eventually, dead-letter.
type Service struct {
	events  repository.AppointmentEventRepository
	outbox  repository.OutboxRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(
	events repository.AppointmentEventRepository,
	outbox repository.OutboxRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		events:  events,
		outbox:  outbox,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Record writes the event. It does not return an error by contract.
func (s *Service) Record(ctx context.Context, entry Entry) {
	// The mutation already happened; a caller hanging up must not drop its trail.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	event := &model.AppointmentEvent{
		ID:            uuid.New(),
		TenantID:      entry.TenantID,
		AppointmentID: entry.AppointmentID,
		EventType:     entry.Type,
		ActorType:     entry.Actor.Type,
		ActorID:       entry.Actor.ID,
		Payload:       entry.Payload,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.events.Create(ctx, event); err != nil {
		s.metrics.AuditWriteFailures.Inc()
		s.logger.Error(err, "Failed to write appointment event, queueing retry",
			"event_id", event.ID.String(),
			"appointment_id", event.AppointmentID.String(),
			"event_type", string(event.EventType))

		if qErr := s.enqueue(ctx, model.OutboxAppointmentEventRetry, event); qErr != nil {
			s.logger.Error(qErr, "Appointment event lost",
				"event_id", event.ID.String(),
				"appointment_id", event.AppointmentID.String(),
				"event_type", string(event.EventType))
		}
		return
	}

	if err := s.enqueue(ctx, model.OutboxAppointmentEventRecorded, event); err != nil {
		s.logger.Warn("Failed to publish appointment event",
			"event_id", event.ID.String(),
			"error", err.Error())
	}
}

// List returns the trail of one appointment, oldest first.
func (s *Service) List(ctx context.Context, tenantID, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	events, err := s.events.ListByAppointment(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment events: %w", err)
	}
	return events, nil
}

// HandleRetry re-inserts an event queued by Record. Inserts are idempotent on
// the event id, so replays after a partial success are harmless.
func (s *Service) HandleRetry(ctx context.Context, outboxEvent *model.OutboxEvent) error {
	var event model.AppointmentEvent
	if err := json.Unmarshal(outboxEvent.Payload, &event); err != nil {
		return fmt.Errorf("failed to decode queued appointment event: %w", err)
	}
	if err := s.events.Create(ctx, &event); err != nil {
		return fmt.Errorf("failed to replay appointment event: %w", err)
	}
	s.logger.Info("Replayed appointment event",
		"event_id", event.ID.String(),
		"retry_count", outboxEvent.RetryCount)
	return nil
}

func (s *Service) enqueue(ctx context.Context, eventType string, event *model.AppointmentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal appointment event: %w", err)
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}
