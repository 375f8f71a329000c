package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type appointmentEventRepository struct {
	db *sqlx.DB
}

func NewAppointmentEventRepository(db *sqlx.DB) repository.AppointmentEventRepository {
	return &appointmentEventRepository{db: db}
}

func (r *appointmentEventRepository) Create(ctx context.Context, event *model.AppointmentEvent) error {
	query := `
		INSERT INTO appointment_events (
			id, tenant_id, appointment_id, event_type, actor_type, actor_id, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.TenantID,
		event.AppointmentID,
		event.EventType,
		event.ActorType,
		event.ActorID,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment event: %w", mapError(err))
	}
	return nil
}

func (r *appointmentEventRepository) ListByAppointment(ctx context.Context, tenantID, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	query := `
		SELECT id, tenant_id, appointment_id, event_type, actor_type, actor_id, payload, created_at
		FROM appointment_events
		WHERE tenant_id = $1 AND appointment_id = $2
		ORDER BY created_at ASC, id ASC
	`
	var events []*model.AppointmentEvent
	if err := r.db.SelectContext(ctx, &events, query, tenantID, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list appointment events: %w", err)
	}
	return events, nil
}
