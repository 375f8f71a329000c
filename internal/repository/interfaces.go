package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/salon-api/internal/model"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert or update would overlap another
	// non-cancelled appointment of the same professional.
	ErrConflict = errors.New("appointment interval conflict")
	// ErrDuplicate is returned on unique key violations.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned when a guarded update finds the row changed since it was read.
	ErrStale = errors.New("record changed since it was read")
)

// All repository interfaces in one file
type (
	TenantRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	}

	ScheduleOverrideRepository interface {
		// ListCovering returns overrides of the professional whose date range contains date.
		ListCovering(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]*model.ScheduleOverride, error)
		HasUnavailable(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) (bool, error)
	}

	ServiceRepository interface {
		// GetActiveByIDs returns the active services among ids, in no particular order.
		GetActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error)
	}

	ProfessionalRepository interface {
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Professional, error)
	}

	ClientRepository interface {
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Client, error)
		GetByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*model.Client, error)
		// Upsert inserts the client or, when (tenant_id, phone) exists, updates the
		// name and any non-nil email. The stored row is returned.
		Upsert(ctx context.Context, client *model.Client) (*model.Client, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		CreateServices(ctx context.Context, items []*model.AppointmentService) error
		Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error)
		GetDetails(ctx context.Context, tenantID, id uuid.UUID) (*model.AppointmentDetails, error)
		List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error)
		// ListActiveBetween returns non-cancelled appointments of the professional overlapping [from, to).
		ListActiveBetween(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		HasOverlap(ctx context.Context, tenantID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		// Update writes client, professional, times and notes. It never touches
		// status, and it only applies while updated_at still equals
		// appointment.UpdatedAt; otherwise it returns ErrStale.
		Update(ctx context.Context, appointment *model.Appointment) error
		UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status model.AppointmentStatus) error
		// Delete removes the line items, then the appointment row.
		Delete(ctx context.Context, tenantID, id uuid.UUID) error
	}

	AppointmentEventRepository interface {
		// Create is idempotent on event id.
		Create(ctx context.Context, event *model.AppointmentEvent) error
		ListByAppointment(ctx context.Context, tenantID, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock claims up to limit due events, marking them processing.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
