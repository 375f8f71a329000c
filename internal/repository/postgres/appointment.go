package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

const appointmentColumns = `
	id, tenant_id, client_id, professional_id, start_time, end_time, status,
	total_duration, total_price, notes, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, tenant_id, client_id, professional_id, start_time, end_time, status,
			total_duration, total_price, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.TenantID,
		appointment.ClientID,
		appointment.ProfessionalID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.TotalDuration,
		appointment.TotalPrice,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", mapError(err))
	}
	return nil
}

func (r *appointmentRepository) CreateServices(ctx context.Context, items []*model.AppointmentService) error {
	if len(items) == 0 {
		return fmt.Errorf("failed to create appointment services: no line items")
	}
	query := `
		INSERT INTO appointment_services (
			id, appointment_id, service_id, service_name_at_booking,
			price_at_booking, duration_at_booking, order_index
		) VALUES (:id, :appointment_id, :service_id, :service_name_at_booking,
			:price_at_booking, :duration_at_booking, :order_index)
	`
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, items); err != nil {
			return fmt.Errorf("failed to create appointment services: %w", mapError(err))
		}
		return nil
	})
}

func (r *appointmentRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", mapError(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetDetails(ctx context.Context, tenantID, id uuid.UUID) (*model.AppointmentDetails, error) {
	appointment, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	details := &model.AppointmentDetails{Appointment: *appointment}

	professionalQuery := `SELECT id, name FROM professionals WHERE tenant_id = $1 AND id = $2`
	if err := r.db.GetContext(ctx, &details.Professional, professionalQuery, tenantID, appointment.ProfessionalID); err != nil {
		return nil, fmt.Errorf("failed to get appointment professional: %w", mapError(err))
	}

	if appointment.ClientID != nil {
		var client model.ClientSummary
		clientQuery := `SELECT id, name, phone, email FROM clients WHERE tenant_id = $1 AND id = $2`
		if err := r.db.GetContext(ctx, &client, clientQuery, tenantID, *appointment.ClientID); err != nil {
			return nil, fmt.Errorf("failed to get appointment client: %w", mapError(err))
		}
		details.Client = &client
	}

	servicesQuery := `
		SELECT id, appointment_id, service_id, service_name_at_booking,
		       price_at_booking, duration_at_booking, order_index
		FROM appointment_services
		WHERE appointment_id = $1
		ORDER BY order_index ASC
	`
	if err := r.db.SelectContext(ctx, &details.Services, servicesQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment services: %w", err)
	}

	return details, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	var (
		conditions = []string{"tenant_id = $1"}
		args       = []interface{}{filter.TenantID}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ProfessionalID != nil {
		add("professional_id = $%d", *filter.ProfessionalID)
	}
	if filter.ClientID != nil {
		add("client_id = $%d", *filter.ClientID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.From != nil {
		add("end_time > $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_time < $%d", *filter.To)
	}

	page := filter.Pagination.Normalize()
	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`SELECT %s
		FROM appointments
		WHERE %s
		ORDER BY start_time ASC, id ASC
		LIMIT $%d OFFSET $%d`,
		appointmentColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListActiveBetween(ctx context.Context, tenantID, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = $1
		  AND professional_id = $2
		  AND status <> 'cancelled'
		  AND start_time < $4
		  AND end_time > $3
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, tenantID, professionalID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list professional appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) HasOverlap(ctx context.Context, tenantID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE tenant_id = $1
			  AND professional_id = $2
			  AND status <> 'cancelled'
			  AND start_time < $4
			  AND end_time > $3
	`
	args := []interface{}{tenantID, professionalID, start, end}
	if excludeID != nil {
		query += " AND id != $5"
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check appointment conflicts: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET client_id = $1, professional_id = $2, start_time = $3, end_time = $4,
		    notes = $5, updated_at = $6
		WHERE tenant_id = $7 AND id = $8 AND updated_at = $9
	`
	readAt := appointment.UpdatedAt
	updatedAt := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		appointment.ClientID,
		appointment.ProfessionalID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Notes,
		updatedAt,
		appointment.TenantID,
		appointment.ID,
		readAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", mapError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return r.missingOrStale(ctx, appointment.TenantID, appointment.ID)
	}
	appointment.UpdatedAt = updatedAt
	return nil
}

// missingOrStale explains a guarded update that matched no row.
func (r *appointmentRepository) missingOrStale(ctx context.Context, tenantID, id uuid.UUID) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM appointments WHERE tenant_id = $1 AND id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, tenantID, id); err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	if !exists {
		return fmt.Errorf("appointment: %w", repository.ErrNotFound)
	}
	return fmt.Errorf("appointment %s: %w", id, repository.ErrStale)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", mapError(err))
	}
	return requireRow(result, "appointment")
}

func (r *appointmentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		itemsQuery := `
			DELETE FROM appointment_services
			WHERE appointment_id = (SELECT id FROM appointments WHERE tenant_id = $1 AND id = $2)
		`
		if _, err := tx.ExecContext(ctx, itemsQuery, tenantID, id); err != nil {
			return fmt.Errorf("failed to delete appointment services: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		return requireRow(result, "appointment")
	})
}
