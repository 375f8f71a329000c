package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type scheduleOverrideRepository struct {
	db *sqlx.DB
}

func NewScheduleOverrideRepository(db *sqlx.DB) repository.ScheduleOverrideRepository {
	return &scheduleOverrideRepository{db: db}
}

func (r *scheduleOverrideRepository) ListCovering(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) ([]*model.ScheduleOverride, error) {
	query := `
		SELECT id, tenant_id, professional_id, start_date, end_date, type,
		       start_time, end_time, reason, created_at, updated_at
		FROM schedule_overrides
		WHERE tenant_id = $1
		  AND professional_id = $2
		  AND start_date <= $3::date
		  AND end_date >= $3::date
		ORDER BY created_at DESC, id DESC
	`
	var overrides []*model.ScheduleOverride
	day := model.CivilDate(date).Format(model.DateLayout)
	if err := r.db.SelectContext(ctx, &overrides, query, tenantID, professionalID, day); err != nil {
		return nil, fmt.Errorf("failed to list schedule overrides: %w", err)
	}
	return overrides, nil
}

func (r *scheduleOverrideRepository) HasUnavailable(ctx context.Context, tenantID, professionalID uuid.UUID, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM schedule_overrides
			WHERE tenant_id = $1
			  AND professional_id = $2
			  AND type = 'unavailable'
			  AND start_date <= $3::date
			  AND end_date >= $3::date
		)
	`
	var exists bool
	day := model.CivilDate(date).Format(model.DateLayout)
	if err := r.db.GetContext(ctx, &exists, query, tenantID, professionalID, day); err != nil {
		return false, fmt.Errorf("failed to check unavailable overrides: %w", err)
	}
	return exists, nil
}
