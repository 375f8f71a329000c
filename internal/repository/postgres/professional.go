package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type professionalRepository struct {
	db *sqlx.DB
}

func NewProfessionalRepository(db *sqlx.DB) repository.ProfessionalRepository {
	return &professionalRepository{db: db}
}

func (r *professionalRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Professional, error) {
	query := `
		SELECT id, tenant_id, name, active, created_at, updated_at
		FROM professionals
		WHERE tenant_id = $1 AND id = $2
	`
	var professional model.Professional
	if err := r.db.GetContext(ctx, &professional, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get professional: %w", mapError(err))
	}
	return &professional, nil
}
