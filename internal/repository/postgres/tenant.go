package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type tenantRepository struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) repository.TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	query := `
		SELECT id, name, slug, timezone, business_hours, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	var tenant model.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", mapError(err))
	}
	return &tenant, nil
}
