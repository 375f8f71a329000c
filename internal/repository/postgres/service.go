package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type serviceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) GetActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, tenant_id, name, duration, price, active, created_at, updated_at
		FROM services
		WHERE tenant_id = $1 AND id = ANY($2::uuid[]) AND active
	`
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, tenantID, pq.StringArray(keys)); err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	return services, nil
}
