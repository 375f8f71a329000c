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

type clientRepository struct {
	db *sqlx.DB
}

func NewClientRepository(db *sqlx.DB) repository.ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Client, error) {
	query := `
		SELECT id, tenant_id, name, phone, email, created_at, updated_at
		FROM clients
		WHERE tenant_id = $1 AND id = $2
	`
	var client model.Client
	if err := r.db.GetContext(ctx, &client, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get client: %w", mapError(err))
	}
	return &client, nil
}

func (r *clientRepository) GetByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*model.Client, error) {
	query := `
		SELECT id, tenant_id, name, phone, email, created_at, updated_at
		FROM clients
		WHERE tenant_id = $1 AND phone = $2
	`
	var client model.Client
	if err := r.db.GetContext(ctx, &client, query, tenantID, phone); err != nil {
		return nil, fmt.Errorf("failed to get client by phone: %w", mapError(err))
	}
	return &client, nil
}

// Upsert relies on the unique (tenant_id, phone) index so concurrent bookings
// by the same new phone number converge on one row.
func (r *clientRepository) Upsert(ctx context.Context, client *model.Client) (*model.Client, error) {
	query := `
		INSERT INTO clients (id, tenant_id, name, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (tenant_id, phone) DO UPDATE SET
			name = EXCLUDED.name,
			email = COALESCE(EXCLUDED.email, clients.email),
			updated_at = CASE
				WHEN clients.name IS DISTINCT FROM EXCLUDED.name
				  OR (EXCLUDED.email IS NOT NULL AND clients.email IS DISTINCT FROM EXCLUDED.email)
				THEN EXCLUDED.updated_at
				ELSE clients.updated_at
			END
		RETURNING id, tenant_id, name, phone, email, created_at, updated_at
	`
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	now := time.Now().UTC()

	var stored model.Client
	err := r.db.GetContext(ctx, &stored, query,
		client.ID,
		client.TenantID,
		client.Name,
		client.Phone,
		client.Email,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert client: %w", mapError(err))
	}
	return &stored, nil
}
