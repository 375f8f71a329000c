package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type countingTenantRepo struct {
	tenants map[uuid.UUID]*model.Tenant
	calls   int
}

func (r *countingTenantRepo) Get(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.calls++
	t, ok := r.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func TestTenantRepositoryCachesHits(t *testing.T) {
	id := uuid.New()
	next := &countingTenantRepo{tenants: map[uuid.UUID]*model.Tenant{id: {Base: model.Base{ID: id}, Name: "Studio"}}}
	repo := NewTenantRepository(next, time.Minute, time.Minute)

	for i := 0; i < 3; i++ {
		tenant, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Studio", tenant.Name)
	}
	assert.Equal(t, 1, next.calls)
}

func TestTenantRepositoryDoesNotCacheMisses(t *testing.T) {
	next := &countingTenantRepo{tenants: map[uuid.UUID]*model.Tenant{}}
	repo := NewTenantRepository(next, time.Minute, time.Minute)

	missing := uuid.New()
	_, err := repo.Get(context.Background(), missing)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.Get(context.Background(), missing)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 2, next.calls)
}
