// Package cache holds read-through decorators for rarely changing repositories.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository"
)

type tenantRepository struct {
	next  repository.TenantRepository
	cache *cache.Cache
}

// NewTenantRepository caches tenant lookups for ttl. Misses and errors are not cached.
func NewTenantRepository(next repository.TenantRepository, ttl, cleanupInterval time.Duration) repository.TenantRepository {
	return &tenantRepository{
		next:  next,
		cache: cache.New(ttl, cleanupInterval),
	}
}

func (r *tenantRepository) Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	if cached, found := r.cache.Get(id.String()); found {
		return cached.(*model.Tenant), nil
	}

	tenant, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Set(id.String(), tenant, cache.DefaultExpiration)
	return tenant, nil
}
