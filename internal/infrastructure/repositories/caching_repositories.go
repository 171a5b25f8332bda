package repositories

import (
	"context"
	"time"

	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
	"github.com/avatarctic/survey-admin/internal/core/domain/rechequeo"
	"github.com/avatarctic/survey-admin/internal/core/ports"
)

// RechequeoCacheTTLs sets how long each query family stays cached.
type RechequeoCacheTTLs struct {
	List    time.Duration
	KPIs    time.Duration
	Filters time.Duration
	// Load bounds one coalesced database load; zero means cache.DefaultLoadTimeout.
	Load time.Duration
}

// CachingRechequeoRepository decorates a RechequeoRepository with cache-aside.
type CachingRechequeoRepository struct {
	inner ports.RechequeoRepository
	cache ports.CacheService
	ttls  RechequeoCacheTTLs
	loads *cache.LoadGroup
}

func NewCachingRechequeoRepository(inner ports.RechequeoRepository, c ports.CacheService, ttls RechequeoCacheTTLs) ports.RechequeoRepository {
	return &CachingRechequeoRepository{inner: inner, cache: c, ttls: ttls, loads: cache.NewLoadGroup(ttls.Load)}
}

// Create writes through and invalidates every cached rechequeo query, since a new
// row can change any listing, count, KPI or filter option.
func (c *CachingRechequeoRepository) Create(ctx context.Context, r *rechequeo.Rechequeo) error {
	if err := c.inner.Create(ctx, r); err != nil {
		return err
	}
	c.cache.DeleteByPattern(ctx, rechequeo.KeyNamespace+":*")
	return nil
}

func (c *CachingRechequeoRepository) List(ctx context.Context, filter rechequeo.Filter) ([]*rechequeo.Rechequeo, error) {
	key := c.cache.GenerateKey(rechequeo.KeyPrefixList, filter.PageCacheParams())
	return cache.Remember(ctx, c.loads, c.cache, key, c.ttls.List, func(ctx context.Context) ([]*rechequeo.Rechequeo, error) {
		return c.inner.List(ctx, filter)
	})
}

func (c *CachingRechequeoRepository) Count(ctx context.Context, filter rechequeo.Filter) (int, error) {
	key := c.cache.GenerateKey(rechequeo.KeyPrefixCount, filter.CacheParams())
	return cache.Remember(ctx, c.loads, c.cache, key, c.ttls.List, func(ctx context.Context) (int, error) {
		return c.inner.Count(ctx, filter)
	})
}

func (c *CachingRechequeoRepository) KPIs(ctx context.Context, filter rechequeo.Filter) (*rechequeo.KPIs, error) {
	key := c.cache.GenerateKey(rechequeo.KeyPrefixKPIs, filter.CacheParams())
	return cache.Remember(ctx, c.loads, c.cache, key, c.ttls.KPIs, func(ctx context.Context) (*rechequeo.KPIs, error) {
		return c.inner.KPIs(ctx, filter)
	})
}

func (c *CachingRechequeoRepository) FilterOptions(ctx context.Context) (*rechequeo.FilterOptions, error) {
	key := c.cache.GenerateKey(rechequeo.KeyPrefixFilters, nil)
	return cache.Remember(ctx, c.loads, c.cache, key, c.ttls.Filters, c.inner.FilterOptions)
}

var _ ports.RechequeoRepository = (*CachingRechequeoRepository)(nil)
