package health

import (
	"context"
	"fmt"

	"github.com/avatarctic/survey-admin/internal/core/ports"
	infraDB "github.com/avatarctic/survey-admin/internal/infrastructure/db"
)

// dbHealthChecker wraps the database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.Ping(ctx) }

// cacheHealthChecker reports the durable cache tier. It never dials Redis itself;
// the availability monitor owns the connection, so the probe reads its state.
type cacheHealthChecker struct{ cache ports.CacheService }

func (r *cacheHealthChecker) Name() string { return "cache" }

func (r *cacheHealthChecker) Check(ctx context.Context) error {
	if r.cache.IsAvailable() {
		return nil
	}
	st := r.cache.Stats(ctx).Durable
	return fmt.Errorf("%w: durable cache %s after %d consecutive failures", ports.ErrDegraded, st.StateName, st.ConsecutiveFailures)
}

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewCacheHealthChecker creates a health checker for the two-tier cache.
func NewCacheHealthChecker(c ports.CacheService) ports.HealthChecker {
	return &cacheHealthChecker{cache: c}
}
