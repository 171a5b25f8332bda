package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
	"github.com/avatarctic/survey-admin/internal/core/ports"
)

// CacheServiceConfig holds the facade's timing knobs.
type CacheServiceConfig struct {
	// OperationTimeout bounds every durable store call.
	OperationTimeout time.Duration
	// DefaultTTL is used when Set receives a non-positive TTL.
	DefaultTTL time.Duration
}

// CacheService is the two-tier cache facade. The durable tier is attempted only
// when the availability monitor allows it; the local tier is always written.
type CacheService struct {
	local   ports.LocalStore
	monitor *AvailabilityMonitor
	cfg     CacheServiceConfig
	logger  *logrus.Logger

	durableHits   atomic.Uint64
	durableMisses atomic.Uint64
	durableErrors atomic.Uint64
	localHits     atomic.Uint64
	localMisses   atomic.Uint64
}

var _ ports.CacheService = (*CacheService)(nil)

// NewCacheService wires the facade over a local store and an availability monitor.
func NewCacheService(local ports.LocalStore, monitor *AvailabilityMonitor, cfg CacheServiceConfig, logger *logrus.Logger) *CacheService {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 2 * time.Second
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	return &CacheService{local: local, monitor: monitor, cfg: cfg, logger: logger}
}

// Get returns the cached bytes for key, trying the durable tier first.
func (s *CacheService) Get(ctx context.Context, key string) ([]byte, bool) {
	var (
		val   []byte
		found bool
	)
	attempted, err := s.durable(ctx, "get", func(ctx context.Context, store ports.DurableStore) error {
		var err error
		val, found, err = store.Get(ctx, key)
		return err
	})
	if attempted && err == nil {
		if found {
			s.durableHits.Add(1)
			observeCacheOp("get", tierDurable, resultHit)
			return val, true
		}
		s.durableMisses.Add(1)
		observeCacheOp("get", tierDurable, resultMiss)
	}

	if v, ok := s.local.Get(key); ok {
		s.localHits.Add(1)
		observeCacheOp("get", tierLocal, resultHit)
		return v, true
	}
	s.localMisses.Add(1)
	observeCacheOp("get", tierLocal, resultMiss)
	return nil, false
}

// Set writes value to both tiers. Durable failures are swallowed; the local
// write always happens, so Set reports true.
func (s *CacheService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	attempted, err := s.durable(ctx, "set", func(ctx context.Context, store ports.DurableStore) error {
		return store.Set(ctx, key, value, ttl)
	})
	if attempted && err == nil {
		observeCacheOp("set", tierDurable, resultOK)
	}
	s.local.Set(key, value, ttl)
	observeCacheOp("set", tierLocal, resultOK)
	return true
}

// Delete removes key from both tiers.
func (s *CacheService) Delete(ctx context.Context, key string) {
	_, _ = s.durable(ctx, "delete", func(ctx context.Context, store ports.DurableStore) error {
		_, err := store.Delete(ctx, key)
		return err
	})
	s.local.Delete(key)
}

// DeleteByPattern removes keys matching a glob pattern from both tiers and returns
// the number of removals summed over the tiers.
func (s *CacheService) DeleteByPattern(ctx context.Context, pattern string) int {
	var durableRemoved int64
	_, _ = s.durable(ctx, "delete_pattern", func(ctx context.Context, store ports.DurableStore) error {
		var err error
		durableRemoved, err = store.DeleteByPattern(ctx, pattern)
		return err
	})
	localRemoved := s.local.DeleteByPattern(pattern)
	total := int(durableRemoved) + localRemoved
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"pattern": pattern, "durable": durableRemoved, "local": localRemoved}).Debug("cache pattern delete")
	}
	return total
}

// Flush clears both tiers.
func (s *CacheService) Flush(ctx context.Context) {
	_, _ = s.durable(ctx, "flush", func(ctx context.Context, store ports.DurableStore) error {
		return store.Clear(ctx)
	})
	s.local.Clear()
	if s.logger != nil {
		s.logger.Info("cache flushed")
	}
}

// GenerateKey implements ports.CacheService.
func (s *CacheService) GenerateKey(prefix string, params cache.Params) string {
	return cache.GenerateKey(prefix, params)
}

// IsAvailable reports whether the durable tier is currently in use.
func (s *CacheService) IsAvailable() bool {
	return s.monitor.State().IsAvailable
}

// Stats returns availability, hit counters and entry counts for both tiers.
func (s *CacheService) Stats(ctx context.Context) cache.Stats {
	keys := int64(-1)
	_, _ = s.durable(ctx, "size", func(ctx context.Context, store ports.DurableStore) error {
		n, err := store.Size(ctx)
		if err == nil {
			keys = n
		}
		return err
	})
	entries := s.local.Len()
	cacheLocalEntries.Set(float64(entries))
	return cache.Stats{
		Durable: cache.DurableStats{
			AvailabilityState: s.monitor.State(),
			Hits:              s.durableHits.Load(),
			Misses:            s.durableMisses.Load(),
			Errors:            s.durableErrors.Load(),
			Keys:              keys,
		},
		Local: cache.LocalStats{
			EntryCount: entries,
			Hits:       s.localHits.Load(),
			Misses:     s.localMisses.Load(),
		},
	}
}

// Reenable implements ports.CacheService.
func (s *CacheService) Reenable(ctx context.Context) {
	if !s.monitor.Reenable() && s.logger != nil {
		s.logger.WithField("state", s.monitor.State().StateName).Info("cache re-enable ignored, durable tier is not disabled")
	}
}

// durable runs fn against the durable store when the monitor allows it. The call
// is bounded by OperationTimeout; failures are reported to the monitor unless the
// caller's own context ended first. A panicking store counts as a failure.
func (s *CacheService) durable(ctx context.Context, op string, fn func(context.Context, ports.DurableStore) error) (attempted bool, err error) {
	store, gen, ok := s.monitor.lease()
	if !ok {
		return false, nil
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	err = callDurable(opCtx, store, fn)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return true, err
	}
	s.durableErrors.Add(1)
	observeCacheOp(op, tierDurable, resultError)
	s.monitor.reportFailureFrom(gen, fmt.Errorf("durable %s: %w", op, err))
	return true, err
}

func callDurable(ctx context.Context, store ports.DurableStore, fn func(context.Context, ports.DurableStore) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("durable store panic: %v", r)
		}
	}()
	return fn(ctx, store)
}
