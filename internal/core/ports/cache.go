package ports

import (
	"context"
	"time"

	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
)

// DurableStore is the network-attached, TTL-native cache tier.
// Implementations never retry: failure accounting belongs to the availability monitor.
type DurableStore interface {
	// Get returns the raw bytes for key. ok=false if not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for key, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Keys enumerates keys matching a pattern in which only `*` is special.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// DeleteByPattern enumerates and removes keys matching a `*`-only pattern.
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
	// Clear removes every key owned by this store.
	Clear(ctx context.Context) error
	// Size returns the number of keys owned by this store.
	Size(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// DurableStoreFactory builds a fresh, not yet connected, durable store.
type DurableStoreFactory func() DurableStore

// LocalStore is the in-process fallback tier. It never fails and never blocks on I/O.
type LocalStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string) bool
	DeleteByPattern(pattern string) int
	Clear()
	Len() int
}

// CacheService is the cache facade consumed by repositories and handlers.
// No method returns an error: every failure degrades to a miss or a local-only write.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string)
	DeleteByPattern(ctx context.Context, pattern string) int
	Flush(ctx context.Context)
	GenerateKey(prefix string, params cache.Params) string
	IsAvailable() bool
	Stats(ctx context.Context) cache.Stats
	// Reenable is the operator action that takes the durable tier out of the disabled state.
	Reenable(ctx context.Context)
}
