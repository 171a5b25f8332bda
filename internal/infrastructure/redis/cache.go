package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/survey-admin/internal/core/ports"
)

// Store implements ports.DurableStore using a Redis client.
type Store struct {
	r redis.UniversalClient
	// optional key prefix to namespace entries
	prefix string
}

var _ ports.DurableStore = (*Store)(nil)

// NewStore creates a new Redis-backed durable store.
func NewStore(r redis.UniversalClient, prefix string) *Store {
	return &Store{r: r, prefix: prefix}
}

func (s *Store) namespaced(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// globEscaper quotes every Redis glob metacharacter except `*`, so a pattern
// selects the same keys here as in the local tier.
var globEscaper = strings.NewReplacer(`\`, `\\`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// keysPattern turns a `*`-only pattern into a KEYS argument. The namespace is
// matched literally.
func (s *Store) keysPattern(pattern string) string {
	escaped := globEscaper.Replace(pattern)
	if s.prefix == "" {
		return escaped
	}
	return strings.ReplaceAll(globEscaper.Replace(s.prefix), "*", `\*`) + ":" + escaped
}

func (s *Store) strip(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+":")
}

// Get implements DurableStore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.r.Get(ctx, s.namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements DurableStore.Set. It issues SET key value EX ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.r.Set(ctx, s.namespaced(key), value, ttl).Err()
}

// Delete implements DurableStore.Delete.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ns := make([]string, len(keys))
	for i, k := range keys {
		ns[i] = s.namespaced(k)
	}
	return s.r.Del(ctx, ns...).Result()
}

// Keys implements DurableStore.Keys. Returned keys have the namespace stripped.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	raw, err := s.r.Keys(ctx, s.keysPattern(pattern)).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = s.strip(k)
	}
	return keys, nil
}

// DeleteByPattern implements DurableStore.DeleteByPattern.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	raw, err := s.r.Keys(ctx, s.keysPattern(pattern)).Result()
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	return s.r.Del(ctx, raw...).Result()
}

// Clear implements DurableStore.Clear. Without a namespace the whole database is
// flushed; with one only the namespaced keys are removed.
func (s *Store) Clear(ctx context.Context) error {
	if s.prefix == "" {
		return s.r.FlushDB(ctx).Err()
	}
	_, err := s.DeleteByPattern(ctx, "*")
	return err
}

// Size implements DurableStore.Size.
func (s *Store) Size(ctx context.Context) (int64, error) {
	if s.prefix == "" {
		return s.r.DBSize(ctx).Result()
	}
	raw, err := s.r.Keys(ctx, s.keysPattern("*")).Result()
	if err != nil {
		return 0, err
	}
	return int64(len(raw)), nil
}

// Ping implements DurableStore.Ping.
func (s *Store) Ping(ctx context.Context) error {
	return s.r.Ping(ctx).Err()
}

// Close implements DurableStore.Close.
func (s *Store) Close() error {
	return s.r.Close()
}
