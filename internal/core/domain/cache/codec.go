package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// ByteCache is the subset of the cache facade the typed helpers need.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string)
}

// GetJSON reads key and decodes it into T. A payload that does not decode is
// deleted so it is not decoded again, and reported as a miss.
func GetJSON[T any](ctx context.Context, c ByteCache, key string) (T, bool) {
	var v T
	b, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		c.Delete(ctx, key)
		var zero T
		return zero, false
	}
	return v, true
}

// SetJSON encodes v and stores it under key. It returns false only when v cannot be encoded.
func SetJSON[T any](ctx context.Context, c ByteCache, key string, v T, ttl time.Duration) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.Set(ctx, key, b, ttl)
}

// DefaultLoadTimeout bounds a coalesced load when NewLoadGroup gets no timeout.
const DefaultLoadTimeout = 30 * time.Second

// LoadGroup coalesces concurrent cache-miss loads of the same key. Each cache
// consumer owns its group, so independent caches never share a load.
type LoadGroup struct {
	sf      singleflight.Group
	timeout time.Duration
}

func NewLoadGroup(timeout time.Duration) *LoadGroup {
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &LoadGroup{timeout: timeout}
}

// Remember is cache-aside: it returns the cached T for key, or calls loader once
// across concurrent callers in g, caches its result for ttl and returns it.
// Loader errors are returned and nothing is cached.
//
// The shared load is detached from any single caller's cancellation and bounded
// by the group timeout. Each caller still stops waiting when its own ctx ends.
func Remember[T any](ctx context.Context, g *LoadGroup, c ByteCache, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := GetJSON[T](ctx, c, key); ok {
		return v, nil
	}
	ch := g.sf.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		if v, ok := GetJSON[T](loadCtx, c, key); ok {
			return v, nil
		}
		v, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		SetJSON(loadCtx, c, key, v, ttl)
		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}
	v, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type %T from cache load for %s", res.Val, key)
	}
	return v, nil
}
