package redis

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	config "github.com/avatarctic/survey-admin/configs"
	"github.com/avatarctic/survey-admin/internal/core/ports"
)

// NewRedisClient creates a Redis client without dialing. go-redis connects lazily;
// the handshake is owned by the availability monitor so a dead Redis never blocks startup.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		// Retries are counted by the availability monitor instead.
		MaxRetries: -1,
	})
}

// NewStoreFactory returns a factory building a namespaced Store over a fresh client.
func NewStoreFactory(cfg *config.RedisConfig, prefix string) ports.DurableStoreFactory {
	return func() ports.DurableStore {
		return NewStore(NewRedisClient(cfg), prefix)
	}
}
