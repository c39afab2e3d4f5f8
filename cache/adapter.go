package cache

import (
	"context"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/cache/local"
	cacheredis "github.com/Kazxye/Loot-Logger-Albion-Online/cache/redis"
	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
)

// Cache is the KV surface backing the price cache. Get returns
// ErrNotFound (wrapped per backend) for missing or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns a Cache backed by Redis if RedisAddr is set, otherwise
// an in-process LocalCache.
func New(cfg config.CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		return cacheredis.NewCache(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return local.NewCache(local.Config{
		GCInterval: cfg.LocalGCInterval,
	})
}
