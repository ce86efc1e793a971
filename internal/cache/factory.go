package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spherelink/spherelink/internal/config"
)

// New builds a cache from the application config: Redis when a URL is
// set, an in-process cache otherwise.
func New(cfg config.Config) (Cache, error) {
	ttl := time.Duration(cfg.CacheTTL) * time.Second

	if cfg.UseRedisCache() {
		c, err := NewRedis(cfg.RedisURL, cfg.CachePrefix, ttl)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("cache backend: redis", "prefix", cfg.CachePrefix, "ttl", ttl)
		return c, nil
	}

	slog.Info("cache backend: memory", "max_entries", cfg.CacheMaxSize, "ttl", ttl)
	return NewMemory(ttl, cfg.CacheMaxSize), nil
}
