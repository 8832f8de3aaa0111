package cache

import (
	"context"
	"time"

	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/logger"
)

// CacheType represents the type of cache to use
type CacheType string

const (
	CacheTypeInMemory CacheType = "inmemory"
	CacheTypeRedis    CacheType = "redis"
)

// Cache is a read-through cache for hot projections such as the subscription
// status endpoint. It is advisory: every miss or backend failure falls back
// to storage, and writers invalidate on every mutation.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
}

// New builds the cache backend selected by configuration.
func New(cfg *config.Configuration, log *logger.Logger) Cache {
	if !cfg.Cache.Enabled {
		return NewNoopCache()
	}

	switch CacheType(cfg.Cache.Type) {
	case CacheTypeRedis:
		return NewRedisCache(cfg, log)
	case CacheTypeInMemory:
		fallthrough
	default:
		return NewInMemoryCache()
	}
}

// noopCache satisfies Cache when caching is disabled.
type noopCache struct{}

func NewNoopCache() Cache { return noopCache{} }

func (noopCache) Get(ctx context.Context, key string) (interface{}, bool) { return nil, false }
func (noopCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
}
func (noopCache) Delete(ctx context.Context, key string) {}
