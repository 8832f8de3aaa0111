package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	ExpiryDefaultInMemory = 30 * time.Minute

	// cleanupInterval determines how often expired entries are purged.
	cleanupInterval = 10 * time.Minute
)

// InMemoryCache implements Cache using an in-process store.
type InMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache creates a new in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		store: gocache.New(ExpiryDefaultInMemory, cleanupInterval),
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = ExpiryDefaultInMemory
	}
	c.store.Set(key, value, expiration)
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	c.store.Delete(key)
}
