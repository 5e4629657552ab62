// Package memory provides the in-process search cache backed by go-cache.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
)

const (
	DefaultExpiration      = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// SearchCache keeps search identifiers in process memory.
type SearchCache struct {
	cache  *gocache.Cache
	logger logging.Logger
}

// NewSearchCache creates an empty cache.  Non-positive durations select the
// package defaults.
func NewSearchCache(defaultExpiration, cleanupInterval time.Duration, logger logging.Logger) *SearchCache {
	if defaultExpiration <= 0 {
		defaultExpiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SearchCache{
		cache:  gocache.New(defaultExpiration, cleanupInterval),
		logger: logger,
	}
}

// Get returns a copy of the identifiers stored under key.
func (c *SearchCache) Get(_ context.Context, key string) ([]string, bool, error) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	ids, ok := value.([]string)
	if !ok {
		c.logger.Error("unexpected cache value type", logging.String("key", key))
		c.cache.Delete(key)
		return nil, false, nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, true, nil
}

// Set stores a copy of ids.  A zero ttl uses the cache default.
func (c *SearchCache) Set(_ context.Context, key string, ids []string, ttl time.Duration) error {
	stored := make([]string, len(ids))
	copy(stored, ids)
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, stored, ttl)
	return nil
}

// Ping always succeeds.
func (c *SearchCache) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, expired ones included until the
// next cleanup.
func (c *SearchCache) Len() int { return c.cache.ItemCount() }

// Flush drops every entry.
func (c *SearchCache) Flush() { c.cache.Flush() }
