package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

const (
	defaultPrefix = "molreg:"
	defaultTTL    = 5 * time.Minute
	defaultJitter = 0.1
)

// SearchCache stores search identifiers as JSON arrays under a key prefix.
type SearchCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	jitter     float64
}

// CacheOption configures a SearchCache.
type CacheOption func(*SearchCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *SearchCache) { c.prefix = prefix }
}

func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *SearchCache) { c.defaultTTL = ttl }
}

// WithJitter spreads expiry by +/- fraction of the ttl.  Zero disables it.
func WithJitter(fraction float64) CacheOption {
	return func(c *SearchCache) { c.jitter = fraction }
}

func NewSearchCache(client *Client, log logging.Logger, opts ...CacheOption) *SearchCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &SearchCache{
		client:     client,
		logger:     log,
		prefix:     defaultPrefix,
		defaultTTL: defaultTTL,
		jitter:     defaultJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SearchCache) fullKey(key string) string {
	return c.prefix + key
}

func (c *SearchCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || c.jitter <= 0 {
		return ttl
	}
	delta := float64(ttl) * c.jitter * (rand.Float64()*2 - 1)
	return ttl + time.Duration(delta)
}

// Get returns the identifiers stored under key.  A missing key is a miss, not
// an error.
func (c *SearchCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		c.logger.Warn("discarding undecodable cache entry", logging.String("key", key), logging.Err(err))
		return nil, false, nil
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true, nil
}

// Set stores ids.  A zero ttl uses the configured default.
func (c *SearchCache) Set(ctx context.Context, key string, ids []string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to encode cache entry")
	}
	if err := c.client.Set(ctx, c.fullKey(key), string(data), c.jitterTTL(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write cache")
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (c *SearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
