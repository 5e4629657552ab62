// Package config defines the molregistry configuration and its loading,
// defaulting and validation.
package config

import (
	"fmt"
	"time"

	rediscache "github.com/turtacn/molregistry/internal/infrastructure/cache/redis"
	"github.com/turtacn/molregistry/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/tracing"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MaxUploadBytes caps the multipart body of a bulk upload.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	CORSAllowedOrigins   []string      `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	SlowRequestThreshold time.Duration `mapstructure:"slow_request_threshold" yaml:"slow_request_threshold"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SearchConfig tunes substructure search.
type SearchConfig struct {
	Workers  int           `mapstructure:"workers" yaml:"workers"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// CacheConfig selects the search-result cache.
type CacheConfig struct {
	Backend         string            `mapstructure:"backend" yaml:"backend"`
	CleanupInterval time.Duration     `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	KeyPrefix       string            `mapstructure:"key_prefix" yaml:"key_prefix"`
	Redis           rediscache.Config `mapstructure:"redis" yaml:"redis"`
}

// EventsConfig controls registry change events.
type EventsConfig struct {
	Enabled        bool                 `mapstructure:"enabled" yaml:"enabled"`
	Source         string               `mapstructure:"source" yaml:"source"`
	PublishTimeout time.Duration        `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	Kafka          kafka.ProducerConfig `mapstructure:"kafka" yaml:"kafka"`
	Breaker        kafka.BreakerConfig  `mapstructure:"breaker" yaml:"breaker"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled   bool                       `mapstructure:"enabled" yaml:"enabled"`
	Collector prometheus.CollectorConfig `mapstructure:",squash" yaml:",inline"`
}

// Config is the root configuration.
type Config struct {
	Server  ServerConfig      `mapstructure:"server" yaml:"server"`
	Log     logging.LogConfig `mapstructure:"log" yaml:"log"`
	Search  SearchConfig      `mapstructure:"search" yaml:"search"`
	Cache   CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Events  EventsConfig      `mapstructure:"events" yaml:"events"`
	Metrics MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Tracing tracing.Config    `mapstructure:"tracing" yaml:"tracing"`
}

// Validate performs semantic validation of a defaulted Config.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("config: server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Search.Workers < 1 {
		return fmt.Errorf("config: search.workers must be at least 1, got %d", c.Search.Workers)
	}
	if c.Search.Timeout < 0 {
		return fmt.Errorf("config: search.timeout must not be negative")
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" && len(c.Cache.Redis.ClusterAddrs) == 0 && len(c.Cache.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("config: cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected memory|redis|none", c.Cache.Backend)
	}

	if c.Events.Enabled {
		if err := kafka.ValidateProducerConfig(c.Events.Kafka); err != nil {
			return fmt.Errorf("config: events.kafka: %w", err)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Collector.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "none", "stdout", "otlp":
		default:
			return fmt.Errorf("config: tracing.exporter %q is invalid; expected none|stdout|otlp", c.Tracing.Exporter)
		}
	}
	return nil
}
