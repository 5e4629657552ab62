package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8000
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxUploadBytes  = 32 << 20
	DefaultSlowRequest     = 2 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultSearchWorkers  = 4
	DefaultSearchCacheTTL = 5 * time.Minute

	DefaultCacheBackend    = CacheMemory
	DefaultCacheCleanup    = 10 * time.Minute
	DefaultCacheKeyPrefix  = "molreg:"
	DefaultRedisAddr       = "localhost:6379"
	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaTopic      = "molregistry.molecule.events"
	DefaultEventSource     = "molregistry"
	DefaultPublishTimeout  = 2 * time.Second
	DefaultMetricsNS       = "molregistry"
	DefaultTraceExporter   = "stdout"
	DefaultTraceSampleRate = 1.0
)

// registerDefaults seeds v with every known key so that environment
// variables resolve even when no config file mentions the key.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.read_timeout", DefaultReadTimeout)
	v.SetDefault("server.write_timeout", DefaultWriteTimeout)
	v.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.slow_request_threshold", DefaultSlowRequest)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("search.workers", DefaultSearchWorkers)
	v.SetDefault("search.timeout", time.Duration(0))
	v.SetDefault("search.cache_ttl", DefaultSearchCacheTTL)

	v.SetDefault("cache.backend", DefaultCacheBackend)
	v.SetDefault("cache.cleanup_interval", DefaultCacheCleanup)
	v.SetDefault("cache.key_prefix", DefaultCacheKeyPrefix)
	v.SetDefault("cache.redis.mode", "standalone")
	v.SetDefault("cache.redis.addr", DefaultRedisAddr)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.source", DefaultEventSource)
	v.SetDefault("events.publish_timeout", DefaultPublishTimeout)
	v.SetDefault("events.kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("events.kafka.topic", DefaultKafkaTopic)
	v.SetDefault("events.kafka.acks", "one")
	v.SetDefault("events.kafka.async", false)
	v.SetDefault("events.breaker.consecutive_failures", 5)
	v.SetDefault("events.breaker.timeout", 30*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", DefaultMetricsNS)
	v.SetDefault("metrics.process_metrics", true)
	v.SetDefault("metrics.go_metrics", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", DefaultTraceExporter)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", DefaultTraceSampleRate)
	v.SetDefault("tracing.service_name", DefaultEventSource)
}

// ApplyDefaults fills zero-value fields that a file may have blanked.
// Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Search.Workers == 0 {
		cfg.Search.Workers = DefaultSearchWorkers
	}
	if cfg.Search.CacheTTL == 0 {
		cfg.Search.CacheTTL = DefaultSearchCacheTTL
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Events.Source == "" {
		cfg.Events.Source = DefaultEventSource
	}
	if cfg.Events.Kafka.Topic == "" {
		cfg.Events.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Events.PublishTimeout == 0 {
		cfg.Events.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.Metrics.Collector.Namespace == "" {
		cfg.Metrics.Collector.Namespace = DefaultMetricsNS
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = DefaultTraceExporter
	}
}

// Default returns a fully defaulted Config without reading any source.
func Default() *Config {
	cfg, err := unmarshalAndFinalize(newViper())
	if err != nil {
		panic("config: defaults do not validate: " + err.Error())
	}
	return cfg
}
