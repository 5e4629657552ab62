package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, DefaultSearchWorkers, cfg.Search.Workers)
	assert.Equal(t, DefaultKafkaTopic, cfg.Events.Kafka.Topic)
	assert.Equal(t, DefaultMetricsNS, cfg.Metrics.Collector.Namespace)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9090
	cfg.Search.Workers = 16
	ApplyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Search.Workers)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.Server.MaxUploadBytes)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"workers", func(c *Config) { c.Search.Workers = -1 }, "search.workers"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr", func(c *Config) {
			c.Cache.Backend = CacheRedis
			c.Cache.Redis.Addr = ""
		}, "cache.redis.addr"},
		{"kafka brokers", func(c *Config) {
			c.Events.Enabled = true
			c.Events.Kafka.Brokers = nil
		}, "events.kafka"},
		{"tracing exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, "tracing.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
