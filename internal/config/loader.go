package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
)

// envPrefix is the environment variable prefix for every setting.
const envPrefix = "MOLREG"

// newViper builds a Viper instance with YAML files, MOLREG_ env binding and
// a "." → "_" key replacer, so "search.workers" resolves MOLREG_SEARCH_WORKERS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// Load reads the YAML file at configPath, merges MOLREG_* overrides, applies
// defaults and validates.  An empty configPath loads from the environment
// only.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and passes the new
// Config to onChange.  Invalid revisions are logged and skipped.  Only
// settings that are safe to change at runtime, such as log.level, should be
// applied by the callback.
func Watch(configPath string, logger logging.Logger, onChange func(*Config)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			logger.Warn("ignoring invalid config revision",
				logging.String("file", e.Name),
				logging.Err(err))
			return
		}
		logger.Info("config reloaded", logging.String("file", e.Name), logging.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// ApplyLogLevel returns a Watch callback that pushes log.level into any
// logger supporting runtime level changes.
func ApplyLogLevel(logger logging.Logger) func(*Config) {
	return func(cfg *Config) {
		if ls, ok := logger.(logging.LevelSetter); ok {
			ls.SetLevel(cfg.Log.Level)
		}
	}
}
