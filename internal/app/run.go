package app

import (
	"context"
	"fmt"

	"github.com/turtacn/molregistry/internal/config"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
)

// Main loads configuration from configPath (environment only when empty),
// starts the server and blocks until ctx is cancelled.  With a config file
// the log level follows edits to the file.
func Main(ctx context.Context, configPath, version string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if s, ok := logger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}
	logging.SetDefault(logger)

	if configPath != "" {
		if err := config.Watch(configPath, logger, config.ApplyLogLevel(logger)); err != nil {
			logger.Warn("config hot reload disabled", logging.String("path", configPath), logging.Err(err))
		}
	}

	a, err := New(ctx, cfg, logger, version)
	if err != nil {
		logger.Error("failed to initialize application", logging.Err(err))
		return err
	}
	logger.Info("starting molregistry server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()),
	)
	return a.Run(ctx)
}
