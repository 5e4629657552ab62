// Package app wires configuration into a running registry server.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	appMol "github.com/turtacn/molregistry/internal/application/molecule"
	"github.com/turtacn/molregistry/internal/config"
	domainMol "github.com/turtacn/molregistry/internal/domain/molecule"
	memorycache "github.com/turtacn/molregistry/internal/infrastructure/cache/memory"
	rediscache "github.com/turtacn/molregistry/internal/infrastructure/cache/redis"
	"github.com/turtacn/molregistry/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/tracing"
	httpapi "github.com/turtacn/molregistry/internal/interfaces/http"
	"github.com/turtacn/molregistry/internal/interfaces/http/handlers"
	"github.com/turtacn/molregistry/internal/interfaces/http/middleware"
)

// App owns every long-lived component of one server process.
type App struct {
	cfg    *config.Config
	logger logging.Logger

	registry *domainMol.Registry
	service  appMol.Service
	server   *httpapi.Server

	tracing  *tracing.Provider
	redis    *rediscache.Client
	producer *kafka.Producer

	closeOnce sync.Once
}

// New builds the application from cfg.  The kafka writer connects lazily, so
// an unreachable broker surfaces as publish failures rather than a startup
// error.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, version string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	a := &App{cfg: cfg, logger: logger, registry: domainMol.NewRegistry()}

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.tracing = provider

	opts := []appMol.Option{
		appMol.WithSearchWorkers(cfg.Search.Workers),
		appMol.WithSearchTimeout(cfg.Search.Timeout),
		appMol.WithTracer(provider.Tracer()),
	}
	var checkers []handlers.HealthChecker

	cache, pinger := a.buildCache()
	if cache != nil {
		opts = append(opts, appMol.WithSearchCache(cache, cfg.Search.CacheTTL))
		checkers = append(checkers, handlers.CheckFunc{CheckName: "cache", Fn: pinger})
	}

	if cfg.Events.Enabled {
		publisher, err := a.buildPublisher()
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("events: %w", err)
		}
		opts = append(opts,
			appMol.WithEventPublisher(publisher),
			appMol.WithPublishTimeout(cfg.Events.PublishTimeout),
		)
		checkers = append(checkers, handlers.CheckFunc{CheckName: "events", Fn: breakerCheck(publisher)})
	}

	routerCfg := httpapi.RouterConfig{
		Tracer: provider.Tracer(),
		CORS:   middleware.CORSConfig{AllowedOrigins: cfg.Server.CORSAllowedOrigins},
		Logging: middleware.LoggingConfig{
			SkipPaths:     middleware.DefaultLoggingConfig().SkipPaths,
			SlowThreshold: cfg.Server.SlowRequestThreshold,
		},
		Logger: logger.Named("http"),
	}

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewCollector(cfg.Metrics.Collector, logger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("metrics: %w", err)
		}
		metrics, err := prometheus.NewRegistryMetrics(collector)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("metrics: %w", err)
		}
		metrics.SetBuildInfo(version)
		opts = append(opts, appMol.WithRecorder(metrics))
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.HTTPRecorder = metrics
	}

	a.service = appMol.NewService(a.registry, logger.Named("molecule"), opts...)
	routerCfg.MoleculeHandler = handlers.NewMoleculeHandler(a.service, logger, cfg.Server.MaxUploadBytes)
	routerCfg.HealthHandler = handlers.NewHealthHandler(version, checkers...)

	a.server = httpapi.NewServer(httpapi.ServerConfig{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, httpapi.NewRouter(routerCfg), logger)

	logger.Info("application initialized",
		logging.String("cache_backend", cfg.Cache.Backend),
		logging.Bool("events", cfg.Events.Enabled),
		logging.Bool("metrics", cfg.Metrics.Enabled),
		logging.Bool("tracing", provider.Enabled()),
	)
	return a, nil
}

// buildCache returns the configured search cache and its health probe.  An
// unreachable redis falls back to the in-process cache.
func (a *App) buildCache() (appMol.SearchCache, func(context.Context) error) {
	switch a.cfg.Cache.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheRedis:
		client, err := rediscache.NewClient(a.cfg.Cache.Redis, a.logger)
		if err == nil {
			a.redis = client
			c := rediscache.NewSearchCache(client, a.logger,
				rediscache.WithPrefix(a.cfg.Cache.KeyPrefix),
				rediscache.WithDefaultTTL(a.cfg.Search.CacheTTL),
			)
			return c, c.Ping
		}
		a.logger.Warn("redis unavailable, falling back to in-memory search cache",
			logging.String("addr", a.cfg.Cache.Redis.Addr),
			logging.Err(err),
		)
	}
	c := memorycache.NewSearchCache(a.cfg.Search.CacheTTL, a.cfg.Cache.CleanupInterval, a.logger)
	return c, c.Ping
}

func (a *App) buildPublisher() (*kafka.EventPublisher, error) {
	producer, err := kafka.NewProducer(a.cfg.Events.Kafka, a.logger)
	if err != nil {
		return nil, err
	}
	a.producer = producer
	return kafka.NewEventPublisher(producer, a.cfg.Events.Kafka.Topic, a.cfg.Events.Source,
		a.cfg.Events.Breaker, a.logger), nil
}

func breakerCheck(p *kafka.EventPublisher) func(context.Context) error {
	return func(context.Context) error {
		if state := p.State(); state == "open" {
			return fmt.Errorf("event publisher circuit is %s", state)
		}
		return nil
	}
}

// Service exposes the registry service, mainly for tests and embedding.
func (a *App) Service() appMol.Service { return a.service }

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests within server.shutdown_timeout and releases backends.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Serve(ln) }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error("HTTP server error", logging.Err(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", logging.Err(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	a.Close(shutdownCtx)
	return serveErr
}

// Close releases the event producer, the redis client and the tracer
// provider.  It is safe to call more than once.
func (a *App) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("kafka producer close error", logging.Err(err))
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.logger.Warn("redis close error", logging.Err(err))
			}
		}
		if a.tracing != nil {
			if err := a.tracing.Shutdown(ctx); err != nil {
				a.logger.Warn("tracer shutdown error", logging.Err(err))
			}
		}
	})
}
