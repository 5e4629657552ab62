// Package http assembles the registry's HTTP surface.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/internal/interfaces/http/handlers"
	"github.com/turtacn/molregistry/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the dependencies of the route tree.  Nil optional
// fields disable the corresponding feature.
type RouterConfig struct {
	MoleculeHandler *handlers.MoleculeHandler
	HealthHandler   *handlers.HealthHandler

	// MetricsHandler is mounted at /metrics.
	MetricsHandler http.Handler
	// HTTPRecorder observes every request.
	HTTPRecorder middleware.HTTPRecorder
	Tracer       trace.Tracer

	CORS    middleware.CORSConfig
	Logging middleware.LoggingConfig
	Logger  logging.Logger
}

// NewRouter builds the route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Tracing(cfg.Tracer))
	if cfg.HTTPRecorder != nil {
		r.Use(middleware.Metrics(cfg.HTTPRecorder))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	registerMoleculeRoutes(r, cfg.MoleculeHandler)
	return r
}

// registerMoleculeRoutes mounts the registry endpoints.  Collection routes
// answer with and without a trailing slash.
func registerMoleculeRoutes(r chi.Router, h *handlers.MoleculeHandler) {
	if h == nil {
		return
	}
	r.Post("/add", h.Add)

	r.Route("/molecules", func(mr chi.Router) {
		mr.Get("/", h.List)
		mr.Post("/search", h.Search)
		mr.Post("/search/", h.Search)
		mr.Post("/upload", h.Upload)
		mr.Post("/upload/", h.Upload)

		mr.Get("/{identifier}", h.Get)
		mr.Put("/{identifier}", h.Update)
		mr.Delete("/{identifier}", h.Delete)
	})
}
