// Package prometheus exposes registry metrics in the Prometheus text format.
package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Namespace            string            `mapstructure:"namespace" yaml:"namespace"`
	Subsystem            string            `mapstructure:"subsystem" yaml:"subsystem"`
	EnableProcessMetrics bool              `mapstructure:"process_metrics" yaml:"process_metrics"`
	EnableGoMetrics      bool              `mapstructure:"go_metrics" yaml:"go_metrics"`
	ConstLabels          map[string]string `mapstructure:"const_labels" yaml:"const_labels"`
}

// Collector owns a private registry.  Registration is get-or-create by
// fully-qualified name, so two components asking for the same metric share
// one vector.
type Collector struct {
	registry *prometheus.Registry
	config   CollectorConfig
	logger   logging.Logger

	mu      sync.Mutex
	metrics map[string]prometheus.Collector
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig, logger logging.Logger) (*Collector, error) {
	if cfg.Namespace == "" {
		return nil, errors.New(errors.ErrCodeValidation, "metrics namespace is required")
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}
	return &Collector{
		registry: reg,
		config:   cfg,
		logger:   logger,
		metrics:  make(map[string]prometheus.Collector),
	}, nil
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Counter returns the counter vector registered under name.
func (c *Collector) Counter(name, help string, labels ...string) (*prometheus.CounterVec, error) {
	v, err := c.register(name, func() prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.ConstLabels,
		}, labels)
	})
	if err != nil {
		return nil, err
	}
	vec, ok := v.(*prometheus.CounterVec)
	if !ok {
		return nil, c.mismatch(name, "counter")
	}
	return vec, nil
}

// Gauge returns the gauge vector registered under name.
func (c *Collector) Gauge(name, help string, labels ...string) (*prometheus.GaugeVec, error) {
	v, err := c.register(name, func() prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.ConstLabels,
		}, labels)
	})
	if err != nil {
		return nil, err
	}
	vec, ok := v.(*prometheus.GaugeVec)
	if !ok {
		return nil, c.mismatch(name, "gauge")
	}
	return vec, nil
}

// Histogram returns the histogram vector registered under name.  Nil buckets
// select prometheus.DefBuckets.
func (c *Collector) Histogram(name, help string, buckets []float64, labels ...string) (*prometheus.HistogramVec, error) {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	v, err := c.register(name, func() prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.ConstLabels,
			Buckets:     buckets,
		}, labels)
	})
	if err != nil {
		return nil, err
	}
	vec, ok := v.(*prometheus.HistogramVec)
	if !ok {
		return nil, c.mismatch(name, "histogram")
	}
	return vec, nil
}

func (c *Collector) register(name string, build func() prometheus.Collector) (prometheus.Collector, error) {
	fq := prometheus.BuildFQName(c.config.Namespace, c.config.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.metrics[fq]; ok {
		return existing, nil
	}
	col := build()
	if err := c.registry.Register(col); err != nil {
		c.logger.Error("failed to register metric", logging.String("name", fq), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to register metric "+fq)
	}
	c.metrics[fq] = col
	return col, nil
}

func (c *Collector) mismatch(name, kind string) error {
	c.logger.Warn("metric type mismatch", logging.String("name", name), logging.String("want", kind))
	return errors.New(errors.ErrCodeConflict, "metric "+name+" already registered with another type")
}
