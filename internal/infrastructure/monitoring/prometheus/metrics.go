package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bucket layouts.
var (
	HTTPDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	SearchDurationBuckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 10, 30}
	SearchMatchBuckets    = []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000}
)

// RegistryMetrics holds the vectors observed by the registry server.  It
// satisfies the application Recorder port.
type RegistryMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        *prometheus.GaugeVec

	SearchDuration *prometheus.HistogramVec
	SearchMatches  *prometheus.HistogramVec
	SearchTotal    *prometheus.CounterVec

	RegistryMolecules *prometheus.GaugeVec
	UploadsTotal      *prometheus.CounterVec
	UploadedMolecules *prometheus.CounterVec

	EventsPublished *prometheus.CounterVec
	BuildInfo       *prometheus.GaugeVec
}

// NewRegistryMetrics registers every registry metric on c.
func NewRegistryMetrics(c *Collector) (*RegistryMetrics, error) {
	m := &RegistryMetrics{}
	var err error
	steps := []func() error{
		func() error {
			m.HTTPRequestsTotal, err = c.Counter("http_requests_total", "HTTP requests by route and status.", "method", "route", "status_code")
			return err
		},
		func() error {
			m.HTTPRequestDuration, err = c.Histogram("http_request_duration_seconds", "HTTP request latency.", HTTPDurationBuckets, "method", "route")
			return err
		},
		func() error {
			m.HTTPInFlight, err = c.Gauge("http_requests_in_flight", "HTTP requests being served.")
			return err
		},
		func() error {
			m.SearchDuration, err = c.Histogram("search_duration_seconds", "Substructure search latency.", SearchDurationBuckets, "cached")
			return err
		},
		func() error {
			m.SearchMatches, err = c.Histogram("search_matches", "Molecules matched per search.", SearchMatchBuckets)
			return err
		},
		func() error {
			m.SearchTotal, err = c.Counter("search_total", "Completed searches by cache outcome.", "cached")
			return err
		},
		func() error {
			m.RegistryMolecules, err = c.Gauge("registry_molecules", "Molecules currently registered.")
			return err
		},
		func() error {
			m.UploadsTotal, err = c.Counter("uploads_total", "Bulk uploads by result.", "result")
			return err
		},
		func() error {
			m.UploadedMolecules, err = c.Counter("uploaded_molecules_total", "Lines applied or skipped by bulk uploads.", "outcome")
			return err
		},
		func() error {
			m.EventsPublished, err = c.Counter("events_published_total", "Change events by type and result.", "event_type", "result")
			return err
		},
		func() error {
			m.BuildInfo, err = c.Gauge("build_info", "Build metadata; always 1.", "version")
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetBuildInfo publishes the running version.
func (m *RegistryMetrics) SetBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}

// RecordHTTPRequest observes one served request.  route is the matched
// pattern, never the raw path.
func (m *RegistryMetrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SearchCompleted records a finished search.
func (m *RegistryMetrics) SearchCompleted(d time.Duration, matches int, cached bool) {
	label := strconv.FormatBool(cached)
	m.SearchTotal.WithLabelValues(label).Inc()
	m.SearchDuration.WithLabelValues(label).Observe(d.Seconds())
	m.SearchMatches.WithLabelValues().Observe(float64(matches))
}

// RegistrySize sets the molecule gauge.
func (m *RegistryMetrics) RegistrySize(n int) {
	m.RegistryMolecules.WithLabelValues().Set(float64(n))
}

// UploadCompleted counts an upload and the lines it touched.
func (m *RegistryMetrics) UploadCompleted(result string, added, skipped int) {
	m.UploadsTotal.WithLabelValues(result).Inc()
	if added > 0 {
		m.UploadedMolecules.WithLabelValues("added").Add(float64(added))
	}
	if skipped > 0 {
		m.UploadedMolecules.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// EventPublished counts a publish attempt.
func (m *RegistryMetrics) EventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}
