// Package metrics exposes Prometheus collectors for the catalog: tier
// fetches, scans, registry mutations and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "catalog"

// Tier fetch outcomes
const (
	OutcomeHit   = "hit"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "catalog").
	Namespace string

	// Registry receives the collectors. A fresh registry is created when nil.
	Registry *prometheus.Registry
}

// Metrics holds the Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tierFetches     *prometheus.CounterVec
	tierDuration    *prometheus.HistogramVec
	scanDuration    prometheus.Histogram
	scannedFiles    prometheus.Counter
	extractFailures prometheus.Counter
	components      prometheus.Gauge
	registryEvents  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the collectors.
func New(config Config) *Metrics {
	if config.Namespace == "" {
		config.Namespace = defaultNamespace
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
		config.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(config.Registry)
	ns := config.Namespace

	return &Metrics{
		registry: config.Registry,

		tierFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tier_fetches_total",
			Help:      "Provider tier fetches by tier and outcome",
		}, []string{"tier", "outcome"}),

		tierDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tier_fetch_duration_seconds",
			Help:      "Provider tier fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),

		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "scan_duration_seconds",
			Help:      "Full discovery scan duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		scannedFiles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "scanned_files_total",
			Help:      "Source files attempted by scans",
		}),

		extractFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "extract_failures_total",
			Help:      "Source files that failed extraction",
		}),

		components: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "components",
			Help:      "Components currently held by the registry",
		}),

		registryEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "registry_events_total",
			Help:      "Registry mutations by event type",
		}, []string{"type"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the Prometheus registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTier records one provider fetch.
func (m *Metrics) ObserveTier(tier, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.tierFetches.WithLabelValues(tier, outcome).Inc()
	m.tierDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// ObserveScan records a completed scan.
func (m *Metrics) ObserveScan(files, failures int, d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
	m.scannedFiles.Add(float64(files))
	m.extractFailures.Add(float64(failures))
}

// AttachRegistry counts registry mutations and tracks its size. The returned
// id removes the listener.
func (m *Metrics) AttachRegistry(reg *metadata.Registry) metadata.ListenerID {
	if m == nil {
		return 0
	}
	m.components.Set(float64(reg.Len()))
	return reg.AddChangeListener(func(ev metadata.ChangeEvent) {
		m.registryEvents.WithLabelValues(string(ev.Type)).Inc()
		m.components.Set(float64(reg.Len()))
	})
}

// Middleware records request counts and durations by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
