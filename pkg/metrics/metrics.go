// Package metrics holds the Prometheus collectors of a cnlwiki process.
//
// Metrics collected:
//   - cnlwiki_requests_total: requests by instance and outcome
//   - cnlwiki_request_duration_seconds: request latency by instance
//   - cnlwiki_redirects_total: normalization redirects by rule
//   - cnlwiki_sessions_active: live session instances
//   - cnlwiki_sessions_created_total: session instances created by instance
//   - cnlwiki_backend_acquire_seconds: backend acquisition latency by mode
//   - cnlwiki_backend_acquire_total: backend acquisitions by result
//   - cnlwiki_pages_composed_total: composed pages by kind
//
// All Collector methods are safe to call on a nil *Collector, which records
// nothing.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "cnlwiki").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "cnlwiki",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector groups the process metrics.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	redirectsTotal  *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sessionsCreated *prometheus.CounterVec
	acquireDuration *prometheus.HistogramVec
	acquireTotal    *prometheus.CounterVec
	pagesComposed   *prometheus.CounterVec
}

// New creates a Collector and registers it with the configured registry.
// Registering twice with the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "requests_total",
			Help:        "Total number of wiki requests",
			ConstLabels: config.ConstLabels,
		}, []string{"instance", "outcome"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "request_duration_seconds",
			Help:        "Request processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"instance"}),

		redirectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "redirects_total",
			Help:        "Redirects issued by request normalization",
			ConstLabels: config.ConstLabels,
		}, []string{"rule"}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_active",
			Help:        "Number of live session instances",
			ConstLabels: config.ConstLabels,
		}),

		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_created_total",
			Help:        "Session instances created",
			ConstLabels: config.ConstLabels,
		}, []string{"instance"}),

		acquireDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "backend_acquire_seconds",
			Help:        "Time spent acquiring a backend",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mode"}),

		acquireTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "backend_acquire_total",
			Help:        "Backend acquisitions by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		pagesComposed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "pages_composed_total",
			Help:        "Pages composed by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

var (
	defaultCollector *Collector
	defaultOnce      sync.Once
)

// Default returns the process collector registered with
// prometheus.DefaultRegisterer. It is created on first use.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = New()
	})
	return defaultCollector
}

// ObserveRequest records one handled request.
func (c *Collector) ObserveRequest(instance, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(instance, outcome).Inc()
	c.requestDuration.WithLabelValues(instance).Observe(d.Seconds())
}

// RecordRedirect records a normalization redirect.
func (c *Collector) RecordRedirect(rule string) {
	if c == nil {
		return
	}
	c.redirectsTotal.WithLabelValues(rule).Inc()
}

// SessionCreated records a new session instance.
func (c *Collector) SessionCreated(instance string) {
	if c == nil {
		return
	}
	c.sessionsCreated.WithLabelValues(instance).Inc()
	c.sessionsActive.Inc()
}

// SessionClosed records the end of a session instance.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

// ObserveAcquire records a backend acquisition.
// mode is "construct" or "lookup"; result is "acquired", "cancelled",
// "unavailable" or "failed".
func (c *Collector) ObserveAcquire(mode, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.acquireDuration.WithLabelValues(mode).Observe(d.Seconds())
	c.acquireTotal.WithLabelValues(result).Inc()
}

// PageComposed records a composed page.
func (c *Collector) PageComposed(kind string) {
	if c == nil {
		return
	}
	c.pagesComposed.WithLabelValues(kind).Inc()
}
