// Package metrics exposes the crawler's Prometheus metrics. Counters are
// recorded through package-level helpers so call sites stay one line; the
// server mounts Handler() under /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager holds every metric of the process.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	meetsCrawled    prometheus.Counter
	meetsFailed     prometheus.Counter
	crawlDuration   prometheus.Histogram
	eventsExtracted prometheus.Counter
	eventsSkipped   prometheus.Counter
	pagesFetched    prometheus.Counter
	cacheHits       prometheus.Counter
	activeJobs      prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

// Own registry, without the default Go collectors.
var (
	globalManager  *Manager
	customRegistry = prometheus.NewRegistry()
)

func init() {
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the namespace of every metric.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry sets the Prometheus registry metrics register on.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "heatsheet",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.meetsCrawled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "meets_crawled_total",
		Help:      "Meets crawled to completion, partial crawls included",
	})
	m.meetsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "meets_failed_total",
		Help:      "Meets aborted by a structural failure",
	})
	m.crawlDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "meet_crawl_duration_seconds",
		Help:      "Wall time of one meet crawl",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})
	m.eventsExtracted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_extracted_total",
		Help:      "Program events extracted across all meets",
	})
	m.eventsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_skipped_total",
		Help:      "Program events skipped after extraction failures",
	})
	m.pagesFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "pages_fetched_total",
		Help:      "HTTP fetches against the result portals",
	})
	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "page_cache_hits_total",
		Help:      "Page fetches served from the cache",
	})
	m.activeJobs = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "active_jobs",
		Help:      "Crawl jobs currently running",
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "API requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	return m
}

// RecordMeetCrawled counts one completed meet crawl.
func RecordMeetCrawled() {
	globalManager.meetsCrawled.Inc()
}

// RecordMeetFailed counts one aborted meet crawl.
func RecordMeetFailed() {
	globalManager.meetsFailed.Inc()
}

// RecordCrawlDuration records one meet crawl's wall time.
func RecordCrawlDuration(seconds float64) {
	globalManager.crawlDuration.Observe(seconds)
}

// RecordEventsExtracted adds extracted events of one meet.
func RecordEventsExtracted(n int) {
	globalManager.eventsExtracted.Add(float64(n))
}

// RecordEventsSkipped adds skipped events of one meet.
func RecordEventsSkipped(n int) {
	globalManager.eventsSkipped.Add(float64(n))
}

// RecordPageFetched counts one portal fetch.
func RecordPageFetched() {
	globalManager.pagesFetched.Inc()
}

// RecordCacheHit counts one page served from cache.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// SetActiveJobs sets the running-jobs gauge.
func SetActiveJobs(n int) {
	globalManager.activeJobs.Set(float64(n))
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// Handler serves the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// GetRegistry returns the registry the package-level metrics live in.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
