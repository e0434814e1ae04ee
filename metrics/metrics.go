// Package metrics registers this module's Prometheus instrumentation,
// adapted from the teacher's cluster-wide metrics package to the
// storage/index operations this module actually performs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ObjectsTotal tracks live object counts by class.
	ObjectsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "objectstore_objects_total",
			Help: "Total number of persisted objects by class",
		},
		[]string{"class"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_cache_hits_total",
			Help: "Total number of Storage.Get calls served from the identity cache",
		},
		[]string{"class"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_cache_misses_total",
			Help: "Total number of Storage.Get calls that reloaded from the backend",
		},
		[]string{"class"},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_cache_evictions_total",
			Help: "Total number of identity cache entries cleared by GC cleanup",
		},
		[]string{"class"},
	)

	BackendOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_backend_operation_duration_seconds",
			Help:    "Backend operation duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	BackendRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_backend_retries_total",
			Help: "Total number of transient write retries (DBM-style backends)",
		},
		[]string{"backend"},
	)

	IndexRebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_index_rebuild_duration_seconds",
			Help:    "Time taken to rebuild a cold index in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index"},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objectstore_sync_duration_seconds",
			Help:    "Time taken by Storage.Sync to flush the dirty queue",
			Buckets: prometheus.DefBuckets,
		},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objectstore_api_requests_total",
			Help: "Total number of web API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objectstore_api_request_duration_seconds",
			Help:    "Web API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		ObjectsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		BackendOpDuration,
		BackendRetriesTotal,
		IndexRebuildDuration,
		SyncDuration,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration for later observation into a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a new Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to histogram under labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
