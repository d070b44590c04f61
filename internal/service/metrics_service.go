package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides
// lightweight snapshots for the admin surface. It also implements
// crm.Observer so directory request latency flows in without the client
// importing this package.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	reconcileTotal    *prometheus.CounterVec
	tagMutations      *prometheus.CounterVec
	directoryDuration *prometheus.HistogramVec
	directoryErrors   *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	dbQueryDuration   *prometheus.HistogramVec

	reconcileCount       uint64
	reconcileNoChange    uint64
	reconcileFailed      uint64
	tagsAppliedCount     uint64
	tagsRemovedCount     uint64
	tagFailureCount      uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	reconcileTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliations_total",
		Help: "Reconciliation outcomes by result",
	}, []string{"result"})

	tagMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tag_mutations_total",
		Help: "Tag directory mutations by kind",
	}, []string{"kind"})

	directoryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tag_directory_request_duration_seconds",
		Help:    "Latency of tag directory API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	directoryErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tag_directory_errors_total",
		Help: "Failed tag directory API calls",
	}, []string{"op"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, reconcileTotal, tagMutations,
		directoryDuration, directoryErrors, cacheLatency, cacheHitRatio, cacheHits,
		cacheMisses, dbQueryDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		reconcileTotal:    reconcileTotal,
		tagMutations:      tagMutations,
		directoryDuration: directoryDuration,
		directoryErrors:   directoryErrors,
		cacheLatency:      cacheLatency,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		dbQueryDuration:   dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordReconciliation counts one per-enrollment reconciliation outcome.
func (m *MetricsService) RecordReconciliation(success, noChange bool) {
	if m == nil {
		return
	}
	result := "failed"
	switch {
	case noChange:
		result = "no_change"
	case success:
		result = "changed"
	}
	m.reconcileTotal.WithLabelValues(result).Inc()
	atomic.AddUint64(&m.reconcileCount, 1)
	if noChange {
		atomic.AddUint64(&m.reconcileNoChange, 1)
	}
	if !success {
		atomic.AddUint64(&m.reconcileFailed, 1)
	}
}

// AddTagMutations counts applied, removed and failed tag operations.
func (m *MetricsService) AddTagMutations(applied, removed, failed int) {
	if m == nil {
		return
	}
	if applied > 0 {
		m.tagMutations.WithLabelValues("applied").Add(float64(applied))
		atomic.AddUint64(&m.tagsAppliedCount, uint64(applied))
	}
	if removed > 0 {
		m.tagMutations.WithLabelValues("removed").Add(float64(removed))
		atomic.AddUint64(&m.tagsRemovedCount, uint64(removed))
	}
	if failed > 0 {
		m.tagMutations.WithLabelValues("failed").Add(float64(failed))
		atomic.AddUint64(&m.tagFailureCount, uint64(failed))
	}
}

// ObserveDirectoryRequest implements the directory client's Observer.
func (m *MetricsService) ObserveDirectoryRequest(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.directoryDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		m.directoryErrors.WithLabelValues(op).Inc()
	}
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for the admin surface.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		ReconciliationsTotal:     atomic.LoadUint64(&m.reconcileCount),
		ReconciliationsNoChange:  atomic.LoadUint64(&m.reconcileNoChange),
		ReconciliationsFailed:    atomic.LoadUint64(&m.reconcileFailed),
		TagsApplied:              atomic.LoadUint64(&m.tagsAppliedCount),
		TagsRemoved:              atomic.LoadUint64(&m.tagsRemovedCount),
		TagOpFailures:            atomic.LoadUint64(&m.tagFailureCount),
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
