package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation and edit outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and scheduler activity.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheLookups       *prometheus.CounterVec
	generations        *prometheus.CounterVec
	generationDuration prometheus.Observer
	entriesPlaced      prometheus.Counter
	entryEdits         *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generations_total",
		Help: "Timetable generation passes by outcome",
	}, []string{"outcome"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall time of timetable generation passes",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	entriesPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_entries_placed_total",
		Help: "Entries written by successful generation passes",
	})

	entryEdits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_entry_edits_total",
		Help: "Manual entry edits by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		generations, generationDuration, entriesPlaced, entryEdits, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheLookups:       cacheLookups,
		generations:        generations,
		generationDuration: generationDuration,
		entriesPlaced:      entriesPlaced,
		entryEdits:         entryEdits,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup records a cache read. result is one of CacheHit, CacheMiss, CacheStale or CacheError.
func (m *MetricsService) RecordCacheLookup(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordGeneration counts a generation pass. outcome is OutcomeSuccess or a failure reason.
func (m *MetricsService) RecordGeneration(outcome string, entries int, duration time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.generationDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess && entries > 0 {
		m.entriesPlaced.Add(float64(entries))
	}
}

// RecordEntryEdit counts a manual entry edit.
func (m *MetricsService) RecordEntryEdit(outcome string) {
	if m == nil {
		return
	}
	m.entryEdits.WithLabelValues(outcome).Inc()
}
