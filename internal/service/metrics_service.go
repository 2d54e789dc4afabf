package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/face-attendance-api/internal/facematch"
	"github.com/noah-isme/face-attendance-api/internal/models"
)

// Match outcome labels.
const (
	MatchOutcomeAccepted = "accepted"
	MatchOutcomeRejected = "rejected"
	MatchOutcomeInvalid  = "invalid"
)

// MetricsService encapsulates Prometheus instrumentation for the API and attendance engine.
// A nil receiver is a no-op so services can run without metrics in tests.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	matchOutcomes   *prometheus.CounterVec
	matchDistance   prometheus.Histogram
	sessionEvents   *prometheus.CounterVec
	presenceRecords *prometheus.CounterVec
	statsRefreshes  *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors on a private registry.
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

	matchOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "face_match_total",
		Help: "Face match attempts by outcome",
	}, []string{"outcome"})

	matchDistance := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "face_match_best_distance",
		Help:    "Euclidean distance of the best roster candidate per match attempt",
		Buckets: []float64{0.2, 0.3, 0.4, 0.5, facematch.Threshold, 0.7, 0.8, 1.0, 1.5},
	})

	sessionEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_session_transitions_total",
		Help: "Attendance session lifecycle transitions",
	}, []string{"transition"})

	presenceRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_written_total",
		Help: "Presence records upserted by method",
	}, []string{"method"})

	statsRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "class_stats_refresh_total",
		Help: "Class rollup recomputations by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		matchOutcomes, matchDistance, sessionEvents, presenceRecords, statsRefreshes, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		matchOutcomes:   matchOutcomes,
		matchDistance:   matchDistance,
		sessionEvents:   sessionEvents,
		presenceRecords: presenceRecords,
		statsRefreshes:  statsRefreshes,
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

// Registry exposes the collector registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveMatch records one matcher call. Evaluated is zero when nothing was compared.
func (m *MetricsService) ObserveMatch(outcome string, result facematch.Result) {
	if m == nil {
		return
	}
	m.matchOutcomes.WithLabelValues(outcome).Inc()
	if result.Evaluated > 0 {
		m.matchDistance.Observe(result.Distance)
	}
}

// ObserveSessionTransition counts opened and completed sessions.
func (m *MetricsService) ObserveSessionTransition(status models.SessionStatus) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(string(status)).Inc()
}

// ObservePresenceRecord counts upserted records by method.
func (m *MetricsService) ObservePresenceRecord(method models.RecordMethod) {
	if m == nil {
		return
	}
	m.presenceRecords.WithLabelValues(string(method)).Inc()
}

// ObserveStatsRefresh counts rollup recomputations.
func (m *MetricsService) ObserveStatsRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.statsRefreshes.WithLabelValues(result).Inc()
}
