package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-scheduler/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	checksTotal     *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	checkDuration   prometheus.Histogram
	auditDuration   prometheus.Histogram
	auditConflicts  prometheus.Gauge
	auditRuns       *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
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

	checksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_checks_total",
		Help: "Schedule validations by outcome",
	}, []string{"operation", "outcome"})

	conflictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_detected_total",
		Help: "Conflict records produced by interactive checks",
	}, []string{"type"})

	checkDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_check_duration_seconds",
		Help:    "Duration of a full schedule evaluation",
		Buckets: prometheus.DefBuckets,
	})

	auditDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_audit_duration_seconds",
		Help:    "Duration of block-section audit sweeps",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	auditConflicts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_audit_block_section_conflicts",
		Help: "Block-sectioning conflict pairs found by the latest audit",
	})

	auditRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_audit_runs_total",
		Help: "Audit sweeps by outcome",
	}, []string{"outcome"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, checksTotal, conflictsTotal, checkDuration, auditDuration, auditConflicts, auditRuns, cacheLookups, cacheLatency, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		checksTotal:     checksTotal,
		conflictsTotal:  conflictsTotal,
		checkDuration:   checkDuration,
		auditDuration:   auditDuration,
		auditConflicts:  auditConflicts,
		auditRuns:       auditRuns,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
	}
}

// Registry exposes the underlying registry, mainly for tests.
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

// ObserveScheduleCheck records the outcome of one evaluation.
func (m *MetricsService) ObserveScheduleCheck(operation string, check *models.ScheduleCheck, duration time.Duration) {
	if m == nil || check == nil {
		return
	}
	outcome := "clean"
	switch {
	case len(check.ValidationErrors) > 0:
		outcome = "invalid"
	case len(check.Conflicts) > 0:
		outcome = "conflict"
	case len(check.Warnings) > 0:
		outcome = "warning"
	}
	m.checksTotal.WithLabelValues(operation, outcome).Inc()
	m.checkDuration.Observe(duration.Seconds())
	for _, c := range check.Conflicts {
		m.conflictsTotal.WithLabelValues(string(c.Type)).Inc()
	}
}

// ObserveAudit records an audit sweep. report is nil when the sweep failed.
func (m *MetricsService) ObserveAudit(report *models.BlockSectionReport, duration time.Duration) {
	if m == nil {
		return
	}
	m.auditDuration.Observe(duration.Seconds())
	if report == nil {
		m.auditRuns.WithLabelValues("error").Inc()
		return
	}
	m.auditRuns.WithLabelValues("ok").Inc()
	m.auditConflicts.Set(float64(report.ConflictCount()))
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}
