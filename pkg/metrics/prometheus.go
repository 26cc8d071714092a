package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics container for the four planning phases.
type Metrics struct {
	AllocateOperationsTotal *prometheus.CounterVec
	AllocateDuration        *prometheus.HistogramVec
	AllocateTotalCost       prometheus.Gauge

	ScheduleOperationsTotal *prometheus.CounterVec
	ScheduleDuration        prometheus.Histogram

	ReallocateOperationsTotal *prometheus.CounterVec
	ReallocateDuration        prometheus.Histogram
	ChangePenaltyTotal        prometheus.Counter

	LocalScheduleOperationsTotal *prometheus.CounterVec
	LocalScheduleDuration        *prometheus.HistogramVec
	LatenessTotal                *prometheus.GaugeVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	TaskSetSize *prometheus.HistogramVec
	NodeSetSize *prometheus.HistogramVec

	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics registers and returns the metrics container under the given
// Prometheus namespace/subsystem. Calling it more than once with a running
// default registry will panic on duplicate registration, matching the
// upstream promauto behavior.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		AllocateOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "allocate_operations_total",
				Help:      "Total number of Phase 1 allocation solves",
			},
			[]string{"status"},
		),

		AllocateDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "allocate_duration_seconds",
				Help:      "Duration of Phase 1 min-cost-flow solves",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"status"},
		),

		AllocateTotalCost: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "allocate_total_cost",
				Help:      "Total cost of the last Phase 1 allocation",
			},
		),

		ScheduleOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schedule_operations_total",
				Help:      "Total number of Phase 2 global scheduling passes",
			},
			[]string{"status"},
		),

		ScheduleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schedule_duration_seconds",
				Help:      "Duration of Phase 2 dependency-aware scheduling",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),

		ReallocateOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reallocate_operations_total",
				Help:      "Total number of Phase 3 dynamic reallocation events processed",
			},
			[]string{"event_kind"},
		),

		ReallocateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reallocate_duration_seconds",
				Help:      "Duration of Phase 3 reallocation runs",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),

		ChangePenaltyTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "change_penalty_total",
				Help:      "Cumulative count of tasks successfully replaced across reallocation events",
			},
		),

		LocalScheduleOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "local_schedule_operations_total",
				Help:      "Total number of Phase 4 per-node EDF timeline builds",
			},
			[]string{"node"},
		),

		LocalScheduleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "local_schedule_duration_seconds",
				Help:      "Duration of Phase 4 per-node EDF timeline builds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"node"},
		),

		LatenessTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lateness_total",
				Help:      "Total lateness accrued by the last local EDF schedule, per node",
			},
			[]string{"node"},
		),

		CacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of memoized allocation solves served from cache",
			},
		),

		CacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of allocation solves not found in cache",
			},
		),

		TaskSetSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "task_set_size",
				Help:      "Number of tasks in a processed planning operation",
				Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"operation"},
		),

		NodeSetSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "node_set_size",
				Help:      "Number of nodes in a processed planning operation",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 500},
			},
			[]string{"operation"},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service build information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the process-wide metrics, initializing them with defaults if
// InitMetrics has not yet been called.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("taskplanner", "")
	}
	return defaultMetrics
}

// RecordAllocate records the outcome and duration of a Phase 1 solve.
func (m *Metrics) RecordAllocate(success bool, duration time.Duration, totalCost int64, taskCount, nodeCount int) {
	status := "success"
	if !success {
		status = "error"
	}

	m.AllocateOperationsTotal.WithLabelValues(status).Inc()
	m.AllocateDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.AllocateTotalCost.Set(float64(totalCost))
	m.TaskSetSize.WithLabelValues("allocate").Observe(float64(taskCount))
	m.NodeSetSize.WithLabelValues("allocate").Observe(float64(nodeCount))
}

// RecordSchedule records the outcome and duration of a Phase 2 solve.
func (m *Metrics) RecordSchedule(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ScheduleOperationsTotal.WithLabelValues(status).Inc()
	m.ScheduleDuration.Observe(duration.Seconds())
}

// RecordReallocate records a Phase 3 event and its change penalty.
func (m *Metrics) RecordReallocate(eventKind string, duration time.Duration, changePenalty int) {
	m.ReallocateOperationsTotal.WithLabelValues(eventKind).Inc()
	m.ReallocateDuration.Observe(duration.Seconds())
	m.ChangePenaltyTotal.Add(float64(changePenalty))
}

// RecordLocalSchedule records a Phase 4 per-node EDF build.
func (m *Metrics) RecordLocalSchedule(node string, duration time.Duration, lateness int64) {
	m.LocalScheduleOperationsTotal.WithLabelValues(node).Inc()
	m.LocalScheduleDuration.WithLabelValues(node).Observe(duration.Seconds())
	m.LatenessTotal.WithLabelValues(node).Set(float64(lateness))
}

// RecordCacheHit records a memoized allocation solve served from cache.
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records an allocation solve not found in cache.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// SetServiceInfo sets the build-info gauge to 1 for the given labels.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts a blocking HTTP server exposing /metrics and /health.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure is not actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
