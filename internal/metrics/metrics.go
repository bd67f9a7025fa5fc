package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the analyzer metrics
type Metrics struct {
	// Run metrics
	AnalysesTotal   *prometheus.CounterVec
	PhaseSeconds    *prometheus.HistogramVec
	AnalysesRunning prometheus.Gauge

	// Scan metrics
	FilesTotal       *prometheus.CounterVec
	BytesTotal       prometheus.Counter
	DirsSkippedTotal prometheus.Counter
	ScanErrorsTotal  *prometheus.CounterVec

	// Cache metrics
	CacheRequestsTotal *prometheus.CounterVec

	// Probe metrics
	ProbesTotal *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil registerer
// creates unregistered metrics, which is useful in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Run metrics
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folderstat_analyses_total",
				Help: "Total number of analyses by final status",
			},
			[]string{"status"},
		),
		PhaseSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folderstat_phase_duration_seconds",
				Help:    "Duration of analysis phases in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"phase"},
		),
		AnalysesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "folderstat_analyses_running",
				Help: "Number of analyses currently running",
			},
		),

		// Scan metrics
		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folderstat_files_total",
				Help: "Total number of files counted by category",
			},
			[]string{"category"},
		),
		BytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "folderstat_bytes_total",
				Help: "Total number of bytes counted",
			},
		),
		DirsSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "folderstat_dirs_skipped_total",
				Help: "Total number of pruned directories",
			},
		),
		ScanErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folderstat_scan_errors_total",
				Help: "Total number of per-entry scan errors by kind",
			},
			[]string{"kind"},
		),

		// Cache metrics
		CacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folderstat_cache_requests_total",
				Help: "Total number of cache lookups by result",
			},
			[]string{"result"},
		),

		// Probe metrics
		ProbesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folderstat_probes_total",
				Help: "Total number of media probes by result",
			},
			[]string{"result"},
		),
	}
}
