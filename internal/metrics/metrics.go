// Package metrics defines the Prometheus collectors for import runs and
// the HTTP surface. Collectors register with the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rosterload"

var (
	ImportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Total number of finished import runs by status",
		},
		[]string{"status"},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "import_runs_active",
			Help:      "Number of import runs currently executing",
		},
	)

	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Total number of rows written per entity",
		},
		[]string{"entity"},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Total number of rows not loaded per entity and reason",
		},
		[]string{"entity", "reason"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of one bulk INSERT statement",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	BatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Total number of failed bulk INSERT statements",
		},
		[]string{"entity"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each orchestrator phase",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"phase"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_sink_errors_total",
			Help:      "Total number of failed progress sink writes",
		},
		[]string{"sink"},
	)
)

// Skip reasons used with RowsSkipped.
const (
	ReasonEmpty     = "empty"
	ReasonInvalid   = "invalid"
	ReasonDuplicate = "duplicate"
)
