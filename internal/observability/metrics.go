package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a batch run.
type Metrics struct {
	UnitsPlanned   prometheus.Counter
	UnitsSucceeded prometheus.Counter
	UnitsFailed    prometheus.Counter
	UnitsSkipped   prometheus.Counter

	ExecutorRunning prometheus.Gauge
	ExecutorWorkers prometheus.Gauge

	UnitDuration  *prometheus.HistogramVec // labels: operator
	BatchDuration prometheus.Histogram

	ShapeCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all batch metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UnitsPlanned,
		m.UnitsSucceeded,
		m.UnitsFailed,
		m.UnitsSkipped,
		m.ExecutorRunning,
		m.ExecutorWorkers,
		m.UnitDuration,
		m.BatchDuration,
		m.ShapeCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonal_stats",
			Name:      "units_planned_total",
			Help:      "Work units produced by the batch planner.",
		}),
		UnitsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonal_stats",
			Name:      "units_succeeded_total",
			Help:      "Work units that wrote their artifact.",
		}),
		UnitsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonal_stats",
			Name:      "units_failed_total",
			Help:      "Work units whose processing returned an error.",
		}),
		UnitsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonal_stats",
			Name:      "units_skipped_total",
			Help:      "Work units never started because the batch was cancelled or aborted.",
		}),
		ExecutorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonal_stats",
			Name:      "executor_running",
			Help:      "1 while a batch is executing, 0 otherwise.",
		}),
		ExecutorWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonal_stats",
			Name:      "executor_workers",
			Help:      "Size of the worker pool for the current batch.",
		}),
		UnitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zonal_stats",
			Name:      "unit_duration_seconds",
			Help:      "Duration of one load-extract-reduce-export cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operator"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zonal_stats",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a complete batch run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 900, 1800, 3600},
		}),
		ShapeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zonal_stats",
			Name:      "shape_cache_total",
			Help:      "Decoded catchment cache lookups by result.",
		}, []string{"result"}),
	}
}
