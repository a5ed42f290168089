// Package metrics exposes Prometheus instrumentation for the scenario
// engine, in the same declare-then-register style as the teacher's
// pkg/metrics/metrics.go.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DatasetOutcomesTotal counts addOrReuse outcomes by whether the
	// content was deduplicated against an existing row or inserted fresh.
	DatasetOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_engine_dataset_outcomes_total",
			Help: "Total addOrReuse outcomes by outcome (created, reused)",
		},
		[]string{"outcome"},
	)

	DatasetBytesStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scenario_engine_dataset_bytes_stored_total",
			Help: "Total bytes written to newly created datasets, post-compression",
		},
	)

	ScenarioMutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scenario_engine_scenario_mutation_duration_seconds",
			Help:    "Time taken for a scenario mutation by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ScenarioMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_engine_scenario_mutations_total",
			Help: "Total scenario mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	PermissionDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenario_engine_permission_denials_total",
			Help: "Total permission checks that failed, by entity kind and action",
		},
		[]string{"entity", "action"},
	)

	LockedScenariosTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scenario_engine_locked_scenarios_total",
			Help: "Number of scenarios currently locked, last observed",
		},
	)
)

func init() {
	prometheus.MustRegister(DatasetOutcomesTotal)
	prometheus.MustRegister(DatasetBytesStored)
	prometheus.MustRegister(ScenarioMutationDuration)
	prometheus.MustRegister(ScenarioMutationsTotal)
	prometheus.MustRegister(PermissionDenialsTotal)
	prometheus.MustRegister(LockedScenariosTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Duration() time.Duration { return time.Since(t.start) }
