// Package metrics records generation counters for a run and exports them in
// the Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for one process. Each instance owns its
// registry, so several can coexist in tests.
type Metrics struct {
	registry     *prometheus.Registry
	tablesLoaded *prometheus.CounterVec
	rowsDropped  *prometheus.CounterVec
	combinations *prometheus.CounterVec
	utterances   *prometheus.CounterVec
	emptyGroups  *prometheus.CounterVec
	runDuration  *prometheus.GaugeVec
}

// New creates and registers the metric set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tablesLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uttergen_tables_loaded_total",
				Help: "Entity tables loaded",
			},
			[]string{"use_case"},
		),
		rowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uttergen_rows_dropped_total",
				Help: "Entity table rows dropped because a field was missing",
			},
			[]string{"use_case"},
		),
		combinations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uttergen_combinations_total",
				Help: "Combination rows produced by the cartesian product",
			},
			[]string{"use_case"},
		),
		utterances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uttergen_utterances_total",
				Help: "Enriched utterances emitted",
			},
			[]string{"use_case", "combination_id"},
		),
		emptyGroups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uttergen_empty_groups_total",
				Help: "Combination sub-folders that produced no utterances",
			},
			[]string{"use_case"},
		),
		runDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uttergen_run_duration_seconds",
				Help: "Wall time spent generating a use case",
			},
			[]string{"use_case"},
		),
	}

	m.registry.MustRegister(
		m.tablesLoaded,
		m.rowsDropped,
		m.combinations,
		m.utterances,
		m.emptyGroups,
		m.runDuration,
	)
	return m
}

// Group records the outcome of one combination sub-folder.
func (m *Metrics) Group(useCase, combinationID string, tables, dropped, combinations, utterances int) {
	if m == nil {
		return
	}
	m.tablesLoaded.WithLabelValues(useCase).Add(float64(tables))
	m.rowsDropped.WithLabelValues(useCase).Add(float64(dropped))
	m.combinations.WithLabelValues(useCase).Add(float64(combinations))
	m.utterances.WithLabelValues(useCase, combinationID).Add(float64(utterances))
	if utterances == 0 {
		m.emptyGroups.WithLabelValues(useCase).Inc()
	}
}

// RunDuration records how long a use case took.
func (m *Metrics) RunDuration(useCase string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(useCase).Set(d.Seconds())
}

// WriteTextfile writes all metrics to path in the node-exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
