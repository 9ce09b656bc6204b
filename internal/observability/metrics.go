// Package observability provides prometheus metrics for the
// reconciliation pipeline.
//
// The parsers swallow malformed records on purpose; the dropped-record
// counters here are what keeps those drops visible to operators.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Source label values.
const (
	SourceAlarm = "alarm"
	SourceSales = "sales"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	DroppedRecords  *prometheus.CounterVec
	SourcesLoaded   *prometheus.CounterVec
	RunsTotal       prometheus.Counter
	UnmatchedEvents prometheus.Gauge
	DateMismatches  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DroppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "floorwatch_dropped_records_total",
			Help: "Records dropped during source parsing (unresolved location or malformed field), by source.",
		}, []string{"source"}),
		SourcesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "floorwatch_sources_loaded_total",
			Help: "Source documents successfully parsed, by source.",
		}, []string{"source"}),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floorwatch_reconcile_runs_total",
			Help: "Completed reconciliation runs.",
		}),
		UnmatchedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "floorwatch_unmatched_events",
			Help: "Unmatched alarm events found by the most recent run.",
		}),
		DateMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floorwatch_date_mismatches_total",
			Help: "Reconciliation attempts refused because source dates disagreed.",
		}),
	}

	reg.MustRegister(
		m.DroppedRecords,
		m.SourcesLoaded,
		m.RunsTotal,
		m.UnmatchedEvents,
		m.DateMismatches,
	)

	return m
}

// SourceLoaded records a successful parse and its drop count.
func (m *Metrics) SourceLoaded(source string, dropped int) {
	if m == nil {
		return
	}
	m.SourcesLoaded.WithLabelValues(source).Inc()
	if dropped > 0 {
		m.DroppedRecords.WithLabelValues(source).Add(float64(dropped))
	}
}
