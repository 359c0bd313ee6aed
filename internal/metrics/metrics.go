// Package metrics defines the Prometheus collectors exported by the backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "soc"

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	recordsEvaluated *prometheus.CounterVec
	recordsKept      *prometheus.CounterVec
	recordsDropped   *prometheus.CounterVec

	filterDuration *prometheus.HistogramVec

	cacheLookups   *prometheus.CounterVec
	datasetsLoaded prometheus.Gauge
	upstreamFetch  *prometheus.CounterVec
}

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recordsEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "records_evaluated_total",
			Help:      "Records evaluated against a date range.",
		}, []string{"vendor"}),
		recordsKept: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "records_kept_total",
			Help:      "Records inside the selected date range.",
		}, []string{"vendor"}),
		recordsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "records_dropped_total",
			Help:      "Records excluded from a date range, by reason.",
		}, []string{"vendor", "reason"}),
		filterDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "duration_seconds",
			Help:      "Time spent filtering a dataset and recomputing KPIs.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"vendor"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Filter result cache lookups, by result (hit, miss, error).",
		}, []string{"result"}),
		datasetsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datasets",
			Name:      "loaded",
			Help:      "Datasets currently held in memory.",
		}),
		upstreamFetch: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_total",
			Help:      "Upstream live-data fetches, by vendor and result.",
		}, []string{"vendor", "result"}),
	}
}

// RecordEvaluated counts one record checked against a range.
func (m *Metrics) RecordEvaluated(vendor string) {
	if m == nil {
		return
	}
	m.recordsEvaluated.WithLabelValues(vendor).Inc()
}

// RecordKept counts one record retained by a filter.
func (m *Metrics) RecordKept(vendor string) {
	if m == nil {
		return
	}
	m.recordsKept.WithLabelValues(vendor).Inc()
}

// RecordDropped counts one record excluded by a filter.
func (m *Metrics) RecordDropped(vendor, reason string) {
	if m == nil {
		return
	}
	m.recordsDropped.WithLabelValues(vendor, reason).Inc()
}

// ObserveFilter records the wall time of one dataset filter pass.
func (m *Metrics) ObserveFilter(vendor string, seconds float64) {
	if m == nil {
		return
	}
	m.filterDuration.WithLabelValues(vendor).Observe(seconds)
}

// CacheLookup counts a result cache lookup.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetDatasetsLoaded reports how many datasets are in memory.
func (m *Metrics) SetDatasetsLoaded(n int) {
	if m == nil {
		return
	}
	m.datasetsLoaded.Set(float64(n))
}

// UpstreamFetch counts an upstream fetch.
func (m *Metrics) UpstreamFetch(vendor, result string) {
	if m == nil {
		return
	}
	m.upstreamFetch.WithLabelValues(vendor, result).Inc()
}
