package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AggregationMetrics records party aggregation runs.
type AggregationMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	missing  *prometheus.CounterVec
	guests   prometheus.Histogram
}

// NewAggregationMetrics registers the aggregation metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewAggregationMetrics(reg prometheus.Registerer) *AggregationMetrics {
	if reg == nil {
		return &AggregationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forkcast_aggregation_duration_seconds",
		Help:    "Duration of party preference aggregations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcast_aggregations_total",
		Help: "Party preference aggregations by outcome.",
	}, []string{"outcome"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcast_guest_records_skipped_total",
		Help: "Guest preference records left out of an aggregation.",
	}, []string{"reason"})
	missing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forkcast_missing_critical_fields_total",
		Help: "Critical fields found missing after a merge.",
	}, []string{"field"})
	guests := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forkcast_aggregation_guest_count",
		Help:    "Guest records per aggregation.",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 20},
	})
	reg.MustRegister(duration, runs, skipped, missing, guests)
	return &AggregationMetrics{
		duration: duration,
		runs:     runs,
		skipped:  skipped,
		missing:  missing,
		guests:   guests,
	}
}

// ObserveRun records one aggregation with its outcome and duration.
func (m *AggregationMetrics) ObserveRun(outcome string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveGuests records how many guest records fed an aggregation.
func (m *AggregationMetrics) ObserveGuests(n int) {
	if m == nil || m.guests == nil {
		return
	}
	m.guests.Observe(float64(n))
}

// IncSkipped counts a guest record dropped for the given reason.
func (m *AggregationMetrics) IncSkipped(reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncMissing counts each missing critical field.
func (m *AggregationMetrics) IncMissing(fields ...string) {
	if m == nil || m.missing == nil {
		return
	}
	for _, f := range fields {
		m.missing.WithLabelValues(normalizeLabel(f)).Inc()
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
