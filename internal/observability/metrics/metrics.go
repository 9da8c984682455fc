package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
// All observe methods are nil-safe so callers can run without a registry.
type BookingMetrics struct {
	stepsTotal     *prometheus.CounterVec
	searchesTotal  *prometheus.CounterVec
	commitsTotal   *prometheus.CounterVec
	commitLatency  prometheus.Histogram
	busyReadsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "engine",
			Name:      "steps_total",
			Help:      "Total state machine steps processed",
		}, []string{"step"}),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "engine",
			Name:      "slot_searches_total",
			Help:      "Total slot searches run",
		}, []string{"strategy", "degraded"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "engine",
			Name:      "commits_total",
			Help:      "Total commit protocol outcomes",
		}, []string{"outcome"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "engine",
			Name:      "commit_latency_seconds",
			Help:      "Latency of the commit protocol including provider calls",
			Buckets:   prometheus.DefBuckets,
		}),
		busyReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "calendar",
			Name:      "busy_reads_total",
			Help:      "Total free/busy reads against the provider",
		}, []string{"degraded"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.searchesTotal, m.commitsTotal, m.commitLatency, m.busyReadsTotal)
	return m
}

func (m *BookingMetrics) ObserveStep(step string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step).Inc()
}

func (m *BookingMetrics) ObserveSearch(strategy string, degraded bool) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(strategy, boolLabel(degraded)).Inc()
}

func (m *BookingMetrics) ObserveCommit(outcome string, seconds float64) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "confirmed"
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveBusyRead(degraded bool) {
	if m == nil {
		return
	}
	m.busyReadsTotal.WithLabelValues(boolLabel(degraded)).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
