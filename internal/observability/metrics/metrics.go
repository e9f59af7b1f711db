package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConversationMetrics exposes counters/histograms for the booking flow.
// All methods are safe on a nil receiver so callers can run without metrics.
type ConversationMetrics struct {
	turnsTotal     *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	nluFallbacks   prometheus.Counter
	turnLatency    *prometheus.HistogramVec
	proposalsTotal *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citabot",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed inbound turns",
		}, []string{"stage", "outcome"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citabot",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Total terminal booking outcomes",
		}, []string{"status"}),
		nluFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "citabot",
			Subsystem: "nlu",
			Name:      "heuristic_fallbacks_total",
			Help:      "Turns processed without an NLU hint",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citabot",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one conversation turn end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		proposalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citabot",
			Subsystem: "availability",
			Name:      "proposals_total",
			Help:      "Slot proposals by source (staff, generic, synthetic)",
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.bookingsTotal, m.nluFallbacks, m.turnLatency, m.proposalsTotal)
	return m
}

func (m *ConversationMetrics) ObserveTurn(stage, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(stage, outcome).Inc()
	m.turnLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *ConversationMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveNLUFallback() {
	if m == nil {
		return
	}
	m.nluFallbacks.Inc()
}

func (m *ConversationMetrics) ObserveProposal(source string) {
	if m == nil {
		return
	}
	m.proposalsTotal.WithLabelValues(source).Inc()
}
