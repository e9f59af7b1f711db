package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilReceiverIsSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveTurn("open", "replied", 0.1)
	m.ObserveBooking("confirmed")
	m.ObserveNLUFallback()
	m.ObserveProposal("synthetic")
}

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)

	m.ObserveTurn("awaiting_time", "replied", 0.05)
	m.ObserveTurn("awaiting_time", "replied", 0.07)
	m.ObserveBooking("confirmed")
	m.ObserveBooking("failed")
	m.ObserveNLUFallback()
	m.ObserveProposal("staff")
	m.ObserveProposal("staff")
	m.ObserveProposal("generic")

	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("awaiting_time", "replied")); got != 2 {
		t.Fatalf("turns counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed bookings counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.nluFallbacks); got != 1 {
		t.Fatalf("fallback counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.proposalsTotal.WithLabelValues("staff")); got != 2 {
		t.Fatalf("staff proposals counter = %v, want 2", got)
	}
}
