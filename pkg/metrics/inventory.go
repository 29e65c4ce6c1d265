package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics records reservation and mutation outcomes.
type InventoryMetrics struct {
	reservationDuration *prometheus.HistogramVec
	claimAttempts       *prometheus.CounterVec
	reservations        *prometheus.CounterVec
	rewriteConflicts    prometheus.Counter
	linesMutated        *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	reservationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_reservation_duration_seconds",
		Help:    "Duration of line reservations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	claimAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_claim_attempts_total",
		Help: "Conditional-update claim attempts by outcome.",
	}, []string{"outcome"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Completed reservation calls by result.",
	}, []string{"result"})
	rewriteConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_rewrite_conflicts_total",
		Help: "Batch rewrites aborted because a reservation advanced mid-operation.",
	})
	linesMutated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_lines_mutated_total",
		Help: "Lines added or removed by mutation operations.",
	}, []string{"action"})
	reg.MustRegister(reservationDuration, claimAttempts, reservations, rewriteConflicts, linesMutated)
	return &InventoryMetrics{
		reservationDuration: reservationDuration,
		claimAttempts:       claimAttempts,
		reservations:        reservations,
		rewriteConflicts:    rewriteConflicts,
		linesMutated:        linesMutated,
	}
}

// ObserveReservation records the duration of one reservation call.
func (m *InventoryMetrics) ObserveReservation(result string, duration time.Duration) {
	if m == nil || m.reservationDuration == nil {
		return
	}
	m.reservationDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncClaimAttempt counts one claim attempt with the given outcome (won/conflict).
func (m *InventoryMetrics) IncClaimAttempt(outcome string) {
	if m == nil || m.claimAttempts == nil {
		return
	}
	m.claimAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReservation counts one completed reservation call.
func (m *InventoryMetrics) IncReservation(result string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRewriteConflict counts one aborted batch rewrite.
func (m *InventoryMetrics) IncRewriteConflict() {
	if m == nil || m.rewriteConflicts == nil {
		return
	}
	m.rewriteConflicts.Inc()
}

// AddLinesMutated records how many lines an upload or deletion touched.
func (m *InventoryMetrics) AddLinesMutated(action string, count int) {
	if m == nil || m.linesMutated == nil || count <= 0 {
		return
	}
	m.linesMutated.WithLabelValues(normalizeLabel(action)).Add(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
