package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestInventoryMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventoryMetrics(reg)

	m.ObserveReservation("delivered", 120*time.Millisecond)
	m.IncClaimAttempt("won")
	m.IncClaimAttempt("conflict")
	m.IncReservation("delivered")
	m.IncRewriteConflict()
	m.AddLinesMutated("upload", 3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "inventory_claim_attempts_total", "outcome", "won"); err != nil {
		t.Fatalf("fetch won attempts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected won=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "inventory_claim_attempts_total", "outcome", "conflict"); err != nil {
		t.Fatalf("fetch conflict attempts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected conflict=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "inventory_lines_mutated_total", "action", "upload"); err != nil {
		t.Fatalf("fetch lines mutated: %v", err)
	} else if got != 3 {
		t.Fatalf("expected upload lines=3, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "inventory_reservation_duration_seconds", "result", "delivered"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestInventoryMetricsNilSafe(t *testing.T) {
	var m *InventoryMetrics
	m.IncClaimAttempt("won")
	m.IncReservation("delivered")
	m.IncRewriteConflict()
	m.AddLinesMutated("delete", 2)
	m.ObserveReservation("delivered", time.Millisecond)

	empty := NewInventoryMetrics(nil)
	empty.IncClaimAttempt("won")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
