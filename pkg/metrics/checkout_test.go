package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.IncSubmission(OutcomeConfirmed)
	m.IncSubmission(OutcomeConfirmed)
	m.IncSubmission(OutcomeFailed)
	m.ObserveSubmit(OutcomeConfirmed, 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_submissions_total", "outcome", OutcomeConfirmed); err != nil {
		t.Fatalf("fetch confirmed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected confirmed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "checkout_submissions_total", "outcome", OutcomeFailed); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "checkout_submit_duration_seconds", "outcome", OutcomeConfirmed); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestCartMetricsNormalizeEmptyLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)
	m.IncMutation("add", "applied")
	m.IncSlotFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cart_slot_failures_total", "op", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown slot failure counted once, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "op", "add"); err != nil || got != 1 {
		t.Fatalf("expected add mutation counted once, got %f (%v)", got, err)
	}
}

func TestCartMetricsEvictionsAndSizes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)
	m.AddEvictions(EvictionCart, 3)
	m.AddEvictions(EvictionCart, 0)
	m.AddEvictions(EvictionSession, 1)
	m.ObserveCartSize(2)
	m.ObserveCartSize(5)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cart_idle_evictions_total", "kind", EvictionCart); err != nil || got != 3 {
		t.Fatalf("expected 3 cart evictions, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_idle_evictions_total", "kind", EvictionSession); err != nil || got != 1 {
		t.Fatalf("expected 1 session eviction, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "cart_item_count")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected cart_item_count histogram")
	}
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 || h.GetSampleSum() != 7 {
		t.Fatalf("expected 2 samples summing to 7, got %d/%f", h.GetSampleCount(), h.GetSampleSum())
	}
}

func TestNilRecordersAreSafe(t *testing.T) {
	var checkout *CheckoutMetrics
	checkout.IncSubmission(OutcomeConfirmed)
	checkout.ObserveSubmit(OutcomeConfirmed, time.Second)

	cart := NewCartMetrics(nil)
	cart.IncMutation("add", "applied")
	cart.IncSlotFailure("write")
	cart.AddEvictions(EvictionCart, 2)
	cart.ObserveCartSize(1)
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
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
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
