package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncPlaced()
	m.IncPlaced()
	m.IncFailed("empty_cart")
	m.ObserveDuration(120 * time.Millisecond)
	m.IncNotifyFailure("email")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orders_placed_total", "", ""); err != nil {
		t.Fatalf("fetch placed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected placed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "order_placement_failures_total", "reason", "empty_cart"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failures=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "order_notification_failures_total", "channel", "email"); err != nil {
		t.Fatalf("fetch notify failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected notify failures=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "order_placement_duration_seconds")
	if mf == nil {
		t.Fatal("duration histogram not exported")
	}
	if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *CheckoutMetrics
	m.IncPlaced()
	m.IncFailed("x")
	m.ObserveDuration(time.Second)
	m.IncNotifyFailure("email")

	empty := NewCheckoutMetrics(nil)
	empty.IncPlaced()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" || matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
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
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
