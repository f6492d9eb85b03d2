package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement outcomes. All methods tolerate a
// nil receiver so metrics stay optional in tests and tooling.
type CheckoutMetrics struct {
	placed   prometheus.Counter
	failed   *prometheus.CounterVec
	duration prometheus.Histogram
	notify   *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders successfully placed.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_placement_failures_total",
		Help: "Order placements that did not commit.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_duration_seconds",
		Help:    "Duration of the order placement transaction in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	notify := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_notification_failures_total",
		Help: "Post-commit notification deliveries that failed.",
	}, []string{"channel"})
	reg.MustRegister(placed, failed, duration, notify)
	return &CheckoutMetrics{
		placed:   placed,
		failed:   failed,
		duration: duration,
		notify:   notify,
	}
}

// IncPlaced increments the successful placement counter.
func (m *CheckoutMetrics) IncPlaced() {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
}

// IncFailed increments the failure counter for the given reason label.
func (m *CheckoutMetrics) IncFailed(reason string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveDuration records how long the placement transaction took.
func (m *CheckoutMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// IncNotifyFailure counts a swallowed post-commit notification error.
func (m *CheckoutMetrics) IncNotifyFailure(channel string) {
	if m == nil || m.notify == nil {
		return
	}
	m.notify.WithLabelValues(normalizeLabel(channel)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
