package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReplayed  = "replayed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// CheckoutMetrics records order submission outcomes and latency.
type CheckoutMetrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Order submissions by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submit_duration_seconds",
		Help:    "Time spent waiting on the order processor.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(submissions, duration)
	return &CheckoutMetrics{
		submissions: submissions,
		duration:    duration,
	}
}

// IncSubmission counts a submission attempt with its outcome.
func (c *CheckoutMetrics) IncSubmission(outcome string) {
	if c == nil || c.submissions == nil {
		return
	}
	c.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSubmit records how long the processor call took.
func (c *CheckoutMetrics) ObserveSubmit(outcome string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(d.Seconds())
}

// Eviction kinds.
const (
	EvictionCart    = "cart"
	EvictionSession = "checkout_session"
)

// CartMetrics counts cart mutations, slot failures and idle evictions, and
// tracks cart sizes as they change.
type CartMetrics struct {
	mutations    *prometheus.CounterVec
	slotFailures *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	cartSize     prometheus.Histogram
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	slotFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_slot_failures_total",
		Help: "Cart slot read/write failures.",
	}, []string{"op"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_idle_evictions_total",
		Help: "In-memory carts and checkout sessions dropped after sitting idle.",
	}, []string{"kind"})
	cartSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_item_count",
		Help:    "Cart item count after each applied change.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
	reg.MustRegister(mutations, slotFailures, evictions, cartSize)
	return &CartMetrics{
		mutations:    mutations,
		slotFailures: slotFailures,
		evictions:    evictions,
		cartSize:     cartSize,
	}
}

func (c *CartMetrics) AddEvictions(kind string, n int) {
	if c == nil || c.evictions == nil || n <= 0 {
		return
	}
	c.evictions.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

// ObserveCartSize records a cart's item count after a change.
func (c *CartMetrics) ObserveCartSize(count int) {
	if c == nil || c.cartSize == nil {
		return
	}
	c.cartSize.Observe(float64(count))
}

func (c *CartMetrics) IncMutation(op, outcome string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

func (c *CartMetrics) IncSlotFailure(op string) {
	if c == nil || c.slotFailures == nil {
		return
	}
	c.slotFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
