package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersFinalizedTotal counts checkout outcomes.
	OrdersFinalizedTotal *prometheus.CounterVec
	// OrderValueCents records finalized order totals in cents.
	OrderValueCents prometheus.Histogram
	// CouponApplyTotal counts coupon apply attempts by outcome.
	CouponApplyTotal *prometheus.CounterVec
	// BasketMutationsTotal counts basket mutations by operation and outcome.
	BasketMutationsTotal *prometheus.CounterVec
	// OrderStatusTransitionsTotal counts accepted order status changes.
	OrderStatusTransitionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers storefront Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersFinalizedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_finalized_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"}))
		OrderValueCents = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value_cents",
			Help:      "Distribution of finalized order totals in cents.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}))
		CouponApplyTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_apply_total",
			Help:      "Count of coupon apply attempts by outcome.",
		}, []string{"result"}))
		BasketMutationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "basket_mutations_total",
			Help:      "Count of basket mutations by operation and outcome.",
		}, []string{"op", "result"}))
		OrderStatusTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Count of accepted order status transitions.",
		}, []string{"from", "to"}))
	})
}

// Result labels an outcome for counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordOrderFinalized observes a checkout outcome.
func RecordOrderFinalized(total int64, err error) {
	if OrdersFinalizedTotal != nil {
		OrdersFinalizedTotal.WithLabelValues(Result(err)).Inc()
	}
	if err == nil && OrderValueCents != nil {
		OrderValueCents.Observe(float64(total))
	}
}

// RecordCouponApply observes a coupon attempt. result is "ok", "invalid" or "error".
func RecordCouponApply(result string) {
	if CouponApplyTotal != nil {
		CouponApplyTotal.WithLabelValues(result).Inc()
	}
}

// RecordBasketMutation observes a basket mutation.
func RecordBasketMutation(op string, err error) {
	if BasketMutationsTotal != nil {
		BasketMutationsTotal.WithLabelValues(op, Result(err)).Inc()
	}
}

// RecordStatusTransition observes an order status change.
func RecordStatusTransition(from, to string) {
	if OrderStatusTransitionsTotal != nil {
		OrderStatusTransitionsTotal.WithLabelValues(from, to).Inc()
	}
}
