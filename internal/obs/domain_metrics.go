package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ReceiptsTotal counts cart aggregations by caller and outcome.
	ReceiptsTotal *prometheus.CounterVec
	// PromoEvaluationsTotal counts promo code lookups by outcome.
	PromoEvaluationsTotal *prometheus.CounterVec
	// ShippingResolutionsTotal counts shipping resolutions by outcome.
	ShippingResolutionsTotal *prometheus.CounterVec
	// PromoThrottledTotal counts promo attempts rejected by the rate limiter.
	PromoThrottledTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers pricing collectors.
// Observe helpers are no-ops until it has run.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ReceiptsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_receipts_total",
			Help:      "Count of cart aggregations by source and result.",
		}, []string{"source", "result"}))
		PromoEvaluationsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_promo_evaluations_total",
			Help:      "Count of promo code evaluations by result.",
		}, []string{"result"}))
		ShippingResolutionsTotal = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_shipping_resolutions_total",
			Help:      "Count of shipping resolutions by result.",
		}, []string{"result"}))
		PromoThrottledTotal = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_promo_throttled_total",
			Help:      "Promo code attempts rejected by the rate limiter.",
		}))
	})
}

// ObserveReceipt records one aggregation attempt from source with its result label.
func ObserveReceipt(source, result string) {
	if ReceiptsTotal == nil {
		return
	}
	ReceiptsTotal.WithLabelValues(source, result).Inc()
}

// ObservePromoEvaluation records whether a promo code matched.
func ObservePromoEvaluation(applied bool) {
	if PromoEvaluationsTotal == nil {
		return
	}
	result := "miss"
	if applied {
		result = "applied"
	}
	PromoEvaluationsTotal.WithLabelValues(result).Inc()
}

// ObserveShippingResolution records a shipping resolution result such as
// "charged", "free" or "unknown_destination".
func ObserveShippingResolution(result string) {
	if ShippingResolutionsTotal == nil {
		return
	}
	ShippingResolutionsTotal.WithLabelValues(result).Inc()
}

// ObservePromoThrottled records a rejected promo attempt.
func ObservePromoThrottled() {
	if PromoThrottledTotal == nil {
		return
	}
	PromoThrottledTotal.Inc()
}
