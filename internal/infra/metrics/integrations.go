package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchaseRateLimitedTotal,
		operatorAlertsTotal,
		eventsPublishedTotal,
	)
}

var (
	purchaseRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_purchase_rate_limited_total",
			Help: "Purchases rejected by the per-buyer rate limiter.",
		},
	)

	operatorAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_operator_alerts_total",
			Help: "Operator alerts sent to Telegram by status.",
		},
		[]string{"status"}, // sent|error
	)

	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Order lifecycle events written to the broker by type and status.",
		},
		[]string{"type", "status"},
	)
)

func IncPurchaseRateLimited() { purchaseRateLimitedTotal.Inc() }

func IncOperatorAlert(status string) {
	operatorAlertsTotal.WithLabelValues(bounded(status, "sent", "error")).Inc()
}

func IncEventPublished(eventType, status string) {
	eventsPublishedTotal.WithLabelValues(norm(eventType), bounded(status, "sent", "error")).Inc()
}
