package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		deliveriesTotal,
		deliveryDuration,
		notificationsTotal,
		deliveryQueueRejected,
		reconcilerRequeued,
	)
}

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_deliveries_total",
			Help: "Delivery attempts by product type and result (delivered/partial/failed/skipped).",
		},
		[]string{"type", "result"},
	)

	deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_delivery_duration_seconds",
			Help:    "End-to-end delivery duration by product type.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"type"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_notifications_total",
			Help: "Buyer notices by channel (dm/email) and status (sent/blocked/error).",
		},
		[]string{"channel", "status"},
	)

	deliveryQueueRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_delivery_queue_rejected_total",
			Help: "Deliveries that could not be queued because the pool was stopped or full.",
		},
	)

	reconcilerRequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_delivery_reconciler_requeued_total",
			Help: "Undelivered orders picked up again by the reconciler.",
		},
	)
)

func IncDelivery(productType, result string) {
	deliveriesTotal.WithLabelValues(
		bounded(productType, "file", "serial_pool", "role"),
		bounded(result, "delivered", "partial", "failed", "skipped"),
	).Inc()
}

func ObserveDelivery(productType string, seconds float64) {
	deliveryDuration.WithLabelValues(bounded(productType, "file", "serial_pool", "role")).Observe(seconds)
}

func IncNotification(channel, status string) {
	notificationsTotal.WithLabelValues(
		bounded(channel, "dm", "email"),
		bounded(status, "sent", "blocked", "error"),
	).Inc()
}

func IncDeliveryRejected() { deliveryQueueRejected.Inc() }

func AddReconcilerRequeued(n int) { reconcilerRequeued.Add(float64(n)) }
