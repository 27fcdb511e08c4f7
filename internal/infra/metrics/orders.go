package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		ordersTotal,
		orderRevenueTotal,
		orderCommissionTotal,
		stockOversoldTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_total",
			Help: "Order transitions by status (pending/completed/failed).",
		},
		[]string{"status"},
	)

	orderRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_revenue_total",
			Help: "Gross value of completed orders, labeled by currency.",
		},
		[]string{"currency"},
	)

	orderCommissionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_commission_total",
			Help: "Platform commission of completed orders, labeled by currency.",
		},
		[]string{"currency"},
	)

	stockOversoldTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_stock_oversold_total",
			Help: "Payments confirmed for products whose stock was already zero.",
		},
	)
)

func IncOrder(status string) {
	ordersTotal.WithLabelValues(bounded(status, "pending", "completed", "failed")).Inc()
}

func AddOrderRevenue(currency string, amount, commission decimal.Decimal) {
	a, _ := amount.Float64()
	c, _ := commission.Float64()
	orderRevenueTotal.WithLabelValues(norm(currency)).Add(a)
	orderCommissionTotal.WithLabelValues(norm(currency)).Add(c)
}

func IncOversold() { stockOversoldTotal.Inc() }
