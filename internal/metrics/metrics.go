package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sewabaju_orders_created_total",
		Help: "Total number of rental orders created.",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sewabaju_order_transitions_total",
		Help: "Total number of order status transitions, by target status.",
	},
		[]string{"to"},
	)

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sewabaju_payments_total",
		Help: "Total number of payment state changes, by resulting status.",
	},
		[]string{"status"},
	)

	FinesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sewabaju_fines_created_total",
		Help: "Total number of fines created, by kind.",
	},
		[]string{"kind"},
	)

	LoyaltyAwardFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sewabaju_loyalty_award_failures_total",
		Help: "Total number of loyalty point awards that failed and were skipped.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sewabaju_operation_errors_total",
		Help: "Total number of storage errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	OverdueOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sewabaju_overdue_orders",
		Help: "Number of active orders past their due date at the last scan.",
	})
)
