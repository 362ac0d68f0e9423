package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCommitted counts committed placements and revisions (op=placed|revised|deleted).
	OrdersCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales",
		Name:      "orders_committed_total",
		Help:      "Orders written to the store, by operation.",
	}, []string{"op"})

	// OrdersRejected counts placements and revisions refused by the engine.
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales",
		Name:      "orders_rejected_total",
		Help:      "Order placements or revisions refused, by reason.",
	}, []string{"reason"})

	UnitsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sales",
		Name:      "stock_units_reserved_total",
		Help:      "Product units taken out of stock by orders.",
	})

	ReportCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales",
		Name:      "report_cache_total",
		Help:      "Leaderboard cache lookups, by result.",
	}, []string{"result"})

	// RollbackFailures counts compensation steps that did not go through, leaving
	// stock or an order out of step (target=stock|order).
	RollbackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales",
		Name:      "order_rollback_failures_total",
		Help:      "Failed compensation steps after an aborted order commit.",
	}, []string{"target"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sales",
		Name:      "events_consumed_total",
		Help:      "Order events handled by the report worker.",
	}, []string{"type"})
)
