package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftstore_orders_placed_total",
		Help: "Total number of orders successfully placed.",
	})

	RequestsQuotedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftstore_requests_quoted_total",
		Help: "Total number of custom requests that received a quote.",
	})

	SupportMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftstore_support_messages_total",
		Help: "Total number of messages posted in support conversations.",
	})

	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftstore_auth_failures_total",
		Help: "Total number of rejected credential checks.",
	},
		[]string{"reason"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftstore_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "giftstore_active_sessions",
		Help: "Current number of signed-in sessions.",
	})

	OutboxTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftstore_outbox_tasks_total",
		Help: "Outbox tasks by final result of a delivery attempt.",
	},
		[]string{"result"},
	)

	OutboxBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "giftstore_outbox_backlog",
		Help: "Outbox tasks per status as of the last publisher poll.",
	},
		[]string{"status"},
	)

	AuditEntriesDirect = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftstore_audit_entries_direct_total",
		Help: "Audit entries written directly because the worker queue was full.",
	})

	KPI = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "giftstore_kpi",
		Help: "Dashboard figures as of the last KPI read.",
	},
		[]string{"name"},
	)
)
