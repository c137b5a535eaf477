// Package metrics defines all custom Prometheus metrics for the market
// ledger API. It is the single source of truth for metric names, labels,
// and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketledger"

// ── Ledger operation metrics ─────────────────────────────────────────────────

// OperationsTotal counts committed ledger operations.
// Label:
//   - op: operation name (e.g. "create_product", "buy_product")
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of committed ledger operations, by operation.",
	},
	[]string{"op"},
)

// OperationErrorsTotal counts rejected ledger operations.
// Labels:
//   - op: operation name
//   - reason: error kind (e.g. "unauthorized", "invalid_state", "wrong_value")
var OperationErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Total number of rejected ledger operations, by operation and reason.",
	},
	[]string{"op", "reason"},
)

// StatusTransitionsTotal counts committed product status transitions.
// Labels:
//   - from, to: the lifecycle states involved
var StatusTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_transitions_total",
		Help:      "Total number of committed product status transitions.",
	},
	[]string{"from", "to"},
)

// ── Notification fan-out metrics ─────────────────────────────────────────────

// NotifyQueueDepth tracks the number of notifications waiting in each
// dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index ("0", "1", …)
var NotifyQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notify_queue_depth",
		Help:      "Current number of notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// NotifyDeliveryDuration measures how long a single subscriber delivery takes.
// Label:
//   - kind: the notification kind delivered, or "error" on subscriber failure
var NotifyDeliveryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notify_delivery_duration_seconds",
		Help:      "Duration of notification delivery from dequeue to subscriber return.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"kind"},
)
