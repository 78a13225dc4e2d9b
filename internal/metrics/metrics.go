// Package metrics exposes Prometheus instrumentation for the ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts created orders by kind.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockbook",
		Name:      "orders_created_total",
		Help:      "Number of orders created, by kind.",
	}, []string{"kind"})

	// OrdersCancelled counts cancelled orders by kind.
	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockbook",
		Name:      "orders_cancelled_total",
		Help:      "Number of orders cancelled, by kind.",
	}, []string{"kind"})

	// ReturnsCreated counts created returns.
	ReturnsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbook",
		Name:      "returns_created_total",
		Help:      "Number of returns created.",
	})

	// ReturnsToggled counts return status flips by resulting status.
	ReturnsToggled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockbook",
		Name:      "returns_toggled_total",
		Help:      "Number of return status toggles, by resulting status.",
	}, []string{"status"})

	// InsufficientStock counts rejected operations due to stock shortage.
	InsufficientStock = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbook",
		Name:      "insufficient_stock_total",
		Help:      "Number of operations rejected for insufficient stock.",
	})

	// RequestDuration measures HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stockbook",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// OutboxProcessed counts relayed outbox messages by outcome.
	OutboxProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockbook",
		Name:      "outbox_processed_total",
		Help:      "Number of outbox messages processed, by outcome.",
	}, []string{"outcome"})
)
