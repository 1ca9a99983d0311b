// Package metrics exposes the Prometheus counters and histograms the
// RPC daemon records around core store calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CheckoutTotal counts checkout attempts by outcome: "claimed",
	// "empty" (no pending task), "lost_race", or "error".
	CheckoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskq_checkout_total",
			Help: "Total number of checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	CheckoutLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskq_checkout_duration_seconds",
			Help:    "Time taken to perform a checkout, successful or not",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskq_queue_depth",
			Help: "Pending task count by queue, refreshed on each queue_stats call",
		},
		[]string{"queue"},
	)

	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskq_rpc_operations_total",
			Help: "Total number of RPC operations handled by outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskq_rpc_operation_duration_seconds",
			Help:    "RPC operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(CheckoutTotal)
	prometheus.MustRegister(CheckoutLatency)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
}

// Handler returns the HTTP handler serving the Prometheus exposition
// format, mounted by the daemon's --metrics-addr listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
