package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Topic/partition metrics
	TopicsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mom_topics_total",
			Help: "Number of topics in the catalog",
		},
	)

	MessagesEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mom_messages_enqueued_total",
			Help: "Messages appended to partitions",
		},
	)

	MessagesDequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mom_messages_dequeued_total",
			Help: "Messages popped from partitions",
		},
	)

	// Dispatcher metrics
	DispatchAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mom_dispatch_attempts_total",
			Help: "Per-peer delivery attempts made by the dispatcher",
		},
	)

	DispatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mom_dispatch_failures_total",
			Help: "Delivery attempts that failed and cascaded to the next peer",
		},
	)

	// Cluster metrics
	InstancesRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mom_instances_registered",
			Help: "Instances currently in the worker registry",
		},
	)

	IsMaster = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mom_is_master",
			Help: "Whether this instance holds the master role (1 = master)",
		},
	)

	ElectionsWon = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mom_elections_won_total",
			Help: "Elections this instance has won",
		},
	)

	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mom_rpc_requests_total",
			Help: "RPC requests served, by method and wire status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		TopicsTotal,
		MessagesEnqueued,
		MessagesDequeued,
		DispatchAttempts,
		DispatchFailures,
		InstancesRegistered,
		IsMaster,
		ElectionsWon,
		RPCRequestsTotal,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
