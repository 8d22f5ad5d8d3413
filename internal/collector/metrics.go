package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	collectNodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "depresolve_collect_nodes_total",
			Help: "Total number of dependency nodes attached to collected graphs.",
		},
	)
	conflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depresolve_conflicts_total",
			Help: "Number of conflicts met during collection by kind.",
		},
		[]string{"kind"},
	)
	collectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depresolve_collect_duration_seconds",
			Help:    "Time taken to collect a dependency graph.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

const (
	conflictNearer         = "nearer"
	conflictCycle          = "cycle"
	conflictScope          = "scope"
	conflictOverConstraint = "overconstrained"
)

func init() {
	metrics.Registry.MustRegister(
		collectNodesTotal,
		conflictsTotal,
		collectDuration,
	)
}
