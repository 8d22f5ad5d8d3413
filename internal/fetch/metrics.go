package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depresolve_fetch_total",
			Help: "Number of artifact file resolutions by outcome.",
		},
		[]string{"outcome"},
	)
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depresolve_fetch_duration_seconds",
			Help:    "Time taken to resolve one artifact file.",
			Buckets: prometheus.DefBuckets,
		},
	)
	checksumFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depresolve_fetch_checksum_failures_total",
			Help: "Number of downloads that failed checksum verification, by the policy applied.",
		},
		[]string{"policy"},
	)
)

const (
	outcomeCached     = "cached"
	outcomeDownloaded = "downloaded"
	outcomeUpdated    = "updated"
	outcomeSystem     = "system"
	outcomeMissing    = "missing"
	outcomeFailed     = "failed"
)

func init() {
	metrics.Registry.MustRegister(
		fetchTotal,
		fetchDuration,
		checksumFailures,
	)
}
