package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	Probes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exit_failover",
		Name:      "probes_total",
		Help:      "Total health probes, by outcome",
	}, []string{"outcome"})

	NodeStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "exit_failover",
		Name:      "node_status",
		Help:      "Current node health status (healthy=0, degraded=1, failed=2)",
	}, []string{"node"})

	FailoverEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exit_failover",
		Name:      "events_total",
		Help:      "Total failover events recorded, by trigger reason",
	}, []string{"reason"})

	SkippedNoCandidate = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "exit_failover",
		Name:      "skipped_no_candidate_total",
		Help:      "Failover attempts skipped because no healthy exit was available",
	})

	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exit_failover",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of health-check and failover cycles",
		Buckets:   prometheus.DefBuckets,
	}, []string{"cycle"})
)

// Register installs all collectors on the default Prometheus registry.
// Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			Probes,
			NodeStatus,
			FailoverEvents,
			SkippedNoCandidate,
			CycleDuration,
		)
	})
}
