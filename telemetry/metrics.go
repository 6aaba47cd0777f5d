// Package telemetry collects the relayer's operational metrics behind a
// Prometheus registry. The teacher's go.mod already pulls in
// prometheus/client_golang; no retrieved teacher source exercises it
// directly, so the collectors here follow the library's own documented
// idiom rather than a teacher call site.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the relayer's subsystems publish to.
// Subsystems take a *Metrics (or nil, which each subsystem checks for and
// then skips recording) rather than reaching into a global registry, so tests can construct their own
// isolated instance.
type Metrics struct {
	TaskQueueDepth      *prometheus.GaugeVec
	TaskCompletions      *prometheus.CounterVec
	HandshakeAttempts   *prometheus.CounterVec
	ChainSubmissions    *prometheus.CounterVec
	GossipMessages      *prometheus.CounterVec
	PeerCount           prometheus.Gauge
}

// New registers a fresh set of collectors against reg and returns the
// bundle. Passing prometheus.NewRegistry() isolates tests from the global
// default registry; production call sites pass prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TaskQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relayer",
			Subsystem: "task_driver",
			Name:      "queue_depth",
			Help:      "Number of tasks currently queued per wallet.",
		}, []string{"wallet_id"}),
		TaskCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "task_driver",
			Name:      "task_completions_total",
			Help:      "Completed tasks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		HandshakeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "handshake",
			Name:      "attempts_total",
			Help:      "MPC match attempts by outcome.",
		}, []string{"outcome"}),
		ChainSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "chainclient",
			Name:      "submissions_total",
			Help:      "Contract call submissions by method and outcome.",
		}, []string{"method", "outcome"}),
		GossipMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Subsystem: "gossip",
			Name:      "messages_total",
			Help:      "Gossip messages dispatched by type.",
		}, []string{"type"}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relayer",
			Subsystem: "gossip",
			Name:      "peer_count",
			Help:      "Number of peers currently in the local index.",
		}),
	}

	reg.MustRegister(
		m.TaskQueueDepth,
		m.TaskCompletions,
		m.HandshakeAttempts,
		m.ChainSubmissions,
		m.GossipMessages,
		m.PeerCount,
	)
	return m
}
