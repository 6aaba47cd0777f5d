package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TaskQueueDepth.WithLabelValues("wallet-1").Set(3)
	m.TaskCompletions.WithLabelValues("settle-match", "success").Inc()
	m.HandshakeAttempts.WithLabelValues("success").Inc()
	m.ChainSubmissions.WithLabelValues("newWallet", "success").Inc()
	m.GossipMessages.WithLabelValues("heartbeat").Inc()
	m.PeerCount.Set(5)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["relayer_task_driver_queue_depth"])
	require.True(t, names["relayer_gossip_peer_count"])
}

func TestTaskQueueDepthTracksSetValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.TaskQueueDepth.WithLabelValues("wallet-1").Set(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "relayer_task_driver_queue_depth" {
			found = f
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Metric, 1)
	require.Equal(t, float64(2), found.Metric[0].GetGauge().GetValue())
}
