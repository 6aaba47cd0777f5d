package boot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfigBody = `
cluster-id = "cluster-1"
self-peer-id = "peer-1"
data-dir = "/data"
raft-node-id = 1
http-port = 3000
websocket-port = 3001
p2p-port = 3002
peers = ["peer-2", "peer-3"]
chain-rpc-url = "https://arb1.example"
contract-address = "0xabc"
signing-key-path = "/secrets/key"
chain-id = 42161
raft-snapshot-path = "/data/raft"
`

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseFileDecodesAllFields(t *testing.T) {
	path := writeTestConfig(t, testConfigBody)

	cfg, err := ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, "cluster-1", cfg.ClusterID)
	require.Equal(t, 3000, cfg.HTTPPort)
	require.Equal(t, 3001, cfg.WebsocketPort)
	require.Equal(t, 3002, cfg.P2PPort)
	require.Equal(t, []string{"peer-2", "peer-3"}, cfg.Peers)
	require.Equal(t, int64(42161), cfg.ChainID)
}

func TestParseFileRejectsMissingFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestApplyEnvOverridesOverwritesPortsAndIP(t *testing.T) {
	cfg := &Config{HTTPPort: 1, WebsocketPort: 2, P2PPort: 3}

	t.Setenv(EnvHTTPPort, "4000")
	t.Setenv(EnvWSPort, "4001")
	t.Setenv(EnvP2PPort, "4002")
	t.Setenv(EnvPublicIP, "203.0.113.5")

	ApplyEnvOverrides(cfg)

	require.Equal(t, 4000, cfg.HTTPPort)
	require.Equal(t, 4001, cfg.WebsocketPort)
	require.Equal(t, 4002, cfg.P2PPort)
	require.Equal(t, "203.0.113.5", cfg.PublicIP)
}

func TestApplyEnvOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := &Config{HTTPPort: 1}
	ApplyEnvOverrides(cfg)
	require.Equal(t, 1, cfg.HTTPPort)
}

func TestLoadParsesAndOverlays(t *testing.T) {
	path := writeTestConfig(t, testConfigBody)
	t.Setenv(EnvHTTPPort, "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.HTTPPort)
	require.Equal(t, "cluster-1", cfg.ClusterID)
}
