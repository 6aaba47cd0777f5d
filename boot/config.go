// Package boot is the relayer's own thin startup shim: it loads the TOML
// config written to disk by the orchestration layer, overlays the
// runtime-assigned ports and public IP the scheduler only knows at launch
// time, and hands back the typed Config every other package wires off of.
// See node-support/bootloader/src/main.rs in the original source --
// there the overlay step is a standalone process that rewrites the config
// file in place before the relayer binary starts; here it's a library call
// the relayer's own main performs against an in-memory struct instead.
package boot

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Environment variable names the orchestration layer sets at container
// launch, mirroring ENV_HTTP_PORT/ENV_WS_PORT/ENV_P2P_PORT/ENV_PUBLIC_IP
// from the original bootloader, plus the cluster id and the snapshot
// bucket name.
const (
	EnvHTTPPort       = "HTTP_PORT"
	EnvWSPort         = "WEBSOCKET_PORT"
	EnvP2PPort        = "P2P_PORT"
	EnvPublicIP       = "PUBLIC_IP"
	EnvClusterID      = "CLUSTER_ID"
	EnvSnapshotBucket = "SNAPSHOT_BUCKET"
)

// Config is the relayer's full startup configuration, the union of
// everything read from the TOML file on disk and everything overlaid from
// the environment at launch.
type Config struct {
	ClusterID  string `toml:"cluster-id"`
	SelfPeerID string `toml:"self-peer-id"`
	DataDir    string `toml:"data-dir"`
	RaftNodeID uint64 `toml:"raft-node-id"`

	HTTPPort      int    `toml:"http-port"`
	WebsocketPort int    `toml:"websocket-port"`
	P2PPort       int    `toml:"p2p-port"`
	PublicIP      string `toml:"public-ip,omitempty"`

	Peers []string `toml:"peers"`

	ChainRPCURL     string `toml:"chain-rpc-url"`
	ChainNetwork    string `toml:"chain-network,omitempty"`
	ContractAddress string `toml:"contract-address"`
	SigningKeyPath  string `toml:"signing-key-path"`
	ChainID         int64  `toml:"chain-id"`

	RaftSnapshotPath string `toml:"raft-snapshot-path"`
	SnapshotBucket   string `toml:"snapshot-bucket,omitempty"`
	SnapshotRegion   string `toml:"snapshot-region,omitempty"`
}

// ParseFile reads and decodes a relayer config from the TOML file at path,
// mirroring parse_config_from_file in the original's config crate.
func ParseFile(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnvOverrides overlays the launch-time environment variables onto
// cfg, the same fields the original's modify_config step injects after
// fetching the base config from object storage. Every overlay is optional:
// an unset (or, for ports, non-numeric) variable leaves whatever the file
// already specified.
func ApplyEnvOverrides(cfg *Config) {
	if v, ok := intEnv(EnvHTTPPort); ok {
		cfg.HTTPPort = v
	}
	if v, ok := intEnv(EnvWSPort); ok {
		cfg.WebsocketPort = v
	}
	if v, ok := intEnv(EnvP2PPort); ok {
		cfg.P2PPort = v
	}
	if v, ok := os.LookupEnv(EnvPublicIP); ok {
		cfg.PublicIP = v
	}
	if v, ok := os.LookupEnv(EnvClusterID); ok {
		cfg.ClusterID = v
	}
	if v, ok := os.LookupEnv(EnvSnapshotBucket); ok {
		cfg.SnapshotBucket = v
	}
}

func intEnv(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, false
	}
	return v, true
}

// Load reads path and applies the environment overlay in one step -- the
// entry point cmd/relayerd uses at startup.
func Load(path string) (*Config, error) {
	cfg, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	ApplyEnvOverrides(cfg)
	return cfg, nil
}
