// Package gossip implements the relayer's peer-to-peer dissemination
// layer: heartbeat-driven liveness and state merge, order-book
// dissemination, and cluster membership, all multiplexed onto a single
// outbound message channel.
package gossip

import "time"

const (
	// HeartbeatInterval spaces outbound heartbeats so every known peer is
	// pinged once per period.
	HeartbeatInterval = 10 * time.Second

	// HeartbeatFailure is the number of consecutive missed heartbeats
	// before a peer is declared dead.
	HeartbeatFailure = 5

	// ExpiryInvisibilityWindow is how long an expired peer is excluded
	// from re-admission via another peer's heartbeat, so the expiring
	// node's own view has time to catch up across the cluster.
	ExpiryInvisibilityWindow = 30 * time.Second

	// ExpiryCacheSize bounds the expiry-invisibility cache.
	ExpiryCacheSize = 100
)
