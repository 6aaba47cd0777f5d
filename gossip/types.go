package gossip

import (
	"time"

	"github.com/darkpool-labs/relayer/wallet"
)

// PeerID identifies a peer by its network-level connection key. Backed by a
// plain string (the peer's advertised node id) rather than a dedicated
// type, matching the teacher's WrappedPeerId-as-opaque-string-key usage at
// the network boundary.
type PeerID = string

// PeerInfo is everything the gossip layer knows about a peer: how to dial
// it and when it was last heard from.
type PeerInfo struct {
	ID              PeerID
	Addr            string
	LastHeartbeatAt time.Time
	MissedBeats     int
}

// Successful records a heartbeat response, resetting the miss counter.
func (p *PeerInfo) Successful() {
	p.LastHeartbeatAt = time.Now()
	p.MissedBeats = 0
}

// Missed records a failed heartbeat attempt.
func (p *PeerInfo) Missed() {
	p.MissedBeats++
}

// Expired reports whether p has missed enough consecutive heartbeats to be
// declared dead.
func (p *PeerInfo) Expired() bool {
	return p.MissedBeats >= HeartbeatFailure
}

// ClusterMetadata is the local view of this relayer's cluster: its id and
// the peers known to be members.
type ClusterMetadata struct {
	ClusterID string
	Members   map[PeerID]struct{}
}

// HasMember reports whether peer is a known cluster member.
func (c ClusterMetadata) HasMember(peer PeerID) bool {
	_, ok := c.Members[peer]
	return ok
}

// HeartbeatMessage is the payload exchanged on every heartbeat tick: a
// gossip-scale digest of known peers, locally managed wallets' replica
// sets, and cluster membership, so any two peers converge without a
// separate full-state sync protocol.
type HeartbeatMessage struct {
	KnownPeers      map[PeerID]PeerInfo
	ManagedWallets  map[wallet.WalletID]wallet.WalletMetadata
	ClusterMetadata ClusterMetadata
}

// OrderReceived announces a newly created order to the network.
type OrderReceived struct {
	OrderID  wallet.OrderID
	WalletID wallet.WalletID
}

// OrderProofUpdated carries a refreshed validity proof for an order. The
// gossip server runs it through four checks before accepting it: commitment
// linkage to the order's wallet, nullifier-unspent (via the chain client),
// Merkle-root historical validity, and proof verification (opaque verifier
// per Non-goals -- the relayer does not implement the proof system itself).
type OrderProofUpdated struct {
	OrderID       wallet.OrderID
	WalletID      wallet.WalletID
	Commitment    wallet.Scalar
	Nullifier     wallet.Scalar
	MerkleRoot    wallet.Scalar
	ValidityProof []byte
}

// OrderWitnessRequest asks the order's owner for the witness backing its
// validity proof. Only sent to a sender that just verified as a cluster
// peer -- cross-cluster orders are tracked by proof alone.
type OrderWitnessRequest struct {
	OrderID wallet.OrderID
}

// OrderWitnessResponse answers a peer's request for the witness backing an
// order's validity proof, used when a counterparty wants to verify an
// order before entering a handshake over it.
type OrderWitnessResponse struct {
	OrderID wallet.OrderID
	Witness []byte
}

// NullifyOrders cancels every order keyed to nullifier -- issued once the
// wallet that created them advances past the state those orders were valid
// against.
type NullifyOrders struct {
	Nullifier wallet.Scalar
}

// ClusterJoin is a peer's request to join the local cluster, signed by the
// cluster's shared key so membership can be authenticated.
type ClusterJoin struct {
	ClusterID string
	PeerID    PeerID
	Signature []byte
}

// Replicate pushes a set of wallets to a newly admitted cluster replica.
type Replicate struct {
	Wallets []*wallet.Wallet
}
