package gossip

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/telemetry"
	"github.com/darkpool-labs/relayer/wallet"
)

// heartbeatQuantum is the tick granularity the heartbeat loop wakes at; the
// actual per-peer spacing is HeartbeatInterval divided by the live peer
// count, rounded up to whole quanta, so the loop can react to peers
// joining or leaving without recreating its ticker.
const heartbeatQuantum = 250 * time.Millisecond

// Server runs the three gossip sub-protocols (heartbeat, order-book
// dissemination, cluster management) over a single outbound channel, and
// owns the peer index every sub-protocol reads and mutates.
type Server struct {
	selfPeerID PeerID
	state      *state.State
	outbound   chan Outbound

	mu      sync.RWMutex
	peers   map[PeerID]*PeerInfo
	cluster ClusterMetadata

	expiry     *expiryCache
	orderBook  *OrderBook
	clusterKey *secp256k1.PublicKey
	metrics    *telemetry.Metrics

	cancel chan struct{}
}

// Config configures a gossip Server.
type Config struct {
	SelfPeerID PeerID
	ClusterID  string
	State      *state.State

	// Chain and Verifier back the order book's proof-update checks.
	Chain    ChainClient
	Verifier ProofVerifier

	// ClusterKey authenticates ClusterJoin requests; nil disables admission
	// of any peer not already a member.
	ClusterKey *secp256k1.PublicKey

	// Metrics is optional; a nil value disables metric recording.
	Metrics *telemetry.Metrics
}

// New constructs a Server with an empty peer index and the given cluster
// identity, ready for Start.
func New(cfg Config) *Server {
	return &Server{
		selfPeerID: cfg.SelfPeerID,
		state:      cfg.State,
		outbound:   make(chan Outbound, 256),
		peers:      make(map[PeerID]*PeerInfo),
		cluster:    ClusterMetadata{ClusterID: cfg.ClusterID, Members: map[PeerID]struct{}{cfg.SelfPeerID: {}}},
		expiry:     newExpiryCache(ExpiryCacheSize),
		orderBook:  NewOrderBook(cfg.Chain, cfg.Verifier),
		clusterKey: cfg.ClusterKey,
		metrics:    cfg.Metrics,
		cancel:     make(chan struct{}),
	}
}

// OrderBook returns the server's local order-book index.
func (s *Server) OrderBook() *OrderBook { return s.orderBook }

// Dispatch routes an inbound message from sender to its handler. The
// network package calls this for every decoded message regardless of which
// sub-protocol it belongs to.
func (s *Server) Dispatch(sender PeerID, msg interface{}) error {
	s.recordMessage(msg)
	switch m := msg.(type) {
	case HeartbeatMessage:
		return s.HandleHeartbeat(sender, m)
	case OrderReceived:
		s.orderBook.HandleOrderReceived(m)
		return nil
	case OrderProofUpdated:
		if err := s.orderBook.HandleOrderProofUpdated(m); err != nil {
			return err
		}
		if err := s.state.AddOrder(state.NetworkOrderRecord{
			OrderID:    m.OrderID,
			WalletID:   m.WalletID,
			ClusterID:  s.cluster.ClusterID,
			Commitment: m.Commitment,
			Nullifier:  m.Nullifier,
			MerkleRoot: m.MerkleRoot,
		}); err != nil {
			return err
		}
		if s.cluster.HasMember(sender) {
			s.outbound <- Request{PeerID: sender, Message: OrderWitnessRequest{OrderID: m.OrderID}}
		}
		return nil
	case OrderWitnessRequest:
		witness, ok := s.orderBook.LocalWitness(m.OrderID)
		if !ok {
			return rerrors.Gossip(fmt.Errorf("no local witness held for order %s", m.OrderID), false)
		}
		s.outbound <- Response{PeerID: sender, Message: OrderWitnessResponse{OrderID: m.OrderID, Witness: witness}}
		return nil
	case OrderWitnessResponse:
		return s.state.AttachOrderWitness(m.OrderID, m.Witness)
	case NullifyOrders:
		ids := s.orderBook.HandleNullifyOrders(m)
		if len(ids) == 0 {
			return nil
		}
		return s.state.NullifyOrders(ids...)
	case ClusterJoin:
		return s.HandleClusterJoin(m, s.clusterKey)
	case Replicate:
		return s.HandleReplicate(m)
	default:
		return rerrors.Gossip(fmt.Errorf("unrecognized gossip message type %T from %s", msg, sender), true)
	}
}

// Outbound returns the channel the network manager drains for messages to
// deliver.
func (s *Server) Outbound() <-chan Outbound { return s.outbound }

// Start launches the heartbeat ticker in its own goroutine.
func (s *Server) Start() {
	go s.heartbeatLoop()
}

// Stop halts the heartbeat loop.
func (s *Server) Stop() { close(s.cancel) }

// AddPeer registers peer in the local index if it isn't within its
// expiry-invisibility window, and returns whether it was added.
func (s *Server) AddPeer(info PeerInfo) bool {
	if s.expiry.Invisible(info.ID) {
		return false
	}

	s.mu.Lock()
	if _, exists := s.peers[info.ID]; exists {
		s.mu.Unlock()
		return true
	}
	info.LastHeartbeatAt = time.Now()
	s.peers[info.ID] = &info
	peerCount := len(s.peers)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PeerCount.Set(float64(peerCount))
	}

	s.outbound <- Control{NewAddr: &NewAddrControl{PeerID: info.ID, Addr: info.Addr}}
	return true
}

// recordMessage is a no-op when the server was built without a metrics
// bundle.
func (s *Server) recordMessage(msg interface{}) {
	if s.metrics == nil {
		return
	}
	label := fmt.Sprintf("%T", msg)
	s.metrics.GossipMessages.WithLabelValues(label).Inc()
}

// Peers returns a shallow copy of the peer index safe to read without
// holding the lock. (The `GET /replicas` handler reads a wallet's own
// replica set from state, not this index.)
func (s *Server) Peers() map[PeerID]PeerInfo {
	return s.snapshotPeers()
}

// snapshotPeers returns a shallow copy of the peer index safe to read
// without holding the lock.
func (s *Server) snapshotPeers() map[PeerID]PeerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[PeerID]PeerInfo, len(s.peers))
	for id, p := range s.peers {
		out[id] = *p
	}
	return out
}

// heartbeatLoop spaces outbound heartbeats evenly over HeartbeatInterval:
// with N known peers, a full lap around the index takes HeartbeatInterval,
// so each peer is pinged once per period regardless of cluster size.
func (s *Server) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatQuantum)
	defer ticker.Stop()

	idx := 0
	var elapsed time.Duration
	var quantumPerPeer time.Duration

	for {
		select {
		case <-s.cancel:
			return
		case <-ticker.C:
			elapsed += heartbeatQuantum
			peers := s.snapshotPeers()
			if len(peers) == 0 {
				continue
			}
			quantumPerPeer = HeartbeatInterval / time.Duration(len(peers))
			if elapsed < quantumPerPeer {
				continue
			}
			elapsed = 0

			ids := make([]PeerID, 0, len(peers))
			for id := range peers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			target := ids[idx%len(ids)]
			idx++
			if target != s.selfPeerID {
				s.sendHeartbeat(target)
			}
		}
	}
}

func (s *Server) sendHeartbeat(target PeerID) {
	msg, err := s.buildHeartbeatMessage()
	if err != nil {
		log.Errorf("building heartbeat message: %v", err)
		return
	}
	s.outbound <- Request{PeerID: target, Message: msg}
	s.maybeExpirePeer(target)
}

func (s *Server) buildHeartbeatMessage() (HeartbeatMessage, error) {
	wallets, err := s.state.ListWallets()
	if err != nil {
		return HeartbeatMessage{}, rerrors.Gossip(fmt.Errorf("listing managed wallets: %w", err), false)
	}

	managedWallets := make(map[wallet.WalletID]wallet.WalletMetadata, len(wallets))
	for _, w := range wallets {
		managedWallets[w.ID] = w.Metadata
	}

	return HeartbeatMessage{
		KnownPeers:      s.snapshotPeers(),
		ManagedWallets:  managedWallets,
		ClusterMetadata: s.cluster,
	}, nil
}
