package gossip

import (
	"fmt"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

// HandleHeartbeat processes an inbound heartbeat from sender, merging its
// peer index, wallet replica sets, and cluster metadata into local state.
// Grounded on the three-phase merge in the original heartbeat handler:
// peer index first (so later phases can look up PeerInfo for any newly
// admitted peer), then wallets, then cluster.
func (s *Server) HandleHeartbeat(sender PeerID, msg HeartbeatMessage) error {
	if info, ok := s.peers[sender]; ok {
		info.Successful()
	}

	s.mergePeerIndex(msg.KnownPeers)
	if err := s.mergeWalletReplicas(msg.ManagedWallets); err != nil {
		return err
	}
	return s.mergeClusterMetadata(msg.ClusterMetadata)
}

// mergePeerIndex admits any peer named in incoming that the local index
// doesn't already know about, skipping peers still in their
// expiry-invisibility window.
func (s *Server) mergePeerIndex(incoming map[PeerID]PeerInfo) {
	for id, info := range incoming {
		s.mu.RLock()
		_, known := s.peers[id]
		s.mu.RUnlock()
		if known {
			continue
		}
		s.AddPeer(info)
	}
}

// mergeWalletReplicas folds replica sets from incoming into any wallet this
// node also manages, restricted to peers we have PeerInfo for -- a replica
// we can't dial is useless to record.
func (s *Server) mergeWalletReplicas(incoming map[wallet.WalletID]wallet.WalletMetadata) error {
	for id, meta := range incoming {
		local, err := s.state.GetWallet(id)
		if err != nil {
			continue // we don't manage this wallet
		}
		var dialable []string
		for peer := range meta.Replicas {
			s.mu.RLock()
			_, ok := s.peers[peer]
			s.mu.RUnlock()
			if ok {
				dialable = append(dialable, peer)
			}
		}
		if len(dialable) == 0 {
			continue
		}
		if err := s.state.MergeWalletReplicas(local.ID, dialable); err != nil {
			return rerrors.Gossip(fmt.Errorf("merging wallet replicas: %w", err), false)
		}
	}
	return nil
}

// mergeClusterMetadata requests cluster authentication for any peer the
// sender claims is a same-cluster member that we don't yet recognize as
// such -- membership is never taken on a peer's word alone.
func (s *Server) mergeClusterMetadata(incoming ClusterMetadata) error {
	if incoming.ClusterID != s.cluster.ClusterID {
		return nil
	}
	for member := range incoming.Members {
		s.mu.RLock()
		_, known := s.cluster.Members[member]
		s.mu.RUnlock()
		if known {
			continue
		}
		s.outbound <- Request{PeerID: member, Message: ClusterJoin{ClusterID: s.cluster.ClusterID, PeerID: s.selfPeerID}}
	}
	return nil
}

// maybeExpirePeer declares target dead if it has missed HeartbeatFailure
// consecutive heartbeats, removing it from the peer index, reassigning its
// in-flight tasks, and placing it in the expiry-invisibility cache.
func (s *Server) maybeExpirePeer(target PeerID) {
	s.mu.Lock()
	info, ok := s.peers[target]
	if !ok {
		s.mu.Unlock()
		return
	}
	info.Missed()
	expired := info.Expired()
	if expired {
		delete(s.peers, target)
	}
	s.mu.Unlock()

	if !expired {
		return
	}

	log.Infof("peer %s expired after %d missed heartbeats", target, HeartbeatFailure)
	s.expiry.MarkExpired(target)
	if err := s.state.ReassignTasks(target); err != nil {
		log.Errorf("reassigning tasks from expired peer %s: %v", target, err)
	}
}
