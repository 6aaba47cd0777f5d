package gossip

import (
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/dcrec/secp256k1/v3/ecdsa"

	"github.com/darkpool-labs/relayer/rerrors"
)

// clusterJoinDigest reconstructs the data a ClusterJoin signature covers,
// mirroring the teacher's DataToSign-then-hash pattern for gossip
// announcements: the signer commits to exactly the cluster id and peer id
// being admitted, nothing else.
func clusterJoinDigest(clusterID string, peer PeerID) []byte {
	return chainhash.HashB([]byte(clusterID + "|" + peer))
}

// HandleClusterJoin admits msg.PeerID to the cluster once its signature
// verifies against the cluster's shared public key, proving the joiner
// holds the cluster's admission secret.
func (s *Server) HandleClusterJoin(msg ClusterJoin, clusterKey *secp256k1.PublicKey) error {
	if msg.ClusterID != s.cluster.ClusterID {
		return rerrors.Gossip(fmt.Errorf("cluster join for unknown cluster %s", msg.ClusterID), true)
	}

	if clusterKey == nil {
		s.mu.RLock()
		_, member := s.cluster.Members[msg.PeerID]
		s.mu.RUnlock()
		if member {
			return nil
		}
		return rerrors.Gossip(fmt.Errorf("cluster join for peer %s refused: no cluster key configured", msg.PeerID), false)
	}

	sig, err := ecdsa.ParseDERSignature(msg.Signature)
	if err != nil {
		return rerrors.Gossip(fmt.Errorf("parsing cluster join signature: %w", err), true)
	}

	digest := clusterJoinDigest(msg.ClusterID, msg.PeerID)
	if !sig.Verify(digest, clusterKey) {
		return rerrors.Gossip(fmt.Errorf("cluster join signature for peer %s does not verify", msg.PeerID), true)
	}

	s.mu.Lock()
	_, already := s.cluster.Members[msg.PeerID]
	s.cluster.Members[msg.PeerID] = struct{}{}
	s.mu.Unlock()

	if already {
		return nil
	}

	log.Infof("admitted peer %s to cluster %s", msg.PeerID, msg.ClusterID)

	wallets, err := s.state.ListWallets()
	if err != nil {
		return rerrors.Gossip(fmt.Errorf("listing wallets to replicate to new member: %w", err), false)
	}
	if len(wallets) > 0 {
		s.outbound <- Request{PeerID: msg.PeerID, Message: Replicate{Wallets: wallets}}
	}
	return nil
}

// HandleReplicate accepts a bulk wallet push from an existing cluster
// member, issued when this replica has just joined and needs to catch up
// on state the rest of the cluster already holds.
func (s *Server) HandleReplicate(msg Replicate) error {
	for _, w := range msg.Wallets {
		if _, err := s.state.GetWallet(w.ID); err == nil {
			continue
		}
		if err := s.state.NewWallet(w); err != nil {
			return rerrors.Gossip(fmt.Errorf("replicating wallet %s: %w", w.ID, err), false)
		}
	}
	return nil
}
