package gossip

import (
	"fmt"
	"sync"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

// ChainClient is the narrow slice of the chain client the order book needs
// to validate an incoming proof update: whether a nullifier has already
// been spent on-chain, and whether a claimed Merkle root was ever valid.
// Kept local to this package (rather than importing the chainclient
// package directly) so gossip has no dependency on how the chain is
// actually reached -- the boot package wires a concrete implementation in.
type ChainClient interface {
	NullifierSpent(nullifier wallet.Scalar) (bool, error)
	IsHistoricalRoot(root wallet.Scalar) (bool, error)
}

// ProofVerifier checks an opaque validity proof. The relayer never
// implements the proof system itself; this interface is satisfied by
// whatever verifier component the boot package wires in.
type ProofVerifier interface {
	VerifyOrderValidity(proof []byte) (bool, error)
}

type orderBookEntry struct {
	WalletID   wallet.WalletID
	Commitment wallet.Scalar
	Nullifier  wallet.Scalar
	MerkleRoot wallet.Scalar
}

// OrderBook is the gossip layer's local index of orders known to the
// network, keyed by order id with a reverse nullifier index so a single
// NullifyOrders message can cancel every order derived from a stale wallet
// state in one pass.
type OrderBook struct {
	mu       sync.RWMutex
	orders   map[wallet.OrderID]orderBookEntry
	byNullif map[wallet.Scalar][]wallet.OrderID
	// witnesses holds this node's own orders' validity witnesses, keyed by
	// order id -- the only orders this node can answer an
	// OrderWitnessRequest for.
	witnesses map[wallet.OrderID][]byte

	chain    ChainClient
	verifier ProofVerifier
}

// NewOrderBook constructs an empty order book backed by chain and verifier
// for proof-update validation.
func NewOrderBook(chain ChainClient, verifier ProofVerifier) *OrderBook {
	return &OrderBook{
		orders:    make(map[wallet.OrderID]orderBookEntry),
		byNullif:  make(map[wallet.Scalar][]wallet.OrderID),
		witnesses: make(map[wallet.OrderID][]byte),
		chain:     chain,
		verifier:  verifier,
	}
}

// SetLocalWitness registers witness as the validity witness this node can
// serve for its own order id, so a later OrderWitnessRequest from a
// cluster peer has something to answer with.
func (b *OrderBook) SetLocalWitness(id wallet.OrderID, witness []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.witnesses[id] = witness
}

// LocalWitness returns the witness this node holds for id, if any.
func (b *OrderBook) LocalWitness(id wallet.OrderID) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	w, ok := b.witnesses[id]
	return w, ok
}

// HandleOrderReceived indexes a newly announced order with no proof yet
// attached -- a subsequent OrderProofUpdated fills in its commitment.
func (b *OrderBook) HandleOrderReceived(msg OrderReceived) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.orders[msg.OrderID]; exists {
		return
	}
	b.orders[msg.OrderID] = orderBookEntry{WalletID: msg.WalletID}
}

// HandleOrderProofUpdated runs the four-part verification spec.md assigns
// an incoming proof update before accepting it: the proof's commitment must
// link to the order's wallet, its nullifier must not already be spent
// on-chain, its claimed root must have been a valid historical root, and
// the proof itself must verify. Any failing check rejects the update
// without mutating the book.
func (b *OrderBook) HandleOrderProofUpdated(msg OrderProofUpdated) error {
	b.mu.RLock()
	existing, known := b.orders[msg.OrderID]
	b.mu.RUnlock()
	if known && existing.WalletID != msg.WalletID {
		return rerrors.Proof(fmt.Errorf("order %s commitment linkage mismatch", msg.OrderID))
	}

	spent, err := b.chain.NullifierSpent(msg.Nullifier)
	if err != nil {
		return rerrors.Chain(fmt.Errorf("checking nullifier status: %w", err), true)
	}
	if spent {
		return rerrors.Proof(fmt.Errorf("order %s nullifier already spent", msg.OrderID))
	}

	validRoot, err := b.chain.IsHistoricalRoot(msg.MerkleRoot)
	if err != nil {
		return rerrors.Chain(fmt.Errorf("checking historical root: %w", err), true)
	}
	if !validRoot {
		return rerrors.Proof(fmt.Errorf("order %s root is not a valid historical root", msg.OrderID))
	}

	ok, err := b.verifier.VerifyOrderValidity(msg.ValidityProof)
	if err != nil {
		return rerrors.Proof(fmt.Errorf("verifying order %s validity proof: %w", msg.OrderID, err))
	}
	if !ok {
		return rerrors.Proof(fmt.Errorf("order %s validity proof did not verify", msg.OrderID))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if known {
		b.removeFromNullifIndex(msg.OrderID, existing.Nullifier)
	}
	entry := orderBookEntry{
		WalletID:   msg.WalletID,
		Commitment: msg.Commitment,
		Nullifier:  msg.Nullifier,
		MerkleRoot: msg.MerkleRoot,
	}
	b.orders[msg.OrderID] = entry
	b.byNullif[msg.Nullifier] = append(b.byNullif[msg.Nullifier], msg.OrderID)
	return nil
}

// HandleNullifyOrders removes every order derived from nullifier -- issued
// once the wallet that produced them has moved past the state they were
// valid against. Returns the ids removed so the caller can propagate the
// cancellation into replicated state.
func (b *OrderBook) HandleNullifyOrders(msg NullifyOrders) []wallet.OrderID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.byNullif[msg.Nullifier]
	for _, id := range ids {
		delete(b.orders, id)
	}
	delete(b.byNullif, msg.Nullifier)
	return ids
}

// removeFromNullifIndex must be called with b.mu held.
func (b *OrderBook) removeFromNullifIndex(id wallet.OrderID, nullifier wallet.Scalar) {
	ids := b.byNullif[nullifier]
	for i, existing := range ids {
		if existing == id {
			b.byNullif[nullifier] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Get returns the order book entry for id, if known.
func (b *OrderBook) Get(id wallet.OrderID) (orderBookEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.orders[id]
	return e, ok
}
