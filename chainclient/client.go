// Package chainclient defines the relayer's narrow view of the on-chain
// darkpool contract: nullifier/root queries, the three state-transition
// submissions (new wallet, update wallet, match settlement), and the merkle
// event stream a replica's proof-staleness tracking depends on. See
// chainclient/arbitrum for the one concrete implementation.
package chainclient

import (
	"context"

	"github.com/darkpool-labs/relayer/wallet"
)

// Nullifier and MerkleRoot are both scalar field elements; the aliases
// exist only to make ChainClient's signatures self-documenting.
type (
	Nullifier  = wallet.Scalar
	MerkleRoot = wallet.Scalar
)

// TxHash identifies a submitted on-chain transaction by the chain's own
// native hash encoding (hex for an EVM chain).
type TxHash string

// Signature is an opaque wallet-update authorization signature, already
// encoded the way the target contract expects it on the wire.
type Signature []byte

// ProofBundle is the calldata payload for one of the three state-mutating
// contract calls. Parts holds the already-ABI-encoded byte arguments in the
// order the target call expects them (e.g. newWallet's blinder share, proof,
// and statement bytes; processMatchSettle's eight per-party payload/proof
// arguments) -- proof generation and calldata assembly both happen upstream
// of this package, which only ever receives bundles that are already
// complete.
type ProofBundle struct {
	Parts [][]byte
}

// ChainEventKind enumerates the Merkle-tree and nullifier events a replica
// watches to keep MerkleProof/ProofStaleness current without polling.
type ChainEventKind string

const (
	EventMerkleInternalNodeChanged ChainEventKind = "merkle-internal-node-changed"
	EventMerkleValueInserted       ChainEventKind = "merkle-value-inserted"
	EventNullifierSpent            ChainEventKind = "nullifier-spent"
)

// ChainEvent is one decoded contract event, normalized across chains.
type ChainEvent struct {
	Kind  ChainEventKind
	Value wallet.Scalar
	Tx    TxHash
}

// ChainClient is the full on-chain surface the relayer depends on. A single
// concrete implementation (chainclient/arbitrum.Client) satisfies this
// directly; gossip and taskdriver each declare their own narrower local
// interface instead of importing this package, so ChainClient's shape is
// free to track the contract ABI without forcing changes through every
// consumer. Adapter.go bridges the two.
type ChainClient interface {
	IsNullifierSpent(ctx context.Context, n Nullifier) (bool, error)
	RootInHistory(ctx context.Context, r MerkleRoot) (bool, error)
	GetPublicBlinderTransaction(ctx context.Context, s wallet.Scalar) (TxHash, error)
	NewWallet(ctx context.Context, bundle ProofBundle) (TxHash, error)
	UpdateWallet(ctx context.Context, bundle ProofBundle, sig Signature) (TxHash, error)
	ProcessMatchSettle(ctx context.Context, bundle ProofBundle) (TxHash, error)
	Events() <-chan ChainEvent
}
