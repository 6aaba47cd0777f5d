// Package arbitrum is the relayer's one concrete chainclient.ChainClient
// implementation, targeting the Arbitrum deployment of the darkpool
// contract. Grounded in original_source/arbitrum-client's abi.rs/errors.rs
// and darkpool-client's constants.rs.
package arbitrum

import (
	"math/big"
	"time"

	"github.com/darkpool-labs/relayer/wallet"
)

// Chain selects which Arbitrum-family deployment a Client targets, mirroring
// the three-way enum the original darkpool client configures against.
type Chain string

const (
	ChainMainnet Chain = "mainnet"
	ChainTestnet Chain = "testnet"
	ChainDevnet  Chain = "devnet"
)

// eventFilterPollingInterval is how often the event watcher re-queries the
// contract's logs -- matches EVENT_FILTER_POLLING_INTERVAL_MS in the client
// this is grounded on.
const eventFilterPollingInterval = 7 * time.Second

// eventChannelDepth bounds the Client.Events() channel; when it is full the
// newly decoded event is dropped rather than stalling the watch loop.
const eventChannelDepth = 256

// emptyLeafValue is the Merkle tree's empty-leaf value: the Keccak-256
// hash of the string "renegade" reduced modulo the scalar field's modulus.
// Reconstructed from the original implementation's little-endian limb
// representation (EMPTY_LEAF_VALUE in constants.rs) rather than re-derived,
// since the relayer never performs scalar-field arithmetic itself.
var emptyLeafValue = wallet.ScalarFromBigInt(limbsToBigInt(
	14542100412480080699,
	1005430062575839833,
	8810205500711505764,
	2121377557688093532,
))

// limbsToBigInt reconstructs a big.Int from little-endian 64-bit limbs,
// matching ark_ff::BigInt's word order.
func limbsToBigInt(limbs ...uint64) *big.Int {
	v := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		v.Lsh(v, 64)
		v.Or(v, new(big.Int).SetUint64(limbs[i]))
	}
	return v
}

// EmptyLeafValue exposes emptyLeafValue for callers (e.g. a from-scratch
// Merkle tree bootstrap) that need the tree's default leaf.
func EmptyLeafValue() wallet.Scalar { return emptyLeafValue }
