package wallet

import (
	"math/big"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

func bigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func mintToScalar(m MintID) Scalar {
	return ScalarFromBigInt(new(big.Int).SetBytes(m[:]))
}

// MintFromBigInt encodes v as a MintID, truncating to the low 32 bytes. v is
// expected to already fit an ERC-20-address-width value; truncation only
// matters for malformed input, which callers should reject before this.
func MintFromBigInt(v *big.Int) MintID {
	var m MintID
	b := v.Bytes()
	if len(b) > len(m) {
		b = b[len(b)-len(m):]
	}
	copy(m[len(m)-len(b):], b)
	return m
}

// hashScalars is a stand-in for the circuit's native sponge hash (Poseidon
// in the original proof system). The relayer never verifies a proof itself
// -- commitments and nullifiers it computes here are only used for local
// bookkeeping (dedup, staleness checks) and are recomputed authoritatively
// by the prover/verifier, so collision resistance under sha256 is more than
// sufficient for this module's purposes.
func hashScalars(scalars ...Scalar) Scalar {
	buf := make([]byte, 0, len(scalars)*ScalarMaxBytes)
	for _, s := range scalars {
		buf = append(buf, s[:]...)
	}
	h := chainhash.HashH(buf)
	return Scalar(h)
}
