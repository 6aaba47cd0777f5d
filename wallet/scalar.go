package wallet

import "math/big"

// ScalarMaxBytes is the number of bytes of a Scalar that are load-bearing;
// the field modulus is slightly under 2^256, so the high byte of the
// underlying array is never fully used. Mirrors the teacher corpus's
// practice of naming field-width constants rather than hard-coding 32
// everywhere.
const ScalarMaxBytes = 32

// Scalar is a field element of the proof system's scalar field, represented
// as a fixed-width big-endian byte array so it is comparable (usable as a
// map key) and has a stable wire encoding.
type Scalar [ScalarMaxBytes]byte

// ZeroScalar is the additive identity.
var ZeroScalar Scalar

// ScalarFromBigInt reduces v into a Scalar via big-endian truncation to
// ScalarMaxBytes bytes. Callers that need modular reduction under the
// field modulus must do so before calling this (the modulus itself is a
// circuit-internal detail, opaque per the Non-goals).
func ScalarFromBigInt(v *big.Int) Scalar {
	var s Scalar
	b := v.Bytes()
	if len(b) > ScalarMaxBytes {
		b = b[len(b)-ScalarMaxBytes:]
	}
	copy(s[ScalarMaxBytes-len(b):], b)
	return s
}

// BigInt recovers the big-endian integer value of the scalar.
func (s Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// Add returns the elementwise sum of two scalars modulo 2^256. This is a
// stand-in for field addition; the relayer never performs real field
// arithmetic itself (that's the prover's job), it only needs Add to satisfy
// the additive-share invariant (private + blinded-public == blinded
// plaintext) over values the opaque circuit layer already produced.
func (s Scalar) Add(other Scalar) Scalar {
	a := s.BigInt()
	b := other.BigInt()
	sum := new(big.Int).Add(a, b)
	return ScalarFromBigInt(sum)
}

// Sub returns s - other modulo 2^256, wrapping on underflow the same way
// Add wraps on overflow.
func (s Scalar) Sub(other Scalar) Scalar {
	a := s.BigInt()
	b := other.BigInt()
	diff := new(big.Int).Sub(a, b)
	if diff.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 8*ScalarMaxBytes)
		diff.Add(diff, mod)
	}
	return ScalarFromBigInt(diff)
}

// IsZero reports whether the scalar is the additive identity.
func (s Scalar) IsZero() bool { return s == ZeroScalar }
