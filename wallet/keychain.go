package wallet

import "math/big"

// Keychain field widths, mirroring circuit-types/src/keychain.rs: a scalar
// can only safely hold SCALAR_MAX_BYTES_NONNATIVE bytes of a non-native key
// (the curve the root key lives over does not divide evenly into the
// proof system's native scalar field), so a root key is split across
// RootKeyWords scalar "limbs".
const (
	// NonNativeKeyBytesPerWord is the number of bytes of a key packed into
	// a single scalar limb.
	NonNativeKeyBytesPerWord = 31
	// RootKeyWords is the number of limbs used to represent a root key.
	RootKeyWords = 2
)

// NonNativeKey represents a key over a curve other than the proof system's
// native curve (the root signing key), split into fixed-width scalar words
// so it round-trips through ToScalars/FromScalars like every other wallet
// field.
type NonNativeKey struct {
	Words [RootKeyWords]Scalar
}

// SplitBigUintIntoWords packs v into RootKeyWords scalar limbs, little-endian
// across limbs, NonNativeKeyBytesPerWord bytes per limb -- mirrors
// split_biguint_into_words in circuit-types/src/keychain.rs exactly so the
// round-trip law in the testable properties holds.
func SplitBigUintIntoWords(v *big.Int) NonNativeKey {
	var key NonNativeKey
	bytesLE := reverse(v.Bytes())

	word := 0
	for off := 0; off < len(bytesLE) && word < RootKeyWords; off += NonNativeKeyBytesPerWord {
		end := off + NonNativeKeyBytesPerWord
		if end > len(bytesLE) {
			end = len(bytesLE)
		}
		chunk := bytesLE[off:end]

		var buf [ScalarMaxBytes]byte
		copy(buf[:], chunk) // little-endian chunk, zero-padded to 32 bytes
		key.Words[word] = Scalar(reverseScalar(buf))
		word++
	}
	return key
}

// CombineWordsIntoBigUint is the inverse of SplitBigUintIntoWords.
func (k NonNativeKey) CombineWordsIntoBigUint() *big.Int {
	var bytesLE []byte
	for _, w := range k.Words {
		be := w.BigInt().Bytes()
		// Pad to NonNativeKeyBytesPerWord bytes then reverse to LE, matching
		// the encode side which always emits exactly that many bytes/word.
		padded := make([]byte, NonNativeKeyBytesPerWord)
		copy(padded[NonNativeKeyBytesPerWord-len(be):], be)
		bytesLE = append(bytesLE, reverse(padded)...)
	}
	return new(big.Int).SetBytes(reverse(bytesLE))
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func reverseScalar(b [ScalarMaxBytes]byte) [ScalarMaxBytes]byte {
	var out [ScalarMaxBytes]byte
	for i, c := range b {
		out[ScalarMaxBytes-1-i] = c
	}
	return out
}

// PublicIdentificationKey is the image-under-hash of the private match key;
// knowledge of the preimage is proved in a circuit, never revealed.
type PublicIdentificationKey struct {
	Key Scalar
}

// PublicKeyChain holds the public halves of a wallet's keychain.
type PublicKeyChain struct {
	// PkRoot is the public root signing key, over a non-native curve.
	PkRoot NonNativeKey
	// PkMatch identifies the holder of the match private key.
	PkMatch PublicIdentificationKey
}

// PrivateKeyChain holds the private keys the relayer has been entrusted
// with for a wallet.
type PrivateKeyChain struct {
	// SkRoot is optionally held; a relayer holding it is a "super relayer"
	// with heightened permissions (it can authorize wallet updates, not
	// just matches).
	SkRoot *NonNativeKey
	// SkMatch authorizes the relayer to match orders in this wallet. Always
	// required -- a relayer cannot manage a wallet without it.
	SkMatch Scalar
}

// Keychain bundles the public and private halves.
type Keychain struct {
	Public  PublicKeyChain
	Private PrivateKeyChain
}

// IsSuperRelayer reports whether this relayer holds the root signing key.
func (k Keychain) IsSuperRelayer() bool { return k.Private.SkRoot != nil }
