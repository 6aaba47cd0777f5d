package arbitrum

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/wallet"
)

func TestScalarsToBytesConcatenatesInOrder(t *testing.T) {
	var a, b wallet.Scalar
	a[wallet.ScalarMaxBytes-1] = 0x01
	b[wallet.ScalarMaxBytes-1] = 0x02

	out := scalarsToBytes(wallet.WalletShare{a, b})
	require.Len(t, out, 2*wallet.ScalarMaxBytes)
	require.Equal(t, byte(0x01), out[wallet.ScalarMaxBytes-1])
	require.Equal(t, byte(0x02), out[2*wallet.ScalarMaxBytes-1])
}

func TestBundleForWalletCarriesBlindedPublicShares(t *testing.T) {
	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	w.BlindedPublicShares = make(wallet.WalletShare, w.NumScalars())

	bundle := bundleForWallet(w)
	require.Len(t, bundle.Parts, 1)
	require.Len(t, bundle.Parts[0], w.NumScalars()*wallet.ScalarMaxBytes)
}

func TestWalletUpdateSignatureIsNilPlaceholder(t *testing.T) {
	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	require.Nil(t, walletUpdateSignature(w))
}
