package wallet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testMint(b byte) MintID {
	var m MintID
	m[31] = b
	return m
}

func newTestWallet(t *testing.T) *Wallet {
	t.Helper()
	w := NewEmpty(uuid.New(), Keychain{})
	w.Balances.Set(testMint(1), Balance{Mint: testMint(1), Amount: 1000})
	w.Orders.Set(uuid.New(), Order{
		QuoteMint: testMint(1),
		BaseMint:  testMint(2),
		Side:      OrderSideBuy,
		Amount:    10,
		Price:     5,
	})
	w.Fees = []Fee{{
		SettleKey:      testMint(3),
		GasAddr:        testMint(1),
		GasTokenAmount: 1,
		PercentageFee:  2,
	}}
	return w
}

func TestWalletValidateEnforcesCapacity(t *testing.T) {
	w := newTestWallet(t)
	require.NoError(t, w.Validate())

	for i := 0; i < MaxBalances; i++ {
		w.Balances.Set(testMint(byte(100+i)), Balance{Mint: testMint(byte(100 + i)), Amount: 1})
	}
	require.Error(t, w.Validate())
}

func TestWalletToScalarsFixedLength(t *testing.T) {
	empty := NewEmpty(uuid.New(), Keychain{})
	full := newTestWallet(t)

	require.Equal(t, empty.NumScalars(), len(empty.ToScalars()))
	require.Equal(t, full.NumScalars(), len(full.ToScalars()))
	require.Equal(t, len(empty.ToScalars()), len(full.ToScalars()))
}

func TestReblindPreservesShareIdentity(t *testing.T) {
	w := newTestWallet(t)
	w.Reblind()
	require.NoError(t, w.CheckShareIdentity())
}

func TestReblindNeverReusesBlinder(t *testing.T) {
	w := newTestWallet(t)
	first := w.Reblind()
	second := w.Reblind()
	require.NotEqual(t, first, second)
}

func TestCheckShareIdentityDetectsTampering(t *testing.T) {
	w := newTestWallet(t)
	w.Reblind()
	require.NoError(t, w.CheckShareIdentity())

	w.PrivateShares[0] = w.PrivateShares[0].Add(ScalarFromBigInt(bigFromUint64(1)))
	require.Error(t, w.CheckShareIdentity())
}

func TestBalanceFeeForOrderUncapitalized(t *testing.T) {
	w := NewEmpty(uuid.New(), Keychain{})
	order := Order{QuoteMint: testMint(9), BaseMint: testMint(8), Side: OrderSideBuy, Amount: 1, Price: 1}
	_, _, _, ok := w.BalanceFeeForOrder(order)
	require.False(t, ok, "wallet with no balances should be uncapitalized")
}

func TestBalanceFeeForOrderCapitalized(t *testing.T) {
	w := newTestWallet(t)
	orders := w.Orders.Values()
	require.Len(t, orders, 1)

	balance, fee, feeBalance, ok := w.BalanceFeeForOrder(orders[0])
	require.True(t, ok)
	require.Equal(t, testMint(1), balance.Mint)
	require.Equal(t, testMint(3), fee.SettleKey)
	require.Equal(t, testMint(1), feeBalance.Mint)
}

func TestRemoveDefaultElements(t *testing.T) {
	w := newTestWallet(t)
	w.Balances.Set(testMint(200), Balance{})
	w.Orders.Set(uuid.New(), Order{})
	w.Fees = append(w.Fees, Fee{})

	w.RemoveDefaultElements()

	for _, b := range w.Balances.Values() {
		require.False(t, b.IsDefault())
	}
	for _, o := range w.Orders.Values() {
		require.False(t, o.IsDefault())
	}
	for _, f := range w.Fees {
		require.False(t, f.IsDefault())
	}
}

func TestNeedsNewCommitmentProof(t *testing.T) {
	w := newTestWallet(t)
	require.True(t, w.NeedsNewCommitmentProof(), "no proof yet")

	w.MerkleProof = &MerkleAuthPath{Root: ZeroScalar}
	w.ProofStaleness = 0
	require.False(t, w.NeedsNewCommitmentProof())

	w.ProofStaleness = MaxProofStaleness + 1
	require.True(t, w.NeedsNewCommitmentProof())
}

func TestCloneIsIndependent(t *testing.T) {
	w := newTestWallet(t)
	w.Reblind()
	clone := w.Clone()

	clone.Balances.Set(testMint(250), Balance{Mint: testMint(250), Amount: 1})
	require.NotEqual(t, w.Balances.Len(), clone.Balances.Len())

	clone.PrivateShares[0] = clone.PrivateShares[0].Add(ScalarFromBigInt(bigFromUint64(1)))
	require.NotEqual(t, w.PrivateShares[0], clone.PrivateShares[0])
}

func TestWalletNullifierChangesWithShares(t *testing.T) {
	w := newTestWallet(t)
	w.Reblind()
	n1 := w.GetWalletNullifier()

	w.Reblind()
	n2 := w.GetWalletNullifier()

	require.NotEqual(t, n1, n2)
}
