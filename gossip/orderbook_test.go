package gossip

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/wallet"
)

type fakeChainClient struct {
	spent     map[wallet.Scalar]bool
	validRoot map[wallet.Scalar]bool
}

func (f *fakeChainClient) NullifierSpent(n wallet.Scalar) (bool, error) { return f.spent[n], nil }
func (f *fakeChainClient) IsHistoricalRoot(r wallet.Scalar) (bool, error) {
	return f.validRoot[r], nil
}

type fakeVerifier struct{ ok bool }

func (f *fakeVerifier) VerifyOrderValidity(proof []byte) (bool, error) { return f.ok, nil }

func newTestOrderBook(ok bool) (*OrderBook, *fakeChainClient) {
	chain := &fakeChainClient{spent: map[wallet.Scalar]bool{}, validRoot: map[wallet.Scalar]bool{}}
	return NewOrderBook(chain, &fakeVerifier{ok: ok}), chain
}

func TestOrderProofUpdatedAcceptsValidProof(t *testing.T) {
	book, chain := newTestOrderBook(true)

	orderID := uuid.New()
	walletID := uuid.New()
	root := wallet.ScalarFromBigInt(big.NewInt(0))
	root[0] = 7
	chain.validRoot[root] = true

	err := book.HandleOrderProofUpdated(OrderProofUpdated{
		OrderID:    orderID,
		WalletID:   walletID,
		MerkleRoot: root,
	})
	require.NoError(t, err)

	entry, ok := book.Get(orderID)
	require.True(t, ok)
	require.Equal(t, walletID, entry.WalletID)
}

func TestOrderProofUpdatedRejectsSpentNullifier(t *testing.T) {
	book, chain := newTestOrderBook(true)

	orderID := uuid.New()
	nullifier := wallet.ScalarFromBigInt(big.NewInt(0))
	nullifier[0] = 1
	chain.spent[nullifier] = true

	err := book.HandleOrderProofUpdated(OrderProofUpdated{
		OrderID:   orderID,
		WalletID:  uuid.New(),
		Nullifier: nullifier,
	})
	require.Error(t, err)
	_, ok := book.Get(orderID)
	require.False(t, ok)
}

func TestOrderProofUpdatedRejectsInvalidRoot(t *testing.T) {
	book, _ := newTestOrderBook(true)

	err := book.HandleOrderProofUpdated(OrderProofUpdated{
		OrderID:  uuid.New(),
		WalletID: uuid.New(),
	})
	require.Error(t, err)
}

func TestOrderProofUpdatedRejectsBadCommitmentLinkage(t *testing.T) {
	book, chain := newTestOrderBook(true)

	orderID := uuid.New()
	book.HandleOrderReceived(OrderReceived{OrderID: orderID, WalletID: uuid.New()})

	root := wallet.ScalarFromBigInt(big.NewInt(0))
	root[0] = 9
	chain.validRoot[root] = true

	err := book.HandleOrderProofUpdated(OrderProofUpdated{
		OrderID:    orderID,
		WalletID:   uuid.New(), // different wallet than the one on record
		MerkleRoot: root,
	})
	require.Error(t, err)
}

func TestOrderProofUpdatedRejectsFailingVerifier(t *testing.T) {
	book, chain := newTestOrderBook(false)

	root := wallet.ScalarFromBigInt(big.NewInt(0))
	root[0] = 3
	chain.validRoot[root] = true

	err := book.HandleOrderProofUpdated(OrderProofUpdated{
		OrderID:    uuid.New(),
		WalletID:   uuid.New(),
		MerkleRoot: root,
	})
	require.Error(t, err)
}

func TestLocalWitnessRoundTrip(t *testing.T) {
	book, _ := newTestOrderBook(true)

	orderID := uuid.New()
	_, ok := book.LocalWitness(orderID)
	require.False(t, ok)

	book.SetLocalWitness(orderID, []byte("witness-bytes"))
	w, ok := book.LocalWitness(orderID)
	require.True(t, ok)
	require.Equal(t, []byte("witness-bytes"), w)
}

func TestHandleNullifyOrdersRemovesAllMatchingOrders(t *testing.T) {
	book, chain := newTestOrderBook(true)

	nullifier := wallet.ScalarFromBigInt(big.NewInt(0))
	nullifier[0] = 5
	root := wallet.ScalarFromBigInt(big.NewInt(0))
	root[0] = 6
	chain.validRoot[root] = true

	var orderIDs []wallet.OrderID
	for i := 0; i < 3; i++ {
		id := uuid.New()
		orderIDs = append(orderIDs, id)
		require.NoError(t, book.HandleOrderProofUpdated(OrderProofUpdated{
			OrderID:    id,
			WalletID:   uuid.New(),
			Nullifier:  nullifier,
			MerkleRoot: root,
		}))
	}

	book.HandleNullifyOrders(NullifyOrders{Nullifier: nullifier})

	for _, id := range orderIDs {
		_, ok := book.Get(id)
		require.False(t, ok)
	}
}
