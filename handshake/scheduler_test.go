package handshake

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/wallet"
)

func newTestStateForScheduler(t *testing.T) *state.State {
	t.Helper()
	s, err := state.New(state.Config{DataDir: t.TempDir(), RaftNodeID: 1, SelfPeerID: "self"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return s
}

func TestSchedulerCandidatesSkipsUncapitalizedOrders(t *testing.T) {
	st := newTestStateForScheduler(t)
	sched := NewScheduler(st)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	orderID := uuid.New()
	var quote, base wallet.MintID
	quote[0], base[0] = 1, 2
	w.Orders.Set(orderID, wallet.Order{QuoteMint: quote, BaseMint: base, Side: wallet.OrderSideBuy, Amount: 10, Price: 1 << 32})
	require.NoError(t, st.NewWallet(w))

	remote := state.NetworkOrderRecord{OrderID: uuid.New(), WalletID: uuid.New()}
	require.NoError(t, st.AddOrder(remote))

	candidates, err := sched.Candidates([]state.NetworkOrderRecord{remote})
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestSchedulerCandidatesIncludesCapitalizedOrders(t *testing.T) {
	st := newTestStateForScheduler(t)
	sched := NewScheduler(st)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	orderID := uuid.New()
	var quote, base wallet.MintID
	quote[0], base[0] = 1, 2
	w.Orders.Set(orderID, wallet.Order{QuoteMint: quote, BaseMint: base, Side: wallet.OrderSideBuy, Amount: 10, Price: 1 << 32})
	w.Balances.Set(quote, wallet.Balance{Mint: quote, Amount: 1000})
	w.Fees = []wallet.Fee{{SettleKey: quote, GasAddr: quote, GasTokenAmount: 1, PercentageFee: 1}}
	require.NoError(t, st.NewWallet(w))

	remote := state.NetworkOrderRecord{OrderID: uuid.New(), WalletID: uuid.New()}
	require.NoError(t, st.AddOrder(remote))

	candidates, err := sched.Candidates([]state.NetworkOrderRecord{remote})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, w.ID, candidates[0].LocalWalletID)
	require.Equal(t, orderID, candidates[0].LocalOrderID)
}

func TestSchedulerCandidatesSkipsOwnWalletsOrders(t *testing.T) {
	st := newTestStateForScheduler(t)
	sched := NewScheduler(st)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	orderID := uuid.New()
	var quote, base wallet.MintID
	quote[0], base[0] = 1, 2
	w.Orders.Set(orderID, wallet.Order{QuoteMint: quote, BaseMint: base, Side: wallet.OrderSideBuy, Amount: 10, Price: 1 << 32})
	w.Balances.Set(quote, wallet.Balance{Mint: quote, Amount: 1000})
	w.Fees = []wallet.Fee{{SettleKey: quote, GasAddr: quote, GasTokenAmount: 1, PercentageFee: 1}}
	require.NoError(t, st.NewWallet(w))

	remote := state.NetworkOrderRecord{OrderID: uuid.New(), WalletID: w.ID}
	require.NoError(t, st.AddOrder(remote))

	candidates, err := sched.Candidates([]state.NetworkOrderRecord{remote})
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestSchedulerCandidatesRespectsCooldown(t *testing.T) {
	st := newTestStateForScheduler(t)
	sched := NewScheduler(st)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	orderID := uuid.New()
	var quote, base wallet.MintID
	quote[0], base[0] = 1, 2
	w.Orders.Set(orderID, wallet.Order{QuoteMint: quote, BaseMint: base, Side: wallet.OrderSideBuy, Amount: 10, Price: 1 << 32})
	w.Balances.Set(quote, wallet.Balance{Mint: quote, Amount: 1000})
	w.Fees = []wallet.Fee{{SettleKey: quote, GasAddr: quote, GasTokenAmount: 1, PercentageFee: 1}}
	require.NoError(t, st.NewWallet(w))

	remote := state.NetworkOrderRecord{OrderID: uuid.New(), WalletID: uuid.New()}
	require.NoError(t, st.AddOrder(remote))

	sched.Cooldown.Record(NewPairKey(quote, base), time.Now())

	candidates, err := sched.Candidates([]state.NetworkOrderRecord{remote})
	require.NoError(t, err)
	require.Empty(t, candidates)
}
