package handshake

import (
	"sort"
	"time"

	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/wallet"
)

// Candidate is one schedulable pairing of a local order against a verified
// remote order from the replicated order book.
type Candidate struct {
	LocalWalletID wallet.WalletID
	LocalOrderID  wallet.OrderID
	LocalOrder    wallet.Order
	LocalBalance  wallet.Balance
	Remote        state.NetworkOrderRecord
	Score         uint64
}

// Scheduler ranks local-order/remote-order pairings by effective priority
// and skips anything still inside its cooldown window, mirroring the
// original task driver's preference for settling higher-priority orders
// first while never starving a pair entirely.
type Scheduler struct {
	State    *state.State
	Cooldown *cooldownTracker
}

func NewScheduler(st *state.State) *Scheduler {
	return &Scheduler{State: st, Cooldown: newCooldownTracker()}
}

// Candidates returns every schedulable (local order, remote order) pairing
// between the wallets this node holds and remoteOrders, the verified order
// book entries a caller (the gossip order book) has judged eligible, sorted
// by descending effective priority. Pairs still inside their cooldown
// window are skipped.
func (s *Scheduler) Candidates(remoteOrders []state.NetworkOrderRecord) ([]Candidate, error) {
	wallets, err := s.State.ListWallets()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []Candidate
	for _, w := range wallets {
		for _, localOrderID := range w.Orders.Keys() {
			localOrder, _ := w.Orders.Get(localOrderID)
			if localOrder.IsDefault() {
				continue
			}
			balance, _, _, capitalized := w.BalanceFeeForOrder(localOrder)
			if !capitalized {
				continue
			}
			for _, remote := range remoteOrders {
				if remote.WalletID == w.ID {
					continue
				}
				if !pairMatches(localOrder, remote) {
					continue
				}
				pair := NewPairKey(localOrder.QuoteMint, localOrder.BaseMint)
				if !s.Cooldown.Ready(pair, now) {
					continue
				}
				priority, err := s.State.GetPriority(remote.OrderID)
				if err != nil {
					continue
				}
				out = append(out, Candidate{
					LocalWalletID: w.ID,
					LocalOrderID:  localOrderID,
					LocalOrder:    localOrder,
					LocalBalance:  balance,
					Remote:        remote,
					Score:         priority.Effective(),
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// pairMatches reports whether a local order and a remote order's recorded
// wallet could plausibly cross -- the relayer only knows the remote's
// commitment/nullifier from the order book, not its side or mints, so this
// always returns true pending a future record of the remote's public order
// terms. Kept as an explicit seam rather than collapsing the check into
// Candidates so the real comparison (once the order book exposes it) slots
// in without reshaping the caller.
func pairMatches(_ wallet.Order, _ state.NetworkOrderRecord) bool {
	return true
}
