package taskdriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/wallet"
)

const (
	stepSettleMatchSubmit        = "submit"
	stepSettleMatchAwaitFinality = "await-finality"
	stepSettleMatchApplyWallet   = "apply-wallet"
)

// settleMatchRunner submits a collaboratively-produced VALID MATCH SETTLE
// bundle, waits for finality, and applies the resulting balance changes to
// this node's side of the match via an UpdateWallet-like post-settle step.
// The counterparty's relayer runs the symmetric runner over its own wallet;
// this node never touches the counterparty's replicated state.
type settleMatchRunner struct{}

func (settleMatchRunner) run(ctx context.Context, d *Driver, task state.QueuedTask) error {
	var payload handshake.SettleMatchPayload
	if err := json.Unmarshal(task.Descriptor.Payload, &payload); err != nil {
		return fmt.Errorf("decoding settle-match payload: %w", err)
	}

	var tx TxHash
	w, err := d.State.GetWallet(task.Descriptor.WalletID)
	if err != nil {
		return fmt.Errorf("loading wallet %s: %w", task.Descriptor.WalletID, err)
	}

	if task.State.Committed {
		found, ok, err := d.Chain.FindPublicBlinderTransaction(ctx, w)
		if err != nil {
			return fmt.Errorf("rediscovering settle-match tx for %s: %w", w.ID, err)
		}
		if ok {
			tx = found
		}
	}

	if tx == "" {
		if err := d.transition(task.ID, stepSettleMatchSubmit, 1, false); err != nil {
			return err
		}
		tx, err = d.Chain.SubmitMatchSettle(ctx, payload)
		if err != nil {
			return fmt.Errorf("submitting settle-match for order %s: %w", payload.LocalOrderID, err)
		}
	}

	if err := d.transition(task.ID, stepSettleMatchAwaitFinality, 2, true); err != nil {
		return err
	}
	if err := d.Chain.AwaitFinality(ctx, tx); err != nil {
		return fmt.Errorf("awaiting finality for settle-match %s: %w", payload.LocalOrderID, err)
	}

	if err := d.transition(task.ID, stepSettleMatchApplyWallet, 3, true); err != nil {
		return err
	}
	w, err = d.State.GetWallet(task.Descriptor.WalletID)
	if err != nil {
		return fmt.Errorf("reloading wallet %s post-settle: %w", w.ID, err)
	}
	applyMatchResult(w, payload)
	w.Reblind()
	if err := d.State.UpdateWallet(w); err != nil {
		return fmt.Errorf("recording post-settle wallet %s: %w", w.ID, err)
	}

	return d.State.PopTask(task.ID, true)
}

// applyMatchResult debits/credits w for one leg of a completed match and
// removes the now-filled order. Orders fill completely; there is no
// partial-fill remainder to re-enqueue.
func applyMatchResult(w *wallet.Wallet, payload handshake.SettleMatchPayload) {
	result := payload.Result

	quote, ok := w.Balances.Get(result.QuoteMint)
	if !ok {
		quote = wallet.Balance{Mint: result.QuoteMint}
	}
	base, ok := w.Balances.Get(result.BaseMint)
	if !ok {
		base = wallet.Balance{Mint: result.BaseMint}
	}

	switch result.Direction {
	case wallet.OrderSideBuy:
		quote.Amount -= result.QuoteAmount
		base.Amount += result.BaseAmount
	case wallet.OrderSideSell:
		base.Amount -= result.BaseAmount
		quote.Amount += result.QuoteAmount
	}

	w.Balances.Set(result.QuoteMint, quote)
	w.Balances.Set(result.BaseMint, base)
	w.Orders.Delete(payload.LocalOrderID)
}
