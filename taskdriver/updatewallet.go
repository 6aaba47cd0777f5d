package taskdriver

import (
	"context"
	"fmt"

	"github.com/darkpool-labs/relayer/state"
)

const (
	stepUpdateWalletReblind       = "reblind"
	stepUpdateWalletSubmit        = "submit"
	stepUpdateWalletAwaitFinality = "await-finality"
	stepUpdateWalletIndexProof    = "index-merkle-proof"
)

// updateWalletRunner reblinds a wallet, submits its VALID WALLET UPDATE
// proof, waits for finality, and re-indexes the Merkle path. It does not
// re-gossip the wallet's order set, and no gossip or network component
// subscribes to the state.WalletUpdated event its UpdateWallet calls
// publish.
type updateWalletRunner struct{}

func (updateWalletRunner) run(ctx context.Context, d *Driver, task state.QueuedTask) error {
	w, err := d.State.GetWallet(task.Descriptor.WalletID)
	if err != nil {
		return fmt.Errorf("loading wallet %s: %w", task.Descriptor.WalletID, err)
	}

	var tx TxHash
	if task.State.Committed {
		found, ok, err := d.Chain.FindPublicBlinderTransaction(ctx, w)
		if err != nil {
			return fmt.Errorf("rediscovering update-wallet tx for %s: %w", w.ID, err)
		}
		if ok {
			tx = found
		}
	}

	if tx == "" {
		if err := d.transition(task.ID, stepUpdateWalletReblind, 1, false); err != nil {
			return err
		}
		w.Reblind()
		if err := d.State.UpdateWallet(w); err != nil {
			return fmt.Errorf("recording reblind for %s: %w", w.ID, err)
		}

		if err := d.transition(task.ID, stepUpdateWalletSubmit, 2, false); err != nil {
			return err
		}
		tx, err = d.Chain.SubmitUpdateWallet(ctx, w)
		if err != nil {
			return fmt.Errorf("submitting update-wallet for %s: %w", w.ID, err)
		}
	}

	if err := d.transition(task.ID, stepUpdateWalletAwaitFinality, 3, true); err != nil {
		return err
	}
	if err := d.Chain.AwaitFinality(ctx, tx); err != nil {
		return fmt.Errorf("awaiting finality for %s: %w", w.ID, err)
	}

	if err := d.transition(task.ID, stepUpdateWalletIndexProof, 4, true); err != nil {
		return err
	}
	proof, err := d.Chain.ReindexWallet(ctx, w)
	if err != nil {
		return fmt.Errorf("indexing merkle proof for %s: %w", w.ID, err)
	}
	w.MerkleProof = proof
	w.ProofStaleness = 0
	if err := d.State.UpdateWallet(w); err != nil {
		return fmt.Errorf("recording merkle proof for %s: %w", w.ID, err)
	}

	return d.State.PopTask(task.ID, true)
}
