package taskdriver

import (
	"context"
	"fmt"

	"github.com/darkpool-labs/relayer/state"
)

const (
	stepNewWalletSubmit        = "submit"
	stepNewWalletAwaitFinality = "await-finality"
	stepNewWalletIndexProof    = "index-merkle-proof"
)

// newWalletRunner submits a wallet's VALID WALLET CREATE proof, waits for
// on-chain finality, and indexes the resulting Merkle path. It does not
// gossip the new wallet's presence; its final UpdateWallet call publishes
// state.WalletUpdated, and no gossip or network component subscribes to
// that event.
type newWalletRunner struct{}

func (newWalletRunner) run(ctx context.Context, d *Driver, task state.QueuedTask) error {
	w, err := d.State.GetWallet(task.Descriptor.WalletID)
	if err != nil {
		return fmt.Errorf("loading wallet %s: %w", task.Descriptor.WalletID, err)
	}

	var tx TxHash
	if task.State.Committed {
		// Replayed after a crash: the submit may already have broadcast.
		// Rediscover rather than risk a duplicate new-wallet submission.
		found, ok, err := d.Chain.FindPublicBlinderTransaction(ctx, w)
		if err != nil {
			return fmt.Errorf("rediscovering new-wallet tx for %s: %w", w.ID, err)
		}
		if ok {
			tx = found
		}
	}

	if tx == "" {
		if err := d.transition(task.ID, stepNewWalletSubmit, 1, false); err != nil {
			return err
		}
		tx, err = d.Chain.SubmitNewWallet(ctx, w)
		if err != nil {
			return fmt.Errorf("submitting new-wallet for %s: %w", w.ID, err)
		}
	}

	if err := d.transition(task.ID, stepNewWalletAwaitFinality, 2, true); err != nil {
		return err
	}
	if err := d.Chain.AwaitFinality(ctx, tx); err != nil {
		return fmt.Errorf("awaiting finality for %s: %w", w.ID, err)
	}

	if err := d.transition(task.ID, stepNewWalletIndexProof, 3, true); err != nil {
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
