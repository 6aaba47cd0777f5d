package taskdriver

import (
	"context"
	"fmt"

	"github.com/darkpool-labs/relayer/state"
)

const stepRefreshWalletRediscover = "rediscover"

// refreshWalletRunner rediscovers a wallet's on-chain state by looking up
// its public-blinder-indexed transaction and reconciles the local Merkle
// path against it. A wallet with no discoverable on-chain transaction yet
// (still only a pending NewWallet) has nothing to refresh; the task
// completes as a no-op rather than failing.
type refreshWalletRunner struct{}

func (refreshWalletRunner) run(ctx context.Context, d *Driver, task state.QueuedTask) error {
	w, err := d.State.GetWallet(task.Descriptor.WalletID)
	if err != nil {
		return fmt.Errorf("loading wallet %s: %w", task.Descriptor.WalletID, err)
	}

	if err := d.transition(task.ID, stepRefreshWalletRediscover, 1, true); err != nil {
		return err
	}

	_, found, err := d.Chain.FindPublicBlinderTransaction(ctx, w)
	if err != nil {
		return fmt.Errorf("rediscovering on-chain state for %s: %w", w.ID, err)
	}
	if !found {
		log.Debugf("refresh-wallet %s: no on-chain transaction yet, nothing to reconcile", w.ID)
		return d.State.PopTask(task.ID, true)
	}

	proof, err := d.Chain.ReindexWallet(ctx, w)
	if err != nil {
		return fmt.Errorf("re-indexing merkle proof for %s: %w", w.ID, err)
	}
	w.MerkleProof = proof
	w.ProofStaleness = 0
	if err := d.State.UpdateWallet(w); err != nil {
		return fmt.Errorf("recording refreshed proof for %s: %w", w.ID, err)
	}

	return d.State.PopTask(task.ID, true)
}
