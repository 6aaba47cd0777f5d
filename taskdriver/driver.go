// Package taskdriver executes the per-wallet task queues the state package
// replicates: one state machine per task kind, driven forward step by step
// with each step's progress checkpointed back into replicated state before
// the step's side effect runs. See driver.go's Driver.Run for the dispatch
// loop and newwallet.go/updatewallet.go/settlematch.go/refreshwallet.go for
// the individual state machines.
package taskdriver

import (
	"context"
	"sync"

	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/telemetry"
	"github.com/darkpool-labs/relayer/wallet"
)

// TxHash identifies a submitted on-chain transaction.
type TxHash string

// ChainClient is the narrow on-chain submission surface task runners need.
// Kept local so this package does not import the chainclient package; any
// concrete client whose method set matches this interface
// structurally satisfies it.
type ChainClient interface {
	SubmitNewWallet(ctx context.Context, w *wallet.Wallet) (TxHash, error)
	SubmitUpdateWallet(ctx context.Context, w *wallet.Wallet) (TxHash, error)
	SubmitMatchSettle(ctx context.Context, payload handshake.SettleMatchPayload) (TxHash, error)
	AwaitFinality(ctx context.Context, tx TxHash) error
	ReindexWallet(ctx context.Context, w *wallet.Wallet) (*wallet.MerkleAuthPath, error)
	FindPublicBlinderTransaction(ctx context.Context, w *wallet.Wallet) (TxHash, bool, error)
}

// runner drives one queued task's descriptor-specific state machine to
// completion (or failure), checkpointing via d.State.TransitionTask as it
// goes and popping the task itself once finished.
type runner interface {
	run(ctx context.Context, d *Driver, task state.QueuedTask) error
}

// Driver watches a replica's task queues and drives whichever queued task
// at each queue's head this replica is the assigned executor for.
type Driver struct {
	State   *state.State
	Chain   ChainClient
	Self    string
	Metrics *telemetry.Metrics

	runners map[state.TaskKind]runner

	mu      sync.Mutex
	driving map[state.TaskQueueKey]bool
}

// New builds a Driver with the standard runner set for every task kind the
// state package's TaskKind enum declares. metrics may be nil, in which case
// the driver simply skips metric recording.
func New(st *state.State, chain ChainClient, self string, metrics *telemetry.Metrics) *Driver {
	return &Driver{
		State:   st,
		Chain:   chain,
		Self:    self,
		Metrics: metrics,
		runners: map[state.TaskKind]runner{
			state.TaskKindNewWallet:     newWalletRunner{},
			state.TaskKindUpdateWallet:  updateWalletRunner{},
			state.TaskKindSettleMatch:   settleMatchRunner{},
			state.TaskKindRefreshWallet: refreshWalletRunner{},
		},
		driving: make(map[state.TaskQueueKey]bool),
	}
}

// Run subscribes to the state event bus and drives queues as they become
// runnable, until ctx is canceled. Each queue is driven by at most one
// goroutine at a time; events that arrive while a queue is already being
// driven are a no-op, since the runner re-checks the queue head itself once
// it finishes its current task.
func (d *Driver) Run(ctx context.Context) error {
	sub := d.State.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sub:
			switch e := ev.(type) {
			case state.TaskEnqueued:
				d.maybeDrive(ctx, e.QueueKey)
			case state.TaskStateChanged:
				d.maybeDrive(ctx, e.QueueKey)
			case state.TaskQueueResumed:
				d.maybeDrive(ctx, e.QueueKey)
			case state.TasksReassigned:
				if e.To == d.Self {
					d.rescanAll(ctx)
				}
			}
		}
	}
}

// rescanAll drives every wallet queue this replica might now own tasks for,
// used after a ReassignTasks event that names task ids but not their queue
// keys.
func (d *Driver) rescanAll(ctx context.Context) {
	wallets, err := d.State.ListWallets()
	if err != nil {
		log.Errorf("rescanning task queues after reassignment: %v", err)
		return
	}
	for _, w := range wallets {
		d.maybeDrive(ctx, w.ID)
	}
}

func (d *Driver) maybeDrive(ctx context.Context, key state.TaskQueueKey) {
	d.mu.Lock()
	if d.driving[key] {
		d.mu.Unlock()
		return
	}

	tasks, err := d.State.GetQueuedTasks(key)
	if err != nil {
		d.mu.Unlock()
		log.Errorf("listing queue %s: %v", key, err)
		return
	}
	if len(tasks) == 0 {
		d.mu.Unlock()
		return
	}
	head := tasks[0]
	if !head.State.Running || head.State.Completed || head.State.Failed || head.Executor != d.Self {
		d.mu.Unlock()
		return
	}

	r, ok := d.runners[head.Descriptor.Kind]
	if !ok {
		d.mu.Unlock()
		log.Errorf("no task runner registered for kind %s", head.Descriptor.Kind)
		return
	}

	d.driving[key] = true
	d.mu.Unlock()

	go func() {
		if err := r.run(ctx, d, head); err != nil {
			log.Errorf("task %s (%s) on queue %s failed: %v", head.ID, head.Descriptor.Kind, key, err)
			if popErr := d.State.PopTask(head.ID, false); popErr != nil {
				log.Errorf("popping failed task %s: %v", head.ID, popErr)
			}
			d.recordCompletion(head.Descriptor.Kind, "failure")
		} else {
			d.recordCompletion(head.Descriptor.Kind, "success")
		}

		d.mu.Lock()
		delete(d.driving, key)
		d.mu.Unlock()

		// The queue may have advanced to a new runnable head (this task's
		// completion, or a concurrent append); re-check once more before
		// this goroutine exits so a fast producer never stalls behind a
		// missed event.
		d.maybeDrive(ctx, key)
	}()
}

// recordCompletion is a no-op when the driver was built without a metrics
// bundle, so tests and callers that don't care about telemetry need not
// construct one.
func (d *Driver) recordCompletion(kind state.TaskKind, outcome string) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.TaskCompletions.WithLabelValues(string(kind), outcome).Inc()
}

func (d *Driver) transition(id state.TaskID, step string, seq int, committed bool) error {
	return d.State.TransitionTask(id, state.TaskRunState{
		Running:   true,
		Step:      step,
		StepSeq:   seq,
		Committed: committed,
	})
}
