package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/matheusd/etcd/raft"
	"github.com/matheusd/etcd/raft/raftpb"

	"github.com/darkpool-labs/relayer/rerrors"
)

// raftTickInterval is how often the single-owner raft goroutine ticks the
// node's internal election/heartbeat timers.
const raftTickInterval = 100 * time.Millisecond

// raftNode drives a single etcd/raft consensus group whose committed log
// entries are JSON-encoded Transitions. Grounded on the teacher's
// single-owner-goroutine pattern for its connection manager's retry pump
// (one goroutine owns all mutable state, external callers only ever send
// on channels into it) applied here to the raft Ready() loop, which has the
// same "only one goroutine may call Node methods that aren't thread-safe"
// constraint.
type raftNode struct {
	node    raft.Node
	storage *raft.MemoryStorage

	applicator *applicator

	mu      sync.Mutex
	waiters map[uint64]chan error // keyed by the log index the proposal lands at

	stopCh chan struct{}
}

func newRaftNode(id uint64, applicator *applicator) *raftNode {
	storage := raft.NewMemoryStorage()
	cfg := &raft.Config{
		ID:              id,
		ElectionTick:    10,
		HeartbeatTick:   1,
		Storage:         storage,
		MaxSizePerMsg:   4096,
		MaxInflightMsgs: 256,
	}
	node := raft.StartNode(cfg, []raft.Peer{{ID: id}})

	return &raftNode{
		node:       node,
		storage:    storage,
		applicator: applicator,
		waiters:    make(map[uint64]chan error),
		stopCh:     make(chan struct{}),
	}
}

// run is the single-owner consensus loop. It must be started in its own
// goroutine and must be the only goroutine that ever touches r.node or
// r.storage.
func (r *raftNode) run() {
	ticker := time.NewTicker(raftTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.node.Tick()

		case rd := <-r.node.Ready():
			if !raft.IsEmptySnap(rd.Snapshot) {
				r.storage.ApplySnapshot(rd.Snapshot) //nolint:errcheck
			}
			r.storage.Append(rd.Entries) //nolint:errcheck

			for _, entry := range rd.CommittedEntries {
				r.applyEntry(entry)
			}

			r.node.Advance()

		case <-r.stopCh:
			r.node.Stop()
			return
		}
	}
}

func (r *raftNode) applyEntry(entry raftpb.Entry) {
	if entry.Type != raftpb.EntryNormal || len(entry.Data) == 0 {
		r.resolve(entry.Index, nil)
		return
	}

	var t Transition
	err := json.Unmarshal(entry.Data, &t)
	if err == nil {
		err = r.applicator.apply(t)
	} else {
		err = rerrors.Serialization(fmt.Errorf("decoding committed transition: %w", err))
	}
	r.resolve(entry.Index, err)
}

func (r *raftNode) resolve(index uint64, err error) {
	r.mu.Lock()
	ch, ok := r.waiters[index]
	delete(r.waiters, index)
	r.mu.Unlock()
	if ok {
		ch <- err
	}
}

// propose submits t to the raft log and blocks until it has either been
// committed and applied, or proposalTimeout elapses.
func (r *raftNode) propose(t Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return rerrors.Serialization(fmt.Errorf("encoding transition: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), proposalTimeout)
	defer cancel()

	// The index a single-member raft group assigns a proposal is its
	// position in the log, which for the sole proposer in this node is
	// simply the next log index -- tracked by polling the storage's last
	// index immediately after Propose returns.
	if err := r.node.Propose(ctx, data); err != nil {
		return rerrors.State(fmt.Errorf("proposing transition: %w", err))
	}

	last, err := r.storage.LastIndex()
	if err != nil {
		return rerrors.State(fmt.Errorf("reading raft log index: %w", err))
	}

	wait := make(chan error, 1)
	r.mu.Lock()
	r.waiters[last] = wait
	r.mu.Unlock()

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.waiters, last)
		r.mu.Unlock()
		return rerrors.State(fmt.Errorf("proposal timed out waiting for commit"))
	}
}

func (r *raftNode) stop() {
	close(r.stopCh)
}
