package state

import (
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

// State is the relayer's handle onto its replicated wallet/order/task-queue
// store. Every mutating method proposes a Transition through raft and
// blocks until the local applicator has run it; every read method opens a
// walletdb read transaction directly, with no raft round trip, since reads
// only ever need the local replica's already-committed state.
type State struct {
	store *store
	raft  *raftNode
	bus   *eventBus
	appl  *applicator

	selfPeerID string
}

// Config bundles everything New needs to bring a replica's state layer up.
type Config struct {
	DataDir    string
	RaftNodeID uint64
	SelfPeerID string
}

// New opens the store, wires the applicator and event bus, and starts the
// raft consensus loop in a background goroutine.
func New(cfg Config) (*State, error) {
	s, err := openStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	bus := newEventBus()
	appl := newApplicator(s, bus)
	rn := newRaftNode(cfg.RaftNodeID, appl)
	go rn.run()

	log.Infof("state layer started, peer=%s raft_id=%d", cfg.SelfPeerID, cfg.RaftNodeID)

	return &State{
		store:      s,
		raft:       rn,
		bus:        bus,
		appl:       appl,
		selfPeerID: cfg.SelfPeerID,
	}, nil
}

// Stop tears down the raft loop and closes the store. Safe to call once.
func (s *State) Stop() error {
	s.raft.stop()
	return s.store.close()
}

// Subscribe returns a channel of state-change events published after every
// committed transition, for the gossip server and task driver to react to.
func (s *State) Subscribe() <-chan interface{} {
	return s.bus.Subscribe()
}

// propose is a thin wrapper giving every setter a uniform error path.
func (s *State) propose(t Transition) error {
	return s.raft.propose(t)
}

// --- Wallets ---

// NewWallet proposes the creation of w and blocks until committed.
func (s *State) NewWallet(w *wallet.Wallet) error {
	return s.propose(Transition{Kind: TransitionNewWallet, Wallet: w})
}

// UpdateWallet proposes replacing the stored wallet with w.
func (s *State) UpdateWallet(w *wallet.Wallet) error {
	return s.propose(Transition{Kind: TransitionUpdateWallet, Wallet: w})
}

// GetWallet fetches a wallet by id directly from the local replica.
func (s *State) GetWallet(id wallet.WalletID) (*wallet.Wallet, error) {
	var w wallet.Wallet
	var found bool
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(walletsBucket)
		var err error
		found, err = getJSON(bucket, id[:], &w)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, rerrors.State(fmt.Errorf("wallet %s not found", id))
	}
	return &w, nil
}

// ListWallets returns every wallet this replica manages. Used by the
// gossip layer to build heartbeat digests and replicate to new members, by
// the handshake scheduler, and by the task driver's queue rescan.
func (s *State) ListWallets() ([]*wallet.Wallet, error) {
	var out []*wallet.Wallet
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(walletsBucket)
		return bucket.ForEach(func(k, v []byte) error {
			var w wallet.Wallet
			if len(v) == 0 {
				return nil
			}
			if err := jsonUnmarshal(v, &w); err != nil {
				return err
			}
			out = append(out, &w)
			return nil
		})
	})
	return out, err
}

// MergeWalletReplicas adds peers to wallet id's replica set if they are
// not already present, proposing an update only when the set actually
// changes. Used by the gossip heartbeat merge to fold in replicas another
// peer reported for a wallet this node also manages.
func (s *State) MergeWalletReplicas(id wallet.WalletID, peers []string) error {
	w, err := s.GetWallet(id)
	if err != nil {
		return err
	}
	if w.Metadata.Replicas == nil {
		w.Metadata.Replicas = make(map[string]struct{})
	}
	changed := false
	for _, p := range peers {
		if _, ok := w.Metadata.Replicas[p]; !ok {
			w.Metadata.Replicas[p] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.UpdateWallet(w)
}

// --- Order book ---

// AddOrder proposes admitting order to the replicated order book, assigning
// it a priority derived from its owning cluster.
func (s *State) AddOrder(order NetworkOrderRecord) error {
	return s.propose(Transition{Kind: TransitionAddOrder, Order: &order})
}

// NullifyOrders proposes removing every order in ids from the order book.
func (s *State) NullifyOrders(ids ...wallet.OrderID) error {
	return s.propose(Transition{Kind: TransitionNullifyOrders, OrderIDs: ids})
}

// AttachOrderWitness proposes recording witness as the validity witness for
// an already-admitted cluster-local order, fetched in the round-trip that
// follows a successful OrderProofUpdated.
func (s *State) AttachOrderWitness(id wallet.OrderID, witness []byte) error {
	return s.propose(Transition{Kind: TransitionAttachOrderWitness, WitnessOrderID: id, Witness: witness})
}

// GetOrder fetches an admitted order's replicated record by id.
func (s *State) GetOrder(id wallet.OrderID) (*NetworkOrderRecord, bool, error) {
	var rec NetworkOrderRecord
	var found bool
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(ordersBucket)
		var err error
		found, err = getJSON(bucket, id[:], &rec)
		return err
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &rec, true, nil
}

// GetPriority fetches the scheduling priority assigned to order id.
func (s *State) GetPriority(id wallet.OrderID) (Priority, error) {
	var p Priority
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(prioritiesBucket)
		_, err := getJSON(bucket, id[:], &p)
		return err
	})
	return p, err
}

// --- Peer directory ---

// AddPeer proposes recording a peer's address/metadata blob in the
// replicated peer directory.
func (s *State) AddPeer(peerID string, info []byte) error {
	return s.propose(Transition{Kind: TransitionAddPeer, PeerID: peerID, PeerInfo: info})
}

// ExpirePeer proposes removing a peer declared dead from the replicated
// peer directory.
func (s *State) ExpirePeer(peerID string) error {
	return s.propose(Transition{Kind: TransitionExpirePeer, PeerID: peerID})
}

// GetPeer fetches a peer's last-recorded address/metadata blob.
func (s *State) GetPeer(peerID string) ([]byte, bool, error) {
	var info []byte
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(peersBucket)
		info = bucket.Get([]byte(peerID))
		return nil
	})
	return info, info != nil, err
}

// --- Task queue ---

// AppendTask proposes enqueuing task against wallet id and returns the
// assigned task id once committed.
func (s *State) AppendTask(desc TaskDescriptor) (TaskID, error) {
	if err := s.propose(Transition{Kind: TransitionAppendTask, Task: desc, Executor: s.selfPeerID}); err != nil {
		return TaskID{}, err
	}
	tasks, err := s.GetQueuedTasks(desc.WalletID)
	if err != nil {
		return TaskID{}, err
	}
	if len(tasks) == 0 {
		return TaskID{}, rerrors.State(fmt.Errorf("append-task: queue %s empty after commit", desc.WalletID))
	}
	return tasks[len(tasks)-1].ID, nil
}

// PopTask proposes removing the completed/failed head task from its queue.
func (s *State) PopTask(id TaskID, success bool) error {
	return s.propose(Transition{Kind: TransitionPopTask, TaskID: id, Success: success})
}

// TransitionTask proposes updating a task's run state.
func (s *State) TransitionTask(id TaskID, rs TaskRunState) error {
	return s.propose(Transition{Kind: TransitionTransitionTask, TaskID: id, RunState: rs})
}

// ClearTaskQueue proposes dropping every task in the named queues.
func (s *State) ClearTaskQueue(keys ...TaskQueueKey) error {
	return s.propose(Transition{Kind: TransitionClearTaskQueue, QueueKeys: keys})
}

// PreemptTaskQueues proposes pausing the named queues and inserting task at
// each of their heads.
func (s *State) PreemptTaskQueues(keys []TaskQueueKey, task TaskDescriptor) error {
	return s.propose(Transition{
		Kind: TransitionPreemptTaskQueues, QueueKeys: keys, Task: task, Executor: s.selfPeerID,
	})
}

// ResumeTaskQueues proposes unpausing the named queues.
func (s *State) ResumeTaskQueues(success bool, keys ...TaskQueueKey) error {
	return s.propose(Transition{Kind: TransitionResumeTaskQueues, QueueKeys: keys, Success: success})
}

// ReassignTasks proposes handing every task executed by the dead peer
// `from` over to this replica.
func (s *State) ReassignTasks(from string) error {
	return s.propose(Transition{Kind: TransitionReassignTasks, FromPeer: from, ToPeer: s.selfPeerID})
}

// GetQueuedTasks returns the live (non-historical) tasks in queue key.
func (s *State) GetQueuedTasks(key TaskQueueKey) ([]QueuedTask, error) {
	var q queueRecord
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(taskQueuesBucket)
		_, err := getJSON(bucket, key[:], &q)
		return err
	})
	return q.Tasks, err
}

// GetTaskQueueLen returns the number of live tasks in queue key.
func (s *State) GetTaskQueueLen(key TaskQueueKey) (int, error) {
	tasks, err := s.GetQueuedTasks(key)
	return len(tasks), err
}

// IsQueuePaused reports whether queue key is currently paused.
func (s *State) IsQueuePaused(key TaskQueueKey) (bool, error) {
	var q queueRecord
	err := s.store.view(func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(taskQueuesBucket)
		_, err := getJSON(bucket, key[:], &q)
		return err
	})
	return q.Paused, err
}

// CurrentCommittedTask returns the id of the running head task of queue key
// if it has reached its commit point, or false otherwise.
func (s *State) CurrentCommittedTask(key TaskQueueKey) (TaskID, bool, error) {
	tasks, err := s.GetQueuedTasks(key)
	if err != nil {
		return TaskID{}, false, err
	}
	if len(tasks) == 0 {
		return TaskID{}, false, nil
	}
	head := tasks[0]
	if head.State.IsCommitted() {
		return head.ID, true, nil
	}
	return TaskID{}, false, nil
}

// GetTaskHistory returns up to n of the most recent tasks (running then
// historical, newest first) for queue key.
func (s *State) GetTaskHistory(n int, key TaskQueueKey) ([]HistoricalTask, error) {
	running, err := s.GetQueuedTasks(key)
	if err != nil {
		return nil, err
	}

	out := make([]HistoricalTask, 0, n)
	for _, t := range running {
		out = append(out, HistoricalTask{ID: t.ID, QueueKey: t.QueueKey, Descriptor: t.Descriptor, State: t.State, CreatedAt: t.CreatedAt})
	}

	remaining := n - len(out)
	if remaining > 0 {
		var hist []HistoricalTask
		err := s.store.view(func(tx walletdb.ReadTx) error {
			bucket := tx.ReadBucket(taskHistoryBucket)
			_, err := getJSON(bucket, key[:], &hist)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(hist) > remaining {
			hist = hist[:remaining]
		}
		out = append(out, hist...)
	}

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
