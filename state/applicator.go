package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"

	"github.com/darkpool-labs/relayer/rerrors"
)

var taskSeqKey = []byte("__task_seq")

// applicator runs a committed Transition deterministically against the
// store inside a single write transaction, then emits the events other
// subsystems (gossip, task driver) subscribe to via the bus. Every replica
// in the cluster runs the same sequence of transitions through the same
// applicator, so two replicas that have applied the same Raft log index
// always hold bit-identical state.
type applicator struct {
	store *store
	bus   *eventBus
}

func newApplicator(s *store, b *eventBus) *applicator {
	return &applicator{store: s, bus: b}
}

// apply dispatches t to its handler inside a write transaction and
// publishes the resulting events after the transaction commits -- events
// are never published from inside the write tx, since handlers that
// subscribe synchronously could otherwise deadlock against the same
// transaction that produced the event.
func (a *applicator) apply(t Transition) error {
	var events []interface{}
	err := a.store.update(func(tx walletdb.ReadWriteTx) error {
		var err error
		events, err = a.dispatch(tx, t)
		return err
	})
	if err != nil {
		return err
	}
	for _, e := range events {
		a.bus.publish(e)
	}
	return nil
}

func (a *applicator) dispatch(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	switch t.Kind {
	case TransitionNewWallet:
		return a.applyNewWallet(tx, t)
	case TransitionUpdateWallet:
		return a.applyUpdateWallet(tx, t)
	case TransitionAppendTask:
		return a.applyAppendTask(tx, t)
	case TransitionPopTask:
		return a.applyPopTask(tx, t)
	case TransitionTransitionTask:
		return a.applyTransitionTask(tx, t)
	case TransitionClearTaskQueue:
		return a.applyClearTaskQueue(tx, t)
	case TransitionPreemptTaskQueues:
		return a.applyPreemptTaskQueues(tx, t)
	case TransitionResumeTaskQueues:
		return a.applyResumeTaskQueues(tx, t)
	case TransitionReassignTasks:
		return a.applyReassignTasks(tx, t)
	case TransitionAddOrder:
		return a.applyAddOrder(tx, t)
	case TransitionNullifyOrders:
		return a.applyNullifyOrders(tx, t)
	case TransitionAttachOrderWitness:
		return a.applyAttachOrderWitness(tx, t)
	case TransitionAddPeer:
		return a.applyAddPeer(tx, t)
	case TransitionExpirePeer:
		return a.applyExpirePeer(tx, t)
	default:
		return nil, rerrors.State(fmt.Errorf("unhandled transition kind %q", t.Kind))
	}
}

func (a *applicator) applyNewWallet(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	if t.Wallet == nil {
		return nil, rerrors.State(fmt.Errorf("new-wallet transition missing wallet"))
	}
	bucket := tx.ReadWriteBucket(walletsBucket)
	key := t.Wallet.ID[:]
	if existing := bucket.Get(key); existing != nil {
		return nil, rerrors.State(fmt.Errorf("wallet %s already exists", t.Wallet.ID))
	}
	if err := putJSON(bucket, key, t.Wallet); err != nil {
		return nil, err
	}
	return []interface{}{WalletCreated{WalletID: t.Wallet.ID}}, nil
}

func (a *applicator) applyUpdateWallet(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	if t.Wallet == nil {
		return nil, rerrors.State(fmt.Errorf("update-wallet transition missing wallet"))
	}
	bucket := tx.ReadWriteBucket(walletsBucket)
	key := t.Wallet.ID[:]
	if err := putJSON(bucket, key, t.Wallet); err != nil {
		return nil, err
	}
	return []interface{}{WalletUpdated{WalletID: t.Wallet.ID}}, nil
}

// queueRecord is the on-disk shape of a task queue: a FIFO of queued tasks
// plus a pause flag, keyed by wallet id.
type queueRecord struct {
	Paused bool
	Tasks  []QueuedTask
}

func getQueue(bucket walletdb.ReadBucket, key TaskQueueKey) (queueRecord, error) {
	var q queueRecord
	if _, err := getJSON(bucket, key[:], &q); err != nil {
		return queueRecord{}, err
	}
	return q, nil
}

func putQueue(bucket walletdb.ReadWriteBucket, key TaskQueueKey, q queueRecord) error {
	return putJSON(bucket, key[:], q)
}

func (a *applicator) applyAppendTask(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)
	q, err := getQueue(bucket, t.Task.WalletID)
	if err != nil {
		return nil, err
	}

	task := QueuedTask{
		ID:         newTaskID(tx),
		QueueKey:   t.Task.WalletID,
		Descriptor: t.Task,
		Executor:   t.Executor,
		CreatedAt:  time.Now(),
	}
	if len(q.Tasks) == 0 && !q.Paused {
		task.State = TaskRunState{Running: true}
	} else {
		task.State = TaskRunState{Queued: true}
	}
	q.Tasks = append(q.Tasks, task)

	if err := putQueue(bucket, t.Task.WalletID, q); err != nil {
		return nil, err
	}
	return []interface{}{TaskEnqueued{TaskID: task.ID, QueueKey: t.Task.WalletID}}, nil
}

func (a *applicator) applyPopTask(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)
	key, q, idx, err := findTaskQueue(bucket, t.TaskID)
	if err != nil {
		return nil, err
	}
	if idx != 0 {
		return nil, rerrors.State(fmt.Errorf("pop-task: task %s is not the head of its queue", t.TaskID))
	}

	popped := q.Tasks[0]
	q.Tasks = q.Tasks[1:]
	if len(q.Tasks) > 0 && !q.Paused {
		q.Tasks[0].State = TaskRunState{Running: true}
	}
	if err := putQueue(bucket, key, q); err != nil {
		return nil, err
	}

	hist := HistoricalTask{
		ID:         popped.ID,
		QueueKey:   key,
		Descriptor: popped.Descriptor,
		CreatedAt:  popped.CreatedAt,
	}
	if t.Success {
		hist.State = TaskRunState{Completed: true}
	} else {
		hist.State = TaskRunState{Failed: true}
	}
	if err := appendTaskHistory(tx.ReadWriteBucket(taskHistoryBucket), key, hist); err != nil {
		return nil, err
	}

	return []interface{}{TaskPopped{TaskID: t.TaskID, QueueKey: key, Success: t.Success}}, nil
}

func (a *applicator) applyTransitionTask(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)
	key, q, idx, err := findTaskQueue(bucket, t.TaskID)
	if err != nil {
		return nil, err
	}
	if idx != 0 {
		return nil, rerrors.State(fmt.Errorf("transition-task: task %s is not the head of its queue", t.TaskID))
	}
	if t.RunState.StepSeq < q.Tasks[idx].State.StepSeq {
		return nil, rerrors.State(fmt.Errorf("transition-task: task %s step %d regresses current step %d",
			t.TaskID, t.RunState.StepSeq, q.Tasks[idx].State.StepSeq))
	}
	q.Tasks[idx].State = t.RunState
	if err := putQueue(bucket, key, q); err != nil {
		return nil, err
	}
	return []interface{}{TaskStateChanged{TaskID: t.TaskID, QueueKey: key, State: t.RunState}}, nil
}

func (a *applicator) applyClearTaskQueue(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)
	for _, key := range t.QueueKeys {
		if err := putQueue(bucket, key, queueRecord{}); err != nil {
			return nil, err
		}
	}
	return []interface{}{TaskQueuesCleared{QueueKeys: t.QueueKeys}}, nil
}

// applyPreemptTaskQueues pauses each named queue and pushes t.Task to its
// front, failing the whole transition if any queue already holds a
// committed running task -- a committed task cannot be safely displaced,
// so the preemption must be refused rather than silently skipped for that
// one queue.
func (a *applicator) applyPreemptTaskQueues(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)

	records := make(map[TaskQueueKey]queueRecord, len(t.QueueKeys))
	for _, key := range t.QueueKeys {
		q, err := getQueue(bucket, key)
		if err != nil {
			return nil, err
		}
		if len(q.Tasks) > 0 && q.Tasks[0].State.IsCommitted() {
			return nil, rerrors.State(fmt.Errorf("preempt-task-queues: queue %s holds a committed task", key))
		}
		records[key] = q
	}

	events := make([]interface{}, 0, len(t.QueueKeys))
	for _, key := range t.QueueKeys {
		q := records[key]
		q.Paused = true
		if len(q.Tasks) > 0 {
			// The old head can no longer be Running once preempted is
			// spliced in ahead of it -- at most one Running task per queue,
			// and it must be the head.
			q.Tasks[0].State = TaskRunState{Queued: true}
		}
		preempted := QueuedTask{
			ID:         newTaskID(tx),
			QueueKey:   key,
			Descriptor: t.Task,
			Executor:   t.Executor,
			State:      TaskRunState{Running: true},
			CreatedAt:  time.Now(),
		}
		q.Tasks = append([]QueuedTask{preempted}, q.Tasks...)
		if err := putQueue(bucket, key, q); err != nil {
			return nil, err
		}
		events = append(events, TaskQueuePaused{QueueKey: key, TaskID: preempted.ID})
	}
	return events, nil
}

func (a *applicator) applyResumeTaskQueues(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)
	events := make([]interface{}, 0, len(t.QueueKeys))
	for _, key := range t.QueueKeys {
		q, err := getQueue(bucket, key)
		if err != nil {
			return nil, err
		}
		if len(q.Tasks) > 0 {
			popped := q.Tasks[0]
			q.Tasks = q.Tasks[1:]
			hist := HistoricalTask{
				ID: popped.ID, QueueKey: key, Descriptor: popped.Descriptor,
				CreatedAt: popped.CreatedAt,
			}
			if t.Success {
				hist.State = TaskRunState{Completed: true}
			} else {
				hist.State = TaskRunState{Failed: true}
			}
			if err := appendTaskHistory(tx.ReadWriteBucket(taskHistoryBucket), key, hist); err != nil {
				return nil, err
			}
		}
		q.Paused = false
		if len(q.Tasks) > 0 {
			q.Tasks[0].State = TaskRunState{Running: true}
		}
		if err := putQueue(bucket, key, q); err != nil {
			return nil, err
		}
		events = append(events, TaskQueueResumed{QueueKey: key})
	}
	return events, nil
}

// applyReassignTasks hands every task executed by FromPeer over to ToPeer,
// across all queues -- used when a peer is declared dead by the gossip
// layer so its in-flight tasks don't stall forever.
func (a *applicator) applyReassignTasks(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)
	var reassigned []TaskID

	err := bucket.ForEach(func(k, v []byte) error {
		if string(k) == string(taskSeqKey) {
			return nil
		}
		var q queueRecord
		if err := jsonUnmarshal(v, &q); err != nil {
			return err
		}
		changed := false
		for i := range q.Tasks {
			if q.Tasks[i].Executor == t.FromPeer {
				q.Tasks[i].Executor = t.ToPeer
				reassigned = append(reassigned, q.Tasks[i].ID)
				changed = true
			}
		}
		if changed {
			return putJSON(bucket, k, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []interface{}{TasksReassigned{From: t.FromPeer, To: t.ToPeer, TaskIDs: reassigned}}, nil
}

// clusterPriorityKey namespaces a cluster-priority entry within the shared
// priorities bucket so it can't collide with an order-id key (order ids are
// 16 raw bytes; this key always carries the "cluster:" prefix).
func clusterPriorityKey(clusterID string) []byte {
	return []byte("cluster:" + clusterID)
}

func getClusterPriority(bucket walletdb.ReadBucket, clusterID string) uint32 {
	b := bucket.Get(clusterPriorityKey(clusterID))
	if len(b) != 4 {
		return DefaultClusterPriority
	}
	return binary.BigEndian.Uint32(b)
}

// applyAddOrder admits a newly verified order to the replicated order book,
// assigning it its cluster's priority (or the default, if the cluster has
// none on record) composed with the order default -- new orders never start
// above the baseline an operator must explicitly raise.
func (a *applicator) applyAddOrder(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	if t.Order == nil {
		return nil, rerrors.State(fmt.Errorf("add-order transition missing order"))
	}
	ordersBkt := tx.ReadWriteBucket(ordersBucket)
	if err := putJSON(ordersBkt, t.Order.OrderID[:], t.Order); err != nil {
		return nil, err
	}

	prioBkt := tx.ReadWriteBucket(prioritiesBucket)
	priority := Priority{
		ClusterPriority: getClusterPriority(prioBkt, t.Order.ClusterID),
		OrderPriority:   DefaultOrderPriority,
	}
	if err := putJSON(prioBkt, t.Order.OrderID[:], priority); err != nil {
		return nil, err
	}

	return []interface{}{OrderAdded{OrderID: t.Order.OrderID}}, nil
}

// applyNullifyOrders removes every order named in t.OrderIDs from the order
// book and its priority record -- issued once the wallet that produced them
// has moved past the state they were valid against.
func (a *applicator) applyNullifyOrders(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	ordersBkt := tx.ReadWriteBucket(ordersBucket)
	prioBkt := tx.ReadWriteBucket(prioritiesBucket)
	for _, id := range t.OrderIDs {
		if err := ordersBkt.Delete(id[:]); err != nil {
			return nil, rerrors.State(fmt.Errorf("deleting order %s: %w", id, err))
		}
		if err := prioBkt.Delete(id[:]); err != nil {
			return nil, rerrors.State(fmt.Errorf("deleting priority %s: %w", id, err))
		}
	}
	return []interface{}{OrdersNullified{OrderIDs: t.OrderIDs}}, nil
}

// applyAttachOrderWitness records the validity witness fetched for a
// cluster-local order once its proof has already verified.
func (a *applicator) applyAttachOrderWitness(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	ordersBkt := tx.ReadWriteBucket(ordersBucket)
	var rec NetworkOrderRecord
	found, err := getJSON(ordersBkt, t.WitnessOrderID[:], &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, rerrors.State(fmt.Errorf("attach-order-witness: order %s not known", t.WitnessOrderID))
	}
	rec.ValidityWitness = t.Witness
	if err := putJSON(ordersBkt, t.WitnessOrderID[:], &rec); err != nil {
		return nil, err
	}
	return []interface{}{OrderWitnessAttached{OrderID: t.WitnessOrderID}}, nil
}

// applyAddPeer records a peer's last-known address/metadata blob in the
// replicated peer table, so a replica that just joined the cluster can seed
// its dial set without waiting for a heartbeat from every member.
func (a *applicator) applyAddPeer(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(peersBucket)
	if err := bucket.Put([]byte(t.PeerID), t.PeerInfo); err != nil {
		return nil, rerrors.State(fmt.Errorf("storing peer %s: %w", t.PeerID, err))
	}
	return []interface{}{PeerAdded{PeerID: t.PeerID}}, nil
}

// applyExpirePeer removes a peer declared dead from the replicated peer
// table.
func (a *applicator) applyExpirePeer(tx walletdb.ReadWriteTx, t Transition) ([]interface{}, error) {
	bucket := tx.ReadWriteBucket(peersBucket)
	if err := bucket.Delete([]byte(t.PeerID)); err != nil {
		return nil, rerrors.State(fmt.Errorf("deleting peer %s: %w", t.PeerID, err))
	}
	return []interface{}{PeerExpired{PeerID: t.PeerID}}, nil
}

func findTaskQueue(bucket walletdb.ReadWriteBucket, taskID TaskID) (TaskQueueKey, queueRecord, int, error) {
	var (
		foundKey TaskQueueKey
		foundQ   queueRecord
		foundIdx = -1
	)
	err := bucket.ForEach(func(k, v []byte) error {
		if foundIdx != -1 || string(k) == string(taskSeqKey) {
			return nil
		}
		var q queueRecord
		if err := jsonUnmarshal(v, &q); err != nil {
			return err
		}
		for i, task := range q.Tasks {
			if task.ID == taskID {
				copy(foundKey[:], k)
				foundQ = q
				foundIdx = i
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return TaskQueueKey{}, queueRecord{}, 0, err
	}
	if foundIdx == -1 {
		return TaskQueueKey{}, queueRecord{}, 0, rerrors.State(fmt.Errorf("task %s not found in any queue", taskID))
	}
	return foundKey, foundQ, foundIdx, nil
}

func appendTaskHistory(bucket walletdb.ReadWriteBucket, key TaskQueueKey, hist HistoricalTask) error {
	var list []HistoricalTask
	if _, err := getJSON(bucket, key[:], &list); err != nil {
		return err
	}
	list = append([]HistoricalTask{hist}, list...)
	if len(list) > taskHistoryLen {
		list = list[:taskHistoryLen]
	}
	return putJSON(bucket, key[:], list)
}

// newTaskID derives a deterministic-enough task identifier from a
// per-bucket sequence counter so every replica assigns the same id to the
// same committed transition without needing real randomness inside the
// deterministic apply path.
func newTaskID(tx walletdb.ReadWriteTx) TaskID {
	bucket := tx.ReadWriteBucket(taskQueuesBucket)

	var seq uint64
	if b := bucket.Get(taskSeqKey); b != nil {
		seq = binary.BigEndian.Uint64(b)
	}
	seq++
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	bucket.Put(taskSeqKey, seqBuf[:]) //nolint:errcheck

	var id TaskID
	binary.BigEndian.PutUint64(id[8:], seq)
	return id
}

func jsonUnmarshal(b []byte, v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return rerrors.Serialization(fmt.Errorf("unmarshaling state value: %w", err))
	}
	return nil
}
