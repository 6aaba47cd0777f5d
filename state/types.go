package state

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/darkpool-labs/relayer/wallet"
)

// TaskQueueKey identifies a per-wallet task queue. A wallet and its queue
// share the same identifier: every task that touches a wallet serializes
// against every other task touching that same wallet.
type TaskQueueKey = wallet.WalletID

// TaskID identifies a single queued or historical task.
type TaskID = uuid.UUID

// TaskKind enumerates the task descriptors the driver knows how to run.
type TaskKind string

const (
	TaskKindNewWallet      TaskKind = "new-wallet"
	TaskKindUpdateWallet   TaskKind = "update-wallet"
	TaskKindSettleMatch    TaskKind = "settle-match"
	TaskKindRefreshWallet  TaskKind = "refresh-wallet"
)

// TaskDescriptor is the immutable description of what a task does, as
// opposed to QueuedTask's mutable run-time state.
type TaskDescriptor struct {
	Kind     TaskKind
	WalletID wallet.WalletID
	// Payload carries kind-specific parameters, kept as a JSON blob so the
	// state package's transition log doesn't need to know every task
	// kind's Go type -- the taskdriver package unmarshals it.
	Payload json.RawMessage
}

// TaskRunState is the tagged run-state of a queued task.
type TaskRunState struct {
	Queued  bool
	Running bool
	Step    string
	// StepSeq orders Step within one task's run: each TransitionTask must
	// supply a StepSeq at least as large as the task's current one, so a
	// stale, step-regressing transition is rejected while an idempotent
	// replay of the same step after a crash is still accepted.
	StepSeq   int
	Committed bool
	Completed bool
	Failed    bool
}

// IsCommitted reports whether the task has passed its point of no return:
// an irreversible on-chain or cross-party side effect has been initiated,
// so the task must run to completion rather than be aborted or redone.
func (s TaskRunState) IsCommitted() bool { return s.Running && s.Committed }

// QueuedTask is a task descriptor plus its current run state, as stored in
// the task_queues table.
type QueuedTask struct {
	ID         TaskID
	QueueKey   TaskQueueKey
	Descriptor TaskDescriptor
	State      TaskRunState
	Executor   string // peer id string of the node driving this task
	CreatedAt  time.Time
}

// HistoricalTask is a completed or failed task retained for queue history.
type HistoricalTask struct {
	ID         TaskID
	QueueKey   TaskQueueKey
	Descriptor TaskDescriptor
	State      TaskRunState
	CreatedAt  time.Time
}

// TransitionKind enumerates the proposals the applicator accepts. Mirrors
// the original's StateTransition enum, flattened into a Go tagged union
// (Kind discriminant + one populated payload field) since Go has no sum
// types.
type TransitionKind string

const (
	TransitionNewWallet          TransitionKind = "new-wallet"
	TransitionUpdateWallet       TransitionKind = "update-wallet"
	TransitionAppendTask         TransitionKind = "append-task"
	TransitionPopTask            TransitionKind = "pop-task"
	TransitionTransitionTask     TransitionKind = "transition-task"
	TransitionClearTaskQueue     TransitionKind = "clear-task-queue"
	TransitionPreemptTaskQueues  TransitionKind = "preempt-task-queues"
	TransitionResumeTaskQueues   TransitionKind = "resume-task-queues"
	TransitionReassignTasks      TransitionKind = "reassign-tasks"
	TransitionAddPeer            TransitionKind = "add-peer"
	TransitionExpirePeer         TransitionKind = "expire-peer"
	TransitionAddOrder           TransitionKind = "add-order"
	TransitionNullifyOrders      TransitionKind = "nullify-orders"
	TransitionAttachOrderWitness TransitionKind = "attach-order-witness"
)

// Priority is an order's scheduling weight: the product of its owning
// cluster's priority and the order's own priority within that cluster.
// Mirrors the original applicator's OrderPriority record.
type Priority struct {
	ClusterPriority uint32
	OrderPriority   uint32
}

// Effective computes the scalar the handshake scheduler sorts candidate
// pairs by; higher schedules sooner.
func (p Priority) Effective() uint64 {
	return uint64(p.ClusterPriority) * uint64(p.OrderPriority)
}

// Default priorities assigned to a newly admitted order and to a cluster
// with no priority of its own on record.
const (
	DefaultClusterPriority uint32 = 1
	DefaultOrderPriority   uint32 = 1
)

// NetworkOrderRecord is the replicated record of an order this node has
// verified and admitted to its local order book, keyed by OrderID in the
// orders table. Separate from wallet.Order, which is the order as it
// appears inside a wallet's own balance-sheet share.
type NetworkOrderRecord struct {
	OrderID    wallet.OrderID
	WalletID   wallet.WalletID
	ClusterID  string
	Commitment wallet.Scalar
	Nullifier  wallet.Scalar
	MerkleRoot wallet.Scalar

	// ValidityWitness is only ever populated for cluster-local orders,
	// fetched in a separate round-trip after the order's proof verifies --
	// it is never carried on the wire alongside the proof itself.
	ValidityWitness []byte
}

// Transition is a single proposal submitted to Raft. Only the fields
// relevant to Kind are populated; the applicator switches on Kind.
type Transition struct {
	Kind TransitionKind

	// NewWallet / UpdateWallet
	Wallet *wallet.Wallet

	// AppendTask
	Task     TaskDescriptor
	Executor string

	// PopTask
	TaskID  TaskID
	Success bool

	// TransitionTask
	RunState TaskRunState

	// ClearTaskQueue / PreemptTaskQueues / ResumeTaskQueues
	QueueKeys []TaskQueueKey

	// ReassignTasks
	FromPeer string
	ToPeer   string

	// AddPeer / ExpirePeer
	PeerID   string
	PeerInfo []byte

	// AddOrder
	Order *NetworkOrderRecord

	// NullifyOrders
	OrderIDs []wallet.OrderID

	// AttachOrderWitness
	WitnessOrderID wallet.OrderID
	Witness        []byte
}
