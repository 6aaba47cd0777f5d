package state

import "github.com/darkpool-labs/relayer/wallet"

// Event types published on the bus after a transition commits. Named
// structs rather than an enum-with-payload, since Go subscribers type-switch
// on the concrete type instead of a discriminant field.

type WalletCreated struct{ WalletID TaskQueueKey }
type WalletUpdated struct{ WalletID TaskQueueKey }

type TaskEnqueued struct {
	TaskID   TaskID
	QueueKey TaskQueueKey
}

type TaskPopped struct {
	TaskID   TaskID
	QueueKey TaskQueueKey
	Success  bool
}

type TaskStateChanged struct {
	TaskID   TaskID
	QueueKey TaskQueueKey
	State    TaskRunState
}

type TaskQueuesCleared struct{ QueueKeys []TaskQueueKey }
type TaskQueuePaused struct {
	QueueKey TaskQueueKey
	TaskID   TaskID
}
type TaskQueueResumed struct{ QueueKey TaskQueueKey }

type TasksReassigned struct {
	From, To string
	TaskIDs  []TaskID
}

type OrderAdded struct{ OrderID wallet.OrderID }
type OrdersNullified struct{ OrderIDs []wallet.OrderID }
type OrderWitnessAttached struct{ OrderID wallet.OrderID }

type PeerAdded struct{ PeerID string }
type PeerExpired struct{ PeerID string }
