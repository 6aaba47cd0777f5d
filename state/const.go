// Package state implements the relayer's replicated wallet and order-book
// state: an embedded transactional key-value store advanced only through
// Raft-committed transitions, plus the task-queue machinery that serializes
// work against each wallet.
package state

import "time"

const (
	// dbFileName is the bbolt-backed walletdb file created under the
	// node's data directory.
	dbFileName = "relayer.db"

	// proposalTimeout bounds how long a proposer waits for its
	// transition to commit before giving up.
	proposalTimeout = 10 * time.Second

	// taskHistoryLen is the number of completed tasks retained per queue
	// for history reporting, mirroring the original's truncation default.
	taskHistoryLen = 50
)

// Bucket names for the seven top-level walletdb tables.
var (
	walletsBucket     = []byte("wallets")
	ordersBucket      = []byte("orders")
	prioritiesBucket  = []byte("priorities")
	peersBucket       = []byte("peers")
	clusterBucket     = []byte("cluster")
	taskQueuesBucket  = []byte("task_queues")
	taskHistoryBucket = []byte("task_history")
)
