package state

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/wallet"
)

func newTestState(t *testing.T, raftID uint64) *State {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir(), RaftNodeID: raftID, SelfPeerID: "self"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return s
}

func testDescriptor(walletID wallet.WalletID) TaskDescriptor {
	return TaskDescriptor{Kind: TaskKindNewWallet, WalletID: walletID}
}

func TestEmptyQueueHasNoTasks(t *testing.T) {
	s := newTestState(t, 1)
	tasks, err := s.GetQueuedTasks(uuid.New())
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestAppendTaskRunsImmediatelyWhenQueueEmpty(t *testing.T) {
	s := newTestState(t, 2)
	walletID := uuid.New()

	id, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	tasks, err := s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, id, tasks[0].ID)
	require.True(t, tasks[0].State.Running)
	require.False(t, tasks[0].State.Queued)
}

func TestAppendTaskQueuesBehindRunningHead(t *testing.T) {
	s := newTestState(t, 3)
	walletID := uuid.New()

	_, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)
	second, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	tasks, err := s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.True(t, tasks[0].State.Running)
	require.True(t, tasks[1].State.Queued)
	require.Equal(t, second, tasks[1].ID)
}

func TestPopTaskAdvancesQueueHead(t *testing.T) {
	s := newTestState(t, 4)
	walletID := uuid.New()

	first, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)
	second, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.NoError(t, s.PopTask(first, true))

	tasks, err := s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, second, tasks[0].ID)
	require.True(t, tasks[0].State.Running)

	hist, err := s.GetTaskHistory(10, walletID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, first, hist[1].ID)
	require.True(t, hist[1].State.Completed)
}

func TestPopTaskRejectsNonHead(t *testing.T) {
	s := newTestState(t, 5)
	walletID := uuid.New()

	_, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)
	second, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.Error(t, s.PopTask(second, true))
}

func TestTransitionTaskUpdatesRunState(t *testing.T) {
	s := newTestState(t, 6)
	walletID := uuid.New()

	id, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.NoError(t, s.TransitionTask(id, TaskRunState{Running: true, Step: "broadcast", StepSeq: 1, Committed: true}))

	tasks, err := s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.True(t, tasks[0].State.IsCommitted())
}

func TestTransitionTaskRejectsNonHead(t *testing.T) {
	s := newTestState(t, 9)
	walletID := uuid.New()

	_, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)
	second, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.Error(t, s.TransitionTask(second, TaskRunState{Running: true, Step: "broadcast", StepSeq: 1}))
}

func TestTransitionTaskRejectsStepRegression(t *testing.T) {
	s := newTestState(t, 10)
	walletID := uuid.New()

	id, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.NoError(t, s.TransitionTask(id, TaskRunState{Running: true, Step: "await-finality", StepSeq: 2}))
	require.Error(t, s.TransitionTask(id, TaskRunState{Running: true, Step: "submit", StepSeq: 1}))

	// A replayed transition to the same step is an idempotent checkpoint,
	// not a regression, and must still be accepted.
	require.NoError(t, s.TransitionTask(id, TaskRunState{Running: true, Step: "await-finality", StepSeq: 2, Committed: true}))
}

func TestCurrentCommittedTaskReflectsCommittedHead(t *testing.T) {
	s := newTestState(t, 7)
	walletID := uuid.New()

	id, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	_, committed, err := s.CurrentCommittedTask(walletID)
	require.NoError(t, err)
	require.False(t, committed)

	require.NoError(t, s.TransitionTask(id, TaskRunState{Running: true, Committed: true}))

	current, committed, err := s.CurrentCommittedTask(walletID)
	require.NoError(t, err)
	require.True(t, committed)
	require.Equal(t, id, current)
}

func TestPreemptTaskQueuesRefusesCommittedHead(t *testing.T) {
	s := newTestState(t, 8)
	walletID := uuid.New()

	id, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)
	require.NoError(t, s.TransitionTask(id, TaskRunState{Running: true, Committed: true}))

	err = s.PreemptTaskQueues([]TaskQueueKey{walletID}, testDescriptor(walletID))
	require.Error(t, err)
}

func TestPreemptAndResumeTaskQueues(t *testing.T) {
	s := newTestState(t, 9)
	walletID := uuid.New()

	original, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.NoError(t, s.PreemptTaskQueues([]TaskQueueKey{walletID}, testDescriptor(walletID)))

	paused, err := s.IsQueuePaused(walletID)
	require.NoError(t, err)
	require.True(t, paused)

	tasks, err := s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.NotEqual(t, original, tasks[0].ID)
	require.True(t, tasks[0].State.Running)

	require.NoError(t, s.ResumeTaskQueues(true, walletID))

	paused, err = s.IsQueuePaused(walletID)
	require.NoError(t, err)
	require.False(t, paused)

	tasks, err = s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, original, tasks[0].ID)
	require.True(t, tasks[0].State.Running)
}

func TestReassignTasksHandsOffExecutor(t *testing.T) {
	s := newTestState(t, 10)
	walletID := uuid.New()

	_, err := s.AppendTask(testDescriptor(walletID))
	require.NoError(t, err)

	require.NoError(t, s.ReassignTasks("self"))

	tasks, err := s.GetQueuedTasks(walletID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "self", tasks[0].Executor)
}

func TestTaskHistoryTruncatesToLimit(t *testing.T) {
	s := newTestState(t, 11)
	walletID := uuid.New()

	for i := 0; i < taskHistoryLen+5; i++ {
		id, err := s.AppendTask(testDescriptor(walletID))
		require.NoError(t, err)
		require.NoError(t, s.PopTask(id, true))
	}

	hist, err := s.GetTaskHistory(1000, walletID)
	require.NoError(t, err)
	require.Len(t, hist, taskHistoryLen)
}

func TestWalletRoundTrip(t *testing.T) {
	s := newTestState(t, 12)
	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})

	require.NoError(t, s.NewWallet(w))

	fetched, err := s.GetWallet(w.ID)
	require.NoError(t, err)
	require.Equal(t, w.ID, fetched.ID)

	wallets, err := s.ListWallets()
	require.NoError(t, err)
	require.Len(t, wallets, 1)
}

func TestAddOrderAssignsDefaultPriority(t *testing.T) {
	s := newTestState(t, 13)
	orderID := uuid.New()
	walletID := uuid.New()

	require.NoError(t, s.AddOrder(NetworkOrderRecord{
		OrderID:   orderID,
		WalletID:  walletID,
		ClusterID: "cluster-a",
	}))

	rec, found, err := s.GetOrder(orderID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, walletID, rec.WalletID)

	priority, err := s.GetPriority(orderID)
	require.NoError(t, err)
	require.Equal(t, DefaultClusterPriority, priority.ClusterPriority)
	require.Equal(t, DefaultOrderPriority, priority.OrderPriority)
	require.Equal(t, uint64(1), priority.Effective())
}

func TestNullifyOrdersRemovesRecordAndPriority(t *testing.T) {
	s := newTestState(t, 14)
	orderID := uuid.New()

	require.NoError(t, s.AddOrder(NetworkOrderRecord{OrderID: orderID, WalletID: uuid.New()}))
	require.NoError(t, s.NullifyOrders(orderID))

	_, found, err := s.GetOrder(orderID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestPeerDirectoryAddAndExpire(t *testing.T) {
	s := newTestState(t, 15)

	require.NoError(t, s.AddPeer("peer-a", []byte("10.0.0.1:9000")))
	info, found, err := s.GetPeer("peer-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "10.0.0.1:9000", string(info))

	require.NoError(t, s.ExpirePeer("peer-a"))
	_, found, err = s.GetPeer("peer-a")
	require.NoError(t, err)
	require.False(t, found)
}
