package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/wallet"
)

func TestPoolRunDrainsAttemptsUntilClosed(t *testing.T) {
	st, err := state.New(state.Config{DataDir: t.TempDir(), RaftNodeID: 1, SelfPeerID: "self"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Stop()) })

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	require.NoError(t, st.NewWallet(w))

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	runner := &Runner{
		State:      st,
		Reporters:  []PriceReporter{fakeReporter{report: Report{Midpoint: 100, Timestamp: time.Now()}}},
		Fabrics:    fakeFabricFactory{fabric: &fakeFabric{}},
		Circuit:    fakeCircuit{result: MatchResult{QuoteAmount: 1, BaseAmount: 1}},
		SigningKey: priv,
	}
	pool := &Pool{Runner: runner, Size: 2}

	attempts := make(chan Attempt, 2)
	attempts <- Attempt{
		LocalWalletID: w.ID,
		LocalOrderID:  uuid.New(),
		RemoteOrderID: uuid.New(),
		Counterparty:  fakePeer{accept: true, counterPrice: 100},
		Local:         CircuitWitness{Order: wallet.Order{Amount: 1}},
	}
	close(attempts)

	err = pool.Run(context.Background(), attempts)
	require.NoError(t, err)

	tasks, err := st.GetQueuedTasks(w.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}
