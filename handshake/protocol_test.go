package handshake

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/telemetry"
	"github.com/darkpool-labs/relayer/wallet"
)

type fakePeer struct {
	accept       bool
	counterPrice float64
	witness      CircuitWitness
	err          error
}

func (f fakePeer) ProposePrice(ctx context.Context, pair PairKey, price float64) (bool, float64, error) {
	return f.accept, f.counterPrice, f.err
}

func (f fakePeer) RemoteWitness(ctx context.Context, orderID wallet.OrderID) (CircuitWitness, error) {
	return f.witness, nil
}

type fakeFabric struct{ closed bool }

func (f *fakeFabric) Close() error { f.closed = true; return nil }

type fakeFabricFactory struct{ fabric *fakeFabric }

func (f fakeFabricFactory) New(ctx context.Context, counterparty string) (MPCFabric, error) {
	return f.fabric, nil
}

type fakeCircuit struct{ result MatchResult }

func (f fakeCircuit) Execute(fabric MPCFabric, local, remote CircuitWitness) (MatchResult, error) {
	return f.result, nil
}

func newTestRunner(t *testing.T, accept bool) (*Runner, *state.State) {
	t.Helper()
	st, err := state.New(state.Config{DataDir: t.TempDir(), RaftNodeID: 1, SelfPeerID: "self"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Stop()) })

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	runner := &Runner{
		State:      st,
		Reporters:  []PriceReporter{fakeReporter{report: Report{Midpoint: 100, Timestamp: time.Now()}}},
		Fabrics:    fakeFabricFactory{fabric: &fakeFabric{}},
		Circuit:    fakeCircuit{result: MatchResult{QuoteAmount: 10, BaseAmount: 1}},
		SigningKey: priv,
	}
	return runner, st
}

func TestRunEnqueuesSettleMatchTaskOnAgreement(t *testing.T) {
	runner, st := newTestRunner(t, true)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	require.NoError(t, st.NewWallet(w))

	attempt := Attempt{
		LocalWalletID: w.ID,
		LocalOrderID:  uuid.New(),
		RemoteOrderID: uuid.New(),
		Counterparty:  fakePeer{accept: true, counterPrice: 100.2},
		Local:         CircuitWitness{Order: wallet.Order{Amount: 1}},
	}

	require.NoError(t, runner.Run(context.Background(), attempt))

	tasks, err := st.GetQueuedTasks(w.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, state.TaskKindSettleMatch, tasks[0].Descriptor.Kind)

	var payload SettleMatchPayload
	require.NoError(t, json.Unmarshal(tasks[0].Descriptor.Payload, &payload))
	require.Equal(t, attempt.LocalOrderID, payload.LocalOrderID)
	require.Equal(t, attempt.RemoteOrderID, payload.RemoteOrderID)
	require.NotEmpty(t, payload.Signature)
}

func TestRunAbortsWhenCounterpartyRejectsPrice(t *testing.T) {
	runner, st := newTestRunner(t, false)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	require.NoError(t, st.NewWallet(w))

	attempt := Attempt{
		LocalWalletID: w.ID,
		LocalOrderID:  uuid.New(),
		RemoteOrderID: uuid.New(),
		Counterparty:  fakePeer{accept: false},
		Local:         CircuitWitness{Order: wallet.Order{Amount: 1}},
	}

	err := runner.Run(context.Background(), attempt)
	require.Error(t, err)

	tasks, err := st.GetQueuedTasks(w.ID)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestRunRecordsAttemptOutcomeWhenMetricsConfigured(t *testing.T) {
	runner, st := newTestRunner(t, true)
	reg := prometheus.NewRegistry()
	runner.Metrics = telemetry.New(reg)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	require.NoError(t, st.NewWallet(w))

	attempt := Attempt{
		LocalWalletID: w.ID,
		LocalOrderID:  uuid.New(),
		RemoteOrderID: uuid.New(),
		Counterparty:  fakePeer{accept: true, counterPrice: 100.2},
		Local:         CircuitWitness{Order: wallet.Order{Amount: 1}},
	}
	require.NoError(t, runner.Run(context.Background(), attempt))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() == "relayer_handshake_attempts_total" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunAbortsWhenCounterpartyPriceOutsideTolerance(t *testing.T) {
	runner, st := newTestRunner(t, true)

	w := wallet.NewEmpty(uuid.New(), wallet.Keychain{})
	require.NoError(t, st.NewWallet(w))

	attempt := Attempt{
		LocalWalletID: w.ID,
		LocalOrderID:  uuid.New(),
		RemoteOrderID: uuid.New(),
		Counterparty:  fakePeer{accept: true, counterPrice: 200},
		Local:         CircuitWitness{Order: wallet.Order{Amount: 1}},
	}

	err := runner.Run(context.Background(), attempt)
	require.Error(t, err)

	tasks, err := st.GetQueuedTasks(w.ID)
	require.NoError(t, err)
	require.Empty(t, tasks)
}
