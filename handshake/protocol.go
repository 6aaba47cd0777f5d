package handshake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v3"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/telemetry"
	"github.com/darkpool-labs/relayer/wallet"
)

// Peer is the narrow counterparty-facing surface a handshake attempt needs
// from the network layer: propose a price, and ask it to run its half of
// the match circuit. Kept local so this package never imports the
// network package.
type Peer interface {
	ProposePrice(ctx context.Context, pair PairKey, price float64) (accept bool, counterPrice float64, err error)
	RemoteWitness(ctx context.Context, orderID wallet.OrderID) (CircuitWitness, error)
}

// Attempt is one handshake between a local verified order and a remote
// counterparty's verified order, run start to finish under a single
// deadline.
type Attempt struct {
	LocalWalletID wallet.WalletID
	LocalOrderID  wallet.OrderID
	RemoteOrderID wallet.OrderID
	Counterparty  Peer
	Local         CircuitWitness
	PairKey       PairKey
}

// Runner drives handshake attempts: price agreement, then MPC match and
// settlement, handing the result to a queued SettleMatch task. Reporters,
// fabrics, and circuit are opaque collaborators per Non-goals.
type Runner struct {
	State      *state.State
	Reporters  []PriceReporter
	Fabrics    MPCFabricFactory
	Circuit    MatchCircuit
	SigningKey *secp256k1.PrivateKey

	// Metrics is optional; a nil value disables attempt-outcome recording.
	Metrics *telemetry.Metrics
}

// Run executes one handshake attempt under HandshakeDeadline. Phase one
// agrees a price with the counterparty; phase two runs the MPC match and,
// once the circuit returns a result, unconditionally signs it and enqueues
// a SettleMatch task -- a completed match is never dropped on a later local
// error, since the counterparty has already observed the same result.
func (r *Runner) Run(ctx context.Context, a Attempt) (err error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeDeadline)
	defer cancel()
	defer func() {
		if err != nil {
			r.recordAttempt("failure")
		} else {
			r.recordAttempt("success")
		}
	}()

	local, err := medianReport(a.PairKey, r.Reporters, time.Now())
	if err != nil {
		return err
	}

	accept, counterPrice, err := a.Counterparty.ProposePrice(ctx, a.PairKey, local)
	if err != nil {
		return rerrors.MPC(fmt.Errorf("proposing price to counterparty: %w", err))
	}
	if !accept {
		return rerrors.MPC(fmt.Errorf("counterparty rejected price for pair"))
	}
	if _, err := agreePrice(a.PairKey, r.Reporters, counterPrice, time.Now()); err != nil {
		return err
	}

	remoteWitness, err := a.Counterparty.RemoteWitness(ctx, a.RemoteOrderID)
	if err != nil {
		return rerrors.MPC(fmt.Errorf("fetching counterparty witness: %w", err))
	}

	payload, err := runMatch(ctx, r.Fabrics, r.Circuit, a.RemoteOrderID.String(), a.Local, remoteWitness, r.SigningKey)
	if err != nil {
		return err
	}
	payload.LocalOrderID = a.LocalOrderID
	payload.RemoteOrderID = a.RemoteOrderID

	body, err := json.Marshal(payload)
	if err != nil {
		return rerrors.Serialization(fmt.Errorf("marshaling settle-match payload: %w", err))
	}
	_, err = r.State.AppendTask(state.TaskDescriptor{
		Kind:     state.TaskKindSettleMatch,
		WalletID: a.LocalWalletID,
		Payload:  body,
	})
	if err != nil {
		return rerrors.State(fmt.Errorf("enqueuing settle-match task: %w", err))
	}
	return nil
}

// recordAttempt is a no-op when the runner was built without a metrics
// bundle.
func (r *Runner) recordAttempt(outcome string) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.HandshakeAttempts.WithLabelValues(outcome).Inc()
}
