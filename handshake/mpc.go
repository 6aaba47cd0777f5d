package handshake

import (
	"context"
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/dcrec/secp256k1/v3/ecdsa"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

// MPCFabricFactory allocates a fresh two-party MPC fabric for one
// handshake. Never reused across handshakes -- each call must hand back an
// engine with no state carried over from a prior match.
type MPCFabricFactory interface {
	New(ctx context.Context, counterparty string) (MPCFabric, error)
}

// SettleMatchPayload is the JSON payload a SettleMatch task descriptor
// carries: the agreed match terms plus this node's signature attesting to
// them, submitted on-chain by the task driver.
type SettleMatchPayload struct {
	LocalOrderID  wallet.OrderID
	RemoteOrderID wallet.OrderID
	Result        MatchResult
	Signature     []byte
}

// runMatch allocates a fresh MPC fabric, executes circuit against the two
// parties' witnesses, and signs the resulting match terms under signingKey.
// Once the circuit returns a result the signature step runs unconditionally
// -- a completed MPC proof is never discarded even if some later local step
// fails, mirroring the "once broadcast, never silently drop" stance the
// task driver's settlement step follows for on-chain submission.
func runMatch(
	ctx context.Context,
	fabrics MPCFabricFactory,
	circuit MatchCircuit,
	counterparty string,
	local, remote CircuitWitness,
	signingKey *secp256k1.PrivateKey,
) (SettleMatchPayload, error) {
	fabric, err := fabrics.New(ctx, counterparty)
	if err != nil {
		return SettleMatchPayload{}, rerrors.MPC(fmt.Errorf("allocating mpc fabric: %w", err))
	}
	defer fabric.Close() //nolint:errcheck

	result, err := circuit.Execute(fabric, local, remote)
	if err != nil {
		return SettleMatchPayload{}, rerrors.MPC(fmt.Errorf("executing match circuit: %w", err))
	}

	digest := chainhash.HashB(matchDigestInput(result))
	sig := ecdsa.Sign(signingKey, digest)

	return SettleMatchPayload{Result: result, Signature: sig.Serialize()}, nil
}

// matchDigestInput serializes the fields of a match result into the bytes
// the settlement signature commits to.
func matchDigestInput(r MatchResult) []byte {
	buf := make([]byte, 0, 2*len(r.QuoteMint)+8+8+1)
	buf = append(buf, r.QuoteMint[:]...)
	buf = append(buf, r.BaseMint[:]...)
	buf = appendUint64(buf, r.QuoteAmount)
	buf = appendUint64(buf, r.BaseAmount)
	buf = append(buf, byte(r.Direction))
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}
