package handshake

import (
	"context"
	"testing"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/dcrec/secp256k1/v3/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/wallet"
)

func TestRunMatchSignsResult(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	result := MatchResult{QuoteAmount: 5, BaseAmount: 1, Direction: wallet.OrderSideBuy}
	circuit := fakeCircuit{result: result}
	fabric := &fakeFabric{}

	payload, err := runMatch(context.Background(), fakeFabricFactory{fabric: fabric}, circuit, "peer", CircuitWitness{}, CircuitWitness{}, priv)
	require.NoError(t, err)
	require.Equal(t, result, payload.Result)
	require.True(t, fabric.closed)

	digest := chainhash.HashB(matchDigestInput(result))
	sig, err := ecdsa.ParseDERSignature(payload.Signature)
	require.NoError(t, err)
	require.True(t, sig.Verify(digest, priv.PubKey()))
}

func TestRunMatchPropagatesCircuitError(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	_, err = runMatch(context.Background(), fakeFabricFactory{fabric: &fakeFabric{}}, failingCircuit{}, "peer", CircuitWitness{}, CircuitWitness{}, priv)
	require.Error(t, err)
}

type failingCircuit struct{}

func (failingCircuit) Execute(fabric MPCFabric, local, remote CircuitWitness) (MatchResult, error) {
	return MatchResult{}, assertErr
}

var assertErr = errTest("circuit failed")

type errTest string

func (e errTest) Error() string { return string(e) }
