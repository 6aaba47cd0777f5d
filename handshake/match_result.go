package handshake

import "github.com/darkpool-labs/relayer/wallet"

// MatchResult is the output of a successfully executed match circuit: the
// economic terms both parties have collaboratively agreed settle their
// orders. Field order follows the order the opaque settlement-circuit
// statement type declares its witness in the original implementation
// (quote mint, base mint, then amounts, then direction) rather than the
// declaration order of either party's Order struct.
type MatchResult struct {
	QuoteMint   wallet.MintID
	BaseMint    wallet.MintID
	QuoteAmount uint64
	BaseAmount  uint64
	Direction   wallet.OrderSide
}

// MPCFabric is the opaque two-party MPC engine a handshake allocates fresh
// for itself and never shares with another handshake, per Non-goals -- the
// relayer does not implement the MPC protocol itself.
type MPCFabric interface {
	Close() error
}

// MatchCircuit is the opaque match-and-settle circuit statement, executed
// collaboratively by both parties' MPC fabrics.
type MatchCircuit interface {
	Execute(fabric MPCFabric, local, remote CircuitWitness) (MatchResult, error)
}

// CircuitWitness is one party's private input to the match circuit: their
// order and the wallet balance it draws from, allocated into the fabric as
// secret shares.
type CircuitWitness struct {
	Order   wallet.Order
	Balance wallet.Balance
}
