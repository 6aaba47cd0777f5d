package wallet

// MaxProofStaleness is the number of Merkle root advances a wallet's
// cached commitment proof is allowed to lag behind the contract's current
// root before the relayer insists on fetching a fresh one. The original
// hard-codes this decision to "always refresh"; a relayer that refreshed
// on every task would waste a round trip to the chain client on every
// settlement, so this module tracks an actual staleness counter instead
// and only refreshes once it crosses this threshold.
const MaxProofStaleness = 10
