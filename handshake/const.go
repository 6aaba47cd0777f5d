// Package handshake runs the two-phase price-agreement and MPC match
// pipeline between this relayer and a counterparty over a verified order
// pair, handing the resulting match to a SettleMatch task proposal.
package handshake

import "time"

const (
	// HandshakeDeadline bounds an entire handshake attempt, price agreement
	// and MPC match together.
	HandshakeDeadline = 20 * time.Second

	// PriceStalenessWindow is how old a price report may be before a
	// handshake aborts rather than trusting it.
	PriceStalenessWindow = 5 * time.Second

	// PriceToleranceBps is the maximum deviation, in basis points, tolerated
	// between the local and counterparty price quotes before aborting.
	PriceToleranceBps = 50

	// ExecutorPoolSize is the number of goroutines concurrently running
	// handshake attempts.
	ExecutorPoolSize = 8

	// CooldownWindow is the minimum spacing between two handshake attempts
	// over the same order pair.
	CooldownWindow = 10 * time.Second
)
