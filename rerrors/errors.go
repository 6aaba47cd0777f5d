// Package rerrors defines the relayer's error taxonomy. Every subsystem
// wraps failures in one of these kinds so the task driver and the gossip
// server can decide retry/fail/compensate without inspecting error strings.
package rerrors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies an error by the taxonomy in the design doc.
type Kind int

const (
	// KindConfig covers missing or invalid configuration. Fatal at boot.
	KindConfig Kind = iota
	// KindChain covers RPC failure, dropped/missing tx, bad selector,
	// blinder-not-found. Retried with bounded backoff.
	KindChain
	// KindSerialization covers calldata mis-encoding and length mismatches.
	// Fatal to the current operation.
	KindSerialization
	// KindGossip covers send failure, parse error, bad signature.
	// Non-fatal; the offending message is dropped.
	KindGossip
	// KindState covers missing entries, proposal rejection, replication lag.
	KindState
	// KindProof covers validity/settlement proof verification failure.
	KindProof
	// KindMPC covers peer aborts, timeouts, inconsistent shares.
	KindMPC
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindChain:
		return "chain"
	case KindSerialization:
		return "serialization"
	case KindGossip:
		return "gossip"
	case KindState:
		return "state"
	case KindProof:
		return "proof"
	case KindMPC:
		return "mpc"
	default:
		return "unknown"
	}
}

// Error is the relayer's wrapped error type. It carries a Kind so callers
// can branch on taxonomy rather than string-matching, and a stack-carrying
// cause produced via go-errors for diagnosability.
type Error struct {
	Kind  Kind
	Cause error

	// Retryable marks a KindChain error as safe to retry with backoff.
	Retryable bool
	// Demerit marks a KindGossip error as grounds for quarantining the
	// sender briefly.
	Demerit bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// wrap attaches a stack trace to cause if it doesn't already carry one.
func wrap(cause error) error {
	if cause == nil {
		return nil
	}
	if _, ok := cause.(*goerrors.Error); ok {
		return cause
	}
	return goerrors.Wrap(cause, 1)
}

// Config builds a fatal configuration error.
func Config(cause error) *Error {
	return &Error{Kind: KindConfig, Cause: wrap(cause)}
}

// Chain builds a chain-interaction error, optionally retryable.
func Chain(cause error, retryable bool) *Error {
	return &Error{Kind: KindChain, Cause: wrap(cause), Retryable: retryable}
}

// Serialization builds a fatal-to-the-operation serialization error.
func Serialization(cause error) *Error {
	return &Error{Kind: KindSerialization, Cause: wrap(cause)}
}

// Gossip builds a non-fatal gossip error, optionally demeriting the sender.
func Gossip(cause error, demerit bool) *Error {
	return &Error{Kind: KindGossip, Cause: wrap(cause), Demerit: demerit}
}

// State builds a state-layer error surfaced via a proposal waiter.
func State(cause error) *Error {
	return &Error{Kind: KindState, Cause: wrap(cause)}
}

// Proof builds a proof-verification error; the caller aborts the order or
// handshake and may quarantine the sender.
func Proof(cause error) *Error {
	return &Error{Kind: KindProof, Cause: wrap(cause)}
}

// MPC builds an MPC-layer error; the caller aborts the handshake with no
// on-chain effect.
func MPC(cause error) *Error {
	return &Error{Kind: KindMPC, Cause: wrap(cause)}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
