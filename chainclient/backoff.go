package chainclient

import (
	"context"
	"errors"
	"time"

	"github.com/darkpool-labs/relayer/rerrors"
)

// ErrTxDropped is returned by AwaitFinality when a submitted transaction is
// evicted from the mempool before it confirms. It is wrapped as a retryable
// chain error; the task runners return it as is, and the task driver then
// records the task as failed rather than resubmitting.
var ErrTxDropped = errors.New("transaction dropped from mempool")

// pollInterval is the starting poll period for a finality wait, matching
// the target chain's block time (BLOCK_POLLING_INTERVAL_MS in the
// darkpool client this is grounded on).
const pollInterval = 100 * time.Millisecond

// maxPollInterval caps the exponential backoff so a long confirmation wait
// doesn't end up polling once a minute.
const maxPollInterval = 7 * time.Second

// maxPollAttempts bounds how long AwaitFinality will wait before giving up
// and surfacing a retryable chain error to the caller.
const maxPollAttempts = 30

// AwaitFinality polls check at an exponentially growing interval (capped at
// maxPollInterval) until it reports confirmed, mined is false with no error
// (the transaction was dropped), or maxPollAttempts is exceeded.
func AwaitFinality(ctx context.Context, check func(ctx context.Context) (confirmed bool, mined bool, err error)) error {
	interval := pollInterval
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		confirmed, mined, err := check(ctx)
		if err != nil {
			return rerrors.Chain(err, true)
		}
		if confirmed {
			return nil
		}
		if !mined {
			return rerrors.Chain(ErrTxDropped, true)
		}

		select {
		case <-ctx.Done():
			return rerrors.Chain(ctx.Err(), true)
		case <-time.After(interval):
		}
		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
	return rerrors.Chain(errors.New("finality wait exceeded max attempts"), true)
}
