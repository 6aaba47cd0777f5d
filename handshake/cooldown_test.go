package handshake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCooldownTrackerReadyByDefault(t *testing.T) {
	c := newCooldownTracker()
	require.True(t, c.Ready(PairKey{}, time.Now()))
}

func TestCooldownTrackerNotReadyImmediatelyAfterRecord(t *testing.T) {
	c := newCooldownTracker()
	now := time.Now()
	c.Record(PairKey{}, now)
	require.False(t, c.Ready(PairKey{}, now.Add(CooldownWindow/2)))
}

func TestCooldownTrackerReadyAfterWindowElapses(t *testing.T) {
	c := newCooldownTracker()
	now := time.Now()
	c.Record(PairKey{}, now)
	require.True(t, c.Ready(PairKey{}, now.Add(CooldownWindow)))
}
