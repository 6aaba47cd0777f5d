package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiryCacheInvisibleWithinWindow(t *testing.T) {
	c := newExpiryCache(10)
	c.MarkExpired("peer-a")
	require.True(t, c.Invisible("peer-a"))
	require.False(t, c.Invisible("peer-b"))
}

func TestExpiryCacheVisibleAfterWindow(t *testing.T) {
	c := newExpiryCache(10)
	c.mu.Lock()
	c.expireAt["peer-a"] = time.Now().Add(-2 * ExpiryInvisibilityWindow)
	c.order = append(c.order, "peer-a")
	c.mu.Unlock()

	require.False(t, c.Invisible("peer-a"))
}

func TestExpiryCacheEvictsOldestBeyondMaxSize(t *testing.T) {
	c := newExpiryCache(2)
	c.MarkExpired("peer-a")
	c.MarkExpired("peer-b")
	c.MarkExpired("peer-c")

	require.False(t, c.Invisible("peer-a"))
	require.True(t, c.Invisible("peer-b"))
	require.True(t, c.Invisible("peer-c"))
}
