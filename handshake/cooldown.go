package handshake

import (
	"sync"
	"time"
)

// cooldownTracker records the last attempt time for each order pair so the
// scheduler can back off a pair that just failed instead of immediately
// retrying it every scheduling pass.
type cooldownTracker struct {
	mu   sync.Mutex
	last map[PairKey]time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{last: make(map[PairKey]time.Time)}
}

// Ready reports whether pair is outside its cooldown window as of now.
func (c *cooldownTracker) Ready(pair PairKey, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[pair]
	if !ok {
		return true
	}
	return now.Sub(last) >= CooldownWindow
}

// Record marks pair as attempted at now.
func (c *cooldownTracker) Record(pair PairKey, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[pair] = now
}
