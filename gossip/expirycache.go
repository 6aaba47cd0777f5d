package gossip

import (
	"sync"
	"time"
)

// expiryCache remembers when a peer was expired so it is not immediately
// re-admitted by another peer's heartbeat before the rest of the cluster
// has caught up to the expiry. Expiry is checked passively on read rather
// than by a background sweep -- entries simply age out of relevance, and a
// bounded size plus insertion-order eviction keeps the map from growing
// unboundedly in a long-lived node.
type expiryCache struct {
	mu       sync.Mutex
	expireAt map[PeerID]time.Time
	order    []PeerID
	maxSize  int
}

func newExpiryCache(maxSize int) *expiryCache {
	return &expiryCache{
		expireAt: make(map[PeerID]time.Time),
		maxSize:  maxSize,
	}
}

// MarkExpired records that peer was just expired.
func (c *expiryCache) MarkExpired(peer PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.expireAt[peer]; !exists {
		c.order = append(c.order, peer)
		for len(c.order) > c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.expireAt, oldest)
		}
	}
	c.expireAt[peer] = time.Now()
}

// Invisible reports whether peer is still within its invisibility window
// and should not be re-admitted. Once the window has elapsed the entry is
// dropped so the next check is a plain miss.
func (c *expiryCache) Invisible(peer PeerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredAt, ok := c.expireAt[peer]
	if !ok {
		return false
	}
	if time.Since(expiredAt) > ExpiryInvisibilityWindow {
		delete(c.expireAt, peer)
		return false
	}
	return true
}
