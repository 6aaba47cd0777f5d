package network

import "sync"

// identifyBufferDepth bounds how many pre-identify pubsub messages a peer
// connection queues before the oldest is dropped -- same fixed-depth ring
// shape as handshake's per-exchange price cache (handshake/price.go).
const identifyBufferDepth = 64

// identifyBuffer queues inbound pubsub messages that arrive on a
// connection before its peer identify handshake completes, then hands them
// back in order once identify finishes. A connection that never completes
// identify simply drops its oldest queued messages past the buffer depth.
type identifyBuffer struct {
	mu         sync.Mutex
	buf        []interface{}
	identified bool
}

func newIdentifyBuffer() *identifyBuffer {
	return &identifyBuffer{}
}

// Queue records msg if identify has not yet completed, returning true if it
// was buffered (false means the caller should dispatch msg immediately).
func (b *identifyBuffer) Queue(msg interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.identified {
		return false
	}
	b.buf = append(b.buf, msg)
	if len(b.buf) > identifyBufferDepth {
		b.buf = b.buf[len(b.buf)-identifyBufferDepth:]
	}
	return true
}

// Identify marks the connection identified and returns every message
// queued up to this point, in arrival order. Subsequent Queue calls return
// false and the caller dispatches directly.
func (b *identifyBuffer) Identify() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identified = true
	out := b.buf
	b.buf = nil
	return out
}
