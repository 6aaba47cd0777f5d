package gossip

// Outbound is a message the gossip server hands to the network manager for
// delivery. A small closed set of concrete kinds rather than one big
// interface with many methods -- mirrors the teacher's lnwire message
// family, where each wire message is its own type and the transport layer
// only needs to know how to frame and route them.
type Outbound interface {
	isOutbound()
}

// Request is a point-to-point message expecting a response.
type Request struct {
	PeerID  PeerID
	Message interface{}
}

func (Request) isOutbound() {}

// Response is a point-to-point reply to a Request.
type Response struct {
	PeerID  PeerID
	Message interface{}
}

func (Response) isOutbound() {}

// Pubsub is a message broadcast to every subscriber of a topic.
type Pubsub struct {
	Topic   string
	Message interface{}
}

func (Pubsub) isOutbound() {}

// Control is a directive to the network manager itself, not carried over
// the wire -- e.g. registering a newly discovered peer's address.
type Control struct {
	NewAddr *NewAddrControl
}

func (Control) isOutbound() {}

// NewAddrControl asks the network manager to register peer's address so it
// becomes dialable on future outbound connections.
type NewAddrControl struct {
	PeerID PeerID
	Addr   string
}

const (
	// TopicOrderBook is the global order-dissemination pubsub topic.
	TopicOrderBook = "order-book"
	// TopicClusterPrefix is prefixed with a cluster id for
	// cluster-management pubsub topics.
	TopicClusterPrefix = "cluster-"
)
