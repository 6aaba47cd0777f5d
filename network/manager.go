// Package network is the thin shim between the gossip server's abstract
// Outbound/Dispatch surface and actual peer connections: connmgr drives
// outbound dial/retry and inbound accept bookkeeping, addrmgr tracks which
// peer addresses are known and how well-behaved they've been, and Manager
// itself frames gossip messages onto the right connection and feeds
// decoded inbound messages back into gossip.Server.Dispatch.
package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/decred/dcrd/addrmgr/v2"
	"github.com/decred/dcrd/connmgr"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/decred/dcrd/wire"

	"github.com/darkpool-labs/relayer/gossip"
	"github.com/darkpool-labs/relayer/rerrors"
)

// retryDuration matches the teacher's outbound reconnect backoff for a
// peer connection that has dropped.
const retryDuration = 5 * time.Second

// Dialer opens a transport connection to addr. The concrete transport
// (plain TCP, a multiplexed stream, TLS) is left to the caller; Manager
// only needs a net.Conn it can frame WriteFrame/ReadFrame calls over.
type Dialer func(addr net.Addr) (net.Conn, error)

// Config configures a Manager.
type Config struct {
	DataDir        string
	Dial           Dialer
	TargetOutbound uint32
	SignKey        *secp256k1.PrivateKey
	VerifyKey      *secp256k1.PublicKey
}

// Manager drains a gossip.Server's Outbound channel, dials or reuses a
// connection per destination peer, and frames each message over it.
// Inbound connections hand decoded frames to Dispatch via Serve.
type Manager struct {
	gossip    *gossip.Server
	bus       *Bus
	signKey   *secp256k1.PrivateKey
	verifyKey *secp256k1.PublicKey

	connMgr *connmgr.ConnManager
	addrMgr *addrmgr.AddrManager

	mu       sync.Mutex
	conns    map[gossip.PeerID]net.Conn
	identify map[gossip.PeerID]*identifyBuffer
}

// New wires a Manager around g, bringing up its own connmgr/addrmgr
// instances. Start must be called before any traffic flows.
func New(g *gossip.Server, bus *Bus, cfg Config) (*Manager, error) {
	m := &Manager{
		gossip:    g,
		bus:       bus,
		signKey:   cfg.SignKey,
		verifyKey: cfg.VerifyKey,
		addrMgr:   addrmgr.New(cfg.DataDir, net.LookupIP),
		conns:     make(map[gossip.PeerID]net.Conn),
		identify:  make(map[gossip.PeerID]*identifyBuffer),
	}

	dial := cfg.Dial
	if dial == nil {
		dial = func(addr net.Addr) (net.Conn, error) {
			return net.Dial(addr.Network(), addr.String())
		}
	}

	cm, err := connmgr.New(&connmgr.Config{
		TargetOutbound: cfg.TargetOutbound,
		RetryDuration:  retryDuration,
		Dial:           dial,
		OnConnection:   m.onOutboundConnection,
		OnDisconnection: func(c *connmgr.ConnReq) {
			m.onDisconnection(c.Addr())
		},
		GetNewAddress: m.getNewAddress,
	})
	if err != nil {
		return nil, rerrors.Config(fmt.Errorf("constructing connection manager: %w", err))
	}
	m.connMgr = cm
	return m, nil
}

// Start launches the connection manager, the address manager, and the
// outbound-drain loop.
func (m *Manager) Start() {
	m.addrMgr.Start()
	m.connMgr.Start()
	go m.drainOutbound()
}

// Stop tears everything down.
func (m *Manager) Stop() {
	m.connMgr.Stop()
	m.addrMgr.Stop() //nolint:errcheck
}

// AddAddress registers a peer's dialable address, learned via gossip (e.g.
// Control.NewAddr), so future GetNewAddress calls can offer it.
func (m *Manager) AddAddress(peer gossip.PeerID, addr string) {
	netAddr, err := newNetAddress(addr)
	if err != nil {
		log.Warnf("ignoring unparseable address %q for peer %s: %v", addr, peer, err)
		return
	}
	m.addrMgr.AddAddress(netAddr, netAddr)
}

func (m *Manager) getNewAddress() (net.Addr, error) {
	ka := m.addrMgr.GetAddress()
	if ka == nil {
		return nil, fmt.Errorf("no known addresses to dial")
	}
	na := ka.NetAddress()
	return &net.TCPAddr{IP: na.IP, Port: int(na.Port)}, nil
}

func (m *Manager) onOutboundConnection(c *connmgr.ConnReq, conn net.Conn) {
	m.addrMgr.Attempt(mustNetAddress(c.Addr()))
	m.serveConn("", conn)
}

func (m *Manager) onDisconnection(addr net.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.conns {
		if conn.RemoteAddr().String() == addr.String() {
			delete(m.conns, id)
			delete(m.identify, id)
			return
		}
	}
}

// drainOutbound feeds the gossip server's Outbound channel into framed
// writes on the right connection, or into the pubsub bus for broadcast
// messages.
func (m *Manager) drainOutbound() {
	for out := range m.gossip.Outbound() {
		switch o := out.(type) {
		case gossip.Request:
			m.send(o.PeerID, o.Message)
		case gossip.Response:
			m.send(o.PeerID, o.Message)
		case gossip.Pubsub:
			m.bus.Publish(Topic(o.Topic), o.Message)
		case gossip.Control:
			if o.NewAddr != nil {
				m.AddAddress(o.NewAddr.PeerID, o.NewAddr.Addr)
			}
		}
	}
}

func (m *Manager) send(peer gossip.PeerID, msg interface{}) {
	m.mu.Lock()
	conn, ok := m.conns[peer]
	m.mu.Unlock()
	if !ok {
		log.Warnf("no open connection to peer %s, dropping message", peer)
		return
	}
	if err := WriteFrame(conn, msg, m.signKey); err != nil {
		log.Errorf("writing frame to peer %s: %v", peer, err)
	}
}

// Serve runs the inbound read loop for an accepted connection until it
// errors or ctx is done, dispatching every decoded frame to the gossip
// server. With a non-empty peer the connection is registered for outbound
// sends; with an empty peer it is not registered, no peer id is learned
// from its frames, the identify buffer is not used, and every frame is
// dispatched with an empty sender.
func (m *Manager) Serve(ctx context.Context, peer gossip.PeerID, conn net.Conn) error {
	m.serveConn(peer, conn)
	<-ctx.Done()
	return ctx.Err()
}

func (m *Manager) serveConn(peer gossip.PeerID, conn net.Conn) {
	if peer != "" {
		m.mu.Lock()
		m.conns[peer] = conn
		m.identify[peer] = newIdentifyBuffer()
		m.mu.Unlock()
	}

	go func() {
		for {
			msg, err := ReadFrame(conn, m.verifyKey)
			if err != nil {
				log.Errorf("reading frame from %s: %v", peer, err)
				conn.Close() //nolint:errcheck
				return
			}
			if err := m.gossip.Dispatch(peer, msg); err != nil {
				log.Warnf("dispatching message from %s: %v", peer, err)
			}
		}
	}()
}

func newNetAddress(addr string) (*wire.NetAddress, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip %q", host)
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", port, err)
	}
	return wire.NewNetAddressIPPort(ip, uint16(p), 0), nil
}

func mustNetAddress(addr net.Addr) *wire.NetAddress {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return wire.NewNetAddressIPPort(net.IPv4zero, 0, 0)
	}
	return wire.NewNetAddressIPPort(tcp.IP, uint16(tcp.Port), 0)
}
