package network

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// DefaultMaxPeers is the default limit on simultaneous peer connections.
const DefaultMaxPeers = 50

// Node listens for incoming peers, dials bootstrap nodes, and fans every
// accepted message out to a Dispatcher for handling.
type Node struct {
	nodeID     string
	listenAddr string
	tlsConfig  *tls.Config // nil → plain TCP
	maxPeers   int

	broadcaster *Broadcaster
	dispatch    Dispatcher

	mu    sync.RWMutex
	peers map[string]*Peer

	listener net.Listener
	stopCh   chan struct{}
}

// NewNode creates a Node that will listen on listenAddr. If tlsCfg is
// non-nil the listener and outgoing connections use TLS.
func NewNode(nodeID, listenAddr string, tlsCfg *tls.Config) *Node {
	return &Node{
		nodeID:      nodeID,
		listenAddr:  listenAddr,
		tlsConfig:   tlsCfg,
		maxPeers:    DefaultMaxPeers,
		broadcaster: NewBroadcaster(),
		peers:       make(map[string]*Peer),
		stopCh:      make(chan struct{}),
	}
}

// SetDispatcher installs the handler table used for every inbound message.
// Must be called before Start.
func (n *Node) SetDispatcher(d Dispatcher) {
	n.dispatch = d
}

// Broadcaster returns the node's outbound gossip hub, for components that
// need to publish messages to every connected peer.
func (n *Node) Broadcaster() *Broadcaster {
	return n.broadcaster
}

// Start begins accepting connections.
func (n *Node) Start() error {
	var ln net.Listener
	var err error
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.listenAddr)
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.listenAddr, err)
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts down the node and every peer session. Calling it again is a
// no-op.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.stopCh:
		return
	default:
	}
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
	for _, p := range n.peers {
		p.Close()
	}
}

// Dial connects to a bootstrap peer address and starts its session.
func (n *Node) Dial(addr string) error {
	peer, err := Connect(addr, addr, n.tlsConfig)
	if err != nil {
		return err
	}
	n.registerPeer(peer)
	return nil
}

// ListenAddr returns the address the node is actually bound to. Useful when
// listenAddr was given as "host:0" and the OS picked the port.
func (n *Node) ListenAddr() string {
	if n.listener != nil {
		return n.listener.Addr().String()
	}
	return n.listenAddr
}

// PeerCount returns the number of currently connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Broadcast publishes msg to every connected peer's outbound queue.
func (n *Node) Broadcast(msg Message) {
	n.broadcaster.Publish(msg)
}

// registerPeer adds peer to the registry and starts its read/write loops.
// Transactions are submitted locally via RPC and are not themselves
// rebroadcast peer-to-peer; only consensus messages flow over Broadcast.
func (n *Node) registerPeer(peer *Peer) {
	n.mu.Lock()
	n.peers[peer.ID] = peer
	n.mu.Unlock()

	sub, subID := n.broadcaster.Subscribe()
	go n.writeLoop(peer, sub)
	go n.readLoop(peer, subID)
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				log.Printf("[network] accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		peerCount := len(n.peers)
		n.mu.RUnlock()
		if peerCount >= n.maxPeers {
			log.Printf("[network] max peers (%d) reached, rejecting %s", n.maxPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}
		peer := NewPeer(conn.RemoteAddr().String(), conn.RemoteAddr().String(), conn)
		n.registerPeer(peer)
	}
}

// writeLoop drains a peer's broadcast subscription onto the wire.
func (n *Node) writeLoop(peer *Peer, sub <-chan Message) {
	for msg := range sub {
		if err := peer.Send(msg); err != nil {
			log.Printf("[network] send to %s: %v", peer.ID, err)
			peer.Close()
			return
		}
	}
}

// readLoop pulls messages off the wire and hands them to the dispatcher. It
// also sends the initial Status handshake, per the protocol's convention
// that both sides announce their tip height immediately on connect.
func (n *Node) readLoop(peer *Peer, subID int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[network] readLoop panic from %s: %v", peer.ID, r)
		}
		peer.Close()
		n.broadcaster.Unsubscribe(subID)
		n.mu.Lock()
		delete(n.peers, peer.ID)
		n.mu.Unlock()
	}()

	if n.dispatch != nil {
		n.dispatch.Greet(peer)
	}

	for {
		msg, err := peer.Receive()
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				log.Printf("[network] malformed message from %s: %v", peer.ID, err)
				continue
			}
			return
		}
		if n.dispatch != nil {
			n.dispatch.Handle(peer, msg)
		}
	}
}
