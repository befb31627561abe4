package network

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// readDeadline bounds how long a Peer will wait for the next line before
// giving up on a stalled connection.
const readDeadline = 60 * time.Second

// DecodeError wraps a failure to parse a received message line. Unlike a
// socket error, it does not mean the connection is unhealthy: per the wire
// protocol's failure semantics, malformed JSON drops the line and the
// session continues.
type DecodeError struct {
	err error
}

func (e *DecodeError) Error() string { return "decode message: " + e.err.Error() }
func (e *DecodeError) Unwrap() error { return e.err }

// Peer represents a connected remote node. Wire messages are newline-framed
// JSON: one Message per line, no length prefix. This mirrors the reference
// node's BufReader/read_line framing so implementations interoperate
// byte-for-byte on the wire.
type Peer struct {
	ID   string
	Addr string

	conn   net.Conn
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool
}

// NewPeer wraps an established TCP connection as a Peer.
func NewPeer(id, addr string, conn net.Conn) *Peer {
	return &Peer{ID: id, Addr: addr, conn: conn, reader: bufio.NewReader(conn)}
}

// Connect dials the remote address and returns a connected Peer. If tlsCfg
// is non-nil the connection is established over TLS.
func Connect(id, addr string, tlsCfg *tls.Config) (*Peer, error) {
	var conn net.Conn
	var err error
	if tlsCfg != nil {
		conn, err = tls.Dial("tcp", addr, tlsCfg)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewPeer(id, addr, conn), nil
}

// Send writes one JSON-encoded Message followed by "\n".
func (p *Peer) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("peer %s closed", p.ID)
	}
	data = append(data, '\n')
	_, err = p.conn.Write(data)
	return err
}

// Receive reads and decodes the next newline-terminated message line. A
// malformed line is reported as a *DecodeError so the caller can drop it
// and keep reading instead of tearing down the session; any other error is
// a real I/O failure (EOF, reset, deadline) and ends the session.
func (p *Peer) Receive() (Message, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(readDeadline))
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return Message{}, &DecodeError{err: fmt.Errorf("from %s: %w", p.ID, err)}
	}
	return msg, nil
}

// Close terminates the peer connection.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.conn.Close()
	}
}
