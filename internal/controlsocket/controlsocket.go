// Package controlsocket implements the TCP-like control channel half of the
// handshake (spec §4.4), realized as a websocket connection: a request/
// response pair for the initial handshake (ConnectionAccepted /
// StreamConfigPacket / StartStream), then Split into an independent
// sender/receiver pair for the life of the session.
package controlsocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nestvr/corestream/internal/connerr"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20

	// DiscoveryRetryPause is the discovery-phase timing constant (spec
	// §4.4/§9); nothing in this package uses it, and the client pipeline
	// uses its own copy as the wait for each discovery beacon.
	DiscoveryRetryPause = 500 * time.Millisecond
	// HandshakeActionTimeout bounds each individual handshake send/recv.
	HandshakeActionTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProtoControlSocket is the pre-split handshake socket.
type ProtoControlSocket struct {
	conn *websocket.Conn
}

// DialToServer attempts a single websocket dial to url, bounded by timeout.
// The client pipeline dials once per connection attempt with
// HandshakeActionTimeout; a failed dial ends that attempt.
func DialToServer(url string, timeout time.Duration) (*ProtoControlSocket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, connerr.TryAgain(fmt.Errorf("controlsocket: dial: %w", err))
	}
	conn.SetReadLimit(maxMessageSize)
	return &ProtoControlSocket{conn: conn}, nil
}

// AcceptFromClient upgrades an incoming HTTP request to the control socket,
// the server-side half of DialToServer.
func AcceptFromClient(w http.ResponseWriter, r *http.Request) (*ProtoControlSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, connerr.Other(fmt.Errorf("controlsocket: upgrade: %w", err))
	}
	conn.SetReadLimit(maxMessageSize)
	return &ProtoControlSocket{conn: conn}, nil
}

// Send encodes v as JSON and writes it as one text frame.
func (p *ProtoControlSocket) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return connerr.Other(fmt.Errorf("controlsocket: marshal: %w", err))
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return connerr.Other(fmt.Errorf("controlsocket: write: %w", err))
	}
	return nil
}

// Recv reads one text frame within timeout and decodes it into v.
func (p *ProtoControlSocket) Recv(v any, timeout time.Duration) error {
	p.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return connerr.TryAgain(err)
		}
		return connerr.Other(fmt.Errorf("controlsocket: read: %w", err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return connerr.Other(fmt.Errorf("controlsocket: decode: %w", err))
	}
	return nil
}

// Close closes the underlying connection without the normal-closure
// handshake (used when splitting raises it to Sender/Receiver ownership).
func (p *ProtoControlSocket) Close() error {
	return p.conn.Close()
}

// Split divides the socket into an independent Sender and Receiver, each
// safe to use from its own goroutine. recvTimeout is the default read
// deadline the Receiver applies to every Recv call.
func (p *ProtoControlSocket) Split(recvTimeout time.Duration) (*Sender, *Receiver) {
	return &Sender{conn: p.conn}, &Receiver{conn: p.conn, timeout: recvTimeout}
}

// Sender is the write half of a split control socket.
type Sender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send encodes v as JSON and writes it, serialized against concurrent callers.
func (s *Sender) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return connerr.Other(fmt.Errorf("controlsocket: marshal: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return connerr.Other(fmt.Errorf("controlsocket: write: %w", err))
	}
	return nil
}

// Close sends a normal-closure frame and closes the socket.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return s.conn.Close()
}

// Receiver is the read half of a split control socket.
type Receiver struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// RecvRaw reads one frame's raw JSON bytes, applying the Receiver's default
// timeout. A timed-out read surfaces as connerr.TryAgain so callers can
// loop rather than treat it as a disconnect.
func (r *Receiver) RecvRaw() ([]byte, error) {
	r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	_, data, err := r.conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil, connerr.TryAgain(err)
		}
		return nil, connerr.Other(fmt.Errorf("controlsocket: read: %w", err))
	}
	return data, nil
}
