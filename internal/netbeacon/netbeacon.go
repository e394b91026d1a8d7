// Package netbeacon implements the server's UDP broadcast beacon and the
// client's corresponding listener, the first half of the connection
// handshake (§4.4): before any TCP-like control channel exists, the server
// periodically shouts its presence on the local broadcast domain so a
// client on the same network can find it without manual configuration.
package netbeacon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/ipv4"
)

// DefaultPort is the UDP port the beacon broadcasts on and the listener
// binds to.
const DefaultPort = 9943

// Beacon is the payload broadcast once per tick: just enough for a client
// to recognize and display the streamer before attempting the handshake.
type Beacon struct {
	Hostname   string `json:"hostname"`
	ProtocolID uint32 `json:"protocol_id"`
}

// AnnouncerSocket periodically broadcasts a Beacon on the local subnet.
type AnnouncerSocket struct {
	conn   *net.UDPConn
	pconn  *ipv4.PacketConn
	addr   *net.UDPAddr
	beacon Beacon
}

// NewAnnouncerSocket opens a UDP broadcast socket and pins the hop limit to
// 1 — discovery is meant to stay on the local link, never routed.
func NewAnnouncerSocket(hostname string, protocolID uint32) (*AnnouncerSocket, error) {
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetTTL(1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("discovery: set ttl: %w", err)
	}

	return &AnnouncerSocket{
		conn:  conn,
		pconn: pconn,
		addr:  &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultPort},
		beacon: Beacon{
			Hostname:   hostname,
			ProtocolID: protocolID,
		},
	}, nil
}

// Broadcast sends one beacon datagram.
func (a *AnnouncerSocket) Broadcast() error {
	data, err := json.Marshal(a.beacon)
	if err != nil {
		return fmt.Errorf("discovery: marshal beacon: %w", err)
	}
	if _, err := a.conn.WriteToUDP(data, a.addr); err != nil {
		return fmt.Errorf("discovery: broadcast: %w", err)
	}
	return nil
}

// Close releases the underlying socket.
func (a *AnnouncerSocket) Close() error {
	return a.conn.Close()
}

// Listener listens for Beacon broadcasts from servers on the local subnet.
type Listener struct {
	conn *net.UDPConn
}

// NewListener binds DefaultPort to receive beacons.
func NewListener() (*Listener, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: DefaultPort})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}
	return &Listener{conn: conn}, nil
}

// Recv blocks up to timeout for one beacon, returning the beacon and the
// address it came from (the candidate server's IP).
func (l *Listener) Recv(timeout time.Duration) (Beacon, net.Addr, error) {
	buf := make([]byte, 4096)
	if timeout > 0 {
		l.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	n, addr, err := l.conn.ReadFrom(buf)
	if err != nil {
		return Beacon{}, nil, fmt.Errorf("discovery: recv: %w", err)
	}
	var b Beacon
	if err := json.Unmarshal(buf[:n], &b); err != nil {
		return Beacon{}, nil, fmt.Errorf("discovery: decode beacon: %w", err)
	}
	return b, addr, nil
}

// Close releases the underlying socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}
