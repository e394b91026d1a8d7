// Package streamsocket implements the single-datagram-transport stream
// multiplexer (spec §4.5): one net.PacketConn carries every stream (video,
// game audio, haptics, tracking, statistics), demultiplexed by a leading
// stream-id byte in each datagram. Each subscribed stream gets its own
// bounded channel so a slow consumer backpressures only its own stream, not
// the others sharing the socket.
package streamsocket

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"github.com/nestvr/corestream/internal/connerr"
)

// Stream IDs, one per logical channel carried over the shared socket.
const (
	Video = iota + 1
	Audio
	MicAudio
	Haptics
	Tracking
	Statistics
)

// MaxUnreadPackets bounds each stream's receive channel (spec §4.4/§9).
const MaxUnreadPackets = 10

// Envelope pairs a typed header with an opaque payload — used for streams
// that carry header metadata alongside raw bytes (video NAL shards,
// haptics pulses), and with a zero-length Payload for pure control-style
// messages (tracking, statistics).
type Envelope[T any] struct {
	Header  T
	Payload []byte
}

type rawPacket struct {
	streamID byte
	data     []byte
}

// StreamSocket multiplexes one UDP socket into per-stream channels.
type StreamSocket struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	peer  *net.UDPAddr

	subscriptions map[byte]chan rawPacket
	closeCh       chan struct{}
}

// Listen opens a UDP socket on localPort and sets the DSCP (TOS) codepoint
// used to prioritize this traffic where the network path honors it.
func Listen(localPort int, dscp int) (*StreamSocket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("streamsocket: listen: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if dscp > 0 {
		// DSCP occupies the top 6 bits of the TOS byte.
		if err := pconn.SetTOS(dscp << 2); err != nil {
			conn.Close()
			return nil, fmt.Errorf("streamsocket: set dscp: %w", err)
		}
	}

	s := &StreamSocket{
		conn:          conn,
		pconn:         pconn,
		subscriptions: make(map[byte]chan rawPacket),
		closeCh:       make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

// Connect fixes the peer this socket exchanges datagrams with (set once the
// handshake has established which address is the other side).
func (s *StreamSocket) Connect(peer *net.UDPAddr) {
	s.peer = peer
}

func (s *StreamSocket) readPump() {
	buf := make([]byte, 65535)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				continue
			}
		}
		if n < 1 {
			continue
		}
		if s.peer == nil {
			s.peer = addr
		}

		id := buf[0]
		payload := make([]byte, n-1)
		copy(payload, buf[1:n])

		ch, ok := s.subscriptions[id]
		if !ok {
			continue
		}
		select {
		case ch <- rawPacket{streamID: id, data: payload}:
		default:
			// Stream is backed up past MaxUnreadPackets; drop the newest
			// packet rather than block the shared read pump.
		}
	}
}

// Close stops the read pump and releases the socket.
func (s *StreamSocket) Close() error {
	close(s.closeCh)
	return s.conn.Close()
}

// Receiver reads typed envelopes off one subscribed stream.
type Receiver[T any] struct {
	ch chan rawPacket
	id uuid.UUID
}

// ID uniquely identifies this subscriber registration, for correlating log
// lines across a stream's lifetime independent of the Go channel identity.
func (r *Receiver[T]) ID() uuid.UUID { return r.id }

// Subscribe registers streamID for receiving and returns a typed Receiver
// for it, bounded to MaxUnreadPackets in-flight packets.
func Subscribe[T any](s *StreamSocket, streamID byte) *Receiver[T] {
	ch := make(chan rawPacket, MaxUnreadPackets)
	s.subscriptions[streamID] = ch
	return &Receiver[T]{ch: ch, id: uuid.New()}
}

// Recv blocks up to timeout for the next envelope on this stream. A timeout
// surfaces as connerr.TryAgain so the caller's receive loop can simply
// continue rather than treat it as a disconnect.
func (r *Receiver[T]) Recv(timeout time.Duration) (Envelope[T], error) {
	select {
	case pkt := <-r.ch:
		var env Envelope[T]
		if err := json.Unmarshal(pkt.data, &env); err != nil {
			return Envelope[T]{}, connerr.Other(fmt.Errorf("streamsocket: decode envelope: %w", err))
		}
		return env, nil
	case <-time.After(timeout):
		return Envelope[T]{}, connerr.TryAgain(fmt.Errorf("streamsocket: recv timeout"))
	}
}

// Sender writes typed envelopes to one stream on the shared socket.
type Sender[T any] struct {
	socket   *StreamSocket
	streamID byte
}

// RequestStream returns a Sender for streamID, writing to whatever peer the
// socket has (or has since learned from an inbound datagram).
func RequestStream[T any](s *StreamSocket, streamID byte) *Sender[T] {
	return &Sender[T]{socket: s, streamID: streamID}
}

// Send encodes header/payload as one envelope and writes it, prefixed with
// the stream ID byte, to the current peer.
func (snd *Sender[T]) Send(header T, payload []byte) error {
	if snd.socket.peer == nil {
		return connerr.Other(fmt.Errorf("streamsocket: no peer established"))
	}
	data, err := json.Marshal(Envelope[T]{Header: header, Payload: payload})
	if err != nil {
		return connerr.Other(fmt.Errorf("streamsocket: marshal envelope: %w", err))
	}
	buf := make([]byte, 1+len(data))
	buf[0] = snd.streamID
	copy(buf[1:], data)

	if _, err := snd.socket.conn.WriteToUDP(buf, snd.socket.peer); err != nil {
		return connerr.Other(fmt.Errorf("streamsocket: write: %w", err))
	}
	return nil
}
