// Package events defines the small set of notifications the connection
// lifecycle raises for the host application to consume — HUD text updates,
// stream start/stop, and inbound haptics — mirroring the original client's
// ClientCoreEvent queue.
package events

import (
	"time"

	"github.com/nestvr/corestream/internal/negconfig"
)

// Event is the common interface every event type satisfies, purely so a
// host application can type-switch on whatever it receives from the queue.
type Event interface {
	isEvent()
}

// UpdateHudMessage asks the host to display message to the user — the
// connection lifecycle's only way to surface status/errors before a
// stream exists.
type UpdateHudMessage struct {
	Message string
}

func (UpdateHudMessage) isEvent() {}

// StreamingStarted fires once the handshake completes and streaming
// begins, carrying the negotiated display/audio parameters.
type StreamingStarted struct {
	Negotiated negconfig.NegotiatedConfig
}

func (StreamingStarted) isEvent() {}

// StreamingStopped fires when the session ends, for any reason.
type StreamingStopped struct {
	Reason string
}

func (StreamingStopped) isEvent() {}

// Haptics fires when a haptic pulse arrives for the host to actuate.
type Haptics struct {
	DeviceID  uint64
	Duration  time.Duration
	Frequency float32
	Amplitude float32
}

func (Haptics) isEvent() {}

// Queue is a simple bounded FIFO of events, draining in push order. The
// host application polls it from its own main loop, mirroring the
// original's single global EVENT_QUEUE; internal/connection keeps one as a
// package-level variable shared by every Session.
type Queue struct {
	ch chan Event
}

// NewQueue creates a Queue with the given channel capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Push enqueues an event, dropping it if the queue is full rather than
// blocking the worker goroutine that produced it.
func (q *Queue) Push(e Event) {
	select {
	case q.ch <- e:
	default:
	}
}

// Poll returns the next event without blocking, or false if the queue is
// empty.
func (q *Queue) Poll() (Event, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return nil, false
	}
}
