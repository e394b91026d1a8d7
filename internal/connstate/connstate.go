// Package connstate holds the two small enums that gate the connection
// lifecycle supervisor: the externally observable ConnectionState, and the
// host-application-driven LifecycleState that decides whether the
// supervisor should even attempt a connection right now.
package connstate

import "sync"

// ConnectionState is the client's current stage in one connection attempt.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Streaming
	Disconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// LifecycleState reflects the host application's own state (foregrounded,
// backgrounded, tearing down), independent of any particular connection
// attempt. The supervisor only tries to connect while Resumed.
type LifecycleState int

const (
	Idle LifecycleState = iota
	Resumed
	ShuttingDown
)

func (s LifecycleState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resumed:
		return "resumed"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Cell is a mutex-guarded ConnectionState with condition-variable style
// disconnect notification, mirroring the RwLock<ConnectionState> + Condvar
// pairing in the original client's global statics. A Cell is an ordinary
// value; internal/connection keeps one as a package-level variable shared
// by every Session.
type Cell struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state ConnectionState
}

// NewCell constructs a Cell initialized to Disconnected.
func NewCell() *Cell {
	c := &Cell{state: Disconnected}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Get returns the current state.
func (c *Cell) Get() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Set updates the state. If the new state is Disconnected, every goroutine
// blocked in WaitForDisconnect is woken.
func (c *Cell) Set(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if s == Disconnected {
		c.cond.Broadcast()
	}
}

// WaitForDisconnect blocks until the state becomes Disconnected.
func (c *Cell) WaitForDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.state != Disconnected {
		c.cond.Wait()
	}
}
