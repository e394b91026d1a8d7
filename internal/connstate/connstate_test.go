package connstate

import (
	"testing"
	"time"
)

func TestNewCellStartsDisconnected(t *testing.T) {
	c := NewCell()
	if got := c.Get(); got != Disconnected {
		t.Fatalf("Get() = %v, want Disconnected", got)
	}
}

func TestWaitForDisconnectUnblocksOnSet(t *testing.T) {
	c := NewCell()
	c.Set(Streaming)

	done := make(chan struct{})
	go func() {
		c.WaitForDisconnect()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("WaitForDisconnect returned before Set(Disconnected)")
	case <-time.After(20 * time.Millisecond):
	}

	c.Set(Disconnected)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("WaitForDisconnect did not unblock after Set(Disconnected)")
	}
}

func TestStateStrings(t *testing.T) {
	cases := map[ConnectionState]string{
		Disconnected:  "disconnected",
		Connecting:    "connecting",
		Streaming:     "streaming",
		Disconnecting: "disconnecting",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", int(state), got, want)
		}
	}
}
