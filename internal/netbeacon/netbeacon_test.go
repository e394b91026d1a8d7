package netbeacon

import (
	"testing"
	"time"
)

func TestListenerRecvTimesOutWithoutBeacon(t *testing.T) {
	l, err := NewListener()
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer l.Close()

	_, _, err = l.Recv(20 * time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error, got nil")
	}
}

func TestAnnouncerSocketBroadcast(t *testing.T) {
	a, err := NewAnnouncerSocket("test-host", 42)
	if err != nil {
		t.Fatalf("NewAnnouncerSocket: %v", err)
	}
	defer a.Close()

	if err := a.Broadcast(); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
}
