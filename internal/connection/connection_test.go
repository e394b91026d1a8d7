package connection

import (
	"testing"
	"time"

	"github.com/nestvr/corestream/internal/audio"
	"github.com/nestvr/corestream/internal/connstate"
	"github.com/nestvr/corestream/internal/events"
	"github.com/nestvr/corestream/internal/packets"
	"github.com/nestvr/corestream/internal/platform"
	"github.com/nestvr/corestream/internal/streamsocket"
	"github.com/nestvr/corestream/internal/videodecoder"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	sock, err := streamsocket.Listen(0, 0)
	if err != nil {
		t.Fatalf("streamsocket.Listen: %v", err)
	}
	t.Cleanup(func() { sock.Close() })

	return NewSession(SessionConfig{
		Stream:   sock,
		Decoder:  videodecoder.Noop{},
		Mic:      audio.NewNoopCapturer(48000),
		Speaker:  audio.NewNoopPlayer(48000),
		Platform: platform.NewStubQueryer("test-device"),
	})
}

func TestSubmitTrackingDropsWhenQueueFull(t *testing.T) {
	s := newTestSession(t)

	const capacity = 16
	for i := 0; i < capacity+10; i++ {
		s.SubmitTracking(packets.Tracking{Timestamp: time.Duration(i)})
	}

	if len(s.tracking) != capacity {
		t.Fatalf("len(tracking) = %d, want %d (channel should saturate, not block or grow)", len(s.tracking), capacity)
	}
}

func TestSessionDoneUnblocksOnSignalDone(t *testing.T) {
	s := newTestSession(t)

	select {
	case <-s.Done():
		t.Fatalf("Done() closed before signalDone")
	default:
	}

	s.signalDone()
	s.signalDone() // idempotent, must not panic

	select {
	case <-s.Done():
	default:
		t.Fatalf("Done() did not close after signalDone")
	}
}

func TestIsStreamingReflectsGlobalState(t *testing.T) {
	globalState.Set(connstate.Disconnected)
	if IsStreaming() {
		t.Fatalf("IsStreaming() = true while Disconnected")
	}

	globalState.Set(connstate.Streaming)
	if !IsStreaming() {
		t.Fatalf("IsStreaming() = false while Streaming")
	}
	globalState.Set(connstate.Disconnected)
}

func TestLifecycleStateRoundTrip(t *testing.T) {
	SetLifecycleState(connstate.Resumed)
	if got := getLifecycleState(); got != connstate.Resumed {
		t.Fatalf("getLifecycleState() = %v, want Resumed", got)
	}
	SetLifecycleState(connstate.Idle)
	if got := getLifecycleState(); got != connstate.Idle {
		t.Fatalf("getLifecycleState() = %v, want Idle", got)
	}
}

func TestHapticsHandlerDispatch(t *testing.T) {
	called := make(chan events.Haptics, 1)
	InstallHapticsHandler(func(e events.Haptics) {
		called <- e
	})
	t.Cleanup(func() { InstallHapticsHandler(nil) })

	want := events.Haptics{DeviceID: 3, Frequency: 1.5}
	dispatchHaptics(want)

	select {
	case got := <-called:
		if got != want {
			t.Fatalf("handler received %+v, want %+v", got, want)
		}
	default:
		t.Fatalf("handler was not called")
	}
}
