package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nestvr/corestream/internal/connstate"
)

var (
	lifecycleMu    sync.Mutex
	lifecycleState = connstate.Idle
)

// SetLifecycleState updates the host-application-driven state the
// supervisor loop reads before attempting a new connection. A host calls
// this from its own foreground/background/teardown hooks.
func SetLifecycleState(s connstate.LifecycleState) {
	lifecycleMu.Lock()
	lifecycleState = s
	lifecycleMu.Unlock()
}

func getLifecycleState() connstate.LifecycleState {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	return lifecycleState
}

// HostDeps are the platform-specific pieces the pipeline can't construct
// for itself: a hostname to announce, a protocol version both sides must
// agree on, and the local I/O adapters for one connection attempt.
type HostDeps struct {
	Hostname   string
	ProtocolID uint32
	Deps       ClientDeps
}

// RunLifecycle is the supervisor loop (spec §4.6): while the host
// application holds LifecycleState at Resumed, it repeatedly attempts a
// full connection pipeline; whenever the pipeline returns, for any reason,
// it resets to Disconnected, notifies anyone blocked in WaitForDisconnect,
// and waits ConnectionRetryInterval before trying again. It returns once
// LifecycleState reaches ShuttingDown.
//
// This is a blocking call; callers run it in its own goroutine.
func RunLifecycle(host HostDeps, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	globalState.Set(connstate.Disconnected)

	for getLifecycleState() != connstate.ShuttingDown {
		if getLifecycleState() == connstate.Resumed {
			pushHud(InitialMessage)
			runConnectionPipeline(host, log)
		}

		globalState.Set(connstate.Disconnected)
		time.Sleep(ConnectionRetryInterval)
	}
}
