// Package connection implements the client-side connection lifecycle
// (spec §4.6/§4.7): the supervisor loop that repeatedly attempts a
// connection while the host application is resumed, the per-attempt
// handshake pipeline, and the six worker goroutines that carry a
// streaming session once it's established.
package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nestvr/corestream/internal/audio"
	"github.com/nestvr/corestream/internal/connstate"
	"github.com/nestvr/corestream/internal/controlsocket"
	"github.com/nestvr/corestream/internal/events"
	"github.com/nestvr/corestream/internal/negconfig"
	"github.com/nestvr/corestream/internal/packets"
	"github.com/nestvr/corestream/internal/platform"
	"github.com/nestvr/corestream/internal/streamsocket"
	"github.com/nestvr/corestream/internal/videodecoder"
	"github.com/nestvr/corestream/internal/videostats"
)

// Package-level state a host application reaches from its own call sites
// (IsStreaming, installing a haptics callback) — kept as literal globals
// only for that reachability; every worker goroutine below reads/writes
// through the Session it was handed, never these directly.
var (
	globalState  = connstate.NewCell()
	globalEvents = events.NewQueue(64)

	globalMu      sync.RWMutex
	globalSession *Session
)

// PollEvent returns the next lifecycle event (HUD updates, stream
// start/stop, haptics) without blocking, or false if none is queued. This
// is the one stable queue a host application polls across reconnects —
// each Session shares it rather than owning a private one.
func PollEvent() (events.Event, bool) {
	return globalEvents.Poll()
}

func pushHud(message string) {
	globalEvents.Push(events.UpdateHudMessage{Message: message})
}

// IsStreaming reports whether a session is currently in the Streaming
// state. Safe to call from any goroutine, including host application code
// with no reference to the active Session.
func IsStreaming() bool {
	return globalState.Get() == connstate.Streaming
}

// State returns the current ConnectionState.
func State() connstate.ConnectionState {
	return globalState.Get()
}

// WaitForDisconnect blocks until the connection returns to Disconnected.
func WaitForDisconnect() {
	globalState.WaitForDisconnect()
}

// HapticsHandler is invoked from the haptics-receiver worker for every
// inbound pulse. InstallHapticsHandler lets a host application register one
// without holding a Session reference.
type HapticsHandler func(events.Haptics)

var (
	hapticsHandlerMu sync.RWMutex
	hapticsHandler   HapticsHandler
)

// InstallHapticsHandler registers the host application's haptics callback.
func InstallHapticsHandler(h HapticsHandler) {
	hapticsHandlerMu.Lock()
	defer hapticsHandlerMu.Unlock()
	hapticsHandler = h
}

func dispatchHaptics(e events.Haptics) {
	hapticsHandlerMu.RLock()
	h := hapticsHandler
	hapticsHandlerMu.RUnlock()
	if h != nil {
		h(e)
	}
}

// Session is the per-connection-attempt context handed to every worker
// goroutine. One Session exists per successful handshake; it is torn down
// and replaced on every reconnect.
type Session struct {
	ID  uuid.UUID
	log *slog.Logger

	state  *connstate.Cell
	Events *events.Queue

	control     *controlsocket.Sender
	controlRecv *controlsocket.Receiver
	stream      *streamsocket.StreamSocket

	videoRecv      *streamsocket.Receiver[packets.VideoPacketHeader]
	gameAudioRecv  *streamsocket.Receiver[struct{}]
	hapticsRecv    *streamsocket.Receiver[packets.Haptics]
	trackingSend   *streamsocket.Sender[packets.Tracking]
	statisticsSend *streamsocket.Sender[packets.ClientStatistics]
	micAudioSend   *streamsocket.Sender[struct{}]

	decoder  videodecoder.Decoder
	mic      audio.Capturer
	speaker  audio.Player
	platform platform.Queryer

	negotiated negconfig.NegotiatedConfig

	statsMu    sync.Mutex
	videoStats videostats.VideoStatsRx

	logMirror chan packets.LogMirrorEntry
	tracking  chan packets.Tracking

	minIDRInterval      time.Duration
	lastIDRInstant      time.Time
	avoidVideoGlitching bool
	streamCorrupted     bool

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	doneCh   chan struct{}
	doneOnce sync.Once
}

// SessionConfig bundles everything a Session needs that the handshake
// pipeline (pipeline.go) has already negotiated or constructed.
type SessionConfig struct {
	Log *slog.Logger

	Control     *controlsocket.Sender
	ControlRecv *controlsocket.Receiver
	Stream      *streamsocket.StreamSocket

	Decoder  videodecoder.Decoder
	Mic      audio.Capturer
	Speaker  audio.Player
	Platform platform.Queryer

	Negotiated          negconfig.NegotiatedConfig
	MinIDRInterval      time.Duration
	AvoidVideoGlitching bool

	LogMirror chan packets.LogMirrorEntry
}

// NewSession wires up a Session's stream subscriptions and internal
// channels from cfg. It does not start any goroutines.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		ID:                  uuid.New(),
		log:                 log,
		state:               globalState,
		Events:              globalEvents,
		control:             cfg.Control,
		controlRecv:         cfg.ControlRecv,
		stream:              cfg.Stream,
		decoder:             cfg.Decoder,
		mic:                 cfg.Mic,
		speaker:             cfg.Speaker,
		platform:            cfg.Platform,
		negotiated:          cfg.Negotiated,
		logMirror:           cfg.LogMirror,
		tracking:            make(chan packets.Tracking, 16),
		minIDRInterval:      cfg.MinIDRInterval,
		avoidVideoGlitching: cfg.AvoidVideoGlitching,
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
	}

	s.videoRecv = streamsocket.Subscribe[packets.VideoPacketHeader](s.stream, streamsocket.Video)
	s.gameAudioRecv = streamsocket.Subscribe[struct{}](s.stream, streamsocket.Audio)
	s.hapticsRecv = streamsocket.Subscribe[packets.Haptics](s.stream, streamsocket.Haptics)
	s.trackingSend = streamsocket.RequestStream[packets.Tracking](s.stream, streamsocket.Tracking)
	s.statisticsSend = streamsocket.RequestStream[packets.ClientStatistics](s.stream, streamsocket.Statistics)
	s.micAudioSend = streamsocket.RequestStream[struct{}](s.stream, streamsocket.MicAudio)

	return s
}

// SubmitTracking enqueues one tracking sample for the control-sender worker
// to ship out; if the queue is saturated the oldest queued sample is dropped
// rather than blocking the caller (tracking is a live signal, not a log — a
// stale sample dropped in favor of a fresher one is the right tradeoff).
func (s *Session) SubmitTracking(t packets.Tracking) {
	select {
	case s.tracking <- t:
		return
	default:
	}
	select {
	case <-s.tracking:
	default:
	}
	select {
	case s.tracking <- t:
	default:
	}
}

// Start launches the six worker goroutines and registers this Session as
// the globally reachable one.
func (s *Session) Start() {
	globalMu.Lock()
	globalSession = s
	globalMu.Unlock()

	s.log.Info("session starting", "session_id", s.ID)
	s.state.Set(connstate.Streaming)

	s.wg.Add(6)
	go s.videoReceiverLoop()
	go s.gameAudioReceiverLoop()
	go s.microphoneSenderLoop()
	go s.hapticsReceiverLoop()
	go s.controlSenderLoop()
	go s.controlReceiverLoop()
}

// Done returns a channel closed when any worker goroutine has decided the
// session is over (a hard socket error, a server-initiated disconnect). The
// pipeline that owns this Session waits on it before calling Stop.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Session) signalDone() {
	s.doneOnce.Do(func() {
		close(s.doneCh)
	})
}

// Stop signals every worker to exit and waits for them to finish.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()

	globalMu.Lock()
	if globalSession == s {
		globalSession = nil
	}
	globalMu.Unlock()

	s.state.Set(connstate.Disconnected)
}
