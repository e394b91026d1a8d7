package connection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nestvr/corestream/internal/audio"
	"github.com/nestvr/corestream/internal/connerr"
	"github.com/nestvr/corestream/internal/connstate"
	"github.com/nestvr/corestream/internal/controlsocket"
	"github.com/nestvr/corestream/internal/events"
	"github.com/nestvr/corestream/internal/logging"
	"github.com/nestvr/corestream/internal/netbeacon"
	"github.com/nestvr/corestream/internal/negconfig"
	"github.com/nestvr/corestream/internal/packets"
	"github.com/nestvr/corestream/internal/platform"
	"github.com/nestvr/corestream/internal/streamsocket"
	"github.com/nestvr/corestream/internal/videodecoder"
)

// controlPort is the fixed TCP port the server's control websocket listens
// on; the discovery beacon only needs to tell the client which host to dial.
const controlPort = 9944

// streamPort is the fixed UDP port the client listens on for the stream
// socket once streaming starts.
const streamPort = 9945

// ClientDeps are the local I/O adapters one connection attempt wires into
// its Session. A real host application supplies concrete implementations;
// tests and headless runs can pass the Noop variants.
type ClientDeps struct {
	Mic          audio.Capturer
	Speaker      audio.Player
	Decoder      videodecoder.Decoder
	Platform     platform.Queryer
	Capabilities packets.StreamingCapabilities

	DSCP                int
	MinIDRInterval      time.Duration
	AvoidVideoGlitching bool
	LogMirror           chan packets.LogMirrorEntry
}

// runConnectionPipeline is one full attempt at finding a server, completing
// the handshake, and running a session to completion. It always returns
// (never loops internally) — the supervisor in lifecycle.go owns retry
// timing and the Disconnected reset between attempts.
func runConnectionPipeline(host HostDeps, log *slog.Logger) {
	listener, err := netbeacon.NewListener()
	if err != nil {
		pushHud(NetworkUnreachableMessage)
		log.Warn("discovery listen failed", "error", err)
		time.Sleep(RetryConnectMinInterval)
		return
	}
	defer listener.Close()

	var serverHost string
	for {
		if getLifecycleState() != connstate.Resumed {
			return
		}
		beacon, addr, err := listener.Recv(DiscoveryRetryPause)
		if err != nil {
			continue
		}
		if beacon.ProtocolID != host.ProtocolID {
			continue
		}
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		serverHost = udpAddr.IP.String()
		break
	}

	globalState.Set(connstate.Connecting)

	url := fmt.Sprintf("ws://%s:%d/control", serverHost, controlPort)
	proto, err := controlsocket.DialToServer(url, HandshakeActionTimeout)
	if err != nil {
		pushHud(ConnectionTimeoutMessage)
		log.Warn("control dial failed", "error", err, "server", serverHost)
		return
	}
	defer proto.Close()

	accepted := packets.ConnectionAccepted{
		ProtocolID:            host.ProtocolID,
		DisplayName:           host.Hostname,
		StreamingCapabilities: &host.Deps.Capabilities,
	}
	if err := proto.Send(accepted); err != nil {
		log.Warn("connection accepted send failed", "error", err)
		return
	}

	var configPacket packets.StreamConfigPacket
	if err := proto.Recv(&configPacket, HandshakeActionTimeout); err != nil {
		pushHud(ConnectionTimeoutMessage)
		log.Warn("stream config recv failed", "error", err)
		return
	}

	negotiated, err := negconfig.Parse([]byte(configPacket.Negotiated))
	if err != nil {
		log.Warn("negotiated config parse failed", "error", err)
		return
	}

	sender, receiver := proto.Split(StreamingRecvTimeout)

	switch msg, err := waitForStreamDecision(receiver); {
	case err != nil:
		log.Warn("post-handshake recv failed", "error", err)
		return
	case msg == packets.TypeRestarting:
		pushHud(ServerRestartMessage)
		return
	case msg != packets.TypeStartStream:
		log.Warn("unexpected post-handshake message", "type", msg)
		return
	}

	pushHud(StreamStartingMessage)

	streamSocket, err := streamsocket.Listen(streamPort, host.Deps.DSCP)
	if err != nil {
		log.Warn("stream socket listen failed", "error", err)
		return
	}
	streamSocket.Connect(&net.UDPAddr{IP: net.ParseIP(serverHost), Port: streamPort})

	if err := sender.Send(mustWrap(packets.TypeStreamReady, packets.StreamReady{})); err != nil {
		log.Warn("stream ready send failed", "error", err)
		streamSocket.Close()
		return
	}

	session := NewSession(SessionConfig{
		Log:                 log,
		Control:             sender,
		ControlRecv:         receiver,
		Stream:              streamSocket,
		Decoder:             host.Deps.Decoder,
		Mic:                 host.Deps.Mic,
		Speaker:             host.Deps.Speaker,
		Platform:            host.Deps.Platform,
		Negotiated:          negotiated,
		MinIDRInterval:      host.Deps.MinIDRInterval,
		AvoidVideoGlitching: host.Deps.AvoidVideoGlitching,
		LogMirror:           host.Deps.LogMirror,
	})

	if host.Deps.LogMirror != nil {
		logging.InitMirror(logging.ShipperConfig{Channel: host.Deps.LogMirror, MinLevel: "info"})
		defer logging.StopMirror()
	}

	globalEvents.Push(events.StreamingStarted{Negotiated: negotiated})
	session.Start()

	<-session.Done()
	session.Stop()
	streamSocket.Close()
}

// waitForStreamDecision blocks for the first control message after the
// handshake completes, which is always one of StartStream or Restarting
// (spec §4.4); anything else or a timeout ends this connection attempt.
func waitForStreamDecision(receiver *controlsocket.Receiver) (string, error) {
	raw, err := receiver.RecvRaw()
	if err != nil {
		if connerr.IsTryAgain(err) {
			return "", fmt.Errorf("connection: no stream decision within timeout")
		}
		return "", err
	}
	var env packets.ControlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}
