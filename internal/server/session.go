package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nestvr/corestream/internal/bitrate"
	"github.com/nestvr/corestream/internal/connerr"
	"github.com/nestvr/corestream/internal/controlsocket"
	"github.com/nestvr/corestream/internal/negconfig"
	"github.com/nestvr/corestream/internal/netstats"
	"github.com/nestvr/corestream/internal/packets"
	"github.com/nestvr/corestream/internal/streamsocket"
)

const (
	handshakeTimeout    = 2 * time.Second
	controlRecvWait     = 250 * time.Millisecond
	statsRecvWait       = 250 * time.Millisecond
	feedbackInterval    = 1 * time.Second
	controlTickInterval = 1 * time.Second
)

// runSession drives one accepted client from the end of the HTTP upgrade
// through handshake completion and the lifetime of the bitrate control
// loop. It owns the per-client bitrate.Manager and returns once the client
// disconnects, for any reason.
func (s *Server) runSession(proto *controlsocket.ProtoControlSocket, clientHost string) {
	defer proto.Close()

	sessionID := uuid.New()
	log := s.log.With("session_id", sessionID, "client", clientHost)
	log.Info("session starting")

	var accepted packets.ConnectionAccepted
	if err := proto.Recv(&accepted, handshakeTimeout); err != nil {
		log.Warn("connection_accepted recv failed", "error", err)
		return
	}

	negotiated := negotiatedConfigFor(accepted.StreamingCapabilities)
	negotiatedJSON, err := negconfig.Build(negotiated)
	if err != nil {
		log.Warn("negotiated config encode failed", "error", err)
		return
	}
	sessionDoc, err := json.Marshal(s.cfg)
	if err != nil {
		log.Warn("session config encode failed", "error", err)
		return
	}

	if err := proto.Send(packets.StreamConfigPacket{
		Session:    string(sessionDoc),
		Negotiated: string(negotiatedJSON),
	}); err != nil {
		log.Warn("stream_config send failed", "error", err)
		return
	}

	sender, receiver := proto.Split(controlRecvWait)

	if err := sender.Send(mustWrapControl(packets.TypeStartStream, packets.StartStream{})); err != nil {
		log.Warn("start_stream send failed", "error", err)
		return
	}

	if err := waitForStreamReady(receiver, handshakeTimeout); err != nil {
		log.Warn("stream_ready wait failed", "error", err)
		return
	}

	sock, err := streamsocket.Listen(streamPort, s.cfg.DSCP)
	if err != nil {
		log.Warn("stream socket listen failed", "error", err)
		return
	}
	defer sock.Close()

	statsRecv := streamsocket.Subscribe[packets.ClientStatistics](sock, streamsocket.Statistics)

	manager := bitrate.NewManager(1024, float64(negotiated.RefreshRateHint), clientHost, nil, log)

	stopCh := make(chan struct{})
	go s.feedbackLoop(sender, receiver, manager, stopCh, log)
	go s.controlTickLoop(manager, stopCh, log)

	log.Info("session streaming", "view_resolution", negotiated.ViewResolution, "refresh_rate_hint", negotiated.RefreshRateHint)

	for {
		env, err := statsRecv.Recv(statsRecvWait)
		if err != nil {
			if connerr.IsTryAgain(err) {
				continue
			}
			close(stopCh)
			log.Info("session ended", "reason", err)
			return
		}

		stats := env.Header
		// No server-side encoder runs in this tree (out of scope), so
		// ReportFrameEncoded is never called and packetSizeHistory stays
		// empty; the timestamp argument below never gets matched against
		// anything and is passed as zero.
		manager.ReportFrameLatencies(s.bitrateConfig(), 0, stats.NetworkLatency, stats.DecoderLatency)
	}
}

// controlTickLoop periodically evaluates the bitrate law and (optionally)
// refreshes AP statistics; the resulting encoder params are logged only,
// since driving an actual encoder is out of scope here.
func (s *Server) controlTickLoop(manager *bitrate.Manager, stopCh chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(controlTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			params, _ := manager.GetEncoderParams(s.bitrateConfig())
			if params.Updated {
				log.Debug("encoder params updated", "bitrate_bps", params.BitrateBps, "framerate", params.Framerate)
			}
			if s.apPoller != nil {
				if snapshot, err := s.apPoller.Poll(); err == nil {
					manager.ReportAPStatistics(snapshot)
				}
			}
		}
	}
}

// negotiatedConfigFor builds a NegotiatedConfig from the client's advertised
// capabilities, falling back to negconfig.Parse's own defaults when the
// client sent none.
func negotiatedConfigFor(caps *packets.StreamingCapabilities) negconfig.NegotiatedConfig {
	cfg := negconfig.NegotiatedConfig{RefreshRateHint: 60, GameAudioSampleRate: 44100}
	if caps == nil {
		return cfg
	}
	cfg.ViewResolution = negconfig.Resolution{Width: caps.DefaultViewWidth, Height: caps.DefaultViewHeight}
	if len(caps.SupportedRefreshRates) > 0 {
		cfg.RefreshRateHint = caps.SupportedRefreshRates[0]
	}
	if caps.MicrophoneSampleRate > 0 {
		cfg.GameAudioSampleRate = caps.MicrophoneSampleRate
	}
	return cfg
}

func waitForStreamReady(receiver *controlsocket.Receiver, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		raw, err := receiver.RecvRaw()
		if err != nil {
			if connerr.IsTryAgain(err) {
				continue
			}
			return err
		}
		var env packets.ControlEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Type == packets.TypeStreamReady {
			return nil
		}
	}
	return fmt.Errorf("server: no stream_ready within timeout")
}

// feedbackLoop periodically sends an RTCP SenderReport over the control
// channel and folds any ReceiverReport the client echoes back into the
// manager's network statistics, resolving RTT via a per-session
// netstats.RTTTracker.
func (s *Server) feedbackLoop(sender *controlsocket.Sender, receiver *controlsocket.Receiver, manager *bitrate.Manager, stopCh chan struct{}, log *slog.Logger) {
	const ssrc = 1
	tracker := netstats.NewRTTTracker()
	ticker := time.NewTicker(feedbackInterval)
	defer ticker.Stop()

	replies := make(chan []byte, 8)
	go s.drainNetworkFeedback(receiver, replies, stopCh)

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			now := time.Now()
			buf, err := netstats.EncodeSenderReport(ssrc, now, 0, 0, 0)
			if err != nil {
				continue
			}
			tracker.RecordSent(ssrc, now)
			if err := sender.Send(mustWrapControl(packets.TypeNetworkFeedback, packets.NetworkFeedback{Data: buf})); err != nil {
				log.Warn("network_feedback send failed", "error", err)
			}

		case buf := <-replies:
			fb, err := netstats.Interpret(buf, tracker, time.Now())
			if err != nil {
				log.Warn("malformed network_feedback reply", "error", err)
				continue
			}
			if fb.HasRTT {
				manager.ReportNetworkStatistics(fb.RTT, 0, 0)
			}
		}
	}
}

// drainNetworkFeedback reads the session's control receiver (post-split, so
// this is the only reader) and forwards network_feedback payloads onto out.
// Every other message type the client sends on this half of the socket
// (keep_alive, battery, log, request_idr) is dropped.
func (s *Server) drainNetworkFeedback(receiver *controlsocket.Receiver, out chan<- []byte, stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		raw, err := receiver.RecvRaw()
		if err != nil {
			if connerr.IsTryAgain(err) {
				continue
			}
			return
		}
		var env packets.ControlEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Type != packets.TypeNetworkFeedback {
			continue
		}
		var msg packets.NetworkFeedback
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			continue
		}
		select {
		case out <- msg.Data:
		case <-stopCh:
			return
		}
	}
}

func mustWrapControl(typeName string, v any) packets.ControlEnvelope {
	env, err := packets.WrapControl(typeName, v)
	if err != nil {
		panic(err)
	}
	return env
}
