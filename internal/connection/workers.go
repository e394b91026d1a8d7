package connection

import (
	"encoding/json"
	"time"

	"github.com/pion/rtcp"

	"github.com/nestvr/corestream/internal/connerr"
	"github.com/nestvr/corestream/internal/events"
	"github.com/nestvr/corestream/internal/netstats"
	"github.com/nestvr/corestream/internal/packets"
	"github.com/nestvr/corestream/internal/videostats"
)

// statisticsReportInterval is how often accumulated VideoStatsRx counters
// are flushed to the server and reset (spec §4.3).
const statisticsReportInterval = 1 * time.Second

// videoReceiverLoop reads video shards off the stream socket, feeds them to
// the decoder, maintains VideoStatsRx, and requests a fresh keyframe when
// the decoder falls behind and it's been at least minIDRInterval since the
// last request. A frame flagged HadPacketLoss (detected upstream by the
// sending packetiser) marks the stream corrupted and requests an IDR; while
// corrupted, AvoidVideoGlitching holds further non-IDR frames back from the
// decoder rather than feeding it visibly glitched output, until the next
// IDR clears the flag.
func (s *Session) videoReceiverLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		env, err := s.videoRecv.Recv(StreamingRecvTimeout)
		if err != nil {
			if connerr.IsTryAgain(err) {
				continue
			}
			s.Events.Push(events.StreamingStopped{Reason: err.Error()})
			s.signalDone()
			return
		}

		hdr := env.Header
		s.statsMu.Lock()
		s.videoStats.Apply(videostats.PacketSample{
			FrameIndex:             hdr.FrameIndex,
			FrameSpan:              hdr.FrameSpan,
			InterarrivalJitter:     hdr.InterarrivalJitter,
			OwDelay:                hdr.OwDelay,
			BytesInFrame:           hdr.BytesInFrame,
			BytesInFrameApp:        hdr.BytesInFrameApp,
			HighestRxFrameIndex:    hdr.HighestRxFrameIndex,
			HighestRxShardIndex:    hdr.HighestRxShardIndex,
			InternalStateGCC:       videostats.GCCState(hdr.GCCState),
			ThresholdGCC:           hdr.ThresholdGCC,
			FrameInterarrival:      hdr.FrameInterarrival,
			RxBytes:                hdr.BytesInFrameApp,
			RxShardCounter:         1,
			DuplicatedShardCounter: 0,
		})
		s.statsMu.Unlock()

		if hdr.IsIDR {
			s.streamCorrupted = false
		} else if hdr.HadPacketLoss {
			s.streamCorrupted = true
			s.requestIDR()
			s.log.Warn("video packet loss reported by packetiser", "frame_index", hdr.FrameIndex)
		}

		if s.streamCorrupted && s.avoidVideoGlitching {
			s.requestIDR()
			s.markFrameDropped()
			continue
		}

		if err := s.decoder.PushNAL(env.Payload, hdr.IsIDR); err != nil {
			s.log.Warn("decoder rejected NAL", "error", err)
		}

		if hdr.IsIDR {
			s.lastIDRInstant = time.Now()
			continue
		}
		if s.decoder.Saturated() {
			s.streamCorrupted = true
			s.markFrameDropped()
			s.requestIDR()
		}
	}
}

// requestIDR asks the server for a fresh keyframe, throttled to at most once
// per minIDRInterval so a run of corrupted or saturated frames doesn't
// flood the control channel.
func (s *Session) requestIDR() {
	if time.Since(s.lastIDRInstant) <= s.minIDRInterval {
		return
	}
	if err := s.control.Send(mustWrap(packets.TypeRequestIdr, packets.RequestIdr{})); err == nil {
		s.lastIDRInstant = time.Now()
	}
}

// markFrameDropped records a dropped video frame in the accumulating stats
// the client periodically reports back to the server.
func (s *Session) markFrameDropped() {
	s.statsMu.Lock()
	s.videoStats.MarkDropped()
	s.statsMu.Unlock()
}

// gameAudioReceiverLoop forwards decoded game-audio shards straight to the
// local audio.Player; the payload codec itself is out of scope here.
func (s *Session) gameAudioReceiverLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		env, err := s.gameAudioRecv.Recv(StreamingRecvTimeout)
		if err != nil {
			if connerr.IsTryAgain(err) {
				continue
			}
			return
		}
		if _, err := s.speaker.Write(env.Payload); err != nil {
			s.log.Warn("audio playback write failed", "error", err)
		}
	}
}

// microphoneSenderLoop reads from the local audio.Capturer and ships raw
// samples to the server on the mic-audio stream.
func (s *Session) microphoneSenderLoop() {
	defer s.wg.Done()
	buf := make([]byte, 4096)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, err := s.mic.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if err := s.micAudioSend.Send(struct{}{}, buf[:n]); err != nil {
			s.log.Warn("microphone send failed", "error", err)
		}
	}
}

// hapticsReceiverLoop delivers inbound haptic pulses to the host
// application's registered handler and the session's event queue.
func (s *Session) hapticsReceiverLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		env, err := s.hapticsRecv.Recv(StreamingRecvTimeout)
		if err != nil {
			if connerr.IsTryAgain(err) {
				continue
			}
			continue
		}

		e := events.Haptics{
			DeviceID:  env.Header.DeviceID,
			Duration:  env.Header.Duration,
			Frequency: env.Header.Frequency,
			Amplitude: env.Header.Amplitude,
		}
		s.Events.Push(e)
		dispatchHaptics(e)
	}
}

// controlSenderLoop multiplexes everything the client sends proactively:
// tracking samples and accumulated statistics (both over the stream
// socket), mirrored log lines and periodic keepalives (both over the
// control channel).
func (s *Session) controlSenderLoop() {
	defer s.wg.Done()

	statsTicker := time.NewTicker(statisticsReportInterval)
	defer statsTicker.Stop()
	keepAliveTicker := time.NewTicker(KeepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-s.stopCh:
			return

		case t := <-s.tracking:
			if err := s.trackingSend.Send(t, nil); err != nil {
				s.log.Warn("tracking send failed", "error", err)
			}

		case <-statsTicker.C:
			s.statsMu.Lock()
			snapshot := s.videoStats
			s.videoStats.Reset()
			s.statsMu.Unlock()

			stats := packets.ClientStatistics{
				FrameIndex:             snapshot.FrameIndex,
				FrameInterarrival:      snapshot.FrameInterarrival,
				RxBytes:                snapshot.RxBytes,
				FramesSkipped:          snapshot.FramesSkipped,
				FramesDropped:          snapshot.FramesDropped,
				RxShardCounter:         snapshot.RxShardCounter,
				DuplicatedShardCounter: snapshot.DuplicatedShardCounter,
			}
			if err := s.statisticsSend.Send(stats, nil); err != nil {
				s.log.Warn("statistics send failed", "error", err)
			}

		case entry, ok := <-s.logMirror:
			if !ok {
				s.logMirror = nil
				continue
			}
			if err := s.control.Send(mustWrap("log", entry)); err != nil {
				s.log.Warn("log mirror send failed", "error", err)
			}

		case <-keepAliveTicker.C:
			if err := s.control.Send(mustWrap(packets.TypeKeepAlive, packets.KeepAlive{})); err != nil {
				s.log.Warn("keepalive send failed", "error", err)
			}

			if gauge, plugged, ok := s.platform.Battery(); ok {
				batt := packets.Battery{GaugeValue: gauge, IsPlugged: plugged}
				if err := s.control.Send(mustWrap(packets.TypeBattery, batt)); err != nil {
					s.log.Warn("battery report send failed", "error", err)
				}
			}
		}
	}
}

// controlReceiverLoop reads the discriminated-union control channel and
// dispatches each message by its ControlEnvelope.Type.
func (s *Session) controlReceiverLoop() {
	defer s.wg.Done()
	// The server sends network_feedback on the control channel once a
	// second, so this much silence means the peer is gone.
	const keepAliveTimeout = 5 * time.Second
	lastReceived := time.Now()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		raw, err := s.controlRecv.RecvRaw()
		if err != nil {
			if connerr.IsTryAgain(err) {
				if time.Since(lastReceived) > keepAliveTimeout {
					s.Events.Push(events.StreamingStopped{Reason: "keepalive timeout"})
					s.signalDone()
					return
				}
				continue
			}
			s.Events.Push(events.StreamingStopped{Reason: err.Error()})
			s.signalDone()
			return
		}
		lastReceived = time.Now()

		var env packets.ControlEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Warn("malformed control message", "error", err)
			continue
		}

		switch env.Type {
		case packets.TypeRestarting:
			s.Events.Push(events.UpdateHudMessage{Message: ServerRestartMessage})
			s.Events.Push(events.StreamingStopped{Reason: "server restarting"})
			s.signalDone()
			return

		case packets.TypeInitializeDecoder:
			var msg packets.InitializeDecoder
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				s.log.Warn("malformed initialize_decoder", "error", err)
				continue
			}
			s.log.Info("decoder config received", "codec", msg.Config.Codec)

		case packets.TypeKeepAlive:
			// Peer liveness only: any received message resets the
			// keepAliveTimeout silence check above.

		case packets.TypeNetworkFeedback:
			var msg packets.NetworkFeedback
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				s.log.Warn("malformed network_feedback", "error", err)
				continue
			}
			receivedAt := time.Now()
			s.replyToNetworkFeedback(msg.Data, receivedAt)

		default:
			s.log.Debug("unhandled control message", "type", env.Type)
		}
	}
}

// replyToNetworkFeedback decodes an inbound RTCP blob and, if it carries a
// SenderReport, immediately replies with a ReceiverReport so the server's
// netstats.RTTTracker can resolve a round-trip estimate (spec's "network
// round-trip measurements" feed).
func (s *Session) replyToNetworkFeedback(data []byte, receivedAt time.Time) {
	s.statsMu.Lock()
	received := s.videoStats.RxShardCounter + s.videoStats.DuplicatedShardCounter
	dropped := s.videoStats.FramesDropped
	s.statsMu.Unlock()

	replies, err := buildReceiverReportReplies(data, received, dropped, receivedAt)
	if err != nil {
		s.log.Warn("malformed RTCP in network_feedback", "error", err)
		return
	}

	for _, buf := range replies {
		if err := s.control.Send(mustWrap(packets.TypeNetworkFeedback, packets.NetworkFeedback{Data: buf})); err != nil {
			s.log.Warn("network_feedback reply send failed", "error", err)
		}
	}
}

// buildReceiverReportReplies decodes data (a raw RTCP blob) and, for every
// SenderReport found, encodes the matching ReceiverReport reply: fraction
// lost derived from the session's received-shard and dropped-frame counters, delay
// measured from receivedAt to now.
func buildReceiverReportReplies(data []byte, received, dropped uint32, receivedAt time.Time) ([][]byte, error) {
	pkts, err := netstats.Decode(data)
	if err != nil {
		return nil, err
	}

	var fractionLost uint8
	if total := received + dropped; total > 0 {
		fractionLost = uint8((256 * dropped) / total)
	}

	var replies [][]byte
	for _, p := range pkts {
		sr, ok := p.(*rtcp.SenderReport)
		if !ok {
			continue
		}
		rr := netstats.ReplyToSenderReport(*sr, fractionLost, time.Since(receivedAt))
		buf, err := netstats.EncodeReceiverReport(sr.SSRC, rr)
		if err != nil {
			return replies, err
		}
		replies = append(replies, buf)
	}
	return replies, nil
}

func mustWrap(typeName string, v any) packets.ControlEnvelope {
	env, err := packets.WrapControl(typeName, v)
	if err != nil {
		// Every payload here is a statically known struct; a marshal
		// failure would mean a programming error, not a runtime condition.
		panic(err)
	}
	return env
}
