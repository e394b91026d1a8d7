// Package packets defines the JSON-encoded control messages and binary
// stream headers exchanged between client and server. The payload codec
// for each (exact byte layout of video/haptics/tracking shards) is out of
// scope for this repo — these are the Go struct shapes a working
// client/server pair compiles and negotiates against.
package packets

import (
	"encoding/json"
	"fmt"
	"time"
)

// ControlEnvelope tags every message sent over the split control channel
// (post-handshake) with its Go type name, so the receiving side's single
// ReadMessage loop can dispatch to the right struct without a separate
// connection per message type.
type ControlEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WrapControl encodes v into a ControlEnvelope tagged with typeName.
func WrapControl(typeName string, v any) (ControlEnvelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ControlEnvelope{}, fmt.Errorf("packets: marshal %s: %w", typeName, err)
	}
	return ControlEnvelope{Type: typeName, Data: data}, nil
}

// Control message type names, used both to tag ControlEnvelope.Type and to
// switch on it at the receiver.
const (
	TypeStartStream       = "start_stream"
	TypeRestarting        = "restarting"
	TypeRequestIdr        = "request_idr"
	TypeKeepAlive         = "keep_alive"
	TypeBattery           = "battery"
	TypeInitializeDecoder = "initialize_decoder"
	TypeStreamReady       = "stream_ready"
	TypeNetworkFeedback   = "network_feedback"
)

// ConnectionAccepted is the client's reply to the server's discovery
// broadcast, completing the handshake's first half.
type ConnectionAccepted struct {
	ProtocolID            uint32                 `json:"protocol_id"`
	DisplayName           string                 `json:"display_name"`
	ServerIP               string                 `json:"server_ip"`
	StreamingCapabilities *StreamingCapabilities `json:"streaming_capabilities,omitempty"`
}

// StreamingCapabilities advertises what the client display/audio hardware
// supports, so the server can negotiate a compatible configuration.
type StreamingCapabilities struct {
	DefaultViewWidth     uint32    `json:"default_view_width"`
	DefaultViewHeight    uint32    `json:"default_view_height"`
	SupportedRefreshRates []float32 `json:"supported_refresh_rates"`
	MicrophoneSampleRate uint32    `json:"microphone_sample_rate"`
}

// StreamConfigPacket carries the server's full session config plus the
// negotiated subset, both as embedded JSON documents so the client's
// negconfig parser can evolve independently of the session schema.
type StreamConfigPacket struct {
	Session     string `json:"session"`
	Negotiated  string `json:"negotiated"`
}

// StreamReady is the client's signal that its stream socket is listening
// and the server may start sending video.
type StreamReady struct{}

// RequestIdr asks the encoder to produce a fresh keyframe.
type RequestIdr struct{}

// KeepAlive is a no-op control message sent on an interval to hold NAT
// bindings open and detect a dead peer via the read timeout.
type KeepAlive struct{}

// Battery reports one device's battery gauge.
type Battery struct {
	DeviceID   uint64  `json:"device_id"`
	GaugeValue float32 `json:"gauge_value"`
	IsPlugged  bool    `json:"is_plugged"`
}

// StartStream tells the client the server is ready to begin streaming.
type StartStream struct{}

// Restarting tells the client the server is restarting and it should wait
// rather than treat this as a hard disconnect.
type Restarting struct{}

// DecoderConfig is the subset of negotiated settings the client decoder
// needs before it can accept NAL units.
type DecoderConfig struct {
	Codec               string         `json:"codec"`
	MaxBufferingFrames   float32        `json:"max_buffering_frames"`
	BufferingHistoryWeight float32      `json:"buffering_history_weight"`
	Options              map[string]any `json:"options,omitempty"`
}

// InitializeDecoder hands the client the parameters needed to construct its
// decoder instance.
type InitializeDecoder struct {
	Config DecoderConfig `json:"config"`
}

// VideoPacketHeader precedes every video shard on the stream socket. Timestamp
// identifies the frame this shard belongs to (matched against
// BitrateManager's packet-size history on the server side).
type VideoPacketHeader struct {
	Timestamp              time.Duration `json:"timestamp"`
	FrameIndex             uint32        `json:"frame_index"`
	IsIDR                  bool          `json:"is_idr"`
	FrameSpan              float32       `json:"frame_span"`
	FrameInterarrival      float32       `json:"frame_interarrival"`
	InterarrivalJitter     float32       `json:"interarrival_jitter"`
	OwDelay                float32       `json:"ow_delay"`
	BytesInFrame           uint32        `json:"bytes_in_frame"`
	BytesInFrameApp        uint32        `json:"bytes_in_frame_app"`
	HighestRxFrameIndex    int32         `json:"highest_rx_frame_index"`
	HighestRxShardIndex    int32         `json:"highest_rx_shard_index"`
	ThresholdGCC           float32       `json:"threshold_gcc"`
	GCCState               int32         `json:"gcc_state"`
	ShardIndex             uint32        `json:"shard_index"`
	ShardsCount            uint32        `json:"shards_count"`
	// HadPacketLoss is set by the sending packetiser when it detects a gap
	// in this frame's shard sequence before the frame is handed off to the
	// receiver.
	HadPacketLoss bool `json:"had_packet_loss"`
}

// Haptics drives one haptic pulse on a device.
type Haptics struct {
	DeviceID  uint64        `json:"device_id"`
	Duration  time.Duration `json:"duration"`
	Frequency float32       `json:"frequency"`
	Amplitude float32       `json:"amplitude"`
}

// Tracking is an opaque, passthrough tracking-pose payload: the format is a
// host-application concern, not part of the connection/bitrate core.
type Tracking struct {
	Timestamp time.Duration `json:"timestamp"`
	Payload   []byte        `json:"payload"`
}

// ClientStatistics mirrors VideoStatsRx plus decoder-side latency, sent to
// the server on the statistics stream once per reporting interval.
type ClientStatistics struct {
	FrameIndex             uint32  `json:"frame_index"`
	FrameInterarrival      float32 `json:"frame_interarrival"`
	RxBytes                uint32  `json:"rx_bytes"`
	FramesSkipped          uint32  `json:"frames_skipped"`
	FramesDropped          uint32  `json:"frames_dropped"`
	RxShardCounter         uint32  `json:"rx_shard_counter"`
	DuplicatedShardCounter uint32  `json:"duplicated_shard_counter"`
	DecoderLatency         time.Duration `json:"decoder_latency"`
	NetworkLatency         time.Duration `json:"network_latency"`
}

// NetworkFeedback carries one raw RTCP packet (SenderReport or
// ReceiverReport, see internal/netstats) between client and server over the
// control channel, the concrete shape of the "network round-trip and
// throughput measurements" feed named in the system overview.
type NetworkFeedback struct {
	Data []byte `json:"data"`
}

// LogMirrorEntry carries one client-side log record back to the server's
// console, so a developer watching the server doesn't need a second
// terminal attached to the headset.
type LogMirrorEntry struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}
