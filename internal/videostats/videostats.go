// Package videostats tracks the per-frame and per-shard receive counters
// the client accumulates while a video frame is in flight, and reports back
// to the server as part of ClientStatistics once the frame is handed to the
// decoder.
package videostats

// GCCState mirrors the congestion-controller's coarse classification of the
// current network condition, as carried in each video packet header.
type GCCState int

const (
	GCCNormal GCCState = iota
	GCCOveruse
	GCCUnderuse
)

// VideoStatsRx is the client's running view of one stream's receive health.
// Fields split into two groups: "latest" fields are overwritten by every
// packet (they describe the most recent shard/frame only), and
// "accumulating" fields sum across every packet since the last Reset.
type VideoStatsRx struct {
	FrameIndex uint32

	FrameSpan         float32
	InterarrivalJitter float32
	OwDelay           float32

	BytesInFrame        uint32
	BytesInFrameApp     uint32
	HighestRxFrameIndex int32
	HighestRxShardIndex int32

	InternalStateGCC GCCState
	ThresholdGCC     float32

	// Accumulating since the last Reset.
	FrameInterarrival      float32
	RxBytes                uint32
	FramesSkipped          uint32
	FramesDropped          uint32
	RxShardCounter         uint32
	DuplicatedShardCounter uint32
}

// PacketSample is what one received video packet header contributes.
type PacketSample struct {
	FrameIndex             uint32
	FrameSpan              float32
	InterarrivalJitter     float32
	OwDelay                float32
	BytesInFrame           uint32
	BytesInFrameApp        uint32
	HighestRxFrameIndex    int32
	HighestRxShardIndex    int32
	InternalStateGCC       GCCState
	ThresholdGCC           float32
	FrameInterarrival      float32
	RxBytes                uint32
	FramesSkipped          uint32
	RxShardCounter         uint32
	DuplicatedShardCounter uint32
}

// Apply folds one packet's sample into the running stats: "latest" fields
// are overwritten, "accumulating" fields are summed.
func (v *VideoStatsRx) Apply(s PacketSample) {
	v.FrameIndex = s.FrameIndex
	v.FrameSpan = s.FrameSpan
	v.InterarrivalJitter = s.InterarrivalJitter
	v.OwDelay = s.OwDelay
	v.BytesInFrame = s.BytesInFrame
	v.BytesInFrameApp = s.BytesInFrameApp
	v.HighestRxFrameIndex = s.HighestRxFrameIndex
	v.HighestRxShardIndex = s.HighestRxShardIndex
	v.InternalStateGCC = s.InternalStateGCC
	v.ThresholdGCC = s.ThresholdGCC

	v.FrameInterarrival += s.FrameInterarrival
	v.RxBytes += s.RxBytes
	v.FramesSkipped += s.FramesSkipped
	v.RxShardCounter += s.RxShardCounter
	v.DuplicatedShardCounter += s.DuplicatedShardCounter
}

// MarkDropped increments the dropped-frame counter; frame drops are
// detected by the decoder/corruption path rather than per-packet, so this
// is kept separate from Apply.
func (v *VideoStatsRx) MarkDropped() {
	v.FramesDropped++
}

// Reset zeroes every accumulating field, leaving "latest" fields
// untouched, so the next statistics report starts a fresh accumulation
// window without losing the most recent frame's descriptive fields.
func (v *VideoStatsRx) Reset() {
	v.FrameInterarrival = 0
	v.RxBytes = 0
	v.FramesSkipped = 0
	v.FramesDropped = 0
	v.RxShardCounter = 0
	v.DuplicatedShardCounter = 0
}
