package bitrate

// EncoderParams is the output of one GetEncoderParams control tick: the
// bitrate and framerate the encoder should use next, and whether either
// changed since the previous tick (callers use this to decide whether to
// push an InitializeDecoder / parameter-update packet to the client).
type EncoderParams struct {
	BitrateBps uint64
	Framerate  float32
	Updated    bool
}

// NominalBitrateStats is diagnostic output from the Adaptive law: which
// limiter, if any, pulled the result down from the raw calculated bitrate.
// NetworkThroughputLimiterBps is always set (the value after the sticky
// ceiling); ManualMaxBps/ManualMinBps are set whenever that bound is
// enabled; NetworkLatencyLimiterBps/EncoderLatencyLimiterBps are nil unless
// that limiter was enabled and bound this tick.
type NominalBitrateStats struct {
	ScaledCalculatedBitrateBps uint64
	NetworkThroughputLimiterBps *uint64
	NetworkLatencyLimiterBps    *uint64
	EncoderLatencyLimiterBps    *uint64
	ManualMaxBps                *uint64
	ManualMinBps                *uint64
}

func ptrUint64(v uint64) *uint64 { return &v }
