package bitrate

import "reflect"

// Mode selects which bitrate law get_encoder_params evaluates.
type Mode int

const (
	ModeConstant Mode = iota
	ModeNestVr
	ModeAdaptive
)

// Switch is a comparable optional value, mirroring the ALVR settings
// schema's enabled/disabled toggles (e.g. manual max/min bitrate, the
// decoder/encoder latency limiters).
type Switch[T any] struct {
	Enabled bool
	Value   T
}

// Enabled constructs an enabled Switch.
func Enabled[T any](v T) Switch[T] { return Switch[T]{Enabled: true, Value: v} }

// FramerateConfig tunes the adaptive-framerate reset described in spec §4.3
// ("report_frame_present"): when the instantaneous frame interval deviates
// from the running mean by more than this multiplier (or its reciprocal),
// the frame-interval history is shrunk to regain responsiveness.
type FramerateConfig struct {
	ResetThresholdMultiplier float64
}

// NestVrConfig parametrizes ModeNestVr. Profile selects a row from the
// built-in table (§6); Custom supplies the scalar constants directly when
// Profile == ProfileCustom.
type NestVrConfig struct {
	MaxBitrateMbps     float64
	MinBitrateMbps     float64
	InitialBitrateMbps float64
	Profile            NestVrProfile
	Custom             ProfileConfig
}

// EncoderLatencyLimiterConfig caps bitrate when encoder latency saturates
// the nominal frame interval (spec §4.3 step 4 of the Adaptive law).
type EncoderLatencyLimiterConfig struct {
	MaxSaturationMultiplier float64
}

// DecoderLatencyLimiterConfig caps bitrate when the client reports
// sustained decoder latency overstep (spec §4.3, report_frame_latencies).
type DecoderLatencyLimiterConfig struct {
	MaxDecoderLatencyMs       uint64
	LatencyOverstepFrames     int
	LatencyOverstepMultiplier float64
}

// AdaptiveConfig parametrizes ModeAdaptive, the classical multi-limiter law.
type AdaptiveConfig struct {
	SaturationMultiplier float64
	MaxBitrateMbps       Switch[float64]
	MinBitrateMbps       Switch[float64]
	MaxNetworkLatencyMs  Switch[uint64]
	EncoderLatencyLimiter Switch[EncoderLatencyLimiterConfig]
	DecoderLatencyLimiter Switch[DecoderLatencyLimiterConfig]

	// HistorySize is the explicit running-average window size for this
	// mode (spec §4.3 control-tick gating, step 1: "Adaptive: explicit
	// history_size").
	HistorySize int
}

// Config is the full bitrate-law configuration passed to GetEncoderParams
// every control tick. Equality (via Equal) drives the "config differs from
// previous" gate in spec §4.3.
type Config struct {
	Mode         Mode
	ConstantMbps float64
	NestVr       NestVrConfig
	Adaptive     AdaptiveConfig

	// AdaptiveFramerate, when enabled, both (a) feeds report_frame_present's
	// reset-threshold check and (b) selects the framerate output path: the
	// measured frame-interval average instead of the nominal interval.
	AdaptiveFramerate Switch[FramerateConfig]
}

// Equal reports whether two configs are identical. Used to gate
// reconfiguration and the update_needed short-circuit in GetEncoderParams.
func (c Config) Equal(other Config) bool {
	return reflect.DeepEqual(c, other)
}
