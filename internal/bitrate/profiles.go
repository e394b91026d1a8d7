package bitrate

// NestVrProfile names a built-in controller tuning preset. Custom echoes the
// caller-supplied ProfileConfig fields instead of a fixed table entry.
type NestVrProfile string

const (
	ProfileGeneric      NestVrProfile = "generic"
	ProfileMinMax       NestVrProfile = "min_max"
	ProfileDrop         NestVrProfile = "drop"
	ProfileSwiftDecline NestVrProfile = "swift_decline"
	ProfileMobility     NestVrProfile = "mobility"
	ProfileDense        NestVrProfile = "dense"
	ProfileCustom       NestVrProfile = "custom"
)

// ProfileConfig is the immutable tuple of scalar controller constants that
// drives one tick of the NestVr heuristic. All step sizes and thresholds are
// in the units the manager expects internally (Mbps for step sizes, seconds
// for intervals, fractions for probabilities/ratios).
type ProfileConfig struct {
	UpdateIntervalS        float64
	StepSizeMbps           float64
	RStepSizeMbps          float64 // asymmetric down-step
	CapacityScalingFactor  float64
	RttExplorProb          float64
	NfrThresh              float64
	RttThreshScalingFactor float64

	MaxBitrateMbps     float64
	MinBitrateMbps     float64
	InitialBitrateMbps float64
}

// builtinProfiles holds the fixed tuning tables from spec §6. Only the
// scalar constants are fixed per name; max/min/initial bitrate bounds are
// always taken from the caller, per §4.1.
var builtinProfiles = map[NestVrProfile]ProfileConfig{
	ProfileGeneric: {
		UpdateIntervalS: 1.0, StepSizeMbps: 10, RStepSizeMbps: 10,
		CapacityScalingFactor: 0.9, RttExplorProb: 0.25, NfrThresh: 0.95, RttThreshScalingFactor: 2.0,
	},
	ProfileMinMax: {
		UpdateIntervalS: 1.0, StepSizeMbps: 100, RStepSizeMbps: 100,
		CapacityScalingFactor: 0.9, RttExplorProb: 0.25, NfrThresh: 0.95, RttThreshScalingFactor: 2.0,
	},
	ProfileDrop: {
		UpdateIntervalS: 1.0, StepSizeMbps: 10, RStepSizeMbps: 100,
		CapacityScalingFactor: 0.9, RttExplorProb: 0.25, NfrThresh: 0.95, RttThreshScalingFactor: 2.0,
	},
	ProfileSwiftDecline: {
		UpdateIntervalS: 1.0, StepSizeMbps: 10, RStepSizeMbps: 20,
		CapacityScalingFactor: 0.9, RttExplorProb: 0.25, NfrThresh: 0.95, RttThreshScalingFactor: 2.0,
	},
	ProfileMobility: {
		UpdateIntervalS: 0.5, StepSizeMbps: 5, RStepSizeMbps: 15,
		CapacityScalingFactor: 0.9, RttExplorProb: 0.2, NfrThresh: 0.95, RttThreshScalingFactor: 1.5,
	},
	ProfileDense: {
		UpdateIntervalS: 1.0, StepSizeMbps: 20, RStepSizeMbps: 25,
		CapacityScalingFactor: 0.9, RttExplorProb: 0.5, NfrThresh: 0.95, RttThreshScalingFactor: 3.0,
	},
}

// ResolveProfileConfig returns the tuning constants for name, with max/min/
// initial bitrate bounds always taken from the caller (never the table). For
// ProfileCustom, custom must be non-nil and is echoed back verbatim except
// for the bounds, which are still overwritten by max/min/initial. A pure
// function: no side effects, no package state.
func ResolveProfileConfig(maxMbps, minMbps, initialMbps float64, name NestVrProfile, custom *ProfileConfig) ProfileConfig {
	var cfg ProfileConfig
	if name == ProfileCustom && custom != nil {
		cfg = *custom
	} else if fixed, ok := builtinProfiles[name]; ok {
		cfg = fixed
	} else {
		cfg = builtinProfiles[ProfileGeneric]
	}

	cfg.MaxBitrateMbps = maxMbps
	cfg.MinBitrateMbps = minMbps
	cfg.InitialBitrateMbps = initialMbps

	return cfg
}
