// Package bitrate implements the server-side bitrate controller: a
// statistical model fed by frame/network telemetry, and two interchangeable
// control laws (the NestVr heuristic and the classical Adaptive limiter
// chain) that turn those statistics into a bitrate_bps/framerate pair once
// per control tick.
package bitrate

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nestvr/corestream/internal/apstats"
	"github.com/nestvr/corestream/internal/slidingwindow"
)

// Sampler draws a uniform [0,1) value for NestVr's exploration step.
// Injected so tests can force deterministic up/down decisions; production
// code uses defaultSampler, which wraps math/rand/v2.
type Sampler interface {
	Float64() float64
}

type defaultSampler struct{}

func (defaultSampler) Float64() float64 { return rand.Float64() }

// Manager is the per-session bitrate controller. One Manager tracks one
// client's running statistics and evaluates whichever Config.Mode it is
// handed each control tick. Safe for concurrent use: telemetry reports
// arrive from the receive goroutines while GetEncoderParams is invoked from
// the control-tick timer, all serialized behind mu.
type Manager struct {
	mu sync.Mutex

	log      *slog.Logger
	sampler  Sampler
	clientIP string

	maxHistorySize int

	nominalFrameInterval time.Duration
	lastFrameInstant     time.Time

	frameIntervalAvg     *slidingwindow.Average[time.Duration]
	encoderLatencyAvg    *slidingwindow.Average[time.Duration]
	networkLatencyAvg    *slidingwindow.Average[time.Duration]
	rttAvg               *slidingwindow.Average[time.Duration]
	bitrateAvg           *slidingwindow.Average[float64]
	peakThroughputAvg    *slidingwindow.Average[float64]
	frameInterarrivalAvg *slidingwindow.Average[float64]

	packetSizeHistory packetSizeHistory

	decoderLatencyOverstepCount int
	// dynamicMaxBitrateMbps is the Adaptive mode ceiling: read-only each
	// tick, mutated only by ReportFrameLatencies on a decoder-latency
	// overstep. Starts unbounded, matching the uncapped initial state.
	dynamicMaxBitrateMbps float64

	previousConfig    *Config
	updateNeeded      bool
	lastUpdateInstant time.Time

	lastTargetBitrateBps uint64

	lastAPStatsClient *apstats.Client
}

// NewManager constructs a Manager. maxHistorySize is the default count-
// window size used by ModeConstant and as the Adaptive fallback when
// AdaptiveConfig.HistorySize is unset; initialFramerate seeds the nominal
// frame interval before the first UpdateNominalFrameInterval call.
func NewManager(maxHistorySize int, initialFramerate float64, clientIP string, sampler Sampler, log *slog.Logger) *Manager {
	if maxHistorySize <= 0 {
		maxHistorySize = 1000
	}
	if sampler == nil {
		sampler = defaultSampler{}
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		log:                   log,
		sampler:               sampler,
		clientIP:              clientIP,
		maxHistorySize:        maxHistorySize,
		frameIntervalAvg:      slidingwindow.New[time.Duration](0, maxHistorySize),
		encoderLatencyAvg:     slidingwindow.New[time.Duration](0, maxHistorySize),
		networkLatencyAvg:     slidingwindow.New[time.Duration](0, maxHistorySize),
		rttAvg:                slidingwindow.New[time.Duration](0, maxHistorySize),
		bitrateAvg:            slidingwindow.New[float64](0, maxHistorySize),
		peakThroughputAvg:     slidingwindow.New[float64](0, maxHistorySize),
		frameInterarrivalAvg:  slidingwindow.New[float64](0, maxHistorySize),
		dynamicMaxBitrateMbps: math.MaxFloat64,
	}
	m.UpdateNominalFrameInterval(initialFramerate)
	return m
}

// UpdateNominalFrameInterval sets the expected per-frame interval from the
// negotiated target framerate. Called whenever the client renegotiates its
// display refresh rate.
func (m *Manager) UpdateNominalFrameInterval(framerate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if framerate > 0 {
		m.nominalFrameInterval = time.Duration(float64(time.Second) / framerate)
	}
}

// ReportFramePresent records that a frame was handed to the encoder/display
// pipeline, updating the measured frame-interval average. If cfg is enabled
// and the new interval deviates from the running average by more than the
// configured multiplier (in either direction), the history is shrunk to 5
// samples so the average snaps to the new regime instead of dragging stale
// history along, and the next control tick is forced to run early.
func (m *Manager) ReportFramePresent(cfg Switch[FramerateConfig]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.lastFrameInstant.IsZero() {
		interval := now.Sub(m.lastFrameInstant)
		m.frameIntervalAvg.Submit(interval)

		if cfg.Enabled && cfg.Value.ResetThresholdMultiplier > 1 {
			if avg := m.frameIntervalAvg.Average(); avg > 0 {
				ratio := float64(interval) / float64(avg)
				if ratio > cfg.Value.ResetThresholdMultiplier || ratio < 1/cfg.Value.ResetThresholdMultiplier {
					m.frameIntervalAvg.Retain(5)
					m.updateNeeded = true
				}
			}
		}
	}
	m.lastFrameInstant = now
}

// ReportFrameEncoded records one encoded frame's size, to later be matched
// up with the network latency its last shard incurs (see ReportFrameLatencies).
func (m *Manager) ReportFrameEncoded(timestamp time.Duration, encoderLatency time.Duration, sizeBytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encoderLatencyAvg.Submit(encoderLatency)
	m.packetSizeHistory.push(timestamp, uint64(sizeBytes)*8)
}

// ReportNetworkStatistics records one round of transport-layer feedback:
// round-trip time, peak achievable throughput, and inter-frame arrival
// spacing, as carried back from the client over RTCP.
func (m *Manager) ReportNetworkStatistics(rtt time.Duration, peakThroughputBps float64, frameInterarrivalS float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rttAvg.Submit(rtt)
	m.peakThroughputAvg.Submit(peakThroughputBps)
	m.frameInterarrivalAvg.Submit(frameInterarrivalS)
}

// ReportFrameLatencies records the network and decoder latency observed for
// the frame identified by timestamp, drains the one packet-size-history
// entry exactly matching that timestamp into a bitrate sample (size in bits
// divided by the observed network latency), and tracks the decoder-latency
// overstep count. cfg supplies the decoder-latency-limiter thresholds (only
// meaningful under ModeAdaptive, but tracked unconditionally since a later
// config switch should not lose the overstep count's history). When the
// overstep count reaches latency_overstep_frames, this also lowers the
// sticky dynamicMaxBitrateMbps ceiling computeAdaptive reads on every tick
// and marks an out-of-band update as needed.
func (m *Manager) ReportFrameLatencies(cfg Config, timestamp time.Duration, networkLatency, decoderLatency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.networkLatencyAvg.Submit(networkLatency)

	if sizeBits, ok := m.packetSizeHistory.drainThrough(timestamp); ok && networkLatency > 0 {
		m.bitrateAvg.Submit(float64(sizeBits) / networkLatency.Seconds())
	}

	lim := cfg.Adaptive.DecoderLatencyLimiter
	if !lim.Enabled {
		return
	}

	if decoderLatency <= time.Duration(lim.Value.MaxDecoderLatencyMs)*time.Millisecond {
		m.decoderLatencyOverstepCount = 0
		return
	}

	m.decoderLatencyOverstepCount++
	if lim.Value.LatencyOverstepFrames > 0 && m.decoderLatencyOverstepCount == lim.Value.LatencyOverstepFrames {
		m.dynamicMaxBitrateMbps = math.Min(m.bitrateAvg.Average()/1e6, m.dynamicMaxBitrateMbps) * lim.Value.LatencyOverstepMultiplier
		m.updateNeeded = true
		m.decoderLatencyOverstepCount = 0
	}
}

// ReportAPStatistics ingests a fresh access-point snapshot. Per design,
// this never feeds the bitrate law directly — it only refreshes the
// per-client counters a diagnostics surface might display.
func (m *Manager) ReportAPStatistics(snapshot apstats.APStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := snapshot.FindClient(m.clientIP)
	if !ok {
		m.log.Warn("apstats: no matching client in snapshot", "client_ip", m.clientIP)
		return
	}
	m.lastAPStatsClient = &client
}

// GetEncoderParams evaluates cfg for the current tick and returns the
// bitrate/framerate the encoder should use, plus diagnostic limiter stats
// (only populated under ModeAdaptive).
func (m *Manager) GetEncoderParams(cfg Config) (EncoderParams, NominalBitrateStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	configChanged := m.previousConfig == nil || !m.previousConfig.Equal(cfg)
	if configChanged {
		m.reconfigureWindows(cfg)
		prev := cfg
		m.previousConfig = &prev
		m.updateNeeded = true
	}

	var stats NominalBitrateStats
	var bitrateBps uint64
	updated := false

	switch cfg.Mode {
	case ModeConstant:
		bitrateBps = uint64(cfg.ConstantMbps * 1e6)
		updated = configChanged && bitrateBps != m.lastTargetBitrateBps
		m.lastTargetBitrateBps = bitrateBps
		m.updateNeeded = false

	case ModeNestVr:
		profile := ResolveProfileConfig(cfg.NestVr.MaxBitrateMbps, cfg.NestVr.MinBitrateMbps, cfg.NestVr.InitialBitrateMbps, cfg.NestVr.Profile, &cfg.NestVr.Custom)
		interval := time.Duration(profile.UpdateIntervalS * float64(time.Second))

		if !configChanged && !m.updateNeeded && interval > 0 && now.Sub(m.lastUpdateInstant) < interval {
			bitrateBps = m.lastTargetBitrateBps
			break
		}

		bitrateBps = m.computeNestVr(profile)
		updated = bitrateBps != m.lastTargetBitrateBps || configChanged
		m.lastTargetBitrateBps = bitrateBps
		m.lastUpdateInstant = now
		m.updateNeeded = false

	case ModeAdaptive:
		bitrateBps, stats = m.computeAdaptive(cfg.Adaptive)
		updated = bitrateBps != m.lastTargetBitrateBps || configChanged
		m.lastTargetBitrateBps = bitrateBps
		m.updateNeeded = false
	}

	return EncoderParams{
		BitrateBps: bitrateBps,
		Framerate:  m.outputFramerate(cfg),
		Updated:    updated,
	}, stats
}

// computeNestVr evaluates one tick of the NestVr heuristic: step the target
// up or down based on measured framerate and RTT against profile-derived
// thresholds, quantise the result onto the step grid anchored at the
// previous target (step_size when increasing, r_step_size when decreasing —
// the two only coincide under the generic and min_max profiles), cap it against the
// capacity estimate (again by quantised stepping, not an unbounded
// decrement loop — see spec's capacity-cap-then-clamp redesign), then
// clamp into [min,max].
func (m *Manager) computeNestVr(profile ProfileConfig) uint64 {
	nominalFPS := 0.0
	if m.nominalFrameInterval > 0 {
		nominalFPS = 1.0 / m.nominalFrameInterval.Seconds()
	}
	heurFPS := nominalFPS
	if avg := m.frameIntervalAvg.Average(); avg > 0 {
		heurFPS = 1.0 / avg.Seconds()
	}
	thresholdFPS := profile.NfrThresh * nominalFPS
	thresholdRTT := time.Duration(profile.RttThreshScalingFactor * float64(m.nominalFrameInterval))

	target := m.lastTargetBitrateBps
	if target == 0 {
		target = uint64(profile.InitialBitrateMbps * 1e6)
	}

	stepBps := uint64(profile.StepSizeMbps * 1e6)
	rStepBps := uint64(profile.RStepSizeMbps * 1e6)

	degraded := heurFPS < thresholdFPS || (thresholdRTT > 0 && m.rttAvg.Average() > thresholdRTT)

	next := target
	quantiseStep := rStepBps
	switch {
	case degraded:
		next = saturatingSub(target, rStepBps)
		quantiseStep = rStepBps
	case m.sampler.Float64() < profile.RttExplorProb:
		next = target + stepBps
		quantiseStep = stepBps
	}

	next = quantise(next, target, quantiseStep)

	if capUpper := profile.CapacityScalingFactor * m.peakThroughputAvg.Average(); capUpper > 0 {
		capUpperBps := uint64(capUpper)
		for next > capUpperBps && rStepBps > 0 && next > rStepBps {
			next -= rStepBps
		}
		if next > capUpperBps {
			next = capUpperBps
		}
	}

	minBps := uint64(profile.MinBitrateMbps * 1e6)
	maxBps := uint64(profile.MaxBitrateMbps * 1e6)
	if next < minBps {
		next = minBps
	}
	if next > maxBps {
		next = maxBps
	}
	return next
}

// computeAdaptive evaluates the classical multi-limiter law: a calculated
// baseline (recent achieved bitrate scaled by saturation_multiplier), capped
// by dynamicMaxBitrateMbps (a sticky ceiling only ReportFrameLatencies ever
// lowers, on a decoder-latency overstep — never recomputed here), then
// narrowed by whichever optional limiters are enabled, in the order the
// settings schema lists them (network latency, encoder latency), and
// finally clamped to any manual bounds. The network- and encoder-latency
// limiter caps are derived from the raw (pre-saturation-multiplier) bitrate
// average, matching initial_bitrate_average_bps upstream.
func (m *Manager) computeAdaptive(cfg AdaptiveConfig) (uint64, NominalBitrateStats) {
	var stats NominalBitrateStats

	rawAvg := m.bitrateAvg.Average()
	baseline := rawAvg * cfg.SaturationMultiplier
	stats.ScaledCalculatedBitrateBps = uint64(baseline)

	result := baseline
	if result <= 0 {
		result = float64(m.lastTargetBitrateBps)
	}
	if cap := m.dynamicMaxBitrateMbps * 1e6; result > cap {
		result = cap
	}
	stats.NetworkThroughputLimiterBps = ptrUint64(uint64(result))

	if cfg.MaxNetworkLatencyMs.Enabled {
		maxLatency := time.Duration(cfg.MaxNetworkLatencyMs.Value) * time.Millisecond
		if avg := m.networkLatencyAvg.Average(); avg > maxLatency && avg > 0 {
			limited := rawAvg * float64(maxLatency) / float64(avg)
			if limited < result {
				result = limited
				stats.NetworkLatencyLimiterBps = ptrUint64(uint64(limited))
			}
		}
	}

	if cfg.EncoderLatencyLimiter.Enabled {
		maxEncoderLatency := time.Duration(float64(m.nominalFrameInterval) * cfg.EncoderLatencyLimiter.Value.MaxSaturationMultiplier)
		if avg := m.encoderLatencyAvg.Average(); avg > maxEncoderLatency && avg > 0 {
			limited := rawAvg * float64(maxEncoderLatency) / float64(avg)
			if limited < result {
				result = limited
				stats.EncoderLatencyLimiterBps = ptrUint64(uint64(limited))
			}
		}
	}

	if cfg.MaxBitrateMbps.Enabled {
		max := cfg.MaxBitrateMbps.Value * 1e6
		stats.ManualMaxBps = ptrUint64(uint64(max))
		if result > max {
			result = max
		}
	}
	if cfg.MinBitrateMbps.Enabled {
		min := cfg.MinBitrateMbps.Value * 1e6
		stats.ManualMinBps = ptrUint64(uint64(min))
		if result < min {
			result = min
		}
	}

	if result < 0 {
		result = 0
	}
	return uint64(result), stats
}

// outputFramerate picks the measured frame-interval average when
// AdaptiveFramerate is enabled and seeded, otherwise the nominal (display
// refresh rate derived) interval.
func (m *Manager) outputFramerate(cfg Config) float32 {
	if cfg.AdaptiveFramerate.Enabled {
		if avg := m.frameIntervalAvg.Average(); avg > 0 {
			return float32(1.0 / avg.Seconds())
		}
	}
	if m.nominalFrameInterval > 0 {
		return float32(1.0 / m.nominalFrameInterval.Seconds())
	}
	return 0
}

// reconfigureWindows applies the windowing policy derived from cfg.Mode to
// every telemetry average except bitrateAvg, which always keeps a plain
// count window since it underlies both control laws' capacity/baseline
// estimates regardless of which one is active.
func (m *Manager) reconfigureWindows(cfg Config) {
	var policy slidingwindow.Config
	switch cfg.Mode {
	case ModeNestVr:
		profile := ResolveProfileConfig(cfg.NestVr.MaxBitrateMbps, cfg.NestVr.MinBitrateMbps, cfg.NestVr.InitialBitrateMbps, cfg.NestVr.Profile, &cfg.NestVr.Custom)
		horizon := profile.UpdateIntervalS * 5
		if horizon <= 0 {
			horizon = 5
		}
		policy = slidingwindow.Config{Discipline: slidingwindow.DisciplineTime, Interval: time.Duration(horizon * float64(time.Second))}
	case ModeAdaptive:
		n := cfg.Adaptive.HistorySize
		if n <= 0 {
			n = m.maxHistorySize
		}
		policy = slidingwindow.Config{Discipline: slidingwindow.DisciplineCount, MaxSamples: n}
	default:
		policy = slidingwindow.Config{Discipline: slidingwindow.DisciplineCount, MaxSamples: m.maxHistorySize}
	}

	m.frameIntervalAvg.Reconfigure(policy)
	m.encoderLatencyAvg.Reconfigure(policy)
	m.networkLatencyAvg.Reconfigure(policy)
	m.rttAvg.Reconfigure(policy)
	m.peakThroughputAvg.Reconfigure(policy)
	m.frameInterarrivalAvg.Reconfigure(policy)
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// quantise snaps value onto the grid of spacing step anchored at base,
// rounding toward base. With step == 0 it is a no-op.
func quantise(value, base, step uint64) uint64 {
	if step == 0 {
		return value
	}
	diff := int64(value) - int64(base)
	steps := diff / int64(step)
	return uint64(int64(base) + steps*int64(step))
}
