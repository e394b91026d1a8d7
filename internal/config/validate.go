package config

import (
	"fmt"
	"strings"
)

var validBitrateModes = map[string]bool{
	"constant": true,
	"nestvr":   true,
	"adaptive": true,
}

var validNestVrProfiles = map[string]bool{
	"generic":       true,
	"min_max":       true,
	"drop":          true,
	"swift_decline": true,
	"mobility":      true,
	"dense":         true,
	"custom":        true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidationResult splits validation problems into fatal errors, which make
// the config unusable, and warnings, which are clamped or defaulted and
// logged but do not prevent startup.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal error was found.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals and warnings concatenated, fatals first.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// Validate checks a ServerConfig for invalid values and clamps recoverable
// ones to safe defaults, returning the fatal/warning split as ValidationResult.
func (c *ServerConfig) Validate() ValidationResult {
	var result ValidationResult

	mode := strings.ToLower(c.BitrateMode)
	if mode == "" {
		result.Warnings = append(result.Warnings, fmt.Errorf("bitrate_mode unset, defaulting to nestvr"))
		c.BitrateMode = "nestvr"
	} else if !validBitrateModes[mode] {
		result.Fatals = append(result.Fatals, fmt.Errorf("bitrate_mode %q is not one of constant, nestvr, adaptive", c.BitrateMode))
	}

	if strings.ToLower(c.BitrateMode) == "nestvr" && c.NestVrProfile != "" && !validNestVrProfiles[strings.ToLower(c.NestVrProfile)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("nestvr_profile %q is not a known profile, defaulting to generic", c.NestVrProfile))
		c.NestVrProfile = "generic"
	}

	if c.MinBitrateMbps <= 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("min_bitrate_mbps %v is non-positive, clamping to 1", c.MinBitrateMbps))
		c.MinBitrateMbps = 1
	}
	if c.MaxBitrateMbps <= c.MinBitrateMbps {
		result.Fatals = append(result.Fatals, fmt.Errorf("max_bitrate_mbps %v must exceed min_bitrate_mbps %v", c.MaxBitrateMbps, c.MinBitrateMbps))
	}
	if c.InitialBitrateMbps < c.MinBitrateMbps || c.InitialBitrateMbps > c.MaxBitrateMbps {
		result.Warnings = append(result.Warnings, fmt.Errorf("initial_bitrate_mbps %v outside [min,max], clamping to min", c.InitialBitrateMbps))
		c.InitialBitrateMbps = c.MinBitrateMbps
	}

	if c.AdaptiveSaturationMultiplier <= 0 || c.AdaptiveSaturationMultiplier > 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("adaptive_saturation_multiplier %v outside (0,1], clamping to 0.9", c.AdaptiveSaturationMultiplier))
		c.AdaptiveSaturationMultiplier = 0.9
	}
	if c.AdaptiveHistorySize < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("adaptive_history_size %d is below minimum 1, clamping", c.AdaptiveHistorySize))
		c.AdaptiveHistorySize = 1024
	}
	if c.MaxNetworkLatencyMs == 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_network_latency_ms unset, defaulting to 100"))
		c.MaxNetworkLatencyMs = 100
	}

	if c.APStatsEnabled && c.APStatsAddr == "" {
		result.Fatals = append(result.Fatals, fmt.Errorf("apstats_addr is required when apstats_enabled is true"))
	}

	if c.DSCP < 0 || c.DSCP > 63 {
		result.Warnings = append(result.Warnings, fmt.Errorf("dscp %d outside valid range [0,63], clamping to 0", c.DSCP))
		c.DSCP = 0
	}

	validateLogFields(&result, c.LogLevel, c.LogFormat)

	return result
}

// Validate checks a ClientConfig for invalid values and clamps recoverable
// ones to safe defaults, returning the fatal/warning split as ValidationResult.
func (c *ClientConfig) Validate() ValidationResult {
	var result ValidationResult

	if c.DefaultViewWidth == 0 || c.DefaultViewHeight == 0 {
		result.Fatals = append(result.Fatals, fmt.Errorf("default_view_width/default_view_height must both be non-zero"))
	}

	if len(c.SupportedRefreshRates) == 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("supported_refresh_rates empty, defaulting to [60]"))
		c.SupportedRefreshRates = []float32{60}
	}
	for _, rate := range c.SupportedRefreshRates {
		if rate <= 0 {
			result.Fatals = append(result.Fatals, fmt.Errorf("supported_refresh_rates contains non-positive value %v", rate))
			break
		}
	}

	if c.MicrophoneSampleRate == 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("microphone_sample_rate unset, defaulting to 44100"))
		c.MicrophoneSampleRate = 44100
	}

	if c.MinIDRIntervalMs < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("min_idr_interval_ms %d is negative, clamping to 0", c.MinIDRIntervalMs))
		c.MinIDRIntervalMs = 0
	}

	if c.DSCP < 0 || c.DSCP > 63 {
		result.Warnings = append(result.Warnings, fmt.Errorf("dscp %d outside valid range [0,63], clamping to 0", c.DSCP))
		c.DSCP = 0
	}

	validateLogFields(&result, c.LogLevel, c.LogFormat)

	return result
}

func validateLogFields(result *ValidationResult, level, format string) {
	if level != "" && !validLogLevels[strings.ToLower(level)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), defaulting to info", level))
	}
	if format != "" && format != "text" && format != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), defaulting to text", format))
	}
}
