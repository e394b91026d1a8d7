package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestServerValidateBadModeIsFatal(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.BitrateMode = "turbo"
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("unknown bitrate_mode should be fatal")
	}
}

func TestServerValidateMaxBelowMinIsFatal(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MinBitrateMbps = 50
	cfg.MaxBitrateMbps = 10
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("max_bitrate_mbps below min_bitrate_mbps should be fatal")
	}
}

func TestServerValidateAPStatsEnabledWithoutAddrIsFatal(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.APStatsEnabled = true
	cfg.APStatsAddr = ""
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("apstats_enabled without apstats_addr should be fatal")
	}
}

func TestServerValidateUnknownProfileIsWarning(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.NestVrProfile = "ultra"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("unknown profile should be a warning, not fatal: %v", result.Fatals)
	}
	if cfg.NestVrProfile != "generic" {
		t.Fatalf("NestVrProfile = %q, want clamped to generic", cfg.NestVrProfile)
	}
}

func TestServerValidateInitialBitrateClampedIntoRange(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MinBitrateMbps = 10
	cfg.MaxBitrateMbps = 50
	cfg.InitialBitrateMbps = 200
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("out-of-range initial bitrate should be a warning: %v", result.Fatals)
	}
	if cfg.InitialBitrateMbps != cfg.MinBitrateMbps {
		t.Fatalf("InitialBitrateMbps = %v, want clamped to min %v", cfg.InitialBitrateMbps, cfg.MinBitrateMbps)
	}
}

func TestServerValidateSaturationMultiplierClamped(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.AdaptiveSaturationMultiplier = 5
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("bad saturation multiplier should be a warning, not fatal")
	}
	if cfg.AdaptiveSaturationMultiplier != 0.9 {
		t.Fatalf("AdaptiveSaturationMultiplier = %v, want clamped to 0.9", cfg.AdaptiveSaturationMultiplier)
	}
}

func TestServerValidateDSCPClamped(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.DSCP = 200
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("out-of-range dscp should be a warning, not fatal")
	}
	if cfg.DSCP != 0 {
		t.Fatalf("DSCP = %d, want clamped to 0", cfg.DSCP)
	}
}

func TestServerValidDefaultHasNoErrors(t *testing.T) {
	cfg := DefaultServerConfig()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("default server config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default server config has warnings: %v", result.Warnings)
	}
}

func TestClientValidateZeroResolutionIsFatal(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.DefaultViewWidth = 0
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("zero default_view_width should be fatal")
	}
}

func TestClientValidateNegativeRefreshRateIsFatal(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.SupportedRefreshRates = []float32{60, -5}
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("negative refresh rate should be fatal")
	}
}

func TestClientValidateEmptyRefreshRatesIsWarning(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.SupportedRefreshRates = nil
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("empty refresh rates should be a warning: %v", result.Fatals)
	}
	if len(cfg.SupportedRefreshRates) == 0 {
		t.Fatal("expected SupportedRefreshRates to be defaulted")
	}
}

func TestClientValidateMicrophoneSampleRateDefaulted(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.MicrophoneSampleRate = 0
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("unset microphone sample rate should be a warning")
	}
	if cfg.MicrophoneSampleRate != 44100 {
		t.Fatalf("MicrophoneSampleRate = %d, want 44100", cfg.MicrophoneSampleRate)
	}
}

func TestClientValidateUnknownLogLevelIsWarning(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.LogLevel = "verbose"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	found := false
	for _, err := range result.Warnings {
		if strings.Contains(err.Error(), "log_level") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warning about unknown log level")
	}
}

func TestClientValidateInvalidLogFormatIsWarning(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.LogFormat = "xml"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestClientValidDefaultHasNoErrors(t *testing.T) {
	cfg := DefaultClientConfig()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("default client config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default client config has warnings: %v", result.Warnings)
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.BitrateMode = "turbo"         // fatal
	cfg.NestVrProfile = "ultra"       // not reported: the profile check only applies in nestvr mode
	cfg.DSCP = 200                    // warning: clamped to 0
	result := cfg.Validate()

	all := result.AllErrors()
	if len(all) == 0 {
		t.Fatal("AllErrors() returned no errors for an invalid config")
	}
	if len(result.Fatals) == 0 || len(result.Warnings) == 0 {
		t.Fatalf("expected both fatals and warnings, got %d fatals and %d warnings", len(result.Fatals), len(result.Warnings))
	}
	if len(all) != len(result.Fatals)+len(result.Warnings) {
		t.Fatalf("AllErrors() length %d != fatals+warnings %d", len(all), len(result.Fatals)+len(result.Warnings))
	}
}
