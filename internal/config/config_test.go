package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nestvr/corestream/internal/bitrate"
)

func TestDefaultServerConfigIsValid(t *testing.T) {
	cfg := DefaultServerConfig()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("DefaultServerConfig() failed validation: %v", result.Fatals)
	}
}

func TestDefaultClientConfigIsValid(t *testing.T) {
	cfg := DefaultClientConfig()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("DefaultClientConfig() failed validation: %v", result.Fatals)
	}
}

func TestLoadServerFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	contents := "bitrate_mode: adaptive\nmax_bitrate_mbps: 80\nmin_bitrate_mbps: 2\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer() error: %v", err)
	}
	if cfg.BitrateMode != "adaptive" {
		t.Fatalf("BitrateMode = %q, want adaptive", cfg.BitrateMode)
	}
	if cfg.MaxBitrateMbps != 80 {
		t.Fatalf("MaxBitrateMbps = %v, want 80", cfg.MaxBitrateMbps)
	}
}

func TestLoadServerMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadServer() error on missing file: %v", err)
	}
	if cfg.BitrateMode != DefaultServerConfig().BitrateMode {
		t.Fatalf("expected default bitrate mode when config file is absent, got %q", cfg.BitrateMode)
	}
}

func TestLoadServerRejectsFatalConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	contents := "bitrate_mode: turbo\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected LoadServer() to reject a fatally invalid config")
	}
}

func TestToBitrateConfigNestVrMode(t *testing.T) {
	cfg := DefaultServerConfig()
	bc := cfg.ToBitrateConfig()
	if bc.Mode != bitrate.ModeNestVr {
		t.Fatalf("Mode = %v, want ModeNestVr", bc.Mode)
	}
	if bc.NestVr.Profile != bitrate.NestVrProfile(cfg.NestVrProfile) {
		t.Fatalf("NestVr.Profile = %q, want %q", bc.NestVr.Profile, cfg.NestVrProfile)
	}
}

func TestToBitrateConfigAdaptiveMode(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.BitrateMode = "adaptive"
	bc := cfg.ToBitrateConfig()
	if bc.Mode != bitrate.ModeAdaptive {
		t.Fatalf("Mode = %v, want ModeAdaptive", bc.Mode)
	}
	if !bc.Adaptive.MaxBitrateMbps.Enabled || bc.Adaptive.MaxBitrateMbps.Value != cfg.MaxBitrateMbps {
		t.Fatalf("Adaptive.MaxBitrateMbps = %+v, want enabled with %v", bc.Adaptive.MaxBitrateMbps, cfg.MaxBitrateMbps)
	}
}

func TestToBitrateConfigConstantMode(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.BitrateMode = "constant"
	cfg.ConstantMbps = 42
	bc := cfg.ToBitrateConfig()
	if bc.Mode != bitrate.ModeConstant || bc.ConstantMbps != 42 {
		t.Fatalf("unexpected constant-mode config: %+v", bc)
	}
}

func TestLoadClientFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	contents := "display_name: headset-1\ndefault_view_width: 1920\ndefault_view_height: 1080\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error: %v", err)
	}
	if cfg.DisplayName != "headset-1" {
		t.Fatalf("DisplayName = %q, want headset-1", cfg.DisplayName)
	}
	if cfg.DefaultViewWidth != 1920 || cfg.DefaultViewHeight != 1080 {
		t.Fatalf("unexpected resolution %dx%d", cfg.DefaultViewWidth, cfg.DefaultViewHeight)
	}
}
