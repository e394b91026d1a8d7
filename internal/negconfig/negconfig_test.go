package negconfig

import "testing"

func TestParseFullDocument(t *testing.T) {
	raw := []byte(`{
		"view_resolution": {"width": 3616, "height": 1812},
		"refresh_rate_hint": 90,
		"game_audio_sample_rate": 48000
	}`)

	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.ViewResolution != (Resolution{Width: 3616, Height: 1812}) {
		t.Fatalf("ViewResolution = %+v", cfg.ViewResolution)
	}
	if cfg.RefreshRateHint != 90 {
		t.Fatalf("RefreshRateHint = %v, want 90", cfg.RefreshRateHint)
	}
	if cfg.GameAudioSampleRate != 48000 {
		t.Fatalf("GameAudioSampleRate = %v, want 48000", cfg.GameAudioSampleRate)
	}
}

func TestParseFallsBackToDefaultsOnMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.RefreshRateHint != defaultRefreshRateHint {
		t.Fatalf("RefreshRateHint = %v, want default %v", cfg.RefreshRateHint, defaultRefreshRateHint)
	}
	if cfg.GameAudioSampleRate != defaultGameAudioSampleRate {
		t.Fatalf("GameAudioSampleRate = %v, want default %v", cfg.GameAudioSampleRate, defaultGameAudioSampleRate)
	}
	if cfg.ViewResolution != (Resolution{}) {
		t.Fatalf("ViewResolution = %+v, want zero value", cfg.ViewResolution)
	}
}

func TestParseIgnoresMalformedFieldAndKeepsDefault(t *testing.T) {
	raw := []byte(`{"refresh_rate_hint": "not-a-number"}`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.RefreshRateHint != defaultRefreshRateHint {
		t.Fatalf("RefreshRateHint = %v, want default fallback %v", cfg.RefreshRateHint, defaultRefreshRateHint)
	}
}

func TestBuildThenParseRoundTrips(t *testing.T) {
	cfg := NegotiatedConfig{
		ViewResolution:      Resolution{Width: 2432, Height: 2160},
		RefreshRateHint:     72,
		GameAudioSampleRate: 48000,
	}

	raw, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestParseEmptyInput(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) returned error: %v", err)
	}
	if cfg.RefreshRateHint != defaultRefreshRateHint {
		t.Fatalf("RefreshRateHint = %v, want default %v", cfg.RefreshRateHint, defaultRefreshRateHint)
	}
}
