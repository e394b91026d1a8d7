// Package negconfig parses the handshake's free-form "negotiated config"
// document into the few fields the client actually needs, falling back to
// the same defaults the original implementation uses when a key is absent
// or malformed — this blob is intentionally forward-compatible, so older
// clients should not fail the handshake over keys they don't recognize.
package negconfig

import "encoding/json"

// Resolution mirrors a 2D pixel size.
type Resolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// NegotiatedConfig is the subset of the server's negotiated settings the
// client pipeline consumes directly.
type NegotiatedConfig struct {
	ViewResolution      Resolution
	RefreshRateHint     float32
	GameAudioSampleRate uint32
}

const (
	defaultRefreshRateHint     = 60.0
	defaultGameAudioSampleRate = 44100
)

// Build encodes cfg as the same free-form JSON document Parse consumes, for
// the server side of the handshake to embed in StreamConfigPacket.Negotiated.
func Build(cfg NegotiatedConfig) ([]byte, error) {
	return json.Marshal(map[string]any{
		"view_resolution":        cfg.ViewResolution,
		"refresh_rate_hint":      cfg.RefreshRateHint,
		"game_audio_sample_rate": cfg.GameAudioSampleRate,
	})
}

// Parse decodes raw (a JSON object) into a NegotiatedConfig, substituting
// defaults for any key that is missing or the wrong type rather than
// failing the whole handshake.
func Parse(raw []byte) (NegotiatedConfig, error) {
	var fields map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return NegotiatedConfig{}, err
		}
	}

	cfg := NegotiatedConfig{
		RefreshRateHint:     defaultRefreshRateHint,
		GameAudioSampleRate: defaultGameAudioSampleRate,
	}

	if v, ok := fields["view_resolution"]; ok {
		var res Resolution
		if json.Unmarshal(v, &res) == nil {
			cfg.ViewResolution = res
		}
	}
	if v, ok := fields["refresh_rate_hint"]; ok {
		var f float32
		if json.Unmarshal(v, &f) == nil {
			cfg.RefreshRateHint = f
		}
	}
	if v, ok := fields["game_audio_sample_rate"]; ok {
		var n uint32
		if json.Unmarshal(v, &n) == nil {
			cfg.GameAudioSampleRate = n
		}
	}

	return cfg, nil
}
