package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/nestvr/corestream/internal/bitrate"
	"github.com/nestvr/corestream/internal/logging"
)

var log = logging.L("config")

// ServerConfig drives the nestvr-server binary: discovery/handshake
// networking, the bitrate law fed into internal/bitrate.Manager every
// control tick, and the ambient logging/AP-stats ingestion settings.
type ServerConfig struct {
	Hostname   string `mapstructure:"hostname"`
	ProtocolID uint32 `mapstructure:"protocol_id"`
	DSCP       int    `mapstructure:"dscp"`

	BitrateMode        string  `mapstructure:"bitrate_mode"` // "constant", "nestvr", "adaptive"
	ConstantMbps       float64 `mapstructure:"constant_mbps"`
	NestVrProfile      string  `mapstructure:"nestvr_profile"`
	MinBitrateMbps     float64 `mapstructure:"min_bitrate_mbps"`
	MaxBitrateMbps     float64 `mapstructure:"max_bitrate_mbps"`
	InitialBitrateMbps float64 `mapstructure:"initial_bitrate_mbps"`

	AdaptiveSaturationMultiplier float64 `mapstructure:"adaptive_saturation_multiplier"`
	AdaptiveHistorySize          int     `mapstructure:"adaptive_history_size"`
	MaxNetworkLatencyMs          uint64  `mapstructure:"max_network_latency_ms"`

	APStatsEnabled   bool   `mapstructure:"apstats_enabled"`
	APStatsAddr      string `mapstructure:"apstats_addr"`
	APStatsCommunity string `mapstructure:"apstats_community"`
	APStatsInterface string `mapstructure:"apstats_interface"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// ClientConfig drives the nestvr-client binary: what it advertises to a
// discovered server and how it drives the local decode/playback stack.
type ClientConfig struct {
	DisplayName      string `mapstructure:"display_name"`
	ProtocolID       uint32 `mapstructure:"protocol_id"`
	DSCP             int    `mapstructure:"dscp"`
	MinIDRIntervalMs int    `mapstructure:"min_idr_interval_ms"`
	// AvoidVideoGlitching holds back non-IDR frames from the decoder once the
	// stream is flagged corrupted (packet loss or decoder saturation),
	// instead of feeding it visibly glitched frames, until the next IDR.
	AvoidVideoGlitching bool `mapstructure:"avoid_video_glitching"`

	DefaultViewWidth      uint32    `mapstructure:"default_view_width"`
	DefaultViewHeight     uint32    `mapstructure:"default_view_height"`
	SupportedRefreshRates []float32 `mapstructure:"supported_refresh_rates"`
	MicrophoneSampleRate  uint32    `mapstructure:"microphone_sample_rate"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// DefaultServerConfig returns the baseline server configuration: NestVr mode
// at the generic profile, matching bitrate.ProfileGeneric.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ProtocolID: 1,
		DSCP:       0,

		BitrateMode:        "nestvr",
		NestVrProfile:      "generic",
		MinBitrateMbps:     5,
		MaxBitrateMbps:     100,
		InitialBitrateMbps: 30,

		AdaptiveSaturationMultiplier: 0.9,
		AdaptiveHistorySize:          1024,
		MaxNetworkLatencyMs:          100,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
	}
}

// DefaultClientConfig returns the baseline client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ProtocolID:          1,
		DSCP:                0,
		MinIDRIntervalMs:    500,
		AvoidVideoGlitching: true,

		DefaultViewWidth:      2432,
		DefaultViewHeight:     2160,
		SupportedRefreshRates: []float32{60, 72, 90},
		MicrophoneSampleRate:  44100,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
	}
}

// LoadServer reads server config from cfgFile (or the default search path)
// plus NESTVR_-prefixed environment overrides.
func LoadServer(cfgFile string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	v := newViper(cfgFile, "server")
	if err := readAndUnmarshal(v, cfg); err != nil {
		return nil, err
	}

	result := cfg.Validate()
	logValidation(result)
	if result.HasFatals() {
		return nil, fmt.Errorf("server config has fatal validation errors: %v", result.Fatals[0])
	}
	return cfg, nil
}

// LoadClient reads client config from cfgFile (or the default search path)
// plus NESTVR_-prefixed environment overrides.
func LoadClient(cfgFile string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	v := newViper(cfgFile, "client")
	if err := readAndUnmarshal(v, cfg); err != nil {
		return nil, err
	}

	result := cfg.Validate()
	logValidation(result)
	if result.HasFatals() {
		return nil, fmt.Errorf("client config has fatal validation errors: %v", result.Fatals[0])
	}
	return cfg, nil
}

func newViper(cfgFile, configName string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	v.SetEnvPrefix("NESTVR")
	return v
}

func readAndUnmarshal(v *viper.Viper, cfg any) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return v.Unmarshal(cfg)
}

func logValidation(result ValidationResult) {
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	for _, err := range result.Fatals {
		log.Error("config validation fatal", "error", err)
	}
}

// ToBitrateConfig translates the YAML-facing server settings into the
// bitrate.Config shape Manager.GetEncoderParams expects every control tick.
func (c *ServerConfig) ToBitrateConfig() bitrate.Config {
	cfg := bitrate.Config{}

	switch c.BitrateMode {
	case "constant":
		cfg.Mode = bitrate.ModeConstant
		cfg.ConstantMbps = c.ConstantMbps
	case "adaptive":
		cfg.Mode = bitrate.ModeAdaptive
		cfg.Adaptive = bitrate.AdaptiveConfig{
			SaturationMultiplier: c.AdaptiveSaturationMultiplier,
			MaxBitrateMbps:       bitrate.Enabled(c.MaxBitrateMbps),
			MinBitrateMbps:       bitrate.Enabled(c.MinBitrateMbps),
			MaxNetworkLatencyMs:  bitrate.Enabled(c.MaxNetworkLatencyMs),
			HistorySize:          c.AdaptiveHistorySize,
		}
	default: // "nestvr"
		cfg.Mode = bitrate.ModeNestVr
		cfg.NestVr = bitrate.NestVrConfig{
			MaxBitrateMbps:     c.MaxBitrateMbps,
			MinBitrateMbps:     c.MinBitrateMbps,
			InitialBitrateMbps: c.InitialBitrateMbps,
			Profile:            bitrate.NestVrProfile(c.NestVrProfile),
		}
	}

	return cfg
}

// GetDataDir returns the platform-specific data directory.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "NestVR", "data")
	case "darwin":
		return "/Library/Application Support/NestVR/data"
	default:
		return "/var/lib/nestvr"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "NestVR")
	case "darwin":
		return "/Library/Application Support/NestVR"
	default:
		return "/etc/nestvr"
	}
}
