package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nestvr/corestream/internal/audio"
	"github.com/nestvr/corestream/internal/config"
	"github.com/nestvr/corestream/internal/connection"
	"github.com/nestvr/corestream/internal/connstate"
	"github.com/nestvr/corestream/internal/logging"
	"github.com/nestvr/corestream/internal/packets"
	"github.com/nestvr/corestream/internal/platform"
	"github.com/nestvr/corestream/internal/videodecoder"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "nestvr-client",
	Short: "NestVR streaming client",
	Long:  `NestVR Client - discovers a server, negotiates a session, and drives the decode/playback workers`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to a server and stream",
	Run: func(cmd *cobra.Command, args []string) {
		runClient()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("NestVR Client v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is client.yaml in the platform config directory)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.ClientConfig) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func runClient() {
	cfg, err := config.LoadClient(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogging(cfg)

	log.Info("starting nestvr-client", "version", version, "display_name", cfg.DisplayName)

	host := connection.HostDeps{
		Hostname:   cfg.DisplayName,
		ProtocolID: cfg.ProtocolID,
		Deps: connection.ClientDeps{
			Mic:      audio.NewNoopCapturer(cfg.MicrophoneSampleRate),
			Speaker:  audio.NewNoopPlayer(cfg.MicrophoneSampleRate),
			Decoder:  videodecoder.Noop{},
			Platform: platform.New(""),
			Capabilities: packets.StreamingCapabilities{
				DefaultViewWidth:      cfg.DefaultViewWidth,
				DefaultViewHeight:     cfg.DefaultViewHeight,
				SupportedRefreshRates: cfg.SupportedRefreshRates,
				MicrophoneSampleRate:  cfg.MicrophoneSampleRate,
			},
			DSCP:                cfg.DSCP,
			MinIDRInterval:      time.Duration(cfg.MinIDRIntervalMs) * time.Millisecond,
			AvoidVideoGlitching: cfg.AvoidVideoGlitching,
		},
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		connection.SetLifecycleState(connstate.ShuttingDown)
	}()

	connection.SetLifecycleState(connstate.Resumed)
	connection.RunLifecycle(host, log)
}
