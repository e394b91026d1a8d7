// Package server implements the server side of the handshake and per-client
// bitrate control loop: broadcasting the discovery beacon, accepting control
// connections, negotiating a session, and driving one bitrate.Manager per
// connected client from the RTCP-carried feedback netstats decodes. Actual
// frame encoding/transport is out of scope (spec §1); this package is the
// concrete wiring the distilled spec assumes already exists around
// BitrateManager.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nestvr/corestream/internal/apstats"
	"github.com/nestvr/corestream/internal/bitrate"
	"github.com/nestvr/corestream/internal/config"
	"github.com/nestvr/corestream/internal/controlsocket"
	"github.com/nestvr/corestream/internal/netbeacon"
)

// beaconInterval is how often the discovery beacon is rebroadcast while the
// server is waiting for a client, mirroring the client's DiscoveryRetryPause
// on the other side of the handshake.
const beaconInterval = 500 * time.Millisecond

// controlPort/streamPort mirror the fixed ports internal/connection's
// client pipeline dials against.
const (
	controlPort = 9944
	streamPort  = 9945
)

// Server owns the discovery beacon and the control-socket listener for one
// NestVR host. Each accepted client gets its own Session and Manager.
type Server struct {
	cfg *config.ServerConfig
	log *slog.Logger

	announcer *netbeacon.AnnouncerSocket
	httpSrv   *http.Server

	apPoller *apstats.SNMPPoller
}

// New constructs a Server from cfg, ready to Run. hostname is announced in
// every discovery beacon; an empty value falls back to os.Hostname() inside
// netbeacon.NewAnnouncerSocket.
func New(cfg *config.ServerConfig, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	announcer, err := netbeacon.NewAnnouncerSocket(cfg.Hostname, cfg.ProtocolID)
	if err != nil {
		return nil, fmt.Errorf("server: announcer: %w", err)
	}

	s := &Server{cfg: cfg, log: log, announcer: announcer}

	if cfg.APStatsEnabled {
		poller, err := apstats.NewSNMPPoller(cfg.APStatsAddr, cfg.APStatsCommunity, cfg.APStatsInterface, log)
		if err != nil {
			announcer.Close()
			return nil, fmt.Errorf("server: apstats poller: %w", err)
		}
		s.apPoller = poller
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleControl)
	s.httpSrv = &http.Server{Addr: fmt.Sprintf(":%d", controlPort), Handler: mux}

	return s, nil
}

// Run starts the beacon loop and the control-socket HTTP listener. It
// blocks until ctx is cancelled, then shuts both down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control listener starting", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server: control listener: %w", err)
		}
	}()

	go s.beaconLoop(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
		s.announcer.Close()
		return nil
	case err := <-errCh:
		s.announcer.Close()
		return err
	}
}

func (s *Server) beaconLoop(ctx context.Context) {
	ticker := time.NewTicker(beaconInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.announcer.Broadcast(); err != nil {
				s.log.Warn("beacon broadcast failed", "error", err)
			}
		}
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	proto, err := controlsocket.AcceptFromClient(w, r)
	if err != nil {
		s.log.Warn("control accept failed", "error", err)
		return
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	go s.runSession(proto, host)
}

// bitrateConfig returns the current Manager-facing bitrate law derived
// from the server config.
func (s *Server) bitrateConfig() bitrate.Config {
	return s.cfg.ToBitrateConfig()
}
