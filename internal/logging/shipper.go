package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nestvr/corestream/internal/packets"
)

const defaultBufferSize = 1000

// LogEntry represents a single log record queued for mirroring onto the
// active session's control channel.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Shipper buffers log entries and forwards them, one at a time, onto a
// packets.LogMirrorEntry channel — the control-sender worker in
// internal/connection drains that channel onto the live control socket
// (spec §4.7 "Control sender" cadence 1). This is the same buffer+
// background-drain+drop-with-warning shape the teacher's original HTTP
// log shipper used, repointed at an in-process channel instead of a
// remote API: there's no batching or retry here because a channel send
// either succeeds immediately or the session is gone, unlike an HTTP POST.
type Shipper struct {
	channel      chan<- packets.LogMirrorEntry
	buffer       chan LogEntry
	stopChan     chan struct{}
	wg           sync.WaitGroup
	stopOnce     sync.Once
	minLevel     slog.Level
	mu           sync.RWMutex // protects minLevel
	droppedCount atomic.Int64
}

// ShipperConfig configures the log mirror destination.
type ShipperConfig struct {
	Channel  chan<- packets.LogMirrorEntry
	MinLevel string // "debug", "info", "warn", "error"
}

// NewShipper creates a new log mirror forwarder. Channel may be nil
// (logging.Init is always safe to call before a session exists); entries
// are simply dropped until a real channel is installed via InitMirror.
func NewShipper(cfg ShipperConfig) *Shipper {
	return &Shipper{
		channel:  cfg.Channel,
		buffer:   make(chan LogEntry, defaultBufferSize),
		stopChan: make(chan struct{}),
		minLevel: parseLevel(cfg.MinLevel),
	}
}

// Start begins the background forwarding loop.
func (s *Shipper) Start() {
	s.wg.Add(1)
	go s.shipLoop()
}

// Stop gracefully stops the shipper, flushing remaining entries.
// Safe to call multiple times.
func (s *Shipper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Enqueue adds a log entry to the buffer. Non-blocking; drops if buffer is full.
func (s *Shipper) Enqueue(entry LogEntry) {
	select {
	case s.buffer <- entry:
	default:
		dropped := s.droppedCount.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			fmt.Fprintf(os.Stderr, "[log-mirror] buffer full, dropped %d log entries\n", dropped)
		}
	}
}

// SetMinLevel dynamically adjusts the minimum mirrored level.
func (s *Shipper) SetMinLevel(level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minLevel = parseLevel(level)
}

// ShouldShip returns true if the given level meets the minimum threshold.
func (s *Shipper) ShouldShip(level slog.Level) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return level >= s.minLevel
}

func (s *Shipper) shipLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			for {
				select {
				case entry := <-s.buffer:
					s.forward(entry)
				default:
					return
				}
			}

		case entry := <-s.buffer:
			s.forward(entry)
		}
	}
}

func (s *Shipper) forward(entry LogEntry) {
	if s.channel == nil {
		return
	}

	select {
	case s.channel <- packets.LogMirrorEntry{Level: entry.Level, Message: entry.Message, Fields: entry.Fields}:
	default:
		dropped := s.droppedCount.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			fmt.Fprintf(os.Stderr, "[log-mirror] control channel full, dropped %d log entries\n", dropped)
		}
	}
}

// DroppedLogCount returns the current count of dropped log entries and resets
// the counter to zero.
func (s *Shipper) DroppedLogCount() int64 {
	return s.droppedCount.Swap(0)
}
