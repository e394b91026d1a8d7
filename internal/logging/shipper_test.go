package logging

import (
	"log/slog"
	"testing"
	"time"

	"github.com/nestvr/corestream/internal/packets"
)

func TestNewShipperDefaults(t *testing.T) {
	ch := make(chan packets.LogMirrorEntry, 1)
	s := NewShipper(ShipperConfig{
		Channel:  ch,
		MinLevel: "warn",
	})

	if s.channel == nil {
		t.Fatal("channel should be set from config")
	}
	if s.minLevel != slog.LevelWarn {
		t.Fatalf("expected LevelWarn, got %v", s.minLevel)
	}
}

func TestShouldShip(t *testing.T) {
	tests := []struct {
		name     string
		minLevel string
		level    slog.Level
		expected bool
	}{
		{"warn ships error", "warn", slog.LevelError, true},
		{"warn ships warn", "warn", slog.LevelWarn, true},
		{"warn drops info", "warn", slog.LevelInfo, false},
		{"warn drops debug", "warn", slog.LevelDebug, false},
		{"debug ships debug", "debug", slog.LevelDebug, true},
		{"debug ships info", "debug", slog.LevelInfo, true},
		{"error ships error", "error", slog.LevelError, true},
		{"error drops warn", "error", slog.LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewShipper(ShipperConfig{MinLevel: tt.minLevel})
			if got := s.ShouldShip(tt.level); got != tt.expected {
				t.Fatalf("ShouldShip(%v) with minLevel=%s: got %v, want %v",
					tt.level, tt.minLevel, got, tt.expected)
			}
		})
	}
}

func TestSetMinLevel(t *testing.T) {
	s := NewShipper(ShipperConfig{MinLevel: "warn"})

	if s.ShouldShip(slog.LevelInfo) {
		t.Fatal("info should not ship at warn level")
	}

	s.SetMinLevel("debug")

	if !s.ShouldShip(slog.LevelInfo) {
		t.Fatal("info should ship at debug level")
	}
	if !s.ShouldShip(slog.LevelDebug) {
		t.Fatal("debug should ship at debug level")
	}
}

func TestEnqueueNonBlocking(t *testing.T) {
	s := NewShipper(ShipperConfig{MinLevel: "debug"})

	// Fill the buffer
	for i := 0; i < defaultBufferSize; i++ {
		s.Enqueue(LogEntry{Message: "fill"})
	}

	// This should not block even with a full buffer
	done := make(chan bool, 1)
	go func() {
		s.Enqueue(LogEntry{Message: "overflow"})
		done <- true
	}()

	select {
	case <-done:
		// Success, didn't block
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on full buffer")
	}
}

func TestShipperForwardsOntoChannel(t *testing.T) {
	ch := make(chan packets.LogMirrorEntry, 1)
	s := NewShipper(ShipperConfig{Channel: ch, MinLevel: "debug"})

	s.forward(LogEntry{
		Level:   "info",
		Message: "hello",
		Fields:  map[string]any{"key": "value"},
	})

	select {
	case entry := <-ch:
		if entry.Message != "hello" {
			t.Fatalf("unexpected message: %s", entry.Message)
		}
		if entry.Fields["key"] != "value" {
			t.Fatalf("unexpected fields: %#v", entry.Fields)
		}
	default:
		t.Fatal("expected a forwarded entry on the channel")
	}
}

func TestShipperForwardDropsWhenChannelFull(t *testing.T) {
	ch := make(chan packets.LogMirrorEntry) // unbuffered, nothing draining it
	s := NewShipper(ShipperConfig{Channel: ch, MinLevel: "debug"})

	s.forward(LogEntry{Message: "dropped"})

	if got := s.DroppedLogCount(); got != 1 {
		t.Fatalf("DroppedLogCount() = %d, want 1", got)
	}
}

func TestShipperStartStopDrains(t *testing.T) {
	ch := make(chan packets.LogMirrorEntry, 10)
	s := NewShipper(ShipperConfig{Channel: ch, MinLevel: "debug"})

	s.Start()
	for i := 0; i < 5; i++ {
		s.Enqueue(LogEntry{Message: "entry"})
	}
	s.Stop()

	if len(ch) != 5 {
		t.Fatalf("len(ch) = %d, want 5 drained entries", len(ch))
	}
}
