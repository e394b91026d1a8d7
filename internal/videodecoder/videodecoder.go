// Package videodecoder defines the boundary the video-receive worker hands
// NAL units across. Decoder implementation itself is out of scope for this
// repo (spec §1); this package only declares the interface plus two
// concrete adapters: a no-op default and a build-tag-gated OpenH264 one.
package videodecoder

// Decoder consumes NAL units and reports whether its internal buffer is
// saturated, the signal the bitrate controller's encoder-latency limiter
// watches for.
type Decoder interface {
	// PushNAL hands one NAL unit (possibly an IDR) to the decoder.
	PushNAL(nal []byte, isIDR bool) error
	// Saturated reports whether the decoder is falling behind.
	Saturated() bool
	Close() error
}

// Noop discards every NAL unit and never reports saturation. Used when no
// concrete decoder is wired (e.g. headless server-side tests).
type Noop struct{}

func (Noop) PushNAL(nal []byte, isIDR bool) error { return nil }
func (Noop) Saturated() bool                      { return false }
func (Noop) Close() error                          { return nil }
