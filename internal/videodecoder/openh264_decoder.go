//go:build openh264

package videodecoder

import (
	"sync"

	openh264 "github.com/y9o/go-openh264"
)

// OpenH264Decoder forwards NAL units to the cgo-free OpenH264 binding. It
// adds nothing beyond saturation bookkeeping: the library owns every
// decode-side concern, this type is purely the boundary adapter named in
// SPEC_FULL.md §3.
type OpenH264Decoder struct {
	mu          sync.Mutex
	dec         *openh264.Decoder
	bufferedNAL int
	maxBuffered int
}

// NewOpenH264Decoder constructs a decoder allowing up to maxBuffered queued
// NAL units before Saturated reports true.
func NewOpenH264Decoder(maxBuffered int) (*OpenH264Decoder, error) {
	dec, err := openh264.NewDecoder()
	if err != nil {
		return nil, err
	}
	if maxBuffered <= 0 {
		maxBuffered = 4
	}
	return &OpenH264Decoder{dec: dec, maxBuffered: maxBuffered}, nil
}

func (d *OpenH264Decoder) PushNAL(nal []byte, isIDR bool) error {
	d.mu.Lock()
	d.bufferedNAL++
	d.mu.Unlock()

	_, err := d.dec.DecodeFrame(nal)

	d.mu.Lock()
	if d.bufferedNAL > 0 {
		d.bufferedNAL--
	}
	d.mu.Unlock()

	return err
}

func (d *OpenH264Decoder) Saturated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufferedNAL >= d.maxBuffered
}

func (d *OpenH264Decoder) Close() error {
	return d.dec.Close()
}
