// Package netstats encodes and decodes the RTCP-based network feedback
// carried over the control channel between client and server. The server
// periodically sends a SenderReport and the client answers each with a
// ReceiverReport; the server turns those into RTT and loss samples for
// bitrate.Manager.ReportNetworkStatistics and flags picture-loss requests
// the same way a WebRTC sender would.
package netstats

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
)

const ntpEpochOffset = 2208988800 // seconds between 1900-01-01 and 1970-01-01

// toNTP converts a wall-clock instant into the 64-bit NTP timestamp format
// used by rtcp.SenderReport (32 bits of seconds since 1900, 32 bits of
// fraction).
func toNTP(t time.Time) uint64 {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return secs | frac
}

// middle32 extracts the middle 32 bits of an NTP timestamp, the form
// carried in a ReceptionReport's LastSenderReport field.
func middle32(ntp uint64) uint32 {
	return uint32(ntp >> 16)
}

// EncodeSenderReport builds an RTCP SenderReport announcing ssrc sent at
// sentAt, for sending over the control channel so the peer can echo it back
// in its next ReceiverReport.
func EncodeSenderReport(ssrc uint32, sentAt time.Time, rtpTime uint32, packetCount, octetCount uint32) ([]byte, error) {
	sr := &rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     toNTP(sentAt),
		RTPTime:     rtpTime,
		PacketCount: packetCount,
		OctetCount:  octetCount,
	}
	return sr.Marshal()
}

// EncodeReceiverReport builds an RTCP ReceiverReport carrying a single
// reception report block for the video stream.
func EncodeReceiverReport(ssrc uint32, report rtcp.ReceptionReport) ([]byte, error) {
	rr := &rtcp.ReceiverReport{
		SSRC:    ssrc,
		Reports: []rtcp.ReceptionReport{report},
	}
	return rr.Marshal()
}

// EncodePictureLossIndication builds a PLI requesting a keyframe for
// mediaSSRC, the same packet a WebRTC receiver emits on a decode error.
func EncodePictureLossIndication(senderSSRC, mediaSSRC uint32) ([]byte, error) {
	pli := &rtcp.PictureLossIndication{
		SenderSSRC: senderSSRC,
		MediaSSRC:  mediaSSRC,
	}
	return pli.Marshal()
}

// ReplyToSenderReport builds the ReceptionReport a receiver sends back for
// sr: LastSenderReport is the middle 32 bits of sr's NTP timestamp and Delay
// is the time this side held the report before replying, both per RFC 3550
// §6.4.1's round-trip-time recipe.
func ReplyToSenderReport(sr rtcp.SenderReport, fractionLost uint8, heldFor time.Duration) rtcp.ReceptionReport {
	return rtcp.ReceptionReport{
		SSRC:             sr.SSRC,
		FractionLost:     fractionLost,
		LastSenderReport: middle32(sr.NTPTime),
		Delay:            uint32(heldFor.Seconds() * 65536.0),
	}
}

// Decode parses a raw RTCP compound packet.
func Decode(buf []byte) ([]rtcp.Packet, error) {
	pkts, err := rtcp.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("netstats: unmarshal: %w", err)
	}
	return pkts, nil
}

// RTTTracker correlates outgoing SenderReports with the ReceptionReport
// blocks that echo them back, yielding a round-trip estimate per SSRC.
// It mirrors the LastSenderReport/Delay bookkeeping a WebRTC stack does
// internally, exposed here because our control channel carries RTCP
// payloads directly rather than through a peer connection.
type RTTTracker struct {
	mu   sync.Mutex
	sent map[uint32]time.Time // ssrc -> wall-clock send time of last SR
}

func NewRTTTracker() *RTTTracker {
	return &RTTTracker{sent: make(map[uint32]time.Time)}
}

// RecordSent notes that a SenderReport for ssrc was sent at sentAt, so a
// later ReceptionReport block referencing its NTP middle bits can be
// resolved back to a round trip.
func (t *RTTTracker) RecordSent(ssrc uint32, sentAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[ssrc] = sentAt
}

// Observe computes the round trip implied by a ReceptionReport block, if
// it references an SR this tracker sent. ok is false when LastSenderReport
// is zero (no SR seen yet by the peer) or doesn't match a recorded send.
func (t *RTTTracker) Observe(report rtcp.ReceptionReport, now time.Time) (rtt time.Duration, ok bool) {
	if report.LastSenderReport == 0 {
		return 0, false
	}

	t.mu.Lock()
	sentAt, found := t.sent[report.SSRC]
	t.mu.Unlock()
	if !found {
		return 0, false
	}
	if middle32(toNTP(sentAt)) != report.LastSenderReport {
		return 0, false
	}

	delay := time.Duration(float64(report.Delay) / 65536.0 * float64(time.Second))
	rtt = now.Sub(sentAt) - delay
	if rtt < 0 {
		rtt = 0
	}
	return rtt, true
}

// Feedback summarizes one decoded RTCP compound packet's worth of
// information, ready to hand to bitrate.Manager.
type Feedback struct {
	RTT             time.Duration
	HasRTT          bool
	FractionLost    uint8
	RequestKeyframe bool
}

// Interpret decodes buf and folds any ReceiverReport and PLI/FIR content
// into a Feedback. tracker may be nil, in which case RTT is never
// resolved.
func Interpret(buf []byte, tracker *RTTTracker, now time.Time) (Feedback, error) {
	pkts, err := Decode(buf)
	if err != nil {
		return Feedback{}, err
	}

	var fb Feedback
	for _, p := range pkts {
		switch pkt := p.(type) {
		case *rtcp.ReceiverReport:
			for _, r := range pkt.Reports {
				fb.FractionLost = r.FractionLost
				if tracker != nil {
					if rtt, ok := tracker.Observe(r, now); ok {
						fb.RTT, fb.HasRTT = rtt, true
					}
				}
			}
		case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
			fb.RequestKeyframe = true
		}
	}
	return fb, nil
}
