package netstats

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
)

func TestRTTTrackerResolvesRoundTrip(t *testing.T) {
	tracker := NewRTTTracker()
	sentAt := time.Now()
	tracker.RecordSent(42, sentAt)

	now := sentAt.Add(50 * time.Millisecond)
	report := rtcp.ReceptionReport{
		SSRC:             42,
		LastSenderReport: middle32(toNTP(sentAt)),
		Delay:            0,
	}

	rtt, ok := tracker.Observe(report, now)
	if !ok {
		t.Fatalf("Observe did not resolve a matching SR")
	}
	if rtt < 40*time.Millisecond || rtt > 60*time.Millisecond {
		t.Fatalf("rtt = %v, want ~50ms", rtt)
	}
}

func TestRTTTrackerIgnoresUnknownSSRC(t *testing.T) {
	tracker := NewRTTTracker()
	tracker.RecordSent(1, time.Now())

	_, ok := tracker.Observe(rtcp.ReceptionReport{SSRC: 2, LastSenderReport: 1}, time.Now())
	if ok {
		t.Fatalf("Observe resolved an SSRC that was never recorded")
	}
}

func TestRTTTrackerIgnoresStaleSenderReport(t *testing.T) {
	tracker := NewRTTTracker()
	sentAt := time.Now()
	tracker.RecordSent(7, sentAt)

	_, ok := tracker.Observe(rtcp.ReceptionReport{SSRC: 7, LastSenderReport: 0xDEADBEEF}, time.Now())
	if ok {
		t.Fatalf("Observe resolved a ReceptionReport referencing a mismatched SR timestamp")
	}
}

func TestEncodeDecodeReceiverReportRoundTrip(t *testing.T) {
	buf, err := EncodeReceiverReport(99, rtcp.ReceptionReport{SSRC: 1, FractionLost: 5})
	if err != nil {
		t.Fatalf("EncodeReceiverReport: %v", err)
	}

	pkts, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(pkts) != 1 {
		t.Fatalf("len(pkts) = %d, want 1", len(pkts))
	}
	rr, ok := pkts[0].(*rtcp.ReceiverReport)
	if !ok {
		t.Fatalf("decoded packet is %T, want *rtcp.ReceiverReport", pkts[0])
	}
	if rr.SSRC != 99 || len(rr.Reports) != 1 || rr.Reports[0].FractionLost != 5 {
		t.Fatalf("unexpected round trip: %+v", rr)
	}
}

func TestReplyToSenderReportRoundTripsThroughRTTTracker(t *testing.T) {
	tracker := NewRTTTracker()
	sentAt := time.Now()
	sr := rtcp.SenderReport{SSRC: 7, NTPTime: toNTP(sentAt)}
	tracker.RecordSent(sr.SSRC, sentAt)

	held := 5 * time.Millisecond
	rr := ReplyToSenderReport(sr, 3, held)
	if rr.SSRC != sr.SSRC {
		t.Fatalf("SSRC = %d, want %d", rr.SSRC, sr.SSRC)
	}
	if rr.FractionLost != 3 {
		t.Fatalf("FractionLost = %d, want 3", rr.FractionLost)
	}

	now := sentAt.Add(40 * time.Millisecond)
	rtt, ok := tracker.Observe(rr, now)
	if !ok {
		t.Fatalf("Observe did not resolve the reply's SR reference")
	}
	if rtt < 30*time.Millisecond || rtt > 40*time.Millisecond {
		t.Fatalf("rtt = %v, want ~35ms (40ms elapsed minus 5ms held)", rtt)
	}
}

func TestInterpretFlagsKeyframeRequest(t *testing.T) {
	buf, err := EncodePictureLossIndication(1, 2)
	if err != nil {
		t.Fatalf("EncodePictureLossIndication: %v", err)
	}

	fb, err := Interpret(buf, nil, time.Now())
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if !fb.RequestKeyframe {
		t.Fatalf("Feedback.RequestKeyframe = false, want true")
	}
	if fb.HasRTT {
		t.Fatalf("Feedback.HasRTT = true with a nil tracker, want false")
	}
}
