package connection

import (
	"testing"
	"time"

	"github.com/pion/rtcp"

	"github.com/nestvr/corestream/internal/netstats"
)

func TestBuildReceiverReportRepliesEncodesOneReplyPerSenderReport(t *testing.T) {
	sr := rtcp.SenderReport{SSRC: 55}
	buf, err := sr.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	replies, err := buildReceiverReportReplies(buf, 90, 10, time.Now().Add(-2*time.Millisecond))
	if err != nil {
		t.Fatalf("buildReceiverReportReplies: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("len(replies) = %d, want 1", len(replies))
	}

	pkts, err := netstats.Decode(replies[0])
	if err != nil {
		t.Fatalf("Decode reply: %v", err)
	}
	rr, ok := pkts[0].(*rtcp.ReceiverReport)
	if !ok || rr.SSRC != 55 || len(rr.Reports) != 1 {
		t.Fatalf("unexpected reply packet: %+v", pkts[0])
	}
	if got, want := rr.Reports[0].FractionLost, uint8(25); got != want {
		t.Fatalf("FractionLost = %d, want %d (10 dropped of 100 total)", got, want)
	}
}

func TestBuildReceiverReportRepliesIgnoresNonSenderReportPackets(t *testing.T) {
	pli := rtcp.PictureLossIndication{SenderSSRC: 1, MediaSSRC: 2}
	buf, err := pli.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	replies, err := buildReceiverReportReplies(buf, 10, 0, time.Now())
	if err != nil {
		t.Fatalf("buildReceiverReportReplies: %v", err)
	}
	if len(replies) != 0 {
		t.Fatalf("len(replies) = %d, want 0 for a PLI-only packet", len(replies))
	}
}
