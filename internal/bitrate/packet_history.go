package bitrate

import "time"

type packetSizeEntry struct {
	timestamp time.Duration
	sizeBits  uint64
}

// packetSizeHistory is a FIFO of (frame timestamp, encoded size in bits)
// pairs awaiting a matching network-latency report. Frames are encoded
// faster than latency feedback arrives, so several can queue up; a report
// only ever matches the one entry sharing its exact timestamp, and every
// entry popped on the way to (or past) that match is discarded uncounted.
type packetSizeHistory struct {
	entries []packetSizeEntry
}

func (h *packetSizeHistory) push(timestamp time.Duration, sizeBits uint64) {
	h.entries = append(h.entries, packetSizeEntry{timestamp: timestamp, sizeBits: sizeBits})
}

// drainThrough pops entries from the front one at a time until it finds one
// whose timestamp exactly equals target, submits that single entry's size
// and stops, or exhausts the queue. Entries popped without matching are
// discarded, not summed. ok is false if the queue emptied without a match.
func (h *packetSizeHistory) drainThrough(target time.Duration) (sizeBits uint64, ok bool) {
	for len(h.entries) > 0 {
		front := h.entries[0]
		h.entries = h.entries[1:]
		if front.timestamp == target {
			return front.sizeBits, true
		}
	}
	return 0, false
}

func (h *packetSizeHistory) len() int { return len(h.entries) }
