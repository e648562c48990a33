package chat_test

import (
	"testing"
	"time"

	"github.com/MrWong99/echochat/internal/chat"
)

func TestStats_Snapshot(t *testing.T) {
	t.Parallel()
	s := chat.NewStats()
	s.RecordIncoming(chat.ChannelParty)
	s.RecordIncoming(chat.ChannelParty)
	s.RecordIncoming(chat.ChannelWhisper)
	s.RecordDrop(chat.DropNotSelf)
	s.RecordNarrated(chat.ChannelParty, 11)
	s.RecordSynthesis(100 * time.Millisecond)
	s.RecordSynthesis(300 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Incoming["party"] != 2 || snap.Incoming["whisper"] != 1 {
		t.Errorf("incoming counts: %+v", snap.Incoming)
	}
	if snap.Dropped["not-self"] != 1 {
		t.Errorf("dropped counts: %+v", snap.Dropped)
	}
	if snap.Narrated["party"] != 1 || snap.NarratedChars != 11 {
		t.Errorf("narrated: %+v chars=%d", snap.Narrated, snap.NarratedChars)
	}
	if snap.Synthesis["p50"] != 100*time.Millisecond {
		t.Errorf("p50 = %v", snap.Synthesis["p50"])
	}
	if snap.Synthesis["p99"] != 300*time.Millisecond {
		t.Errorf("p99 = %v", snap.Synthesis["p99"])
	}
}

func TestStats_LatencyRingWraps(t *testing.T) {
	t.Parallel()
	s := chat.NewStats()
	// Overfill the ring; the snapshot must still compute sane numbers.
	for i := 0; i < 1000; i++ {
		s.RecordSynthesis(time.Duration(i%10+1) * time.Millisecond)
	}
	snap := s.Snapshot()
	p50 := snap.Synthesis["p50"]
	if p50 < time.Millisecond || p50 > 10*time.Millisecond {
		t.Errorf("p50 = %v outside sample range", p50)
	}
}
