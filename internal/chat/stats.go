package chat

import (
	"sort"
	"sync"
	"time"
)

// latencySamples bounds the synthesis latency ring buffer.
const latencySamples = 256

// Stats aggregates pipeline counters for the status endpoint. Incoming
// counts are recorded for every classified message before any filtering,
// so they reflect traffic, not policy.
type Stats struct {
	mu            sync.Mutex
	startedAt     time.Time
	incoming      map[Channel]int64
	narrated      map[Channel]int64
	dropped       map[DropReason]int64
	narratedChars int64

	latencies []time.Duration
	latIdx    int
	latFull   bool
}

func NewStats() *Stats {
	return &Stats{
		startedAt: time.Now(),
		incoming:  make(map[Channel]int64),
		narrated:  make(map[Channel]int64),
		dropped:   make(map[DropReason]int64),
		latencies: make([]time.Duration, latencySamples),
	}
}

// RecordIncoming counts one classified message on its channel.
func (s *Stats) RecordIncoming(c Channel) {
	s.mu.Lock()
	s.incoming[c]++
	s.mu.Unlock()
}

// RecordDrop counts one filtered message by reason.
func (s *Stats) RecordDrop(r DropReason) {
	s.mu.Lock()
	s.dropped[r]++
	s.mu.Unlock()
}

// RecordNarrated counts one accepted message and its narrated length.
func (s *Stats) RecordNarrated(c Channel, chars int) {
	s.mu.Lock()
	s.narrated[c]++
	s.narratedChars += int64(chars)
	s.mu.Unlock()
}

// RecordSynthesis adds one speech synthesis duration to the ring buffer.
func (s *Stats) RecordSynthesis(d time.Duration) {
	s.mu.Lock()
	s.latencies[s.latIdx] = d
	s.latIdx++
	if s.latIdx >= len(s.latencies) {
		s.latIdx = 0
		s.latFull = true
	}
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Uptime        time.Duration            `json:"uptime"`
	Incoming      map[string]int64         `json:"incoming"`
	Narrated      map[string]int64         `json:"narrated"`
	Dropped       map[string]int64         `json:"dropped"`
	NarratedChars int64                    `json:"narrated_chars"`
	Synthesis     map[string]time.Duration `json:"synthesis,omitempty"`
}

// Snapshot copies the current counters and computes p50/p95/p99 over the
// recorded synthesis latencies.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Uptime:        time.Since(s.startedAt),
		Incoming:      make(map[string]int64, len(s.incoming)),
		Narrated:      make(map[string]int64, len(s.narrated)),
		Dropped:       make(map[string]int64, len(s.dropped)),
		NarratedChars: s.narratedChars,
	}
	for c, n := range s.incoming {
		snap.Incoming[c.String()] = n
	}
	for c, n := range s.narrated {
		snap.Narrated[c.String()] = n
	}
	for r, n := range s.dropped {
		snap.Dropped[string(r)] = n
	}

	count := s.latIdx
	if s.latFull {
		count = len(s.latencies)
	}
	if count > 0 {
		sorted := make([]time.Duration, count)
		copy(sorted, s.latencies[:count])
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.Synthesis = map[string]time.Duration{
			"p50": percentile(sorted, 0.50),
			"p95": percentile(sorted, 0.95),
			"p99": percentile(sorted, 0.99),
		}
	}
	return snap
}

// percentile returns the p-th percentile of a sorted slice using
// nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
