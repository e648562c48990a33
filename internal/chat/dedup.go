package chat

import "sync"

// defaultDedupLimit bounds the seen-id set. The set is cleared when it
// grows past the limit, keeping only the most recent id so the message
// in flight still deduplicates across the prune.
const defaultDedupLimit = 5000

// Dedup tracks stanza ids that have already been processed so a message
// is narrated at most once even when both transports deliver it, or a
// poll cycle overlaps the previous one.
type Dedup struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	lastID string
	limit  int
}

// NewDedup returns a Dedup bounded to limit ids; limit <= 0 uses the
// default.
func NewDedup(limit int) *Dedup {
	if limit <= 0 {
		limit = defaultDedupLimit
	}
	return &Dedup{seen: make(map[string]struct{}), limit: limit}
}

// Observe records id and reports whether it was new. Empty ids are
// always new: a stanza without an id cannot be deduplicated and must not
// collide with other id-less stanzas.
func (d *Dedup) Observe(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.mark(id)
	return true
}

// MarkSeen records id without reporting novelty, used for cold-start
// backfill that must never narrate.
func (d *Dedup) MarkSeen(id string) {
	if id == "" {
		return
	}
	d.mu.Lock()
	d.mark(id)
	d.mu.Unlock()
}

// Seen reports whether id was already observed.
func (d *Dedup) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Len returns the current set size.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Dedup) mark(id string) {
	if len(d.seen) >= d.limit {
		d.seen = make(map[string]struct{}, d.limit/4)
		if d.lastID != "" {
			d.seen[d.lastID] = struct{}{}
		}
	}
	d.seen[id] = struct{}{}
	d.lastID = id
}
