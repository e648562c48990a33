package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/echochat/internal/narrate"
	"github.com/MrWong99/echochat/internal/observe"
)

// Pipeline wires the message stages together: parse, dedup, classify,
// count, filter, enrich, enqueue. It owns no goroutines; transports call
// HandleRaw from theirs.
type Pipeline struct {
	identity *Identity
	policy   *Policy
	game     *GameState
	roster   *Roster
	dedup    *Dedup
	stats    *Stats
	queue    *narrate.Queue
	metrics  *observe.Metrics

	mu     sync.RWMutex
	expand bool
	voice  string
	rate   int
}

// PipelineConfig carries the collaborators and narration settings for a
// Pipeline. Identity, Policy, and Queue are required.
type PipelineConfig struct {
	Identity *Identity
	Policy   *Policy
	Game     *GameState
	Roster   *Roster
	Dedup    *Dedup
	Stats    *Stats
	Queue    *narrate.Queue
	Metrics  *observe.Metrics

	ExpandShortForms bool
	Voice            string
	Rate             int
}

// NewPipeline builds a Pipeline. Optional collaborators left nil get
// fresh defaults so tests can construct only what they assert on.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		identity: cfg.Identity,
		policy:   cfg.Policy,
		game:     cfg.Game,
		roster:   cfg.Roster,
		dedup:    cfg.Dedup,
		stats:    cfg.Stats,
		queue:    cfg.Queue,
		metrics:  cfg.Metrics,
		expand:   cfg.ExpandShortForms,
		voice:    cfg.Voice,
		rate:     cfg.Rate,
	}
	if p.identity == nil {
		p.identity = NewIdentity()
	}
	if p.policy == nil {
		p.policy = NewPolicy()
	}
	if p.game == nil {
		p.game = NewGameState()
	}
	if p.roster == nil {
		p.roster = NewRoster()
	}
	if p.dedup == nil {
		p.dedup = NewDedup(0)
	}
	if p.stats == nil {
		p.stats = NewStats()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Identity returns the identity registry the pipeline filters against.
func (p *Pipeline) Identity() *Identity { return p.identity }

// Policy returns the narration policy.
func (p *Pipeline) Policy() *Policy { return p.policy }

// Game returns the game state tracker.
func (p *Pipeline) Game() *GameState { return p.game }

// Roster returns the display-name roster.
func (p *Pipeline) Roster() *Roster { return p.roster }

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() *Stats { return p.stats }

// SetNarrationOptions updates voice, rate, and shorthand expansion for
// subsequent narrations.
func (p *Pipeline) SetNarrationOptions(voice string, rate int, expand bool) {
	p.mu.Lock()
	p.voice = voice
	p.rate = rate
	p.expand = expand
	p.mu.Unlock()
}

// HandleRaw routes one raw payload from a transport. Presence stanzas
// update the game state, roster results fill the roster, and message
// stanzas run the narration pipeline. Unrecognized payloads are dropped
// quietly; the chat endpoint emits plenty of traffic that is none of our
// business.
func (p *Pipeline) HandleRaw(ctx context.Context, raw string) {
	switch {
	case IsMessage(raw):
		stanzas := ParseStanzas(raw)
		if len(stanzas) == 0 {
			p.metrics.ParseFailures.Add(ctx, 1)
			slog.Warn("message payload defeated both parsers", "len", len(raw))
			return
		}
		for _, st := range stanzas {
			p.handleStanza(ctx, st)
		}
	case IsPresence(raw):
		p.game.UpdateFromPresence(PresencePayload(raw))
	case IsRosterIQ(raw):
		if n := p.roster.ParseRosterIQ(raw); n > 0 {
			slog.Debug("roster updated", "players", n)
		}
	}
}

// MarkSeen records ids as already processed without narrating, used for
// cold-start backfill.
func (p *Pipeline) MarkSeen(id string) {
	p.dedup.MarkSeen(id)
}

func (p *Pipeline) handleStanza(ctx context.Context, st ParsedStanza) {
	// Duplicate delivery is the common case with two transports; drop
	// before spending classification work.
	if !p.dedup.Observe(st.ID) {
		return
	}

	m := NewMessage(st)
	p.stats.RecordIncoming(m.Channel)
	p.metrics.RecordIncoming(ctx, m.Channel.String())

	ok, reason := p.policy.Decide(m, p.identity, p.game)
	if !ok {
		p.stats.RecordDrop(reason)
		p.metrics.RecordDropped(ctx, string(reason))
		slog.Debug("message filtered",
			"reason", string(reason), "channel", m.Channel.String(), "id", m.ID)
		return
	}

	p.mu.RLock()
	expand, voice, rate := p.expand, p.voice, p.rate
	p.mu.RUnlock()

	text := SanitizeContent(m.Content)
	if expand {
		text = ExpandShortForms(text)
	}
	text = p.roster.Announce(m.SenderID, text)
	narrated := m.WithContent(text)

	p.stats.RecordNarrated(narrated.Channel, len(narrated.Content))
	p.metrics.RecordNarrated(ctx, narrated.Channel.String())

	if p.queue.Enqueue(narrate.Request{Text: narrated.Content, VoiceHint: voice, RateHint: rate}) {
		p.metrics.QueueDepth.Add(ctx, 1)
	} else {
		p.metrics.QueueDropped.Add(ctx, 1)
	}
}
