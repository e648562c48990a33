package chat

import (
	"strings"
	"sync"
)

// DropReason names why a message was not narrated. The empty reason
// means the message passed.
type DropReason string

const (
	DropNone            DropReason = ""
	DropDisabled        DropReason = "disabled"
	DropArchived        DropReason = "archived"
	DropUnclassifiable  DropReason = "unclassifiable"
	DropIdentityUnsafe  DropReason = "identity-unsafe"
	DropIgnored         DropReason = "ignored"
	DropNotSelf         DropReason = "not-self"
	DropSelfDisabled    DropReason = "self-disabled"
	DropChannelExcluded DropReason = "channel-excluded"
	DropChannelDisabled DropReason = "channel-disabled"
	DropMuted           DropReason = "muted"
	DropEmptyContent    DropReason = "empty-content"
)

// Policy decides which classified messages reach narration. All toggles
// can flip at runtime; Decide takes one lock and evaluates every rule
// against a consistent view.
type Policy struct {
	mu       sync.RWMutex
	disabled bool
	self     bool
	channels map[Channel]bool
	ignored  map[string]struct{}
}

// NewPolicy returns a policy with the default source selection: own
// messages in party and team chat.
func NewPolicy() *Policy {
	p := &Policy{
		ignored: make(map[string]struct{}),
		channels: map[Channel]bool{
			ChannelParty:   true,
			ChannelTeam:    true,
			ChannelAll:     false,
			ChannelWhisper: false,
		},
		self: true,
	}
	return p
}

// Decide evaluates m against the policy in a fixed order and returns
// whether to narrate plus the first drop reason that applied. Cheap
// structural checks come before per-message lookups.
func (p *Policy) Decide(m Message, id *Identity, gs *GameState) (bool, DropReason) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.disabled {
		return false, DropDisabled
	}
	if m.Archived {
		return false, DropArchived
	}
	if m.Channel == ChannelUnknown {
		return false, DropUnclassifiable
	}
	if m.SenderID == "" || !id.Resolved() {
		return false, DropIdentityUnsafe
	}
	if _, ok := p.ignored[m.SenderID]; ok {
		return false, DropIgnored
	}
	// Only the player's own messages are ever narrated. Third-party
	// text through the speaker is an impersonation channel, so this
	// check does not depend on any toggle.
	if !id.IsSelf(m.SenderID) {
		return false, DropNotSelf
	}
	if !p.self {
		return false, DropSelfDisabled
	}
	if m.Channel != ChannelParty && m.Channel != ChannelTeam {
		return false, DropChannelExcluded
	}
	if !p.channels[m.Channel] {
		return false, DropChannelDisabled
	}
	if gs != nil && gs.Suppressed() {
		return false, DropMuted
	}
	if SanitizeContent(m.Content) == "" {
		return false, DropEmptyContent
	}
	return true, DropNone
}

// SanitizeContent strips path separators and surrounding whitespace from
// narration text. Downstream speakers shell out with the text as an
// argument, so separators never reach them.
func SanitizeContent(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// SetDisabled switches narration off or on entirely.
func (p *Policy) SetDisabled(off bool) {
	p.mu.Lock()
	p.disabled = off
	p.mu.Unlock()
}

// ToggleDisabled flips the master switch and returns the new disabled state.
func (p *Policy) ToggleDisabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled = !p.disabled
	return p.disabled
}

// Disabled reports the master switch.
func (p *Policy) Disabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disabled
}

// SetChannelEnabled turns narration for one channel on or off. Unknown
// is not a real channel and cannot be enabled.
func (p *Policy) SetChannelEnabled(c Channel, on bool) {
	if c == ChannelUnknown {
		return
	}
	p.mu.Lock()
	p.channels[c] = on
	p.mu.Unlock()
}

// SetSelfEnabled turns narration of the player's own messages on or off.
func (p *Policy) SetSelfEnabled(on bool) {
	p.mu.Lock()
	p.self = on
	p.mu.Unlock()
}

// ApplySourceSelection parses a "+"-separated source selection such as
// "SELF+PARTY+TEAM" and applies it atomically: every source named is
// enabled, every source not named is disabled. Tokens are matched
// case-insensitively; unknown tokens are skipped. An empty or
// all-unknown selection applies the default selection instead.
func (p *Policy) ApplySourceSelection(sel string) {
	self := false
	next := map[Channel]bool{
		ChannelParty:   false,
		ChannelTeam:    false,
		ChannelAll:     false,
		ChannelWhisper: false,
	}
	any := false
	for _, tok := range strings.Split(sel, "+") {
		switch strings.ToUpper(strings.TrimSpace(tok)) {
		case "SELF":
			self = true
			any = true
		case "PARTY":
			next[ChannelParty] = true
			any = true
		case "TEAM":
			next[ChannelTeam] = true
			any = true
		case "ALL":
			next[ChannelAll] = true
			any = true
		case "WHISPER":
			next[ChannelWhisper] = true
			any = true
		}
	}
	if !any {
		self = true
		next[ChannelParty] = true
		next[ChannelTeam] = true
	}
	p.mu.Lock()
	p.self = self
	p.channels = next
	p.mu.Unlock()
}

// Ignore adds a sender token to the ignore list.
func (p *Policy) Ignore(token string) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return
	}
	p.mu.Lock()
	p.ignored[token] = struct{}{}
	p.mu.Unlock()
}

// Unignore removes a sender token from the ignore list.
func (p *Policy) Unignore(token string) {
	p.mu.Lock()
	delete(p.ignored, strings.ToLower(strings.TrimSpace(token)))
	p.mu.Unlock()
}

// SetIgnoreList replaces the whole ignore list atomically.
func (p *Policy) SetIgnoreList(tokens []string) {
	next := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			next[t] = struct{}{}
		}
	}
	p.mu.Lock()
	p.ignored = next
	p.mu.Unlock()
}

// IsIgnored reports whether a sender token is on the ignore list.
func (p *Policy) IsIgnored(token string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ignored[strings.ToLower(token)]
	return ok
}

// Snapshot is a point-in-time copy of the policy toggles, used by the
// status endpoint.
type Snapshot struct {
	Disabled bool            `json:"disabled"`
	Self     bool            `json:"self"`
	Channels map[string]bool `json:"channels"`
	Ignored  []string        `json:"ignored"`
}

// State returns a copy of the current toggles.
func (p *Policy) State() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{
		Disabled: p.disabled,
		Self:     p.self,
		Channels: make(map[string]bool, len(p.channels)),
	}
	for c, on := range p.channels {
		s.Channels[c.String()] = on
	}
	for t := range p.ignored {
		s.Ignored = append(s.Ignored, t)
	}
	return s
}
