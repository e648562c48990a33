package chat

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

// Roster maps player tokens to display names, filled from roster IQ
// stanzas. It only improves announcement quality; an empty roster never
// blocks narration.
type Roster struct {
	mu    sync.RWMutex
	names map[string]rosterEntry
}

type rosterEntry struct {
	Name string
	Tag  string
}

func NewRoster() *Roster {
	return &Roster{names: make(map[string]rosterEntry)}
}

// Upsert records or replaces the display name for a token.
func (r *Roster) Upsert(token, name, tag string) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" || name == "" {
		return
	}
	r.mu.Lock()
	r.names[token] = rosterEntry{Name: name, Tag: tag}
	r.mu.Unlock()
}

// Name returns the display name for a token.
func (r *Roster) Name(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.names[strings.ToLower(token)]
	return e.Name, ok
}

// Clear drops all entries, used when the chat session restarts.
func (r *Roster) Clear() {
	r.mu.Lock()
	r.names = make(map[string]rosterEntry)
	r.mu.Unlock()
}

// Len returns the number of known players.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Announce prefixes body with the sender's display name when known.
func (r *Roster) Announce(token, body string) string {
	if name, ok := r.Name(token); ok {
		return name + " says: " + body
	}
	return body
}

// ResolveToken maps a user-supplied name or token to a roster token for
// the ignore list. Exact token match wins, then exact display name
// (case-insensitive), then the closest fuzzy display-name match. With no
// roster match at all the lowered input is returned as-is, so ignoring
// by raw token keeps working before the roster fills.
func (r *Roster) ResolveToken(nameOrToken string) string {
	in := strings.ToLower(strings.TrimSpace(nameOrToken))
	if in == "" {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.names[in]; ok {
		return in
	}
	type cand struct {
		token string
		score float64
	}
	var cands []cand
	for token, e := range r.names {
		name := strings.ToLower(e.Name)
		if name == in {
			return token
		}
		cands = append(cands, cand{token, matchr.JaroWinkler(in, name, true)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > 0 && cands[0].score >= 0.85 {
		return cands[0].token
	}
	return in
}

// IsRosterIQ reports whether raw carries a roster result.
func IsRosterIQ(raw string) bool {
	return strings.Contains(raw, "<iq") && strings.Contains(raw, "roster")
}

var (
	// Self-closing first: the lazy form would otherwise swallow a run of
	// self-closing items up to the next real closing tag.
	reRosterItem = regexp.MustCompile(`(?s)<item\s[^>]*/>|<item\s[^>]*>.*?</item>`)
	reItemJID    = regexp.MustCompile(`jid=['"]([^'"]+)['"]`)
	reItemName   = regexp.MustCompile(`\bname=['"]([^'"]*)['"]`)
	reGameName   = regexp.MustCompile(`\bgame_name=['"]([^'"]*)['"]`)
	reGameTag    = regexp.MustCompile(`\bgame_tag=['"]([^'"]*)['"]`)
	reIDElem     = regexp.MustCompile(`<id\s[^>]*name=['"]([^'"]*)['"][^>]*tagline=['"]([^'"]*)['"]`)
)

// ParseRosterIQ extracts roster items from an IQ stanza and upserts them,
// returning how many entries were recorded. Attribute order varies and
// the in-game name may live either in game_name/game_tag attributes or
// in a nested id element, so extraction is per-attribute regex rather
// than a rigid schema.
func (r *Roster) ParseRosterIQ(raw string) int {
	n := 0
	for _, item := range reRosterItem.FindAllString(raw, -1) {
		jm := reItemJID.FindStringSubmatch(item)
		if jm == nil {
			continue
		}
		token := SenderToken(jm[1])
		if token == "" {
			continue
		}
		var name, tag string
		if m := reIDElem.FindStringSubmatch(item); m != nil {
			name, tag = m[1], m[2]
		}
		if name == "" {
			if m := reGameName.FindStringSubmatch(item); m != nil {
				name = m[1]
			}
			if m := reGameTag.FindStringSubmatch(item); m != nil {
				tag = m[1]
			}
		}
		if name == "" {
			if m := reItemName.FindStringSubmatch(item); m != nil {
				name = m[1]
			}
		}
		if name == "" {
			continue
		}
		r.Upsert(token, name, tag)
		n++
	}
	return n
}
