// Package chat implements the message pipeline of echochat: parsing raw
// XMPP-style stanzas from the local chat endpoint, classifying them into
// conversation channels, deduplicating, filtering against the narration
// policy, and handing accepted text to the narration queue.
package chat

import (
	"html"
	"strings"
)

// Channel identifies the conversation a message belongs to, derived from
// the domain of the stanza's routing JID.
type Channel int

const (
	// ChannelUnknown is the zero value: the routing JID matched no known
	// conversation domain. Unknown messages are never narrated.
	ChannelUnknown Channel = iota
	// ChannelParty is the pre-lobby party conversation.
	ChannelParty
	// ChannelTeam is the team conversation during agent select and in-game.
	ChannelTeam
	// ChannelAll is the all-players conversation in-game.
	ChannelAll
	// ChannelWhisper is a direct message between two players.
	ChannelWhisper
)

// String returns the lowercase channel name, "unknown" for the zero value.
func (c Channel) String() string {
	switch c {
	case ChannelParty:
		return "party"
	case ChannelTeam:
		return "team"
	case ChannelAll:
		return "all"
	case ChannelWhisper:
		return "whisper"
	default:
		return "unknown"
	}
}

// Classify maps a routing JID and stanza type attribute to a Channel.
//
// Only the first segment of the domain part decides room conversations:
// ares-parties hosts the party, ares-pregame the agent-select team chat,
// and ares-coregame both the in-game team chat and, when the room's
// local part ends in "all", the all-players chat. Any other domain is a
// whisper when the stanza type is "chat", otherwise unknown. A JID
// without a domain part cannot be classified at all.
func Classify(jid, typ string) Channel {
	local, domain, ok := splitJID(jid)
	if !ok || domain == "" {
		return ChannelUnknown
	}
	segment, _, _ := strings.Cut(domain, ".")
	switch {
	case strings.HasPrefix(segment, "ares-parties"):
		return ChannelParty
	case strings.HasPrefix(segment, "ares-pregame"):
		return ChannelTeam
	case strings.HasPrefix(segment, "ares-coregame"):
		if strings.HasSuffix(local, "all") {
			return ChannelAll
		}
		return ChannelTeam
	case strings.EqualFold(typ, "chat"):
		return ChannelWhisper
	default:
		return ChannelUnknown
	}
}

// splitJID breaks a JID into its local and domain parts, both without
// the resource suffix. ok is false when the JID has no "@" at all;
// classification treats such JIDs as unknown.
func splitJID(jid string) (local, domain string, ok bool) {
	bare, _, _ := strings.Cut(jid, "/")
	local, domain, ok = strings.Cut(bare, "@")
	if !ok {
		return "", "", false
	}
	return local, domain, true
}

// SenderToken extracts the stable player identifier from a JID. Room JIDs
// carry the player identifier in the resource part after "/"; direct JIDs
// carry it in the local part before "@". Tokens compare case-insensitively,
// so the result is lowercased here once.
func SenderToken(jid string) string {
	if _, res, found := strings.Cut(jid, "/"); found && res != "" {
		return strings.ToLower(res)
	}
	local, _, found := strings.Cut(jid, "@")
	if !found {
		return ""
	}
	return strings.ToLower(local)
}

// Message is a classified chat message ready for policy evaluation.
// Content is fully entity-unescaped exactly once during construction.
type Message struct {
	// ID is the stanza id used for deduplication, empty when absent.
	ID string
	// Content is the unescaped body text, empty when the stanza had none.
	Content string
	// HasBody reports whether the stanza carried a body element at all,
	// distinguishing "no body" from "empty body".
	HasBody bool
	// SenderID is the lowercased player token extracted from FromJID.
	SenderID string
	// Channel is the classified conversation.
	Channel Channel
	// FromJID is the raw outer from attribute. Even for carbon-copied
	// stanzas this remains the authoritative source of sender identity.
	FromJID string
	// Type is the stanza type attribute.
	Type string
	// Archived reports whether the stanza carried a delay or archive
	// marker. Archived messages are replayed history and never narrated.
	Archived bool
}

// NewMessage builds a Message from a parsed stanza.
//
// Classification normally uses the outer from JID. When the stanza was a
// carbon copy of the player's own outbound message, the inner forwarded
// "to" JID is used instead if it addresses a room conversation, since the
// outer from then names the player rather than the room. Sender identity
// always comes from the outer from.
func NewMessage(st ParsedStanza) Message {
	routing := st.From
	if st.CarbonTo != "" {
		if _, domain, ok := splitJID(st.CarbonTo); ok && strings.Contains(domain, "ares-") {
			routing = st.CarbonTo
		}
	}
	m := Message{
		ID:       st.ID,
		HasBody:  st.HasBody,
		SenderID: SenderToken(st.From),
		Channel:  Classify(routing, st.Type),
		FromJID:  st.From,
		Type:     st.Type,
		Archived: st.Archived,
	}
	if st.HasBody {
		m.Content = html.UnescapeString(st.Body)
	}
	return m
}

// WithContent returns a copy of m carrying the given content. The
// receiver is unchanged, so transformed text for narration never leaks
// back into the record that was classified and counted.
func (m Message) WithContent(text string) Message {
	m.Content = text
	m.HasBody = true
	return m
}
