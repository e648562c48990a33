package chat_test

import (
	"testing"

	"github.com/MrWong99/echochat/internal/chat"
)

func selfIdentity(t *testing.T, token string) *chat.Identity {
	t.Helper()
	id := chat.NewIdentity()
	id.Set(token)
	return id
}

func selfMessage(channel chat.Channel) chat.Message {
	return chat.Message{
		ID:       "m1",
		Content:  "hello there",
		HasBody:  true,
		SenderID: "puuid-self",
		Channel:  channel,
	}
}

func TestDecide_SelfPartyMessagePasses(t *testing.T) {
	t.Parallel()
	p := chat.NewPolicy()
	id := selfIdentity(t, "puuid-self")
	ok, reason := p.Decide(selfMessage(chat.ChannelParty), id, chat.NewGameState())
	if !ok || reason != chat.DropNone {
		t.Fatalf("Decide = %v, %q; want pass", ok, reason)
	}
}

func TestDecide_DropOrder(t *testing.T) {
	t.Parallel()
	id := selfIdentity(t, "puuid-self")

	cases := []struct {
		name   string
		setup  func(p *chat.Policy, gs *chat.GameState)
		msg    func() chat.Message
		ident  *chat.Identity
		reason chat.DropReason
	}{
		{
			name:   "master switch first",
			setup:  func(p *chat.Policy, _ *chat.GameState) { p.SetDisabled(true) },
			msg:    func() chat.Message { return selfMessage(chat.ChannelParty) },
			ident:  id,
			reason: chat.DropDisabled,
		},
		{
			name:  "archived history",
			setup: func(*chat.Policy, *chat.GameState) {},
			msg: func() chat.Message {
				m := selfMessage(chat.ChannelParty)
				m.Archived = true
				return m
			},
			ident:  id,
			reason: chat.DropArchived,
		},
		{
			name:  "unclassifiable",
			setup: func(*chat.Policy, *chat.GameState) {},
			msg: func() chat.Message {
				m := selfMessage(chat.ChannelUnknown)
				return m
			},
			ident:  id,
			reason: chat.DropUnclassifiable,
		},
		{
			name:   "unresolved identity fails closed",
			setup:  func(*chat.Policy, *chat.GameState) {},
			msg:    func() chat.Message { return selfMessage(chat.ChannelParty) },
			ident:  chat.NewIdentity(),
			reason: chat.DropIdentityUnsafe,
		},
		{
			name:  "empty sender fails closed",
			setup: func(*chat.Policy, *chat.GameState) {},
			msg: func() chat.Message {
				m := selfMessage(chat.ChannelParty)
				m.SenderID = ""
				return m
			},
			ident:  id,
			reason: chat.DropIdentityUnsafe,
		},
		{
			name:  "ignored sender",
			setup: func(p *chat.Policy, _ *chat.GameState) { p.Ignore("puuid-self") },
			msg:   func() chat.Message { return selfMessage(chat.ChannelParty) },
			ident: id,
			// The ignore check runs before the self check.
			reason: chat.DropIgnored,
		},
		{
			name:  "someone else's message",
			setup: func(*chat.Policy, *chat.GameState) {},
			msg: func() chat.Message {
				m := selfMessage(chat.ChannelParty)
				m.SenderID = "puuid-other"
				return m
			},
			ident:  id,
			reason: chat.DropNotSelf,
		},
		{
			name:   "self narration toggled off",
			setup:  func(p *chat.Policy, _ *chat.GameState) { p.SetSelfEnabled(false) },
			msg:    func() chat.Message { return selfMessage(chat.ChannelParty) },
			ident:  id,
			reason: chat.DropSelfDisabled,
		},
		{
			name:  "whisper never narratable",
			setup: func(p *chat.Policy, _ *chat.GameState) { p.SetChannelEnabled(chat.ChannelWhisper, true) },
			msg:   func() chat.Message { return selfMessage(chat.ChannelWhisper) },
			ident: id,
			// Only party and team text can be narrated, independent of
			// the per-channel toggles.
			reason: chat.DropChannelExcluded,
		},
		{
			name:  "all chat never narratable",
			setup: func(p *chat.Policy, _ *chat.GameState) { p.SetChannelEnabled(chat.ChannelAll, true) },
			msg:   func() chat.Message { return selfMessage(chat.ChannelAll) },
			ident: id,
			reason: chat.DropChannelExcluded,
		},
		{
			name:   "channel toggled off",
			setup:  func(p *chat.Policy, _ *chat.GameState) { p.SetChannelEnabled(chat.ChannelTeam, false) },
			msg:    func() chat.Message { return selfMessage(chat.ChannelTeam) },
			ident:  id,
			reason: chat.DropChannelDisabled,
		},
		{
			name: "in-game mute",
			setup: func(_ *chat.Policy, gs *chat.GameState) {
				gs.SetMuteEnabled(true)
				gs.SetPhase(chat.PhaseInGame)
			},
			msg:    func() chat.Message { return selfMessage(chat.ChannelParty) },
			ident:  id,
			reason: chat.DropMuted,
		},
		{
			name:  "nothing left after sanitizing",
			setup: func(*chat.Policy, *chat.GameState) {},
			msg: func() chat.Message {
				m := selfMessage(chat.ChannelParty)
				m.Content = ` / \ `
				return m
			},
			ident:  id,
			reason: chat.DropEmptyContent,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := chat.NewPolicy()
			gs := chat.NewGameState()
			tc.setup(p, gs)
			ok, reason := p.Decide(tc.msg(), tc.ident, gs)
			if ok {
				t.Fatalf("Decide passed, want drop %q", tc.reason)
			}
			if reason != tc.reason {
				t.Errorf("reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

// No combination of toggles may ever let another player's text through.
func TestDecide_NotSelfNeverNarrates(t *testing.T) {
	t.Parallel()
	id := selfIdentity(t, "puuid-self")
	gs := chat.NewGameState()

	for mask := 0; mask < 1<<5; mask++ {
		p := chat.NewPolicy()
		p.SetSelfEnabled(mask&1 != 0)
		p.SetChannelEnabled(chat.ChannelParty, mask&2 != 0)
		p.SetChannelEnabled(chat.ChannelTeam, mask&4 != 0)
		p.SetChannelEnabled(chat.ChannelAll, mask&8 != 0)
		p.SetChannelEnabled(chat.ChannelWhisper, mask&16 != 0)

		for _, ch := range []chat.Channel{chat.ChannelParty, chat.ChannelTeam, chat.ChannelAll, chat.ChannelWhisper} {
			m := selfMessage(ch)
			m.SenderID = "puuid-intruder"
			if ok, _ := p.Decide(m, id, gs); ok {
				t.Fatalf("toggle mask %05b let a foreign %v message through", mask, ch)
			}
		}
	}
}

func TestApplySourceSelection(t *testing.T) {
	t.Parallel()
	id := selfIdentity(t, "puuid-self")
	gs := chat.NewGameState()

	p := chat.NewPolicy()
	p.ApplySourceSelection("self+TEAM")
	if ok, _ := p.Decide(selfMessage(chat.ChannelTeam), id, gs); !ok {
		t.Error("TEAM should pass after self+TEAM")
	}
	if ok, reason := p.Decide(selfMessage(chat.ChannelParty), id, gs); ok || reason != chat.DropChannelDisabled {
		t.Errorf("PARTY should be disabled after self+TEAM, got %v %q", ok, reason)
	}

	// Unknown tokens are skipped, known ones still apply.
	p.ApplySourceSelection("SELF+BOGUS+PARTY")
	if ok, _ := p.Decide(selfMessage(chat.ChannelParty), id, gs); !ok {
		t.Error("PARTY should pass, unknown token must not poison the selection")
	}

	// Empty and all-unknown selections fall back to the default.
	for _, sel := range []string{"", "++", "NOPE+NADA"} {
		p.ApplySourceSelection(sel)
		if ok, _ := p.Decide(selfMessage(chat.ChannelParty), id, gs); !ok {
			t.Errorf("selection %q should fall back to the default", sel)
		}
		if ok, _ := p.Decide(selfMessage(chat.ChannelTeam), id, gs); !ok {
			t.Errorf("selection %q should fall back to the default", sel)
		}
	}
}

func TestApplySourceSelectionIsIdempotent(t *testing.T) {
	t.Parallel()
	p := chat.NewPolicy()
	p.ApplySourceSelection("SELF+PARTY")
	first := p.State()
	p.ApplySourceSelection("SELF+PARTY")
	second := p.State()
	if first.Self != second.Self {
		t.Error("self toggle changed on reapply")
	}
	for ch, on := range first.Channels {
		if second.Channels[ch] != on {
			t.Errorf("channel %s changed on reapply", ch)
		}
	}
}

func TestIgnoreList(t *testing.T) {
	t.Parallel()
	p := chat.NewPolicy()
	p.Ignore("  PUUID-Loud  ")
	if !p.IsIgnored("puuid-loud") {
		t.Error("ignore should be case-insensitive and trimmed")
	}
	p.Unignore("puuid-loud")
	if p.IsIgnored("puuid-loud") {
		t.Error("unignore failed")
	}

	p.SetIgnoreList([]string{"a", "B", "", "a"})
	if !p.IsIgnored("a") || !p.IsIgnored("b") {
		t.Error("SetIgnoreList dropped entries")
	}
	p.SetIgnoreList(nil)
	if p.IsIgnored("a") {
		t.Error("SetIgnoreList(nil) should clear the list")
	}
}

func TestSanitizeContent(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"hello", "hello"},
		{"  padded  ", "padded"},
		{`path/like\text`, "pathliketext"},
		{`/ \`, ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := chat.SanitizeContent(tc.in); got != tc.want {
			t.Errorf("SanitizeContent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
