package chat_test

import (
	"testing"

	"github.com/MrWong99/echochat/internal/chat"
)

func TestParseRosterIQ_AttributeVariants(t *testing.T) {
	t.Parallel()
	raw := `<iq type='result'><query xmlns='jabber:iq:riotgames:roster'>` +
		`<item jid='puuid-a@na1.chat.x' game_name='SharpShooter' game_tag='NA1'/>` +
		`<item game_name='Flanker' jid='puuid-b@na1.chat.x'/>` +
		`<item jid='puuid-c@na1.chat.x'><id name='Lurker' tagline='EU1'/></item>` +
		`<item jid='puuid-d@na1.chat.x' name='FallbackName'/>` +
		`<item jid='puuid-e@na1.chat.x'/>` +
		`</query></iq>`

	r := chat.NewRoster()
	if n := r.ParseRosterIQ(raw); n != 4 {
		t.Fatalf("recorded %d entries, want 4", n)
	}
	for token, want := range map[string]string{
		"puuid-a": "SharpShooter",
		"puuid-b": "Flanker",
		"puuid-c": "Lurker",
		"puuid-d": "FallbackName",
	} {
		name, ok := r.Name(token)
		if !ok || name != want {
			t.Errorf("Name(%q) = %q, %v; want %q", token, name, ok, want)
		}
	}
	if _, ok := r.Name("puuid-e"); ok {
		t.Error("nameless item should not be recorded")
	}
}

func TestRoster_Announce(t *testing.T) {
	t.Parallel()
	r := chat.NewRoster()
	r.Upsert("puuid-a", "SharpShooter", "NA1")
	if got := r.Announce("PUUID-A", "nice one"); got != "SharpShooter says: nice one" {
		t.Errorf("Announce = %q", got)
	}
	if got := r.Announce("puuid-unknown", "nice one"); got != "nice one" {
		t.Errorf("Announce for unknown sender = %q, roster must never block text", got)
	}
}

func TestRoster_ResolveToken(t *testing.T) {
	t.Parallel()
	r := chat.NewRoster()
	r.Upsert("puuid-a", "SharpShooter", "NA1")
	r.Upsert("puuid-b", "Flanker", "NA1")

	if got := r.ResolveToken("puuid-a"); got != "puuid-a" {
		t.Errorf("exact token resolve = %q", got)
	}
	if got := r.ResolveToken("sharpshooter"); got != "puuid-a" {
		t.Errorf("exact name resolve = %q", got)
	}
	if got := r.ResolveToken("sharpshoter"); got != "puuid-a" {
		t.Errorf("fuzzy name resolve = %q", got)
	}
	if got := r.ResolveToken("CompletelyDifferent"); got != "completelydifferent" {
		t.Errorf("unresolvable input should pass through lowered, got %q", got)
	}
}

func TestRoster_Clear(t *testing.T) {
	t.Parallel()
	r := chat.NewRoster()
	r.Upsert("puuid-a", "SharpShooter", "NA1")
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len after Clear = %d", r.Len())
	}
}

func TestIsRosterIQ(t *testing.T) {
	t.Parallel()
	if !chat.IsRosterIQ(`<iq type='result'><query xmlns='jabber:iq:riotgames:roster'/></iq>`) {
		t.Error("roster iq not recognised")
	}
	if chat.IsRosterIQ(`<message from='x'/>`) {
		t.Error("message misrecognised as roster iq")
	}
}
