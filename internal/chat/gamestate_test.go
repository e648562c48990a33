package chat_test

import (
	"encoding/base64"
	"testing"

	"github.com/MrWong99/echochat/internal/chat"
)

func presencePayload(t *testing.T, loopState string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(`{"sessionLoopState":"` + loopState + `"}`))
}

func TestGameState_PhaseFromPresence(t *testing.T) {
	t.Parallel()
	gs := chat.NewGameState()
	cases := []struct {
		state string
		want  chat.Phase
	}{
		{"MENUS", chat.PhaseMenus},
		{"PREGAME", chat.PhasePregame},
		{"INGAME", chat.PhaseInGame},
	}
	for _, tc := range cases {
		gs.UpdateFromPresence(presencePayload(t, tc.state))
		if got := gs.Phase(); got != tc.want {
			t.Errorf("phase after %q = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestGameState_JunkPresenceKeepsPhase(t *testing.T) {
	t.Parallel()
	gs := chat.NewGameState()
	gs.UpdateFromPresence(presencePayload(t, "INGAME"))

	for _, junk := range []string{
		"",
		"not-base64!!!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		presencePayload(t, "SOMETHING_NEW"),
	} {
		gs.UpdateFromPresence(junk)
		if gs.Phase() != chat.PhaseInGame {
			t.Errorf("junk payload %q flipped the phase to %v", junk, gs.Phase())
		}
	}
}

func TestGameState_Suppressed(t *testing.T) {
	t.Parallel()
	gs := chat.NewGameState()
	if gs.Suppressed() {
		t.Error("suppressed with mute off")
	}
	gs.SetMuteEnabled(true)
	if gs.Suppressed() {
		t.Error("suppressed outside a live round")
	}
	gs.SetPhase(chat.PhaseInGame)
	if !gs.Suppressed() {
		t.Error("not suppressed in a live round with mute on")
	}
	gs.SetPhase(chat.PhaseMenus)
	if gs.Suppressed() {
		t.Error("still suppressed back in the menus")
	}
}
