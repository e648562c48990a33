package chat

import (
	"encoding/base64"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// Phase is the coarse game phase derived from presence updates.
type Phase int32

const (
	PhaseUnknown Phase = iota
	PhaseMenus
	PhasePregame
	PhaseInGame
)

func (p Phase) String() string {
	switch p {
	case PhaseMenus:
		return "menus"
	case PhasePregame:
		return "pregame"
	case PhaseInGame:
		return "ingame"
	default:
		return "unknown"
	}
}

// GameState tracks the current phase and the in-game mute toggle. When
// the toggle is on and the player is in a live round, narration is
// suppressed so the voice never talks over the action.
type GameState struct {
	phase atomic.Int32
	mute  atomic.Bool
}

func NewGameState() *GameState {
	return &GameState{}
}

func (g *GameState) Phase() Phase {
	return Phase(g.phase.Load())
}

func (g *GameState) SetPhase(p Phase) {
	g.phase.Store(int32(p))
}

// SetMuteEnabled turns the in-game mute toggle on or off.
func (g *GameState) SetMuteEnabled(on bool) {
	g.mute.Store(on)
}

// MuteEnabled reports the toggle itself, regardless of phase.
func (g *GameState) MuteEnabled() bool {
	return g.mute.Load()
}

// Suppressed reports whether narration is currently muted: the toggle is
// on and the player is in a live round.
func (g *GameState) Suppressed() bool {
	return g.mute.Load() && g.Phase() == PhaseInGame
}

// UpdateFromPresence decodes a base64 presence payload and updates the
// phase from its session loop state. Undecodable payloads and unknown
// states leave the phase untouched; presence traffic is noisy and a bad
// frame must not flip the state.
func (g *GameState) UpdateFromPresence(payload string) {
	if payload == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return
	}
	if !gjson.ValidBytes(raw) {
		return
	}
	state := gjson.GetBytes(raw, "sessionLoopState").String()
	switch state {
	case "MENUS":
		g.SetPhase(PhaseMenus)
	case "PREGAME":
		g.SetPhase(PhasePregame)
	case "INGAME":
		g.SetPhase(PhaseInGame)
	}
}
