package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/echochat/internal/config"
)

func loadYAML(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	a := loadYAML(t, "narration:\n  sources: SELF+PARTY\n")
	b := loadYAML(t, "narration:\n  sources: SELF+PARTY\n")
	if cs := config.Diff(a, b); cs.Any() {
		t.Errorf("Diff of identical configs reports changes: %+v", cs)
	}
}

func TestDiff_HotReloadableFields(t *testing.T) {
	t.Parallel()
	a := loadYAML(t, `
server:
  log_level: info
narration:
  sources: SELF+PARTY
  voice: en-us
  rate: 50
  game_state_mute: false
ignore: [alpha]
`)
	b := loadYAML(t, `
server:
  log_level: debug
narration:
  sources: SELF+TEAM
  voice: en-gb
  rate: 70
  game_state_mute: true
ignore: [alpha, beta]
`)
	cs := config.Diff(a, b)
	if !cs.LogLevelChanged || cs.NewLogLevel != config.LogDebug {
		t.Errorf("log level: %+v", cs)
	}
	if !cs.SourcesChanged || cs.NewSources != "SELF+TEAM" {
		t.Errorf("sources: %+v", cs)
	}
	if !cs.IgnoreChanged || len(cs.NewIgnore) != 2 {
		t.Errorf("ignore: %+v", cs)
	}
	if !cs.GameStateMuteChanged || !cs.NewGameStateMute {
		t.Errorf("mute: %+v", cs)
	}
	if !cs.VoiceChanged || cs.NewVoice != "en-gb" || cs.NewRate != 70 {
		t.Errorf("voice: %+v", cs)
	}
}

func TestDiff_IgnoreListOrderInsensitive(t *testing.T) {
	t.Parallel()
	a := loadYAML(t, "ignore: [alpha, beta]\n")
	b := loadYAML(t, "ignore: [beta, alpha, beta]\n")
	if cs := config.Diff(a, b); cs.IgnoreChanged {
		t.Error("reordered ignore list should not count as a change")
	}
}

func TestDiff_RestartOnlyFieldsNotTracked(t *testing.T) {
	t.Parallel()
	a := loadYAML(t, "transport:\n  poll_interval: 2s\n")
	b := loadYAML(t, "transport:\n  poll_interval: 9s\n")
	if cs := config.Diff(a, b); cs.Any() {
		t.Errorf("transport tuning is restart-only, Diff reported: %+v", cs)
	}
}
