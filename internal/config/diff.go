package config

import "slices"

// ChangeSet describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; transport and
// server settings require a restart and are deliberately not diffed.
type ChangeSet struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SourcesChanged is true when the narration source selection string
	// differs. The new selection is applied atomically through the policy.
	SourcesChanged bool
	NewSources     string

	// IgnoreChanged is true when the ignore list differs (order-insensitive).
	IgnoreChanged bool
	NewIgnore     []string

	// GameStateMuteChanged is true when the in-match mute toggle differs.
	GameStateMuteChanged bool
	NewGameStateMute     bool

	// VoiceChanged is true when the voice or rate hints differ.
	VoiceChanged bool
	NewVoice     string
	NewRate      int
}

// Any reports whether the change set contains at least one change.
func (c ChangeSet) Any() bool {
	return c.LogLevelChanged || c.SourcesChanged || c.IgnoreChanged ||
		c.GameStateMuteChanged || c.VoiceChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ChangeSet {
	d := ChangeSet{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Narration.Sources != new.Narration.Sources {
		d.SourcesChanged = true
		d.NewSources = new.Narration.Sources
	}

	if !sameIgnoreList(old.Ignore, new.Ignore) {
		d.IgnoreChanged = true
		d.NewIgnore = slices.Clone(new.Ignore)
	}

	if old.Narration.GameStateMute != new.Narration.GameStateMute {
		d.GameStateMuteChanged = true
		d.NewGameStateMute = new.Narration.GameStateMute
	}

	if old.Narration.Voice != new.Narration.Voice || old.Narration.Rate != new.Narration.Rate {
		d.VoiceChanged = true
		d.NewVoice = new.Narration.Voice
		d.NewRate = new.Narration.Rate
	}

	return d
}

// sameIgnoreList compares two ignore lists ignoring order and duplicates.
func sameIgnoreList(a, b []string) bool {
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	as = slices.Compact(as)
	bs = slices.Compact(bs)
	return slices.Equal(as, bs)
}
