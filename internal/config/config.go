// Package config provides the configuration schema, loader, and file watcher
// for the echochat narration service.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the echochat service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the corresponding slog level, defaulting to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TransportMode selects how raw chat stanzas reach the pipeline.
type TransportMode string

const (
	// TransportPoll periodically fetches new messages from the local
	// client's REST chat endpoints.
	TransportPoll TransportMode = "poll"

	// TransportStream consumes raw stanzas pushed over a WebSocket by the
	// external interception bridge.
	TransportStream TransportMode = "stream"
)

// IsValid reports whether m is a recognised transport mode.
func (m TransportMode) IsValid() bool {
	return m == TransportPoll || m == TransportStream
}

// Duration is a time.Duration that unmarshals from YAML strings like "2s"
// or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for echochat.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Identity  IdentityConfig  `yaml:"identity"`
	Transport TransportConfig `yaml:"transport"`
	Narration NarrationConfig `yaml:"narration"`

	// Ignore lists sender identity tokens or display names whose messages
	// are never narrated. Display names are resolved against the roster.
	Ignore []string `yaml:"ignore"`
}

// ServerConfig holds network and logging settings for the status server.
type ServerConfig struct {
	// ListenAddr is the TCP address the status server listens on
	// (e.g., ":9151"). Empty disables the status server entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// IdentityConfig controls how the local player's identity token is resolved.
type IdentityConfig struct {
	// LockfilePath is the path to the game client's lockfile. When set,
	// the local REST API is used to resolve the player's identity token at
	// startup. Leave empty when the identity is supplied externally via
	// the stream transport's session handshake.
	LockfilePath string `yaml:"lockfile_path"`
}

// TransportConfig selects and tunes the stanza transport.
type TransportConfig struct {
	// Mode selects the transport. Default: poll.
	Mode TransportMode `yaml:"mode"`

	// StreamURL is the WebSocket endpoint of the interception bridge.
	// Required when Mode is "stream".
	StreamURL string `yaml:"stream_url"`

	// PollInterval is the poll-loop floor interval. Default: 2s.
	PollInterval Duration `yaml:"poll_interval"`

	// PollIntervalMax is the backoff ceiling under repeated poll failures.
	// Default: 30s.
	PollIntervalMax Duration `yaml:"poll_interval_max"`

	// FailureWarnThreshold is the number of consecutive poll failures
	// before a warning is logged. Below the threshold failures are logged
	// at debug only, since the game client is frequently just not running.
	// Default: 5.
	FailureWarnThreshold int `yaml:"failure_warn_threshold"`
}

// NarrationConfig tunes the filter policy and the speech dispatch queue.
type NarrationConfig struct {
	// Sources is the channel selection string: tokens joined by '+',
	// case-insensitive, e.g. "SELF+PARTY+TEAM". Unknown tokens are
	// ignored; empty input falls back to the default selection.
	Sources string `yaml:"sources"`

	// Voice is an opaque voice hint passed to the speech collaborator.
	Voice string `yaml:"voice"`

	// Rate is the speech-rate hint in the range [0, 100]. Default: 50.
	Rate int `yaml:"rate"`

	// QueueCapacity bounds the narration queue. When the queue is full the
	// newest request is dropped. Default: 16.
	QueueCapacity int `yaml:"queue_capacity"`

	// SpeakTimeout is the hard per-request timeout for the speech
	// collaborator. A synthesis call past the timeout is forcibly
	// cancelled. Default: 30s.
	SpeakTimeout Duration `yaml:"speak_timeout"`

	// ExpandShortForms enables gaming-shorthand expansion ("gg" becomes
	// "Good game") on the narrated copy of each message. Default: true.
	ExpandShortForms *bool `yaml:"expand_short_forms"`

	// GameStateMute suppresses narration while a match is in progress.
	// Layered after all correctness filters.
	GameStateMute bool `yaml:"game_state_mute"`
}

// DefaultSources is the channel selection applied when narration.sources is
// empty or contains no recognised token.
const DefaultSources = "SELF+PARTY+TEAM"

// ExpandEnabled returns the effective short-form expansion setting
// (defaulting to true when unset).
func (n NarrationConfig) ExpandEnabled() bool {
	return n.ExpandShortForms == nil || *n.ExpandShortForms
}
