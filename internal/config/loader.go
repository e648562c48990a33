package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when the corresponding field is zero.
const (
	defaultPollInterval    = 2 * time.Second
	defaultPollIntervalMax = 30 * time.Second
	defaultWarnThreshold   = 5
	defaultQueueCapacity   = 16
	defaultSpeakTimeout    = 30 * time.Second
	defaultRate            = 50
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for zero-valued tuning knobs. It returns a joined error listing
// all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Transport
	if cfg.Transport.Mode == "" {
		cfg.Transport.Mode = TransportPoll
	}
	if !cfg.Transport.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("transport.mode %q is invalid; valid values: poll, stream", cfg.Transport.Mode))
	}
	if cfg.Transport.Mode == TransportStream && cfg.Transport.StreamURL == "" {
		errs = append(errs, errors.New("transport.stream_url is required when transport.mode is stream"))
	}
	if cfg.Transport.PollInterval <= 0 {
		cfg.Transport.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.Transport.PollIntervalMax <= 0 {
		cfg.Transport.PollIntervalMax = Duration(defaultPollIntervalMax)
	}
	if cfg.Transport.PollIntervalMax < cfg.Transport.PollInterval {
		errs = append(errs, fmt.Errorf("transport.poll_interval_max %s is below transport.poll_interval %s",
			cfg.Transport.PollIntervalMax.Std(), cfg.Transport.PollInterval.Std()))
	}
	if cfg.Transport.FailureWarnThreshold <= 0 {
		cfg.Transport.FailureWarnThreshold = defaultWarnThreshold
	}

	// Identity availability warning: without a lockfile and without the
	// stream transport's handshake there is no identity source, and the
	// policy fails closed on every message.
	if cfg.Identity.LockfilePath == "" && cfg.Transport.Mode == TransportPoll {
		slog.Warn("identity.lockfile_path is empty; no identity source is configured, nothing will be narrated until an identity arrives")
	}

	// Narration
	if cfg.Narration.Rate == 0 {
		cfg.Narration.Rate = defaultRate
	}
	if cfg.Narration.Rate < 0 || cfg.Narration.Rate > 100 {
		errs = append(errs, fmt.Errorf("narration.rate %d is out of range [0, 100]", cfg.Narration.Rate))
	}
	if cfg.Narration.QueueCapacity == 0 {
		cfg.Narration.QueueCapacity = defaultQueueCapacity
	}
	if cfg.Narration.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("narration.queue_capacity %d must be at least 1", cfg.Narration.QueueCapacity))
	}
	if cfg.Narration.SpeakTimeout <= 0 {
		cfg.Narration.SpeakTimeout = Duration(defaultSpeakTimeout)
	}
	if cfg.Narration.Sources == "" {
		cfg.Narration.Sources = DefaultSources
	}

	return errors.Join(errs...)
}
