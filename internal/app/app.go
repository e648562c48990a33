// Package app wires all echochat subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the transports and the status server, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSpeaker,
// WithSource, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echochat/internal/chat"
	"github.com/MrWong99/echochat/internal/config"
	"github.com/MrWong99/echochat/internal/health"
	"github.com/MrWong99/echochat/internal/ingest"
	"github.com/MrWong99/echochat/internal/localapi"
	"github.com/MrWong99/echochat/internal/narrate"
	"github.com/MrWong99/echochat/internal/observe"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	identity *chat.Identity
	policy   *chat.Policy
	game     *chat.GameState
	roster   *chat.Roster
	stats    *chat.Stats
	pipeline *chat.Pipeline

	speaker narrate.Speaker
	queue   *narrate.Queue

	source ingest.Source
	poller *ingest.Poller
	stream *ingest.Stream

	levelVar *slog.LevelVar
	server   *http.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSpeaker injects a speech engine instead of the espeak default.
func WithSpeaker(s narrate.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithSource injects a message source instead of the lockfile-based
// local endpoint client.
func WithSource(s ingest.Source) Option {
	return func(a *App) { a.source = s }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar hands the App the logger's level so config reloads can
// change verbosity at runtime.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Initialisation
// is synchronous except identity resolution, which retries in Run until
// the game client answers.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Pipeline state ────────────────────────────────────────────────
	a.identity = chat.NewIdentity()
	a.policy = chat.NewPolicy()
	a.policy.ApplySourceSelection(cfg.Narration.Sources)
	a.game = chat.NewGameState()
	a.game.SetMuteEnabled(cfg.Narration.GameStateMute)
	a.roster = chat.NewRoster()
	a.stats = chat.NewStats()
	a.applyIgnoreList(cfg.Ignore)

	// ── 2. Narration queue ───────────────────────────────────────────────
	if a.speaker == nil {
		a.speaker = &narrate.ESpeak{DefaultVoice: cfg.Narration.Voice}
	}
	a.queue = narrate.NewQueue(a.speaker, cfg.Narration.QueueCapacity,
		narrate.WithTimeout(cfg.Narration.SpeakTimeout.Std()),
		narrate.WithObserver(func(_ narrate.Request, d time.Duration, err error) {
			a.stats.RecordSynthesis(d)
			a.metrics.QueueDepth.Add(context.Background(), -1)
			if err == nil {
				a.metrics.SynthesisDuration.Record(context.Background(), d.Seconds())
			}
		}),
	)
	a.closers = append(a.closers, func() error {
		a.queue.Close()
		return nil
	})

	// ── 3. Pipeline ──────────────────────────────────────────────────────
	a.pipeline = chat.NewPipeline(chat.PipelineConfig{
		Identity:         a.identity,
		Policy:           a.policy,
		Game:             a.game,
		Roster:           a.roster,
		Stats:            a.stats,
		Queue:            a.queue,
		Metrics:          a.metrics,
		ExpandShortForms: cfg.Narration.ExpandEnabled(),
		Voice:            cfg.Narration.Voice,
		Rate:             cfg.Narration.Rate,
	})

	// ── 4. Local endpoint + transport ────────────────────────────────────
	if a.source == nil && cfg.Identity.LockfilePath != "" {
		creds, err := localapi.ReadLockfile(cfg.Identity.LockfilePath)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.source = localapi.NewClient(creds)
	}
	switch cfg.Transport.Mode {
	case config.TransportStream:
		a.stream = ingest.NewStream(cfg.Transport.StreamURL, a.pipeline)
	default:
		if a.source == nil {
			return nil, errors.New("app: poll transport needs identity.lockfile_path or an injected source")
		}
		a.poller = ingest.NewPoller(ingest.PollerConfig{
			Source:        a.source,
			Sink:          a.pipeline,
			Interval:      cfg.Transport.PollInterval.Std(),
			MaxInterval:   cfg.Transport.PollIntervalMax.Std(),
			WarnThreshold: cfg.Transport.FailureWarnThreshold,
			Metrics:       a.metrics,
		})
	}

	// ── 5. Status server (optional) ──────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.buildHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Pipeline exposes the wired pipeline, mainly for tests.
func (a *App) Pipeline() *chat.Pipeline { return a.pipeline }

func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(
		health.Checker{Name: "identity", Check: func(context.Context) error {
			if !a.identity.Resolved() {
				return errors.New("local identity not resolved yet")
			}
			return nil
		}},
	)
	h.Register(mux)

	mux.HandleFunc("GET /statusz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"stats":       a.stats.Snapshot(),
			"policy":      a.policy.State(),
			"phase":       a.game.Phase().String(),
			"queue_depth": a.queue.Len(),
		})
	})

	return observe.Middleware(a.metrics)(mux)
}

// applyIgnoreList resolves configured names or tokens through the roster
// and installs the result atomically.
func (a *App) applyIgnoreList(entries []string) {
	tokens := make([]string, 0, len(entries))
	for _, e := range entries {
		if t := a.roster.ResolveToken(e); t != "" {
			tokens = append(tokens, t)
		}
	}
	a.policy.SetIgnoreList(tokens)
}

// ApplyChanges applies a hot-reloadable config diff to the running
// service. Called by the config watcher; safe while traffic flows.
func (a *App) ApplyChanges(cs config.ChangeSet) {
	if !cs.Any() {
		return
	}
	if cs.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(cs.NewLogLevel.Level())
		slog.Info("log level changed", "level", string(cs.NewLogLevel))
	}
	if cs.SourcesChanged {
		a.policy.ApplySourceSelection(cs.NewSources)
		slog.Info("source selection changed", "sources", cs.NewSources)
	}
	if cs.IgnoreChanged {
		a.applyIgnoreList(cs.NewIgnore)
		slog.Info("ignore list changed", "entries", len(cs.NewIgnore))
	}
	if cs.GameStateMuteChanged {
		a.game.SetMuteEnabled(cs.NewGameStateMute)
		slog.Info("in-game mute changed", "enabled", cs.NewGameStateMute)
	}
	if cs.VoiceChanged {
		a.pipeline.SetNarrationOptions(cs.NewVoice, cs.NewRate, a.cfg.Narration.ExpandEnabled())
		slog.Info("voice changed", "voice", cs.NewVoice, "rate", cs.NewRate)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the narration queue, the transport, the identity resolver,
// and the status server, then blocks until ctx is cancelled or a
// subsystem fails fatally.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			slog.Info("status server listening", "addr", a.server.Addr)
			err := a.server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("app: status server: %w", err)
		})
		g.Go(func() error {
			<-gctx.Done()
			shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shctx)
		})
	}

	if client, ok := a.source.(*localapi.Client); ok {
		g.Go(func() error {
			a.resolveIdentity(gctx, client)
			return nil
		})
	}

	switch {
	case a.poller != nil:
		g.Go(func() error {
			err := a.poller.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	case a.stream != nil:
		g.Go(func() error {
			err := a.stream.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	a.Shutdown()
	return err
}

// resolveIdentity retries the chat session endpoint until it yields the
// local player token. Nothing is narrated before this succeeds.
func (a *App) resolveIdentity(ctx context.Context, client *localapi.Client) {
	backoff := 2 * time.Second
	for {
		token, err := client.ResolveSelfIdentity(ctx)
		if err == nil {
			a.identity.Set(token)
			slog.Info("local identity resolved")
			return
		}
		slog.Debug("identity resolution failed", "error", err, "next_retry", backoff)
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Shutdown tears the service down in order. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		for _, c := range a.closers {
			if err := c(); err != nil {
				slog.Error("shutdown step failed", "error", err)
			}
		}
		slog.Info("echochat stopped")
	})
}
