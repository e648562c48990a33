// Command echochat narrates the local player's own chat messages through
// a speech engine, reading them from the game client's local chat
// endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/echochat/internal/app"
	"github.com/MrWong99/echochat/internal/config"
	"github.com/MrWong99/echochat/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional env file loaded before the config")
	watch := flag.Bool("watch", true, "reload hot-swappable settings when the config file changes")
	flag.Parse()

	// Missing env files are fine; the flag default is only a convention.
	_ = godotenv.Load(*envFile)

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "echochat: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "echochat: %v\n", err)
		}
		return 1
	}
	applyEnvOverrides(cfg)

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("echochat starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"transport", cfg.Transport.Mode,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "echochat",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, app.WithLevelVar(levelVar), app.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher (optional) ─────────────────────────────────────────────
	if *watch {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			application.ApplyChanges(config.Diff(old, new))
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("shutdown signal received, stopping")
	application.Shutdown()
	slog.Info("goodbye")
	return 0
}

// applyEnvOverrides lets environment variables (possibly from the env
// file) override the per-machine settings that rarely belong in a shared
// config file.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("ECHOCHAT_LOCKFILE"); v != "" {
		cfg.Identity.LockfilePath = v
	}
	if v := os.Getenv("ECHOCHAT_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("ECHOCHAT_STREAM_URL"); v != "" {
		cfg.Transport.StreamURL = v
	}
}

// printStartupSummary prints a human-readable box with the effective
// settings, mirroring what the service will actually do.
func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        echochat startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Transport       : %-19s║\n", cfg.Transport.Mode)
	fmt.Printf("║  Sources         : %-19s║\n", cfg.Narration.Sources)
	voice := cfg.Narration.Voice
	if voice == "" {
		voice = "(engine default)"
	}
	fmt.Printf("║  Voice           : %-19s║\n", voice)
	fmt.Printf("║  Rate            : %-19d║\n", cfg.Narration.Rate)
	mute := "off"
	if cfg.Narration.GameStateMute {
		mute = "on"
	}
	fmt.Printf("║  In-game mute    : %-19s║\n", mute)
	fmt.Printf("║  Status server   : %-19s║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}
