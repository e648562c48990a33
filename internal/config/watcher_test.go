package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/echochat/internal/config"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "narration:\n  sources: SELF+PARTY\n")

	var mu sync.Mutex
	var gotNew *config.Config
	w, err := config.NewWatcher(path, func(_, new *config.Config) {
		mu.Lock()
		gotNew = new
		mu.Unlock()
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Current().Narration.Sources != "SELF+PARTY" {
		t.Fatalf("initial config: %+v", w.Current().Narration)
	}

	writeConfigFile(t, path, "narration:\n  sources: SELF+TEAM\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := gotNew != nil
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotNew == nil {
		t.Fatal("change never detected")
	}
	if gotNew.Narration.Sources != "SELF+TEAM" {
		t.Errorf("new sources = %q", gotNew.Narration.Sources)
	}
	if w.Current().Narration.Sources != "SELF+TEAM" {
		t.Errorf("Current not updated")
	}
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, "narration:\n  sources: SELF+PARTY\n")

	var calls sync.Map
	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		calls.Store("called", true)
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "transport:\n  mode: carrier-pigeon\n")
	time.Sleep(200 * time.Millisecond)

	if _, called := calls.Load("called"); called {
		t.Error("onChange ran for an invalid config")
	}
	if w.Current().Narration.Sources != "SELF+PARTY" {
		t.Errorf("previous config lost: %+v", w.Current().Narration)
	}
}

func TestWatcher_MissingFileFailsConstruction(t *testing.T) {
	t.Parallel()
	_, err := config.NewWatcher(filepath.Join(t.TempDir(), "nope.yaml"), func(_, _ *config.Config) {})
	if err == nil {
		t.Error("expected error for missing file")
	}
}
