package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/careercompass/vector/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
openai:
  api_key: sk-test
`

const watcherUpdatedYAML = `
server:
  log_level: debug
openai:
  api_key: sk-test
`

const watcherInvalidYAML = `
server:
  log_level: bananas
openai:
  api_key: sk-test
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var mu sync.Mutex
	var gotOld, gotNew *config.Config
	called := make(chan struct{}, 1)

	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		gotOld = old
		gotNew = new
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	// Ensure the mtime moves past the initial load's resolution.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, cfgPath, watcherUpdatedYAML)
	now := time.Now()
	if err := os.Chtimes(cfgPath, now, now); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout: onChange was never called")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotOld == nil || gotNew == nil {
		t.Fatal("onChange received nil configs")
	}
	if gotOld.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q, want info", gotOld.Server.LogLevel)
	}
	if gotNew.Server.LogLevel != config.LogDebug {
		t.Errorf("new log_level = %q, want debug", gotNew.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level = %q, want debug", w.Current().Server.LogLevel)
	}
}

func TestWatcher_KeepsOldConfigOnInvalidFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	called := make(chan struct{}, 1)
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)
	writeFile(t, cfgPath, watcherInvalidYAML)
	now := time.Now()
	if err := os.Chtimes(cfgPath, now, now); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	select {
	case <-called:
		t.Fatal("onChange fired for an invalid config")
	case <-time.After(300 * time.Millisecond):
	}

	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log_level = %q, want info (old config retained)", w.Current().Server.LogLevel)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/config.yaml", nil); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Stop()
	w.Stop()
}
