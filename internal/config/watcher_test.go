package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/inkwell/internal/config"
)

const (
	baseYAML = `
server:
  log_level: info
gemini:
  api_key: test-key
`
	proModelYAML = `
server:
  log_level: debug
gemini:
  api_key: test-key
  text_model: gemini-2.5-pro
`
	badLevelYAML = `
server:
  log_level: bananas
gemini:
  api_key: test-key
`
)

// quiet is how long a test waits to be sure no reload happened. It is a
// multiple of the debounce used below.
const quiet = 300 * time.Millisecond

type change struct{ old, next *config.Config }

// startWatcher writes body to a fresh config file and watches it. Every
// accepted reload is delivered on the returned channel.
func startWatcher(t *testing.T, body string) (string, *config.Watcher, <-chan change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkwell.yaml")
	writeFile(t, path, body)

	changes := make(chan change, 4)
	w, err := config.NewWatcher(path, func(old, next *config.Config) {
		changes <- change{old, next}
	}, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, changes
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitChange(t *testing.T, changes <-chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within 2s")
		return change{}
	}
}

func expectNoChange(t *testing.T, changes <-chan change) {
	t.Helper()
	select {
	case c := <-changes:
		t.Fatalf("unexpected reload to %+v", c.next.Server)
	case <-time.After(quiet):
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	_, w, _ := startWatcher(t, baseYAML)

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q; want info", cfg.Server.LogLevel)
	}
	// Defaults are applied on the initial load too.
	if cfg.Gemini.TextModel != config.DefaultTextModel {
		t.Errorf("text_model = %q; want default", cfg.Gemini.TextModel)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Parallel()
	path, w, changes := startWatcher(t, baseYAML)

	writeFile(t, path, proModelYAML)
	c := waitChange(t, changes)

	if c.old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q", c.old.Server.LogLevel)
	}
	if c.next.Server.LogLevel != config.LogDebug || c.next.Gemini.TextModel != "gemini-2.5-pro" {
		t.Errorf("next = %+v / %q", c.next.Server, c.next.Gemini.TextModel)
	}
	if w.Current() != c.next {
		t.Error("Current does not return the reloaded config")
	}
}

func TestWatcher_ReloadsOnRenameSave(t *testing.T) {
	t.Parallel()
	path, _, changes := startWatcher(t, baseYAML)

	tmp := path + ".swp"
	writeFile(t, tmp, proModelYAML)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if c := waitChange(t, changes); c.next.Gemini.TextModel != "gemini-2.5-pro" {
		t.Errorf("text_model = %q", c.next.Gemini.TextModel)
	}
}

func TestWatcher_IgnoresInvalidAndUnchanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid level", badLevelYAML},
		{"same bytes", baseYAML},
		{"not yaml", "server: [unterminated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path, w, changes := startWatcher(t, baseYAML)
			before := w.Current()

			writeFile(t, path, tc.body)
			expectNoChange(t, changes)
			if w.Current() != before {
				t.Error("Current changed without a reload")
			}
		})
	}
}

func TestWatcher_RecoversAfterInvalidEdit(t *testing.T) {
	t.Parallel()
	path, _, changes := startWatcher(t, baseYAML)

	writeFile(t, path, badLevelYAML)
	expectNoChange(t, changes)

	writeFile(t, path, proModelYAML)
	c := waitChange(t, changes)
	if c.old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q; want the last valid config", c.old.Server.LogLevel)
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewWatcher on a missing file succeeded")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, w, _ := startWatcher(t, baseYAML)
	w.Stop()
	w.Stop()
}
