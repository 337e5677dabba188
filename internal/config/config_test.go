package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TERMSEND_BACKEND",
		"TERMSEND_SHELL",
		"TERMSEND_RUNTIME_DIR",
		"TERMSEND_FOCUS_DELAY_MS",
		"TERMSEND_DEBUG",
	} {
		unsetEnv(t, key)
	}
}

// unsetEnv removes key for the duration of the test. envconfig treats an
// empty variable as set, so t.Setenv(key, "") is not enough.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestConfigDirEnv(t *testing.T) {
	t.Setenv("TERMSEND_CONFIG_HOME", "/tmp/termsend-config")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != "/tmp/termsend-config" {
		t.Fatalf("ConfigDir = %q, want %q", dir, "/tmp/termsend-config")
	}

	t.Setenv("TERMSEND_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != "/tmp/xdg/termsend" {
		t.Fatalf("ConfigDir = %q, want %q", dir, "/tmp/xdg/termsend")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TERMSEND_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Send.Execute {
		t.Fatalf("Execute = false, want true")
	}
	if cfg.FocusDelay() != 200*time.Millisecond {
		t.Fatalf("FocusDelay = %v, want 200ms", cfg.FocusDelay())
	}
	if cfg.Terminal.Backend != BackendAuto {
		t.Fatalf("Backend = %q, want %q", cfg.Terminal.Backend, BackendAuto)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TERMSEND_CONFIG_HOME", dir)

	writeTestFile(t, filepath.Join(dir, "config.toml"), `
[send]
template = "run({})"
execute = false
focus-delay-ms = 0

[terminal]
backend = "tmux"

[picker]
selection-background = "#123456"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Send.Template != "run({})" {
		t.Fatalf("Template = %q, want %q", cfg.Send.Template, "run({})")
	}
	if cfg.Send.Execute {
		t.Fatalf("Execute = true, want false")
	}
	if cfg.Send.FocusDelayMS != 0 {
		t.Fatalf("FocusDelayMS = %d, want 0", cfg.Send.FocusDelayMS)
	}
	if cfg.Terminal.Backend != BackendTmux {
		t.Fatalf("Backend = %q, want %q", cfg.Terminal.Backend, BackendTmux)
	}
	if cfg.Picker.SelectionBackground != "#123456" {
		t.Fatalf("SelectionBackground = %q, want %q", cfg.Picker.SelectionBackground, "#123456")
	}
	if cfg.Picker.Foreground != "#B3B1AD" {
		t.Fatalf("Foreground = %q, want default", cfg.Picker.Foreground)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TERMSEND_CONFIG_HOME", t.TempDir())
	t.Setenv("TERMSEND_BACKEND", "shell")
	t.Setenv("TERMSEND_FOCUS_DELAY_MS", "50")
	t.Setenv("TERMSEND_RUNTIME_DIR", "/tmp/termsend-run")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Terminal.Backend != BackendShell {
		t.Fatalf("Backend = %q, want %q", cfg.Terminal.Backend, BackendShell)
	}
	if cfg.Send.FocusDelayMS != 50 {
		t.Fatalf("FocusDelayMS = %d, want 50", cfg.Send.FocusDelayMS)
	}
	if cfg.RuntimeDir() != "/tmp/termsend-run" {
		t.Fatalf("RuntimeDir = %q, want %q", cfg.RuntimeDir(), "/tmp/termsend-run")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TERMSEND_CONFIG_HOME", dir)
	writeTestFile(t, filepath.Join(dir, "config.toml"), "[terminal]\nbackend = \"screen\"\n")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TERMSEND_CONFIG_HOME", dir)
	writeTestFile(t, filepath.Join(dir, "config.toml"), "[terminal]\nbackend = \"tmux\"\n")

	s, err := OpenStore()
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	if s.Template() != "" {
		t.Fatalf("Template = %q, want empty", s.Template())
	}
	if err := s.SetTemplate("%paste {}"); err != nil {
		t.Fatalf("SetTemplate error: %v", err)
	}
	if err := s.SetActive(true); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Send.Template != "%paste {}" {
		t.Fatalf("Template = %q, want %q", cfg.Send.Template, "%paste {}")
	}
	if !cfg.Status.Active {
		t.Fatalf("Active = false, want true")
	}
	if cfg.Terminal.Backend != BackendTmux {
		t.Fatalf("Backend = %q, want %q", cfg.Terminal.Backend, BackendTmux)
	}
}

func TestStoreKeepsConcurrentWrites(t *testing.T) {
	clearEnv(t)
	t.Setenv("TERMSEND_CONFIG_HOME", t.TempDir())

	a, err := OpenStore()
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	b, err := OpenStore()
	if err != nil {
		t.Fatalf("OpenStore error: %v", err)
	}
	if err := a.SetTemplate("x {}"); err != nil {
		t.Fatalf("SetTemplate error: %v", err)
	}
	if err := b.SetActive(true); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	if b.Template() != "x {}" {
		t.Fatalf("Template = %q, want %q", b.Template(), "x {}")
	}
}
