package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

type SendOptions struct {
	Template     string `toml:"template"`
	Execute      bool   `toml:"execute"`
	FocusDelayMS int    `toml:"focus-delay-ms"`
}

type TerminalOptions struct {
	Backend    string `toml:"backend"`
	Shell      string `toml:"shell"`
	RuntimeDir string `toml:"runtime-dir"`
}

type Picker struct {
	Foreground          string `toml:"foreground"`
	Background          string `toml:"background"`
	SelectionForeground string `toml:"selection-foreground"`
	SelectionBackground string `toml:"selection-background"`
}

type Status struct {
	Active bool `toml:"active"`
}

type Config struct {
	Send     SendOptions     `toml:"send"`
	Terminal TerminalOptions `toml:"terminal"`
	Picker   Picker          `toml:"picker"`
	Status   Status          `toml:"status"`
}

// Env holds TERMSEND_* overrides. Zero values leave the file setting alone.
type Env struct {
	Backend      string
	Shell        string
	RuntimeDir   string `split_words:"true"`
	FocusDelayMS int    `split_words:"true"`
	Debug        bool
}

const (
	BackendAuto  = "auto"
	BackendTmux  = "tmux"
	BackendShell = "shell"
)

func Default() Config {
	return Config{
		Send: SendOptions{
			Template:     "",
			Execute:      true,
			FocusDelayMS: 200,
		},
		Terminal: TerminalOptions{
			Backend: BackendAuto,
		},
		Picker: Picker{
			Foreground:          "#B3B1AD",
			Background:          "#0F1419",
			SelectionForeground: "#0A0E14",
			SelectionBackground: "#E6B450",
		},
	}
}

// FocusDelay is the pause before focus returns to the editor.
func (c Config) FocusDelay() time.Duration {
	return time.Duration(c.Send.FocusDelayMS) * time.Millisecond
}

// Load reads config.toml over the defaults and applies environment
// overrides.
func Load() (Config, error) {
	cfg, err := loadFile()
	if err != nil {
		return cfg, err
	}
	env, err := LoadEnv()
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg, env)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("termsend", &env); err != nil {
		return env, fmt.Errorf("environment: %w", err)
	}
	return env, nil
}

func (c Config) Validate() error {
	switch c.Terminal.Backend {
	case BackendAuto, BackendTmux, BackendShell:
	default:
		return fmt.Errorf("terminal.backend: unknown backend %q", c.Terminal.Backend)
	}
	if c.Send.FocusDelayMS < 0 {
		return fmt.Errorf("send.focus-delay-ms: must not be negative")
	}
	return nil
}

func loadFile() (Config, error) {
	cfg := Default()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var userCfg Config
	md, err := toml.Decode(string(data), &userCfg)
	if err != nil {
		return cfg, err
	}

	if md.IsDefined("send", "template") {
		cfg.Send.Template = userCfg.Send.Template
	}
	if md.IsDefined("send", "execute") {
		cfg.Send.Execute = userCfg.Send.Execute
	}
	if md.IsDefined("send", "focus-delay-ms") {
		cfg.Send.FocusDelayMS = userCfg.Send.FocusDelayMS
	}
	if userCfg.Terminal.Backend != "" {
		cfg.Terminal.Backend = userCfg.Terminal.Backend
	}
	if userCfg.Terminal.Shell != "" {
		cfg.Terminal.Shell = userCfg.Terminal.Shell
	}
	if userCfg.Terminal.RuntimeDir != "" {
		cfg.Terminal.RuntimeDir = userCfg.Terminal.RuntimeDir
	}
	mergePicker(&cfg.Picker, userCfg.Picker)
	cfg.Status.Active = userCfg.Status.Active

	return cfg, nil
}

func applyEnv(cfg *Config, env Env) {
	if env.Backend != "" {
		cfg.Terminal.Backend = env.Backend
	}
	if env.Shell != "" {
		cfg.Terminal.Shell = env.Shell
	}
	if env.RuntimeDir != "" {
		cfg.Terminal.RuntimeDir = env.RuntimeDir
	}
	if env.FocusDelayMS > 0 {
		cfg.Send.FocusDelayMS = env.FocusDelayMS
	}
}

func mergePicker(dst *Picker, src Picker) {
	if src.Foreground != "" {
		dst.Foreground = src.Foreground
	}
	if src.Background != "" {
		dst.Background = src.Background
	}
	if src.SelectionForeground != "" {
		dst.SelectionForeground = src.SelectionForeground
	}
	if src.SelectionBackground != "" {
		dst.SelectionBackground = src.SelectionBackground
	}
}

// ShellPath picks the shell for `termsend shell`.
func (c Config) ShellPath() string {
	if c.Terminal.Shell != "" {
		return c.Terminal.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// RuntimeDir is where shell sockets live.
func (c Config) RuntimeDir() string {
	if c.Terminal.RuntimeDir != "" {
		return c.Terminal.RuntimeDir
	}
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "termsend")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("termsend-%d", os.Getuid()))
}

func ConfigDir() (string, error) {
	if v := os.Getenv("TERMSEND_CONFIG_HOME"); v != "" {
		return filepath.Join(v), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "termsend"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "termsend"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
