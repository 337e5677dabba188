package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Settings is the typed view of the values commands change at runtime.
type Settings interface {
	Template() string
	SetTemplate(template string) error
	Active() bool
	SetActive(active bool) error
}

// Store persists Settings in config.toml. Every write reloads the file first
// so that concurrent termsend processes do not drop each other's changes.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

var _ Settings = (*Store)(nil)

func OpenStore() (*Store, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := loadFile()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Store{path: path, cfg: cfg}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Template() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Send.Template
}

func (s *Store) SetTemplate(template string) error {
	return s.update(func(c *Config) { c.Send.Template = template })
}

func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Status.Active
}

func (s *Store) SetActive(active bool) error {
	return s.update(func(c *Config) { c.Status.Active = active })
}

func (s *Store) update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := loadFile()
	if err != nil {
		return fmt.Errorf("load %s: %w", s.path, err)
	}
	fn(&cfg)
	if err := writeFile(s.path, cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func writeFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
