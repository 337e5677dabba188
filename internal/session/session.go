package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Binding is a persisted registry entry.
type Binding struct {
	Key          string `json:"key"`
	TerminalID   string `json:"terminal_id"`
	TerminalName string `json:"terminal_name,omitempty"`
}

// FileState stores the cursor and selection of a single file
type FileState struct {
	CursorRow int `json:"cursor_row"`
	CursorCol int `json:"cursor_col"`
	// Selection state
	SelectionActive   bool `json:"selection_active,omitempty"`
	SelectionStartRow int  `json:"selection_start_row,omitempty"`
	SelectionStartCol int  `json:"selection_start_col,omitempty"`
	SelectionEndRow   int  `json:"selection_end_row,omitempty"`
	SelectionEndCol   int  `json:"selection_end_col,omitempty"`
}

// Session is everything termsend keeps between invocations.
type Session struct {
	// Bindings are ordered least recent first.
	Bindings  []Binding            `json:"bindings"`
	Files     map[string]FileState `json:"files"`
	LastSaved time.Time            `json:"last_saved"`
}

// Manager handles session persistence. Changes are kept as pending
// operations and replayed onto the file's current content on Save, so
// several termsend processes can share one session file.
type Manager struct {
	mu      sync.RWMutex
	session Session
	path    string

	bindings    []Binding
	bindingsSet bool
	files       map[string]FileState
	dropped     map[string]bool
}

// NewManager opens the session in the state directory.
func NewManager() (*Manager, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Open opens the session stored at path. A missing or corrupt file starts
// an empty session.
func Open(path string) (*Manager, error) {
	m := &Manager{
		path:    path,
		files:   make(map[string]FileState),
		dropped: make(map[string]bool),
	}
	session, err := load(path)
	if err != nil {
		return nil, err
	}
	m.session = session
	return m, nil
}

// StateDir is $TERMSEND_STATE_HOME, else $XDG_STATE_HOME/termsend, else
// ~/.local/state/termsend.
func StateDir() (string, error) {
	if v := os.Getenv("TERMSEND_STATE_HOME"); v != "" {
		return v, nil
	}
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "termsend"), nil
}

func sessionPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

func (m *Manager) Path() string { return m.path }

func load(path string) (Session, error) {
	session := Session{Files: make(map[string]FileState)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return session, nil
	}
	if err != nil {
		return session, err
	}
	if err := json.Unmarshal(data, &session); err != nil {
		// unreadable state is not worth failing a send over
		return Session{Files: make(map[string]FileState)}, nil
	}
	if session.Files == nil {
		session.Files = make(map[string]FileState)
	}
	return session, nil
}

// Bindings returns the bindings as loaded, plus pending changes.
func (m *Manager) Bindings() []Binding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.session.Bindings
	if m.bindingsSet {
		src = m.bindings
	}
	out := make([]Binding, 0, len(src))
	for _, b := range src {
		if !m.dropped[b.TerminalID] {
			out = append(out, b)
		}
	}
	return out
}

// SetBindings replaces all bindings.
func (m *Manager) SetBindings(bindings []Binding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings = append([]Binding(nil), bindings...)
	m.bindingsSet = true
}

// DropTerminal removes every binding to the terminal with the given ID.
func (m *Manager) DropTerminal(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[id] = true
}

// GetFileState returns the saved state for a file
func (m *Manager) GetFileState(key string) (FileState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.files[key]; ok {
		return state, true
	}
	state, ok := m.session.Files[key]
	return state, ok
}

// SetFileState updates the state for a file
func (m *Manager) SetFileState(key string, state FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = state
}

func (m *Manager) dirty() bool {
	return m.bindingsSet || len(m.files) > 0 || len(m.dropped) > 0
}

// Save replays pending changes onto the file and writes it.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty() {
		return nil
	}

	session, err := load(m.path)
	if err != nil {
		return fmt.Errorf("reload session: %w", err)
	}
	if m.bindingsSet {
		session.Bindings = m.bindings
	}
	if len(m.dropped) > 0 {
		kept := session.Bindings[:0]
		for _, b := range session.Bindings {
			if !m.dropped[b.TerminalID] {
				kept = append(kept, b)
			}
		}
		session.Bindings = kept
	}
	for key, state := range m.files {
		session.Files[key] = state
	}
	session.LastSaved = time.Now()

	if err := write(m.path, session); err != nil {
		return err
	}

	m.session = session
	m.bindings = nil
	m.bindingsSet = false
	m.files = make(map[string]FileState)
	m.dropped = make(map[string]bool)
	return nil
}

func write(path string, session Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
