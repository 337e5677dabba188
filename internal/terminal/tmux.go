package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Runner executes a tmux subcommand and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

const paneFormat = "#{pane_id}\t#{window_id}\t#{session_name}\t#{window_index}\t#{pane_index}\t" +
	"#{pane_current_command}\t#{pane_active}\t#{pane_last}\t#{window_active}\t#{session_attached}"

const (
	tmuxChunkSize  = 4096
	tmuxChunkDelay = 50 * time.Millisecond
)

// Tmux provides tmux panes as terminals.
type Tmux struct {
	run  Runner
	self string

	chunkSize  int
	chunkDelay time.Duration
}

// NewTmux talks to the tmux server of the current environment. When the
// caller itself runs inside tmux, its own pane ($TMUX_PANE) is never
// offered as a target.
func NewTmux() *Tmux {
	run := execTmux
	if _, err := exec.LookPath("tmux"); err != nil {
		run = nil
	}
	return &Tmux{
		run:        run,
		self:       os.Getenv("TMUX_PANE"),
		chunkSize:  tmuxChunkSize,
		chunkDelay: tmuxChunkDelay,
	}
}

// NewTmuxWithRunner is NewTmux with an explicit runner and own pane.
func NewTmuxWithRunner(run Runner, self string) *Tmux {
	return &Tmux{run: run, self: self, chunkSize: tmuxChunkSize}
}

func (t *Tmux) Kind() string { return "tmux" }

// Available reports whether a tmux binary was found.
func (t *Tmux) Available() bool { return t.run != nil }

// Self is the pane termsend was started from, if any.
func (t *Tmux) Self() string { return t.self }

func (t *Tmux) List(ctx context.Context) ([]Handle, error) {
	panes, err := t.panes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Handle, 0, len(panes))
	for _, p := range panes {
		if p.PaneID == t.self {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Focused prefers the previously active pane of the caller's window, which
// is where the user was before switching to the editor. Otherwise it is the
// active pane of the active window of an attached session.
func (t *Tmux) Focused(ctx context.Context) (Handle, error) {
	panes, err := t.panes(ctx)
	if err != nil {
		return nil, err
	}
	if t.self != "" {
		var window string
		for _, p := range panes {
			if p.PaneID == t.self {
				window = p.WindowID
				break
			}
		}
		for _, p := range panes {
			if p.WindowID == window && p.last && p.PaneID != t.self {
				return p, nil
			}
		}
	}
	for _, p := range panes {
		if p.active && p.windowActive && p.attached && p.PaneID != t.self {
			return p, nil
		}
	}
	return nil, nil
}

// FocusSelf selects the caller's own pane again.
func (t *Tmux) FocusSelf(ctx context.Context) error {
	if t.self == "" || t.run == nil {
		return nil
	}
	if _, err := t.run(ctx, "select-window", "-t", t.self); err != nil {
		return err
	}
	_, err := t.run(ctx, "select-pane", "-t", t.self)
	return err
}

func (t *Tmux) panes(ctx context.Context) ([]*Pane, error) {
	if t.run == nil {
		return nil, nil
	}
	out, err := t.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		if noServer(err) {
			return nil, nil
		}
		return nil, err
	}
	return t.parsePanes(string(out)), nil
}

func (t *Tmux) parsePanes(out string) []*Pane {
	var panes []*Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 10 {
			continue
		}
		window, _ := strconv.Atoi(fields[3])
		index, _ := strconv.Atoi(fields[4])
		attached, _ := strconv.Atoi(fields[9])
		panes = append(panes, &Pane{
			tmux:         t,
			PaneID:       fields[0],
			WindowID:     fields[1],
			Session:      fields[2],
			Window:       window,
			Index:        index,
			Command:      fields[5],
			active:       fields[6] == "1",
			last:         fields[7] == "1",
			windowActive: fields[8] == "1",
			attached:     attached > 0,
		})
	}
	return panes
}

// Pane is a tmux pane.
type Pane struct {
	tmux *Tmux

	PaneID   string
	WindowID string
	Session  string
	Window   int
	Index    int
	Command  string

	active       bool
	last         bool
	windowActive bool
	attached     bool
}

func (p *Pane) ID() string { return "tmux:" + p.PaneID }

func (p *Pane) Name() string {
	name := fmt.Sprintf("%s:%d.%d", p.Session, p.Window, p.Index)
	if p.Command != "" {
		name += " (" + p.Command + ")"
	}
	return name
}

// SendText types text literally. Large texts go in newline-aligned chunks
// so tmux does not hit its command length limit.
func (p *Pane) SendText(ctx context.Context, text string, execute bool) error {
	chunks := splitIntoChunks(text, p.tmux.chunkSize)
	for i, chunk := range chunks {
		if _, err := p.tmux.run(ctx, "send-keys", "-l", "-t", p.PaneID, "--", chunk); err != nil {
			return p.wrap(fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err))
		}
		if i < len(chunks)-1 && p.tmux.chunkDelay > 0 {
			time.Sleep(p.tmux.chunkDelay)
		}
	}
	if !execute {
		return nil
	}
	if _, err := p.tmux.run(ctx, "send-keys", "-t", p.PaneID, "Enter"); err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *Pane) Show(ctx context.Context) error {
	if _, err := p.tmux.run(ctx, "select-window", "-t", p.PaneID); err != nil {
		return p.wrap(err)
	}
	if _, err := p.tmux.run(ctx, "select-pane", "-t", p.PaneID); err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *Pane) wrap(err error) error {
	if strings.Contains(err.Error(), "can't find pane") {
		return fmt.Errorf("%w: %s", ErrTerminalClosed, p.Name())
	}
	return err
}

func execTmux(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "tmux", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(string(exitErr.Stderr))
			if msg != "" {
				return nil, fmt.Errorf("tmux %s: %s", args[0], msg)
			}
		}
		return nil, fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return out, nil
}

func noServer(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no server running") || strings.Contains(msg, "error connecting to")
}

// splitIntoChunks splits content into pieces of at most maxSize bytes,
// cutting after a newline when one is available.
func splitIntoChunks(content string, maxSize int) []string {
	if content == "" {
		return nil
	}
	if maxSize <= 0 || len(content) <= maxSize {
		return []string{content}
	}
	var chunks []string
	remaining := content
	for len(remaining) > maxSize {
		cut := strings.LastIndex(remaining[:maxSize], "\n")
		if cut < 0 {
			cut = maxSize
			for cut > 0 && !utf8.RuneStart(remaining[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxSize
			}
		} else {
			cut++
		}
		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut:]
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}
