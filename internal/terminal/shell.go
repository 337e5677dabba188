package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ShellInfo describes a running `termsend shell`.
type ShellInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	PID     int       `json:"pid"`
	Cwd     string    `json:"cwd"`
	Socket  string    `json:"socket"`
	Started time.Time `json:"started"`
}

type shellRequest struct {
	Op      string `json:"op"`
	Text    string `json:"text,omitempty"`
	Execute bool   `json:"execute,omitempty"`
}

type shellResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

const (
	opSend = "send"
	opShow = "show"
	opPing = "ping"
)

// ShellOptions configures RunShell.
type ShellOptions struct {
	// Name is shown in terminal pickers.
	Name string

	// Shell is the executable to run.
	Shell string

	// Args are passed to the shell.
	Args []string

	// WorkDir is the shell's working directory.
	WorkDir string

	// Dir holds the socket and metadata files.
	Dir string
}

// shellServer applies requests to a shell's PTY. in receives typed text,
// out is the user's own terminal.
type shellServer struct {
	in  io.Writer
	out io.Writer
}

func (s *shellServer) serveConn(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req shellRequest
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := shellResponse{OK: true}
		if err := s.handle(req); err != nil {
			resp = shellResponse{Error: err.Error()}
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *shellServer) handle(req shellRequest) error {
	switch req.Op {
	case opSend:
		text := req.Text
		if req.Execute {
			text += "\r"
		}
		_, err := io.WriteString(s.in, text)
		return err
	case opShow:
		_, err := io.WriteString(s.out, "\a")
		return err
	case opPing:
		return nil
	default:
		return fmt.Errorf("unknown op %q", req.Op)
	}
}

// lockedWriter serializes writes from several goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func socketPath(dir, id string) string { return filepath.Join(dir, id+".sock") }
func infoPath(dir, id string) string   { return filepath.Join(dir, id+".json") }

func writeInfo(dir string, info ShellInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	tmp := infoPath(dir, info.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, infoPath(dir, info.ID))
}

func removeShellFiles(dir, id string) {
	_ = os.Remove(socketPath(dir, id))
	_ = os.Remove(infoPath(dir, id))
}

// Shells provides shells started with RunShell.
type Shells struct {
	dir         string
	dialTimeout time.Duration
}

func NewShells(dir string) *Shells {
	return &Shells{dir: dir, dialTimeout: time.Second}
}

func (s *Shells) Kind() string { return "shell" }

func (s *Shells) Dir() string { return s.dir }

// List returns live shells ordered by start time. Metadata whose socket no
// longer answers is removed.
func (s *Shells) List(ctx context.Context) ([]Handle, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var infos []ShellInfo
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var info ShellInfo
		if err := json.Unmarshal(data, &info); err != nil || info.ID == "" {
			continue
		}
		if !s.alive(ctx, info) {
			removeShellFiles(s.dir, info.ID)
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Started.Before(infos[j].Started) })
	out := make([]Handle, 0, len(infos))
	for _, info := range infos {
		out = append(out, &Shell{info: info, timeout: s.dialTimeout})
	}
	return out, nil
}

// Focused always returns nil; termsend cannot see which window has focus.
func (s *Shells) Focused(ctx context.Context) (Handle, error) {
	return nil, nil
}

func (s *Shells) alive(ctx context.Context, info ShellInfo) bool {
	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, "unix", info.Socket)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Shell is a handle to a running `termsend shell`.
type Shell struct {
	info    ShellInfo
	timeout time.Duration
}

func (s *Shell) ID() string { return "shell:" + s.info.ID }

func (s *Shell) Name() string { return s.info.Name }

func (s *Shell) Info() ShellInfo { return s.info }

func (s *Shell) SendText(ctx context.Context, text string, execute bool) error {
	return s.call(ctx, shellRequest{Op: opSend, Text: text, Execute: execute})
}

// Show rings the bell in the shell's window.
func (s *Shell) Show(ctx context.Context) error {
	return s.call(ctx, shellRequest{Op: opShow})
}

func (s *Shell) call(ctx context.Context, req shellRequest) error {
	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "unix", s.info.Socket)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTerminalClosed, s.info.Name)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("shell %s: %w", s.info.Name, err)
	}
	var resp shellResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", ErrTerminalClosed, s.info.Name)
		}
		return fmt.Errorf("shell %s: %w", s.info.Name, err)
	}
	if !resp.OK {
		return fmt.Errorf("shell %s: %s", s.info.Name, resp.Error)
	}
	return nil
}

// shellIDFromSocket maps a socket path back to the handle ID.
func shellIDFromSocket(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".sock") {
		return "", false
	}
	return "shell:" + strings.TrimSuffix(base, ".sock"), true
}
