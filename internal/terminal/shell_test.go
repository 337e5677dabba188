package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// shortDir returns a temp dir with a path short enough for unix sockets.
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ts")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startShellServer serves the shell protocol on a socket in dir and
// writes its metadata, the way RunShell does.
func startShellServer(t *testing.T, dir, id, name string, started time.Time) (*syncBuffer, *syncBuffer, net.Listener) {
	t.Helper()
	in, out := &syncBuffer{}, &syncBuffer{}
	srv := &shellServer{in: in, out: out}
	sock := socketPath(dir, id)
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn)
		}
	}()
	info := ShellInfo{ID: id, Name: name, PID: os.Getpid(), Socket: sock, Started: started}
	if err := writeInfo(dir, info); err != nil {
		t.Fatalf("writeInfo: %v", err)
	}
	return in, out, ln
}

func TestServeConn(t *testing.T) {
	in, out := &syncBuffer{}, &syncBuffer{}
	srv := &shellServer{in: in, out: out}
	client, server := net.Pipe()
	defer client.Close()
	go srv.serveConn(server)

	enc := json.NewEncoder(client)
	dec := json.NewDecoder(client)
	roundTrip := func(req shellRequest) shellResponse {
		t.Helper()
		if err := enc.Encode(req); err != nil {
			t.Fatalf("encode: %v", err)
		}
		var resp shellResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	if resp := roundTrip(shellRequest{Op: opSend, Text: "ls", Execute: true}); !resp.OK {
		t.Fatalf("send failed: %s", resp.Error)
	}
	if resp := roundTrip(shellRequest{Op: opSend, Text: "pwd"}); !resp.OK {
		t.Fatalf("send failed: %s", resp.Error)
	}
	if got := in.String(); got != "ls\rpwd" {
		t.Fatalf("pty input = %q, want %q", got, "ls\rpwd")
	}
	if resp := roundTrip(shellRequest{Op: opShow}); !resp.OK {
		t.Fatalf("show failed: %s", resp.Error)
	}
	if out.String() != "\a" {
		t.Fatalf("output = %q, want bell", out.String())
	}
	if resp := roundTrip(shellRequest{Op: "nope"}); resp.OK || resp.Error == "" {
		t.Fatalf("unknown op accepted: %+v", resp)
	}
}

func TestShellsListAndSend(t *testing.T) {
	dir := shortDir(t)
	now := time.Now()
	inB, _, _ := startShellServer(t, dir, "bbb", "second", now)
	_, outA, _ := startShellServer(t, dir, "aaa", "first", now.Add(-time.Minute))

	shells := NewShells(dir)
	handles, err := shells.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("len = %d, want 2", len(handles))
	}
	if handles[0].Name() != "first" || handles[1].ID() != "shell:bbb" {
		t.Fatalf("order = %s, %s", handles[0].Name(), handles[1].ID())
	}

	if err := handles[1].SendText(context.Background(), "make test", true); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got := inB.String(); got != "make test\r" {
		t.Fatalf("input = %q", got)
	}
	if err := handles[0].Show(context.Background()); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if outA.String() != "\a" {
		t.Fatalf("show output = %q", outA.String())
	}

	if h, _ := shells.Focused(context.Background()); h != nil {
		t.Fatalf("Focused = %v, want nil", h)
	}
}

func TestShellsListRemovesStale(t *testing.T) {
	dir := shortDir(t)
	info := ShellInfo{ID: "gone", Name: "gone", Socket: socketPath(dir, "gone"), Started: time.Now()}
	if err := writeInfo(dir, info); err != nil {
		t.Fatalf("writeInfo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	handles, err := NewShells(dir).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(handles) != 0 {
		t.Fatalf("stale shell listed: %v", handles)
	}
	if _, err := os.Stat(infoPath(dir, "gone")); !os.IsNotExist(err) {
		t.Fatalf("stale metadata not removed: %v", err)
	}
}

func TestShellSendAfterClose(t *testing.T) {
	dir := shortDir(t)
	_, _, ln := startShellServer(t, dir, "ccc", "closing", time.Now())
	handles, err := NewShells(dir).List(context.Background())
	if err != nil || len(handles) != 1 {
		t.Fatalf("List = %v, %v", handles, err)
	}
	ln.Close()

	err = handles[0].SendText(context.Background(), "x", false)
	if !errors.Is(err, ErrTerminalClosed) {
		t.Fatalf("err = %v, want ErrTerminalClosed", err)
	}
}

func TestShellIDFromSocket(t *testing.T) {
	if id, ok := shellIDFromSocket("/run/termsend/abc.sock"); !ok || id != "shell:abc" {
		t.Fatalf("id = %q, %v", id, ok)
	}
	if _, ok := shellIDFromSocket("/run/termsend/abc.json"); ok {
		t.Fatalf("metadata file mapped to a shell")
	}
}
