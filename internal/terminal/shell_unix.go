//go:build !windows

package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// RunShell starts a shell under a PTY, bridges it to stdin/stdout and makes
// it reachable for termsend until the shell exits or ctx is done.
func RunShell(ctx context.Context, opts ShellOptions, stdin *os.File, stdout io.Writer) error {
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if _, err := exec.LookPath(opts.Shell); err != nil {
		return fmt.Errorf("shell not found: %s", opts.Shell)
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return err
	}

	id := uuid.NewString()
	if opts.Name == "" {
		opts.Name = "shell-" + id[:8]
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "TERMSEND_SHELL_ID="+id, "TERMSEND_SHELL_NAME="+opts.Name)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start PTY: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	sock := socketPath(opts.Dir, id)
	ln, err := net.Listen("unix", sock)
	if err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("listen %s: %w", sock, err)
	}
	defer removeShellFiles(opts.Dir, id)
	defer ln.Close()

	info := ShellInfo{
		ID:      id,
		Name:    opts.Name,
		PID:     cmd.Process.Pid,
		Cwd:     workDir,
		Socket:  sock,
		Started: time.Now(),
	}
	if err := writeInfo(opts.Dir, info); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("write shell info: %w", err)
	}

	fd := int(stdin.Fd())
	if term.IsTerminal(fd) {
		resize := make(chan os.Signal, 1)
		signal.Notify(resize, syscall.SIGWINCH)
		defer signal.Stop(resize)
		go func() {
			for range resize {
				_ = pty.InheritSize(stdin, ptmx)
			}
		}()
		resize <- syscall.SIGWINCH

		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer func() { _ = term.Restore(fd, oldState) }()
		}
	}

	in := &lockedWriter{w: ptmx}
	out := &lockedWriter{w: stdout}
	srv := &shellServer{in: in, out: out}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn)
		}
	}()
	go func() { _, _ = io.Copy(in, stdin) }()
	go func() { _, _ = io.Copy(out, ptmx) }()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return err
		}
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}
