package terminal

import "errors"

var (
	// ErrTerminalClosed is returned when a terminal no longer accepts input.
	ErrTerminalClosed = errors.New("terminal is closed")

	// ErrNotFound is returned when no terminal has the requested ID.
	ErrNotFound = errors.New("terminal not found")

	// ErrPTYNotSupported is returned by RunShell on platforms without PTYs.
	ErrPTYNotSupported = errors.New("PTY not supported on this platform")
)
