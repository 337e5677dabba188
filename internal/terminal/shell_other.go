//go:build windows

package terminal

import (
	"context"
	"io"
	"os"
)

func RunShell(ctx context.Context, opts ShellOptions, stdin *os.File, stdout io.Writer) error {
	return ErrPTYNotSupported
}
