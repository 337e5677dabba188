package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kobzarvs/termsend/internal/bridge"
	"github.com/kobzarvs/termsend/internal/config"
	"github.com/kobzarvs/termsend/internal/logger"
	"github.com/kobzarvs/termsend/internal/ui"
)

// App is the top-level runtime for termsend.
type App struct {
	args   []string
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	debug bool

	newHost func(cfg config.Config) host
	newUI   func(cfg config.Config) bridge.UI
}

func New(args []string) *App {
	a := &App{
		args:    args,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		newHost: defaultHost,
	}
	a.newUI = func(cfg config.Config) bridge.UI {
		return ui.NewConsole(a.stderr, cfg.Picker)
	}
	return a
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer logger.Close()

	root := a.rootCommand()
	root.SetArgs(a.args)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "termsend",
		Short: "Send editor text to a terminal",
		Long: "termsend sends the selection, or the block of text around the cursor, " +
			"from a file to the tmux pane or termsend shell associated with that file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug := a.debug
			if env, err := config.LoadEnv(); err == nil && env.Debug {
				debug = true
			}
			if err := logger.Init(debug); err != nil {
				fmt.Fprintln(a.stderr, "termsend: logging disabled:", err)
				return
			}
			logger.Debug("command", "name", cmd.Name(), "args", args)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "write debug messages to the log file")

	root.AddCommand(
		a.sendCommand(),
		a.assignCommand(),
		a.templateCommand(),
		a.shellCommand(),
		a.listCommand(),
		a.watchCommand(),
		a.activateCommand(),
		a.deactivateCommand(),
	)
	return root
}
