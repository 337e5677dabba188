package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kobzarvs/termsend/internal/block"
	"github.com/kobzarvs/termsend/internal/bridge"
	"github.com/kobzarvs/termsend/internal/config"
	"github.com/kobzarvs/termsend/internal/document"
	"github.com/kobzarvs/termsend/internal/gitinfo"
	"github.com/kobzarvs/termsend/internal/logger"
	"github.com/kobzarvs/termsend/internal/registry"
	"github.com/kobzarvs/termsend/internal/terminal"
	"github.com/kobzarvs/termsend/internal/ui"
)

func (a *App) sendCommand() *cobra.Command {
	var (
		line      int
		selection string
	)
	cmd := &cobra.Command{
		Use:   "send FILE",
		Short: "Send the selection, or the block around the cursor, to the file's terminal",
		Long: "send delivers text from FILE to its terminal. Without --selection the block " +
			"of non-blank lines around the cursor is sent; fence lines (```) are left out. " +
			"The terminal is the one assigned to FILE, else the focused one, else the one " +
			"used most recently.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.open(ctx)
			if err != nil {
				return err
			}
			doc, err := document.Open(args[0])
			if err != nil {
				return err
			}
			if err := rt.place(doc, line, selection); err != nil {
				return err
			}
			ctrl, err := rt.controller(doc, nil)
			if err != nil {
				return err
			}
			sendErr := ctrl.Send(ctx)
			ctrl.Wait()
			if sendErr != nil {
				logger.Error("send failed", "file", doc.Path(), "error", sendErr)
			}
			return errors.Join(sendErr, rt.persist(doc))
		},
	}
	cmd.Flags().IntVarP(&line, "line", "l", 0, "cursor line, 1-based")
	cmd.Flags().StringVarP(&selection, "selection", "s", "", "selection as L:C-L:C, 1-based with inclusive end column")
	return cmd
}

// place sets the document's selection from the flags, else from the saved
// session state, else at the first line.
func (rt *runtime) place(doc *document.Document, line int, selection string) error {
	switch {
	case selection != "":
		r, err := parseSelection(selection)
		if err != nil {
			return err
		}
		doc.SetSelection(clampRange(doc, r))
	case line > 0:
		doc.SetCursor(line - 1)
	default:
		st, ok := rt.sess.GetFileState(string(doc.Key()))
		if !ok {
			doc.SetCursor(0)
			return nil
		}
		doc.SetSelection(clampRange(doc, selectionFromState(st)))
	}
	return nil
}

// clampRange keeps r inside doc. An end column below zero means the end of
// the line.
func clampRange(doc *document.Document, r block.Range) block.Range {
	last := doc.LineCount() - 1
	clampLine := func(l int) int {
		if l > last {
			return last
		}
		if l < 0 {
			return 0
		}
		return l
	}
	r.Start.Line = clampLine(r.Start.Line)
	r.End.Line = clampLine(r.End.Line)
	if r.End.Col < 0 || r.End.Col > len(doc.Line(r.End.Line)) {
		r.End.Col = len(doc.Line(r.End.Line))
	}
	if r.Start.Col > len(doc.Line(r.Start.Line)) {
		r.Start.Col = len(doc.Line(r.Start.Line))
	}
	return r
}

func (a *App) assignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assign FILE",
		Short: "Choose the terminal that receives text from FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.open(ctx)
			if err != nil {
				return err
			}
			doc, err := document.Open(args[0])
			if err != nil {
				return err
			}
			ctrl, err := rt.controller(doc, nil)
			if err != nil {
				return err
			}
			if err := ctrl.AssignTerminal(ctx); err != nil {
				return err
			}
			return rt.persist(nil)
		},
	}
}

func (a *App) templateCommand() *cobra.Command {
	var (
		set           string
		clearTemplate bool
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Set the template sent text is wrapped in; {} marks the text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case clearTemplate:
				return a.setTemplate("")
			case cmd.Flags().Changed("set"):
				return a.setTemplate(set)
			}
			rt, err := a.open(ctx)
			if err != nil {
				return err
			}
			ctrl, err := rt.controller(nil, nil)
			if err != nil {
				return err
			}
			if err := ctrl.ConfigureTemplate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template: %q\n", rt.store.Template())
			return rt.persist(nil)
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "set the template without prompting")
	cmd.Flags().BoolVar(&clearTemplate, "clear", false, "remove the template")
	return cmd
}

func (a *App) setTemplate(template string) error {
	store, err := config.OpenStore()
	if err != nil {
		return err
	}
	return store.SetTemplate(template)
}

func (a *App) shellCommand() *cobra.Command {
	var name, dir string
	cmd := &cobra.Command{
		Use:   "shell [-- ARGS...]",
		Short: "Run a shell that termsend can send text to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if dir == "" {
				if dir, err = os.Getwd(); err != nil {
					return err
				}
			}
			if name == "" {
				name = gitinfo.ShellName(dir)
			}
			opts := terminal.ShellOptions{
				Name:    name,
				Shell:   cfg.ShellPath(),
				Args:    args,
				WorkDir: dir,
				Dir:     cfg.RuntimeDir(),
			}
			logger.Info("shell start", "name", name, "shell", opts.Shell, "dir", dir)
			err = terminal.RunShell(cmd.Context(), opts, a.stdin, a.stdout)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "name shown when choosing a terminal")
	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory of the shell")
	return cmd
}

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List terminals and file bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.open(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			all, err := rt.set.All(ctx)
			if err != nil {
				rt.ui.ShowError(err.Error())
			}
			focused, _ := rt.set.Active(ctx)

			fmt.Fprintln(out, ui.Dim("TERMINALS"))
			if len(all) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, h := range all {
				mark := " "
				if focused != nil && focused.ID() == h.ID() {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-14s %s\n", mark, h.ID(), h.Name())
			}

			fmt.Fprintln(out, ui.Dim("BINDINGS"))
			entries := rt.reg.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, e := range entries {
				state := ""
				if _, gone := e.Terminal.(*detached); gone {
					state = " (closed)"
				}
				fmt.Fprintf(out, "  %s -> %s%s\n", e.Key, e.Terminal.Name(), state)
			}
			fmt.Fprintf(out, "%s %v\n", ui.Dim("active:"), rt.store.Active())
			return nil
		},
	}
}

func (a *App) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Forget bindings of terminals as they close",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := a.open(ctx)
			if err != nil {
				return err
			}
			var dirs []string
			if rt.host.shells != nil {
				dirs = append(dirs, rt.host.shells.Dir())
			}
			w := terminal.NewWatcher(rt.set, terminal.WatcherOptions{
				Dirs:   dirs,
				Logger: rt.log.Named("watch"),
			})
			closed, err := w.Watch(ctx)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			ctrl, err := rt.controller(nil, func(o *bridge.Options) {
				o.Refresh = rt.refresh
				o.OnUnbind = func(h terminal.Handle, keys []registry.Key) {
					rt.sess.DropTerminal(h.ID())
					if err := rt.sess.Save(); err != nil {
						rt.log.Error("save session", zap.Error(err))
					}
					if len(keys) > 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "%s closed, unbound %d file(s)\n", h.Name(), len(keys))
					}
				}
			})
			if err != nil {
				return err
			}
			if err := rt.sess.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), ui.Dim("watching terminals, ctrl+c to stop"))
			return ctrl.Run(ctx, closed)
		},
	}
}

func (a *App) activateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Mark termsend as active",
		Long: "activate marks termsend as active. send and assign set the flag on their own, " +
			"and it is cleared when the last bound terminal closes. The send template is kept " +
			"across activations; use \"termsend template --clear\" to reset it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ctrl, err := rt.controller(nil, nil)
			if err != nil {
				return err
			}
			if err := ctrl.Activate(); err != nil {
				return err
			}
			return rt.persist(nil)
		},
	}
}

func (a *App) deactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Mark termsend as inactive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ctrl, err := rt.controller(nil, nil)
			if err != nil {
				return err
			}
			if err := ctrl.Deactivate(); err != nil {
				return err
			}
			return rt.persist(nil)
		},
	}
}
