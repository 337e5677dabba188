package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kobzarvs/termsend/internal/block"
	"github.com/kobzarvs/termsend/internal/bridge"
	"github.com/kobzarvs/termsend/internal/config"
	"github.com/kobzarvs/termsend/internal/document"
	"github.com/kobzarvs/termsend/internal/logger"
	"github.com/kobzarvs/termsend/internal/registry"
	"github.com/kobzarvs/termsend/internal/session"
	"github.com/kobzarvs/termsend/internal/terminal"
)

// host is the terminal environment termsend runs in.
type host struct {
	providers []terminal.Provider
	// tmux is nil when tmux panes are not used.
	tmux *terminal.Tmux
	// shells is nil when termsend shells are not used.
	shells *terminal.Shells
}

func defaultHost(cfg config.Config) host {
	var h host
	backend := cfg.Terminal.Backend
	if backend == config.BackendAuto || backend == config.BackendTmux {
		if t := terminal.NewTmux(); t.Available() {
			h.tmux = t
			h.providers = append(h.providers, t)
		}
	}
	if backend == config.BackendAuto || backend == config.BackendShell {
		h.shells = terminal.NewShells(cfg.RuntimeDir())
		h.providers = append(h.providers, h.shells)
	}
	return h
}

// runtime holds what a command needs to drive the controller.
type runtime struct {
	cfg   config.Config
	store *config.Store
	sess  *session.Manager
	host  host
	set   *terminal.Set
	reg   *registry.Registry[terminal.Handle]
	ui    bridge.UI
	log   *zap.Logger

	// missing are bound terminals that were not listed on startup.
	missing []terminal.Handle
	// listed is false when a provider failed, so missing terminals may
	// still be alive.
	listed bool
}

func (a *App) open(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	store, err := config.OpenStore()
	if err != nil {
		return nil, err
	}
	sess, err := session.NewManager()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	h := a.newHost(cfg)
	rt := &runtime{
		cfg:   cfg,
		store: store,
		sess:  sess,
		host:  h,
		set:   terminal.NewSet(h.providers...),
		reg:   registry.New[terminal.Handle](),
		ui:    a.newUI(cfg),
		log:   logger.Named("termsend"),
	}
	rt.missing, rt.listed = rt.fill(ctx, rt.reg)
	return rt, nil
}

// fill loads the session's bindings into r. Bound terminals that are not
// listed get a detached handle.
func (rt *runtime) fill(ctx context.Context, r *registry.Registry[terminal.Handle]) ([]terminal.Handle, bool) {
	all, err := rt.set.All(ctx)
	if err != nil {
		rt.log.Warn("list terminals", zap.Error(err))
	}
	byID := make(map[string]terminal.Handle, len(all))
	for _, h := range all {
		byID[h.ID()] = h
	}
	var missing []terminal.Handle
	seen := make(map[string]bool)
	for _, b := range rt.sess.Bindings() {
		h, ok := byID[b.TerminalID]
		if !ok {
			h = &detached{id: b.TerminalID, name: b.TerminalName}
			byID[b.TerminalID] = h
		}
		if _, gone := h.(*detached); gone && !seen[b.TerminalID] {
			seen[b.TerminalID] = true
			missing = append(missing, h)
		}
		r.Set(registry.Key(b.Key), h)
	}
	return missing, err == nil
}

// controller builds the controller for ed (nil when the command has no
// editor) and applies close events for terminals that vanished while
// termsend was not running.
func (rt *runtime) controller(ed bridge.Editor, extra func(*bridge.Options)) (*bridge.Controller, error) {
	opts := bridge.Options{
		Registry:   rt.reg,
		Editors:    activeEditor{ed: ed},
		Terminals:  rt.set,
		Settings:   rt.store,
		UI:         rt.ui,
		Logger:     rt.log.Named("bridge"),
		Execute:    rt.cfg.Send.Execute,
		FocusDelay: rt.cfg.FocusDelay(),
		OnUnbind: func(h terminal.Handle, keys []registry.Key) {
			rt.sess.DropTerminal(h.ID())
		},
	}
	if t := rt.host.tmux; t != nil && t.Self() != "" {
		opts.RestoreFocus = func(ctx context.Context, _ bridge.Editor) error {
			return t.FocusSelf(ctx)
		}
	}
	if extra != nil {
		extra(&opts)
	}
	ctrl := bridge.New(opts)
	if rt.listed {
		for _, h := range rt.missing {
			if err := ctrl.TerminalClosed(h); err != nil {
				return nil, err
			}
		}
	}
	return ctrl, nil
}

// refresh reloads bindings written by other termsend processes.
func (rt *runtime) refresh(ctx context.Context, r *registry.Registry[terminal.Handle]) error {
	sess, err := session.Open(rt.sess.Path())
	if err != nil {
		return err
	}
	rt.sess = sess
	r.DeleteFunc(func(terminal.Handle) bool { return true })
	missing, listed := rt.fill(ctx, r)
	if !listed {
		return nil
	}
	for _, h := range missing {
		r.DeleteFunc(func(t terminal.Handle) bool { return t.ID() == h.ID() })
		rt.sess.DropTerminal(h.ID())
	}
	return nil
}

// persist writes the registry, and the selection of doc when given, back
// to the session.
func (rt *runtime) persist(doc *document.Document) error {
	entries := rt.reg.Entries()
	bindings := make([]session.Binding, 0, len(entries))
	for _, e := range entries {
		bindings = append(bindings, session.Binding{
			Key:          string(e.Key),
			TerminalID:   e.Terminal.ID(),
			TerminalName: e.Terminal.Name(),
		})
	}
	rt.sess.SetBindings(bindings)
	if doc != nil {
		rt.sess.SetFileState(string(doc.Key()), fileState(doc.Selection()))
	}
	if err := rt.sess.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func fileState(sel block.Range) session.FileState {
	return session.FileState{
		CursorRow:         sel.End.Line,
		CursorCol:         sel.End.Col,
		SelectionActive:   !sel.Empty(),
		SelectionStartRow: sel.Start.Line,
		SelectionStartCol: sel.Start.Col,
		SelectionEndRow:   sel.End.Line,
		SelectionEndCol:   sel.End.Col,
	}
}

func selectionFromState(st session.FileState) block.Range {
	if st.SelectionActive {
		return block.Range{
			Start: block.Position{Line: st.SelectionStartRow, Col: st.SelectionStartCol},
			End:   block.Position{Line: st.SelectionEndRow, Col: st.SelectionEndCol},
		}
	}
	pos := block.Position{Line: st.CursorRow, Col: st.CursorCol}
	return block.Range{Start: pos, End: pos}
}

type activeEditor struct {
	ed bridge.Editor
}

func (a activeEditor) Active() (bridge.Editor, bool) {
	return a.ed, a.ed != nil
}

// detached stands in for a bound terminal that is no longer listed.
type detached struct {
	id   string
	name string
}

func (d *detached) ID() string { return d.id }

func (d *detached) Name() string {
	if d.name == "" {
		return d.id
	}
	return d.name
}

func (d *detached) SendText(ctx context.Context, text string, execute bool) error {
	return fmt.Errorf("%w: %s", terminal.ErrTerminalClosed, d.Name())
}

func (d *detached) Show(ctx context.Context) error {
	return fmt.Errorf("%w: %s", terminal.ErrTerminalClosed, d.Name())
}
