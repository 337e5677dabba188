// Package bridge implements the termsend commands on top of an editor, a
// set of terminals and the settings store.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kobzarvs/termsend/internal/block"
	"github.com/kobzarvs/termsend/internal/config"
	"github.com/kobzarvs/termsend/internal/payload"
	"github.com/kobzarvs/termsend/internal/registry"
	"github.com/kobzarvs/termsend/internal/terminal"
)

// Messages shown to the user when a command cannot run.
const (
	MsgNoEditor         = "No active editor"
	MsgNoTerminal       = "No active terminal"
	MsgNothingToSend    = "Nothing to send"
	TemplatePrompt      = "Send template"
	TemplatePlaceholder = "Enter template, using {} as placeholder for selected text"
	PickTitle           = "Select terminal"
)

// Editor is a document open in the user's editor.
type Editor interface {
	block.Lines
	Key() registry.Key
	Selection() block.Range
	SetSelection(r block.Range)
	Text(r block.Range) string
}

// Editors gives access to the focused editor.
type Editors interface {
	Active() (Editor, bool)
}

// Terminals lists open terminals.
type Terminals interface {
	All(ctx context.Context) ([]terminal.Handle, error)
	Active(ctx context.Context) (terminal.Handle, error)
}

// UI presents messages and prompts.
type UI interface {
	ShowError(msg string)
	// Pick returns the index of the chosen item; ok is false on cancel.
	Pick(ctx context.Context, title string, items []string) (int, bool, error)
	// Input returns the entered text; ok is false on cancel.
	Input(ctx context.Context, prompt, placeholder, value string) (string, bool, error)
}

type Options struct {
	Registry  *registry.Registry[terminal.Handle]
	Editors   Editors
	Terminals Terminals
	Settings  config.Settings
	UI        UI
	Logger    *zap.Logger

	// Execute presses Enter after the text.
	Execute bool

	// FocusDelay is the pause between showing the terminal and handing
	// focus back to the editor.
	FocusDelay time.Duration

	// RestoreFocus returns focus to the editor. Optional.
	RestoreFocus func(ctx context.Context, ed Editor) error

	// OnUnbind is called after a closed terminal lost its keys.
	OnUnbind func(h terminal.Handle, keys []registry.Key)

	// Refresh reloads the registry before Run handles a close
	// notification. Other processes may have changed the bindings since
	// the registry was filled.
	Refresh func(ctx context.Context, r *registry.Registry[terminal.Handle]) error
}

// Controller runs the commands. Commands are serialized; the registry is
// only touched while holding mu.
type Controller struct {
	mu sync.Mutex

	registry  *registry.Registry[terminal.Handle]
	editors   Editors
	terminals Terminals
	settings  config.Settings
	ui        UI
	log       *zap.Logger

	execute      bool
	focusDelay   time.Duration
	restoreFocus func(ctx context.Context, ed Editor) error
	onUnbind     func(h terminal.Handle, keys []registry.Key)
	refresh      func(ctx context.Context, r *registry.Registry[terminal.Handle]) error

	pending sync.WaitGroup
}

func New(opts Options) *Controller {
	if opts.Registry == nil {
		opts.Registry = registry.New[terminal.Handle]()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		registry:     opts.Registry,
		editors:      opts.Editors,
		terminals:    opts.Terminals,
		settings:     opts.Settings,
		ui:           opts.UI,
		log:          opts.Logger,
		execute:      opts.Execute,
		focusDelay:   opts.FocusDelay,
		restoreFocus: opts.RestoreFocus,
		onUnbind:     opts.OnUnbind,
		refresh:      opts.Refresh,
	}
}

func (c *Controller) Registry() *registry.Registry[terminal.Handle] {
	return c.registry
}

func (c *Controller) Activate() error {
	if err := c.settings.SetActive(true); err != nil {
		return fmt.Errorf("mark active: %w", err)
	}
	return nil
}

// markActive sets the active flag on the first command after activation
// or a close that emptied the registry.
func (c *Controller) markActive() {
	if c.settings.Active() {
		return
	}
	if err := c.settings.SetActive(true); err != nil {
		c.log.Warn("mark active", zap.Error(err))
	}
}

// Deactivate clears the active flag and waits for pending focus restores.
func (c *Controller) Deactivate() error {
	c.Wait()
	if err := c.settings.SetActive(false); err != nil {
		return fmt.Errorf("mark inactive: %w", err)
	}
	return nil
}

// Wait blocks until scheduled focus restores have run.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// Send delivers the selection, or the block around the cursor when nothing
// is selected, to the editor's terminal.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markActive()

	ed, ok := c.editors.Active()
	if !ok {
		c.ui.ShowError(MsgNoEditor)
		return nil
	}

	sel := ed.Selection()
	text := ed.Text(sel)
	if text == "" {
		sel = block.Find(ed, sel.End.Line)
		text = ed.Text(sel)
		ed.SetSelection(sel)
	}

	key := ed.Key()
	term := c.target(ctx, key)
	if term == nil {
		c.ui.ShowError(MsgNoTerminal)
		return nil
	}
	if text == "" {
		c.ui.ShowError(MsgNothingToSend)
		return nil
	}
	c.registry.Set(key, term)

	out := payload.Prepare(c.settings.Template(), text)
	c.log.Debug("send",
		zap.String("key", string(key)),
		zap.String("terminal", term.ID()),
		zap.Int("lines", sel.Lines()),
		zap.Int("bytes", len(out)))

	if err := term.SendText(ctx, out, c.execute); err != nil {
		if errors.Is(err, terminal.ErrTerminalClosed) {
			c.unbind(term)
		}
		return fmt.Errorf("send to %s: %w", term.Name(), err)
	}
	if err := term.Show(ctx); err != nil {
		c.log.Warn("show terminal", zap.String("terminal", term.ID()), zap.Error(err))
	}
	c.scheduleFocus(ed)
	return nil
}

// target is the editor's terminal, else the focused one, else the one
// associated most recently.
func (c *Controller) target(ctx context.Context, key registry.Key) terminal.Handle {
	if h, ok := c.registry.Get(key); ok {
		return h
	}
	h, err := c.terminals.Active(ctx)
	if err != nil {
		c.log.Warn("focused terminal", zap.Error(err))
	}
	if h != nil {
		return h
	}
	if h, ok := c.registry.Last(); ok {
		return h
	}
	return nil
}

func (c *Controller) scheduleFocus(ed Editor) {
	if c.restoreFocus == nil {
		return
	}
	c.pending.Add(1)
	time.AfterFunc(c.focusDelay, func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.restoreFocus(ctx, ed); err != nil {
			c.log.Debug("restore focus", zap.Error(err))
		}
	})
}

// AssignTerminal lets the user pick the terminal for the active editor.
func (c *Controller) AssignTerminal(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markActive()

	ed, ok := c.editors.Active()
	if !ok {
		c.ui.ShowError(MsgNoEditor)
		return nil
	}
	all, err := c.terminals.All(ctx)
	if err != nil {
		c.log.Warn("list terminals", zap.Error(err))
	}
	if len(all) == 0 {
		c.ui.ShowError(MsgNoTerminal)
		return nil
	}

	names := make([]string, len(all))
	for i, h := range all {
		names[i] = h.Name()
	}
	idx, ok, err := c.ui.Pick(ctx, PickTitle, names)
	if err != nil {
		return fmt.Errorf("pick terminal: %w", err)
	}
	if !ok {
		return nil
	}
	term := all[idx]
	c.registry.Set(ed.Key(), term)
	c.log.Info("assigned", zap.String("key", string(ed.Key())), zap.String("terminal", term.ID()))
	if err := term.Show(ctx); err != nil {
		c.log.Warn("show terminal", zap.String("terminal", term.ID()), zap.Error(err))
	}
	return nil
}

// ConfigureTemplate asks for a new template. An empty answer clears it.
func (c *Controller) ConfigureTemplate(ctx context.Context) error {
	value, ok, err := c.ui.Input(ctx, TemplatePrompt, TemplatePlaceholder, c.settings.Template())
	if err != nil {
		return fmt.Errorf("template prompt: %w", err)
	}
	if !ok {
		return nil
	}
	if err := c.settings.SetTemplate(value); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// TerminalClosed drops every association with h. The active flag is
// cleared once no association is left.
func (c *Controller) TerminalClosed(h terminal.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unbind(h)
}

func (c *Controller) unbind(h terminal.Handle) error {
	id := h.ID()
	keys := c.registry.DeleteFunc(func(t terminal.Handle) bool { return t.ID() == id })
	if len(keys) > 0 {
		c.log.Info("terminal closed", zap.String("terminal", id), zap.Int("keys", len(keys)))
	}
	if c.onUnbind != nil {
		c.onUnbind(h, keys)
	}
	if c.registry.Len() == 0 {
		if err := c.settings.SetActive(false); err != nil {
			return fmt.Errorf("mark inactive: %w", err)
		}
	}
	return nil
}

// Run handles close notifications until ctx is done or closed is drained.
func (c *Controller) Run(ctx context.Context, closed <-chan terminal.Handle) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case h, ok := <-closed:
			if !ok {
				return nil
			}
			if err := c.closed(ctx, h); err != nil {
				c.log.Error("terminal closed", zap.String("terminal", h.ID()), zap.Error(err))
			}
		}
	}
}

func (c *Controller) closed(ctx context.Context, h terminal.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresh != nil {
		if err := c.refresh(ctx, c.registry); err != nil {
			return fmt.Errorf("refresh bindings: %w", err)
		}
	}
	return c.unbind(h)
}
