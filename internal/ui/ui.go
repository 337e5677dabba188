// Package ui talks to the user: a tcell quick pick, a huh input prompt and
// lipgloss-styled messages.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/termsend/internal/config"
)

var (
	errorLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")).Render("error:")
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// Console is the terminal-based user interface.
type Console struct {
	out    io.Writer
	colors config.Picker

	// NewScreen opens the screen used by Pick.
	NewScreen func() (tcell.Screen, error)
}

func NewConsole(out io.Writer, colors config.Picker) *Console {
	return &Console{out: out, colors: colors, NewScreen: tcell.NewScreen}
}

func (c *Console) ShowError(msg string) {
	fmt.Fprintln(c.out, errorLabel, msg)
}

// Dim renders secondary text, such as column headers.
func Dim(s string) string {
	return dimStyle.Render(s)
}

// Pick shows items in a quick pick and returns the chosen index. ok is
// false when the user dismissed the list.
func (c *Console) Pick(ctx context.Context, title string, items []string) (int, bool, error) {
	if len(items) == 0 {
		return -1, false, nil
	}
	s, err := c.NewScreen()
	if err != nil {
		return -1, false, fmt.Errorf("open screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return -1, false, fmt.Errorf("init screen: %w", err)
	}
	defer s.Fini()
	return RunPicker(ctx, s, NewPicker(title, items, c.colors))
}

// RunPicker drives p on an initialized screen until it closes or ctx is
// done.
func RunPicker(ctx context.Context, s tcell.Screen, p *Picker) (int, bool, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.PostEvent(tcell.NewEventInterrupt(nil))
		case <-stop:
		}
	}()

	p.Render(s)
	s.Show()
	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return -1, false, errors.New("screen closed")
		case *tcell.EventInterrupt:
			if err := ctx.Err(); err != nil {
				return -1, false, err
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventKey:
			if p.HandleKey(ev) {
				idx, ok := p.Selected()
				return idx, ok, nil
			}
		}
		p.Render(s)
		s.Show()
	}
}

// Input asks for one line of text. ok is false when the user aborted.
func (c *Console) Input(ctx context.Context, prompt, placeholder, value string) (string, bool, error) {
	input := huh.NewInput().
		Title(prompt).
		Placeholder(placeholder).
		Value(&value)
	form := huh.NewForm(huh.NewGroup(input)).WithWidth(72)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}
