package ui

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/termsend/internal/config"
)

// Picker is a centered quick-pick list drawn over the whole screen.
type Picker struct {
	title    string
	items    []string
	index    int
	selected int
	done     bool
	height   int

	style         tcell.Style
	selectedStyle tcell.Style
}

func NewPicker(title string, items []string, colors config.Picker) *Picker {
	fg := parseColor(colors.Foreground, tcell.ColorWhite)
	bg := parseColor(colors.Background, tcell.ColorBlack)
	selFg := parseColor(colors.SelectionForeground, tcell.ColorBlack)
	selBg := parseColor(colors.SelectionBackground, tcell.ColorYellow)
	return &Picker{
		title:         title,
		items:         append([]string(nil), items...),
		selected:      -1,
		style:         tcell.StyleDefault.Foreground(fg).Background(bg),
		selectedStyle: tcell.StyleDefault.Foreground(selFg).Background(selBg),
	}
}

// Index is the highlighted item.
func (p *Picker) Index() int { return p.index }

// Done reports whether the user accepted or dismissed the list.
func (p *Picker) Done() bool { return p.done }

// Selected returns the accepted item, false when dismissed.
func (p *Picker) Selected() (int, bool) {
	if p.selected < 0 {
		return -1, false
	}
	return p.selected, true
}

// HandleKey applies one key press and reports whether the picker closed.
func (p *Picker) HandleKey(ev *tcell.EventKey) bool {
	switch keyString(ev) {
	case "esc", "ctrl+c":
		p.close(-1)
		return true
	case "enter":
		if len(p.items) == 0 {
			p.close(-1)
			return true
		}
		p.close(p.index)
		return true
	case "up", "k":
		p.index--
	case "down", "j":
		p.index++
	case "pgup":
		p.index -= p.pageSize()
	case "pgdn":
		p.index += p.pageSize()
	case "home":
		p.index = 0
	case "end":
		p.index = len(p.items) - 1
	default:
		return false
	}
	if p.index >= len(p.items) {
		p.index = len(p.items) - 1
	}
	if p.index < 0 {
		p.index = 0
	}
	return false
}

func (p *Picker) close(selected int) {
	p.done = true
	p.selected = selected
}

func (p *Picker) pageSize() int {
	if p.height < 1 {
		return 1
	}
	return p.height
}

// Render draws the picker box. The list scrolls to keep the highlighted
// item near the middle.
func (p *Picker) Render(s tcell.Screen) {
	s.Clear()
	w, h := s.Size()
	if w < 6 || h < 3 || len(p.items) == 0 {
		return
	}
	maxItem := runewidth.StringWidth(p.title) + 2
	for _, name := range p.items {
		if l := runewidth.StringWidth(name); l > maxItem {
			maxItem = l
		}
	}
	boxWidth := maxItem + 4
	if boxWidth > w-2 {
		boxWidth = w - 2
	}
	if boxWidth < 8 {
		boxWidth = min(w, 8)
	}
	listHeight := min(h-2, len(p.items))
	if listHeight < 1 {
		return
	}
	p.height = listHeight
	boxHeight := listHeight + 2
	x0 := max((w-boxWidth)/2, 0)
	y0 := max((h-boxHeight)/2, 0)
	innerWidth := boxWidth - 2

	for x := 0; x < boxWidth; x++ {
		top, bottom := tcell.RuneHLine, tcell.RuneHLine
		switch x {
		case 0:
			top, bottom = tcell.RuneULCorner, tcell.RuneLLCorner
		case boxWidth - 1:
			top, bottom = tcell.RuneURCorner, tcell.RuneLRCorner
		}
		s.SetContent(x0+x, y0, top, nil, p.style)
		s.SetContent(x0+x, y0+boxHeight-1, bottom, nil, p.style)
	}
	for y := 1; y < boxHeight-1; y++ {
		s.SetContent(x0, y0+y, tcell.RuneVLine, nil, p.style)
		s.SetContent(x0+boxWidth-1, y0+y, tcell.RuneVLine, nil, p.style)
	}

	drawText(s, x0+1, y0, innerWidth, " "+p.title+" ", p.style)

	start := p.index - listHeight/2
	start = min(start, len(p.items)-listHeight)
	start = max(start, 0)
	for i := 0; i < listHeight; i++ {
		idx := start + i
		if idx >= len(p.items) {
			break
		}
		style := p.style
		if idx == p.index {
			style = p.selectedStyle
		}
		lineY := y0 + 1 + i
		for x := 0; x < innerWidth; x++ {
			s.SetContent(x0+1+x, lineY, ' ', nil, style)
		}
		drawText(s, x0+1, lineY, innerWidth, p.items[idx], style)
	}
}

// drawText puts text at x, y, truncated to width display cells.
func drawText(s tcell.Screen, x, y, width int, text string, style tcell.Style) {
	for _, r := range runewidth.Truncate(text, width, "") {
		s.SetContent(x, y, r, nil, style)
		x += max(runewidth.RuneWidth(r), 1)
	}
}

func keyString(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyEscape:
		return "esc"
	case tcell.KeyCtrlC:
		return "ctrl+c"
	case tcell.KeyEnter:
		return "enter"
	case tcell.KeyUp, tcell.KeyCtrlP:
		return "up"
	case tcell.KeyDown, tcell.KeyCtrlN:
		return "down"
	case tcell.KeyPgUp:
		return "pgup"
	case tcell.KeyPgDn:
		return "pgdn"
	case tcell.KeyHome:
		return "home"
	case tcell.KeyEnd:
		return "end"
	case tcell.KeyRune:
		return string(ev.Rune())
	}
	return ""
}

func parseColor(name string, fallback tcell.Color) tcell.Color {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if strings.HasPrefix(name, "#") && len(name) == 7 {
		r, err1 := strconv.ParseInt(name[1:3], 16, 32)
		g, err2 := strconv.ParseInt(name[3:5], 16, 32)
		b, err3 := strconv.ParseInt(name[5:7], 16, 32)
		if err1 == nil && err2 == nil && err3 == nil {
			return tcell.NewRGBColor(int32(r), int32(g), int32(b))
		}
		return fallback
	}
	name = strings.ToLower(name)
	if name == "default" {
		return tcell.ColorDefault
	}
	c := tcell.GetColor(name)
	if c == tcell.ColorDefault {
		return fallback
	}
	return c
}
