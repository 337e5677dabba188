package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kobzarvs/termsend/internal/block"
)

// parseSelection reads "L:C-L:C" with 1-based lines and columns and an
// inclusive end column, the way vim reports a visual selection. A bare
// "L-L" selects whole lines.
func parseSelection(s string) (block.Range, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return block.Range{}, fmt.Errorf("selection %q: want L:C-L:C", s)
	}
	start, err := parsePosition(from, 1)
	if err != nil {
		return block.Range{}, fmt.Errorf("selection %q: %w", s, err)
	}
	end, err := parsePosition(to, -1)
	if err != nil {
		return block.Range{}, fmt.Errorf("selection %q: %w", s, err)
	}
	start.Col--
	if start.Line > end.Line || (start.Line == end.Line && end.Col >= 0 && start.Col >= end.Col) {
		return block.Range{}, fmt.Errorf("selection %q: end before start", s)
	}
	return block.Range{Start: start, End: end}, nil
}

// parsePosition parses "L" or "L:C" into a zero-based line. A missing
// column becomes col.
func parsePosition(s string, col int) (block.Position, error) {
	lineStr, colStr, hasCol := strings.Cut(strings.TrimSpace(s), ":")
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return block.Position{}, fmt.Errorf("bad line %q", lineStr)
	}
	pos := block.Position{Line: line - 1, Col: col}
	if hasCol {
		c, err := strconv.Atoi(colStr)
		if err != nil || c < 1 {
			return block.Position{}, fmt.Errorf("bad column %q", colStr)
		}
		pos.Col = c
	}
	return pos, nil
}
