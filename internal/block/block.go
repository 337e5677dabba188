package block

import "strings"

// Lines gives read access to a buffer's line sequence.
type Lines interface {
	LineCount() int
	Line(i int) string
	// IsBlank reports whether line i is empty or whitespace only.
	IsBlank(i int) bool
}

// Position is a zero-indexed line and a byte column within that line.
type Position struct {
	Line int
	Col  int
}

// Range spans Start to End, both inclusive on the line axis.
type Range struct {
	Start Position
	End   Position
}

// Empty reports whether the range selects nothing. A fence-only block
// resolves to an inverted range.
func (r Range) Empty() bool {
	if r.Start.Line > r.End.Line {
		return true
	}
	return r.Start.Line == r.End.Line && r.Start.Col >= r.End.Col
}

// Lines returns the number of lines covered, 0 for an inverted range.
func (r Range) Lines() int {
	if r.Start.Line > r.End.Line {
		return 0
	}
	return r.End.Line - r.Start.Line + 1
}

const fence = "```"

// IsFence reports whether line opens or closes a fenced code block.
func IsFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fence)
}

// Find infers the block of non-blank lines around the cursor line. Blank
// lines and buffer edges bound the block; fence markers on its first or
// last line are excluded.
func Find(lines Lines, cursor int) Range {
	count := lines.LineCount()
	if count == 0 {
		return Range{Start: Position{Line: 0}, End: Position{Line: -1}}
	}
	last := count - 1
	start, end := cursor, cursor

	for start < last && lines.IsBlank(start) {
		start++
		end++
	}
	if start == last && lines.IsBlank(start) {
		// trailing blank lines: look upward instead
		start, end = cursor, cursor
		for start > 0 && lines.IsBlank(start) {
			start--
			end--
		}
	}

	for start > 0 && !lines.IsBlank(start-1) {
		start--
	}
	for end < last && !lines.IsBlank(end+1) {
		end++
	}

	if IsFence(lines.Line(start)) {
		start++
	}
	if IsFence(lines.Line(end)) {
		end--
	}

	endCol := 0
	if end >= 0 {
		endCol = len(lines.Line(end))
	}
	return Range{
		Start: Position{Line: start, Col: 0},
		End:   Position{Line: end, Col: endCol},
	}
}

// Strings adapts a slice of lines to Lines.
type Strings []string

func (s Strings) LineCount() int    { return len(s) }
func (s Strings) Line(i int) string { return s[i] }
func (s Strings) IsBlank(i int) bool {
	return strings.TrimSpace(s[i]) == ""
}
