// Package document loads editor buffers and tracks their selection.
package document

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kobzarvs/termsend/internal/block"
	"github.com/kobzarvs/termsend/internal/registry"
)

// ErrBinary is returned when a file does not hold text.
var ErrBinary = errors.New("not a text file")

// Document is a line-oriented text buffer with one selection.
type Document struct {
	uri       string
	path      string
	lines     []string
	eol       string
	selection block.Range
}

// Open reads a text file. The path is made absolute and resolved through
// symlinks so that every alias of a file yields the same key.
func Open(path string) (*Document, error) {
	abs, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	if !isText(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrBinary)
	}
	d := FromText(FileURI(abs), string(data))
	d.path = abs
	return d, nil
}

// FromText builds a document from raw text. CRLF line endings are
// remembered and restored by Text.
func FromText(uri, text string) *Document {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return &Document{uri: uri, lines: lines, eol: eol}
}

// FromLines builds a document from pre-split lines.
func FromLines(uri string, lines []string) *Document {
	cp := make([]string, len(lines))
	copy(cp, lines)
	return &Document{uri: uri, lines: cp, eol: "\n"}
}

func (d *Document) URI() string { return d.uri }

// Path is empty for documents not backed by a file.
func (d *Document) Path() string { return d.path }

func (d *Document) Key() registry.Key { return registry.Key(d.uri) }

func (d *Document) LineCount() int { return len(d.lines) }

func (d *Document) Line(i int) string { return d.lines[i] }

func (d *Document) IsBlank(i int) bool {
	return strings.TrimSpace(d.lines[i]) == ""
}

// Text returns the text inside r. Columns are clamped to the line length.
func (d *Document) Text(r block.Range) string {
	if r.Empty() || len(d.lines) == 0 {
		return ""
	}
	startLine := clamp(r.Start.Line, 0, len(d.lines)-1)
	endLine := clamp(r.End.Line, 0, len(d.lines)-1)
	if startLine > endLine {
		return ""
	}
	startCol := clamp(r.Start.Col, 0, len(d.lines[startLine]))
	endCol := clamp(r.End.Col, 0, len(d.lines[endLine]))
	if startLine == endLine {
		if startCol >= endCol {
			return ""
		}
		return d.lines[startLine][startCol:endCol]
	}
	var b strings.Builder
	b.WriteString(d.lines[startLine][startCol:])
	for i := startLine + 1; i < endLine; i++ {
		b.WriteString(d.eol)
		b.WriteString(d.lines[i])
	}
	b.WriteString(d.eol)
	b.WriteString(d.lines[endLine][:endCol])
	return b.String()
}

func (d *Document) Selection() block.Range { return d.selection }

func (d *Document) SetSelection(r block.Range) { d.selection = r }

// Cursor is the active end of the selection.
func (d *Document) Cursor() block.Position { return d.selection.End }

// SetCursor collapses the selection onto the start of line.
func (d *Document) SetCursor(line int) {
	if len(d.lines) > 0 {
		line = clamp(line, 0, len(d.lines)-1)
	} else {
		line = 0
	}
	pos := block.Position{Line: line}
	d.selection = block.Range{Start: pos, End: pos}
}

// FileURI converts a path to a file:// URI.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// KeyForPath returns the registry key of the file at path.
func KeyForPath(path string) (registry.Key, error) {
	abs, err := canonicalPath(path)
	if err != nil {
		return "", err
	}
	return registry.Key(FileURI(abs)), nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
