// Package payload shapes editor text before it is delivered to a terminal.
package payload

import (
	"strings"
	"unicode"
)

// Placeholder marks where the sent text goes inside a template.
const Placeholder = "{}"

// Dedent strips the common leading whitespace of all non-blank lines.
// Blank lines come back empty. Widths are counted in whitespace runes.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	width := -1
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		indent := indentRunes(line)
		if width < 0 || indent < width {
			width = indent
		}
	}
	for i, line := range lines {
		if isBlank(line) {
			lines[i] = ""
			continue
		}
		lines[i] = trimRunes(line, width)
	}
	return strings.Join(lines, "\n")
}

// Wrap substitutes text for the first placeholder in template. An empty
// template returns text unchanged; a template without a placeholder is
// returned as is and text is dropped.
func Wrap(template, text string) string {
	if template == "" {
		return text
	}
	return strings.Replace(template, Placeholder, text, 1)
}

// Prepare dedents text and wraps it in template.
func Prepare(template, text string) string {
	return Wrap(template, Dedent(text))
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func indentRunes(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

// trimRunes drops the first n runes of line.
func trimRunes(line string, n int) string {
	for i := range line {
		if n == 0 {
			return line[i:]
		}
		n--
	}
	return ""
}
