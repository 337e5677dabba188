package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kobzarvs/termsend/internal/block"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestOpenAndFindBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.py")
	writeFile(t, path, "import os\n\ndef f():\n    return 1\n\nprint(f())\n")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if d.LineCount() != 7 {
		t.Fatalf("LineCount = %d, want 7", d.LineCount())
	}
	r := block.Find(d, 3)
	if got, want := d.Text(r), "def f():\n    return 1"; got != want {
		t.Fatalf("Text = %q, want %q", got, want)
	}
	if !strings.HasPrefix(d.URI(), "file://") {
		t.Fatalf("URI = %q, want file:// prefix", d.URI())
	}
}

func TestKeyStableAcrossSymlinks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.sh")
	writeFile(t, path, "echo hi\n")
	link := filepath.Join(dir, "link.sh")
	if err := os.Symlink(path, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	b, err := Open(link)
	if err != nil {
		t.Fatalf("Open link error: %v", err)
	}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	k, err := KeyForPath(link)
	if err != nil {
		t.Fatalf("KeyForPath error: %v", err)
	}
	if k != a.Key() {
		t.Fatalf("KeyForPath = %q, want %q", k, a.Key())
	}
}

func TestOpenRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	data := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Open(path)
	if !errors.Is(err, ErrBinary) {
		t.Fatalf("Open error = %v, want ErrBinary", err)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	writeFile(t, path, "")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if d.LineCount() != 1 {
		t.Fatalf("LineCount = %d, want 1", d.LineCount())
	}
}

func TestTextCRLF(t *testing.T) {
	d := FromText("untitled:1", "a\r\nb\r\n")
	if d.Line(0) != "a" {
		t.Fatalf("Line(0) = %q, want %q", d.Line(0), "a")
	}
	r := block.Range{End: block.Position{Line: 1, Col: 1}}
	if got := d.Text(r); got != "a\r\nb" {
		t.Fatalf("Text = %q, want %q", got, "a\r\nb")
	}
}

func TestTextPartialRange(t *testing.T) {
	d := FromLines("untitled:2", []string{"hello world", "second", "third line"})
	r := block.Range{
		Start: block.Position{Line: 0, Col: 6},
		End:   block.Position{Line: 2, Col: 5},
	}
	if got, want := d.Text(r), "world\nsecond\nthird"; got != want {
		t.Fatalf("Text = %q, want %q", got, want)
	}
	single := block.Range{
		Start: block.Position{Line: 1, Col: 1},
		End:   block.Position{Line: 1, Col: 4},
	}
	if got := d.Text(single); got != "eco" {
		t.Fatalf("Text = %q, want %q", got, "eco")
	}
}

func TestTextEmptyRanges(t *testing.T) {
	d := FromLines("untitled:3", []string{"```"})
	if got := d.Text(block.Find(d, 0)); got != "" {
		t.Fatalf("Text of fence-only block = %q, want empty", got)
	}
	d.SetCursor(0)
	if got := d.Text(d.Selection()); got != "" {
		t.Fatalf("Text of collapsed selection = %q, want empty", got)
	}
}

func TestSetCursorClamps(t *testing.T) {
	d := FromLines("untitled:4", []string{"a", "b"})
	d.SetCursor(10)
	if d.Cursor().Line != 1 {
		t.Fatalf("cursor line = %d, want 1", d.Cursor().Line)
	}
	d.SetCursor(-3)
	if d.Cursor().Line != 0 {
		t.Fatalf("cursor line = %d, want 0", d.Cursor().Line)
	}
}
