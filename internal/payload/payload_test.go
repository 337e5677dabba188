package payload

import (
	"testing"
	"unicode/utf8"
)

func TestDedentMinimumIndent(t *testing.T) {
	got := Dedent("  a\n    b\n")
	if want := "a\n  b\n"; got != want {
		t.Fatalf("Dedent = %q, want %q", got, want)
	}
}

func TestDedentBlankLinesBecomeEmpty(t *testing.T) {
	got := Dedent("    if x:\n  \t \n        y()\n")
	if want := "if x:\n\n    y()\n"; got != want {
		t.Fatalf("Dedent = %q, want %q", got, want)
	}
}

func TestDedentNoIndent(t *testing.T) {
	in := "a\n  b"
	if got := Dedent(in); got != in {
		t.Fatalf("Dedent = %q, want %q", got, in)
	}
}

func TestDedentTabs(t *testing.T) {
	got := Dedent("\t\tx\n\ty")
	if want := "\tx\ny"; got != want {
		t.Fatalf("Dedent = %q, want %q", got, want)
	}
}

func TestDedentAllBlank(t *testing.T) {
	got := Dedent("   \n\t\n ")
	if want := "\n\n"; got != want {
		t.Fatalf("Dedent = %q, want %q", got, want)
	}
}

func TestDedentIdempotent(t *testing.T) {
	inputs := []string{
		"  a\n    b\n",
		"\tfoo\n\t\tbar\n\n\tbaz",
		"x",
		"",
		"   ",
	}
	for _, in := range inputs {
		once := Dedent(in)
		if twice := Dedent(once); twice != once {
			t.Fatalf("Dedent(Dedent(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestWrap(t *testing.T) {
	if got := Wrap("run({})", "1+1"); got != "run(1+1)" {
		t.Fatalf("Wrap = %q, want %q", got, "run(1+1)")
	}
	if got := Wrap("", "1+1"); got != "1+1" {
		t.Fatalf("Wrap empty template = %q, want %q", got, "1+1")
	}
	if got := Wrap("clear", "1+1"); got != "clear" {
		t.Fatalf("Wrap without marker = %q, want %q", got, "clear")
	}
}

func TestWrapReplacesFirstOnly(t *testing.T) {
	if got := Wrap("{} and {}", "x"); got != "x and {}" {
		t.Fatalf("Wrap = %q, want %q", got, "x and {}")
	}
}

func TestPrepare(t *testing.T) {
	got := Prepare("%cpaste\n{}\n--", "    a = 1\n    b = 2")
	if want := "%cpaste\na = 1\nb = 2\n--"; got != want {
		t.Fatalf("Prepare = %q, want %q", got, want)
	}
}

func TestDedentMultiByteSpace(t *testing.T) {
	got := Dedent("　a\n  b")
	if want := "a\n b"; got != want {
		t.Fatalf("Dedent = %q, want %q", got, want)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("Dedent produced invalid UTF-8: %q", got)
	}
}
