package gcode

import (
	"strings"
	"testing"
)

func TestParseMove(t *testing.T) {
	ln, err := Parse("G1 X10.5 Y-3 F3000")
	if err != nil {
		t.Fatal(err)
	}
	if ln.Letter != 'G' || ln.Number != 1 {
		t.Errorf("command = %c%v", ln.Letter, ln.Number)
	}
	if ln.Words['X'] != 10.5 || ln.Words['Y'] != -3 || ln.Words['F'] != 3000 {
		t.Errorf("words = %v", ln.Words)
	}
}

func TestParseLowercase(t *testing.T) {
	ln, err := Parse("m3 s1000")
	if err != nil {
		t.Fatal(err)
	}
	if ln.Letter != 'M' || ln.Number != 3 || ln.Words['S'] != 1000 {
		t.Errorf("parsed %+v", ln)
	}
}

func TestParseComment(t *testing.T) {
	ln, err := Parse("G0 X1 ; rapid")
	if err != nil {
		t.Fatal(err)
	}
	if ln.Comment != "; rapid" {
		t.Errorf("comment = %q", ln.Comment)
	}

	ln, err = Parse("  ; just a comment")
	if err != nil {
		t.Fatal(err)
	}
	if ln.Letter != 0 {
		t.Errorf("letter = %c", ln.Letter)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"", ErrEmptyLine},
		{"   ", ErrEmptyLine},
		{"X10", ErrBadCommand},
		{"G", ErrBadNumber},
		{"G1 X", ErrBadWord},
		{"G1 9X", ErrBadWord},
		{strings.Repeat("G1 ", 200), ErrLineTooLong},
	}
	for _, c := range cases {
		if _, err := Parse(c.in); err != c.want {
			t.Errorf("Parse(%q) err = %v, want %v", c.in, err, c.want)
		}
	}
}
