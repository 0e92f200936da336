// Package gcode parses single G-code lines into a command word and its
// parameter words. It validates shape only; it is not a motion interpreter.
package gcode

import (
	"errors"
	"strconv"
)

var (
	ErrEmptyLine   = errors.New("gcode: empty line")
	ErrBadCommand  = errors.New("gcode: line does not start with G, M or T")
	ErrBadNumber   = errors.New("gcode: malformed number")
	ErrBadWord     = errors.New("gcode: malformed parameter word")
	ErrLineTooLong = errors.New("gcode: line too long")
)

// MaxLine bounds accepted input; longer lines are rejected, not truncated.
const MaxLine = 256

// Line is one parsed command, e.g. "G1 X10.5 F3000".
type Line struct {
	Letter  byte // 'G', 'M' or 'T'
	Number  float64
	Words   map[byte]float64
	Comment string
}

// Parse parses one line. Leading whitespace is skipped; ';' and '('
// introduce a comment that runs to end of line. A line that is only a
// comment returns a Line with Letter 0.
func Parse(s string) (*Line, error) {
	if len(s) > MaxLine {
		return nil, ErrLineTooLong
	}
	i := skipSpace(s, 0)
	if i >= len(s) {
		return nil, ErrEmptyLine
	}
	if s[i] == ';' || s[i] == '(' {
		return &Line{Comment: s[i:]}, nil
	}

	c := upper(s[i])
	if c != 'G' && c != 'M' && c != 'T' {
		return nil, ErrBadCommand
	}
	i++

	num, next, err := number(s, i)
	if err != nil {
		return nil, ErrBadNumber
	}
	i = next

	ln := &Line{Letter: c, Number: num, Words: make(map[byte]float64)}
	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return ln, nil
		}
		if s[i] == ';' || s[i] == '(' {
			ln.Comment = s[i:]
			return ln, nil
		}
		w := upper(s[i])
		if w < 'A' || w > 'Z' {
			return nil, ErrBadWord
		}
		i++
		v, next, err := number(s, i)
		if err != nil {
			return nil, ErrBadWord
		}
		ln.Words[w] = v
		i = next
	}
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	return i
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func number(s string, i int) (float64, int, error) {
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == start {
		return 0, i, ErrBadNumber
	}
	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0, i, ErrBadNumber
	}
	return v, i, nil
}
