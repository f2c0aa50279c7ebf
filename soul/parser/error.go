package parser

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"aeterna.dev/aeterna/soul/lexer"
)

// ErrTooDeep is the Cause of an Error when MANIFOLD blocks nest past Options.MaxDepth.
var ErrTooDeep = errors.New("manifolds nested too deeply")

// Position locates an Error in the source.
// Line and Col are 1-based and only set when the whole source is known, as in Parse.
type Position struct {
	Offset lexer.Pos
	Line   int
	Col    int
}

func (p Position) String() string {
	if p.Line == 0 {
		return fmt.Sprintf("offset %d", p.Offset)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// RuleToken is the Rule of an Error when the source could not be split into tokens,
// such as an unterminated string.
const RuleToken = "token"

// Error is returned when the input is not a valid program.
type Error struct {
	// Rule is the grammar rule being parsed, such as "resonate" or "vector",
	// or RuleToken for errors from the lexer.
	Rule  string
	Pos   Position
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: parsing %s: %v", e.Pos, e.Rule, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Locate returns the line and column of the rune at offset in src.
func Locate(src []byte, offset lexer.Pos) Position {
	pos := Position{Offset: offset, Line: 1, Col: 1}
	var n lexer.Pos
	for len(src) > 0 && n < offset {
		r, size := utf8.DecodeRune(src)
		src = src[size:]
		n++
		if r == '\n' {
			pos.Line++
			pos.Col = 1
		} else {
			pos.Col++
		}
	}
	return pos
}
