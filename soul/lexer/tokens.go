package lexer

import "fmt"

type TokenType int

const (
	// Special tokens
	Illegal TokenType = iota
	EOF

	// Identifiers and basic type literals
	// (these tokens stand for classes of literals)
	Ident  // main, RESONATE, core.membrane
	Int    // 12345
	Float  // 1.5 2e-3
	String // "abc"
	// Raw is the unparsed content of a BODY block
	Raw

	LBracket  // [
	RBracket  // ]
	LBrace    // {
	RBrace    // }
	Colon     // :
	Comma     // ,
	Equals    // =
	Arrow     // ->
	Semicolon // ;

	// Comment is a single line comment, starting with //
	Comment
)

var typeNames = map[TokenType]string{
	Illegal:   "illegal",
	EOF:       "EOF",
	Ident:     "identifier",
	Int:       "integer",
	Float:     "float",
	String:    "string",
	Raw:       "raw text",
	LBracket:  "'['",
	RBracket:  "']'",
	LBrace:    "'{'",
	RBrace:    "'}'",
	Colon:     "':'",
	Comma:     "','",
	Equals:    "'='",
	Arrow:     "'->'",
	Semicolon: "';'",
	Comment:   "comment",
}

func (ty TokenType) String() string {
	if name, ok := typeNames[ty]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(ty))
}

type Token struct {
	ty   TokenType
	text string
	span Span
}

func (tok Token) Type() TokenType { return tok.ty }

func (tok Token) Text() string {
	return tok.text
}

func (tok Token) String() string {
	switch tok.ty {
	case EOF:
		return "EOF"
	}
	return fmt.Sprintf("%q", tok.text)
}

func (tok Token) Span() Span {
	return tok.span
}

func (tok Token) IsEOF() bool {
	return tok.Type() == EOF
}

func mkTok(ty TokenType, beg Pos) Token {
	text := map[TokenType]string{
		LBracket:  "[",
		RBracket:  "]",
		LBrace:    "{",
		RBrace:    "}",
		Colon:     ":",
		Comma:     ",",
		Equals:    "=",
		Arrow:     "->",
		Semicolon: ";",
	}[ty]
	return Token{
		ty:   ty,
		text: text,
		span: Span{
			beg,
			beg + Pos(len(text)),
		},
	}
}

// Pos is a position within the input, counted in runes.
type Pos uint32

// Span is a region of the input
type Span struct {
	Begin Pos
	End   Pos
}

// Error is returned by the Lexer when the input cannot be tokenized.
type Error struct {
	At  Pos
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}
