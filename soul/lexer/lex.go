package lexer

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

type stateFunc func() stateFunc

type Lexer struct {
	r io.RuneReader

	peeking   []rune
	err       error
	state     stateFunc
	bufOffset Pos
	buf       []rune
	output    chan Token
	// last holds the two most recently emitted tokens, ignoring comments.
	// last[1] is the most recent.
	last [2]Token
}

func NewLexer(r io.RuneReader) *Lexer {
	l := &Lexer{
		r: r,

		output: make(chan Token, 2),
	}
	l.state = l.lexInit
	return l
}

// Next returns the next token in the input.
// Once the input is exhausted Next returns EOF tokens forever.
func (l *Lexer) Next() (Token, error) {
	for len(l.output) == 0 && l.err == nil {
		nextState := l.state()
		l.state = nextState
	}
	if l.err != nil {
		return Token{}, l.err
	}
	tok := <-l.output
	return tok, nil
}

// emit creates a token from the current buffer with type ty and emits it.
// emit clears the buffer
func (l *Lexer) emit(ty TokenType) {
	text := string(l.buf)
	tokSize := Pos(len(l.buf))
	if ty == EOF {
		text = ""
		tokSize = 0
	}
	tok := Token{
		ty: ty,
		span: Span{
			Begin: l.bufOffset,
			End:   l.bufOffset + tokSize,
		},
		text: text,
	}
	l.output <- tok
	if ty != Comment {
		l.last[0], l.last[1] = l.last[1], tok
	}
	l.bufOffset += tokSize
	l.buf = l.buf[:0]
}

// read consumes input
// if an error is encountered it sets l.err and returns eofRune
func (l *Lexer) read() rune {
	if len(l.peeking) > 0 {
		var r rune
		l.peeking, r = pop(l.peeking)
		l.buf = append(l.buf, r)
		return r
	}
	r, _, err := l.r.ReadRune()
	if err != nil {
		if err != io.EOF {
			l.err = err
			return eofRune
		} else {
			r = eofRune
		}
	}
	l.buf = append(l.buf, r)
	return r
}

// back puts r back into the input, ahead of everything.
// it can only be called once per call of read.
func (l *Lexer) back() {
	var r rune
	l.buf, r = pop(l.buf)
	l.peeking = append(l.peeking, r)
}

// peek returns the result of the next call to read without affecting the lexer's position.
func (l *Lexer) peek() rune {
	if len(l.peeking) == 0 {
		l.read()
		l.back()
	}
	return l.peeking[len(l.peeking)-1]
}

// stateInit is the initial state of the lexer
func (l *Lexer) lexInit() stateFunc {
	r := l.read()
	switch {
	case r == eofRune:
		return l.lexEnd
	case isWhitespace(r):
		l.back()
		return l.skipWhitespace
	case r == '[':
		l.emit(LBracket)
	case r == ']':
		l.emit(RBracket)
	case r == '{':
		opensBody := l.opensBody()
		l.emit(LBrace)
		if opensBody {
			return l.lexRaw
		}
	case r == '}':
		l.emit(RBrace)
	case r == ':':
		l.emit(Colon)
	case r == ',':
		l.emit(Comma)
	case r == '=':
		l.emit(Equals)
	case r == ';':
		l.emit(Semicolon)
	case r == '-' && l.peek() == '>':
		l.read()
		l.emit(Arrow)
	// number
	case r == '+' || r == '-' || isDecimal(r):
		l.back()
		return l.lexNumber
	// string
	case r == '"':
		l.back()
		return l.lexString
	// comment
	case r == '/':
		if l.accept("/") {
			return l.lexComment()
		}
		return l.errorf("unexpected character %q", r)
	case isLetter(r):
		l.back()
		return l.lexIdent
	default:
		return l.errorf("unexpected character %q", r)
	}
	return l.lexInit
}

// opensBody is true when the tokens so far are BODY followed by a name,
// which means the next '{' opens a raw block.
func (l *Lexer) opensBody() bool {
	return l.last[0].ty == Ident && strings.EqualFold(l.last[0].text, "BODY") && l.last[1].ty == Ident
}

func (l *Lexer) lexIdent() stateFunc {
	l.accum(isIdent)
	if r := l.peek(); r == '"' || isLetter(r) {
		return l.errorf("improperly terminated identifier %q", r)
	}
	l.emit(Ident)
	return l.lexInit
}

func (l *Lexer) lexNumber() stateFunc {
	const digits = "0123456789"
	ty := Int
	l.accept("+-")
	if !isDecimal(l.peek()) {
		return l.errorf("malformed number")
	}
	l.acceptRun(digits)
	if l.accept(".") {
		ty = Float
		if !isDecimal(l.peek()) {
			return l.errorf("malformed number: no digits after '.'")
		}
		l.acceptRun(digits)
	}
	if l.accept("eE") {
		ty = Float
		l.accept("+-")
		if !isDecimal(l.peek()) {
			return l.errorf("malformed number: no digits in exponent")
		}
		l.acceptRun(digits)
	}
	if r := l.peek(); isLetter(r) || r == '.' || r == '"' {
		return l.errorf("improperly terminated number %q", r)
	}
	l.emit(ty)
	return l.lexInit
}

func (l *Lexer) lexString() stateFunc {
	if !l.accept(`"`) {
		panic("not the beginning of a string")
	}
	for {
		r := l.read()
		if r == '\n' || r < 0 {
			return l.errorf("string literal not terminated")
		}
		if r == '"' {
			break
		}
		if r == '\\' {
			if !l.scanEscape('"') {
				return l.lexEnd
			}
		}
	}
	l.emit(String)
	return l.lexInit
}

func (l *Lexer) scanEscape(quote rune) bool {
	r := l.read()
	var n int
	var base, max uint32
	switch r {
	case 'a', 'b', 'f', 'n', 'r', 't', 'v', '\\', quote:
		return true
	case 'x':
		r = l.read()
		n, base, max = 2, 16, 255
	case 'u':
		r = l.read()
		n, base, max = 4, 16, unicode.MaxRune
	case 'U':
		r = l.read()
		n, base, max = 8, 16, unicode.MaxRune
	default:
		if r < 0 {
			l.errorf("escape sequence not terminated")
		} else {
			l.errorf("unknown escape sequence")
		}
		return false
	}

	var x uint32
	for n > 0 {
		d := uint32(digitVal(r))
		if d >= base {
			if r < 0 {
				l.errorf("escape sequence not terminated")
			} else {
				l.errorf("illegal character %#U in escape sequence", r)
			}
			return false
		}
		x = x*base + d
		n--
		if n > 0 {
			r = l.read()
		}
	}

	if x > max || 0xD800 <= x && x < 0xE000 {
		l.errorf("escape sequence is invalid Unicode code point")
		return false
	}

	return true
}

// lexRaw consumes everything up to the '}' which balances the '{' just emitted.
func (l *Lexer) lexRaw() stateFunc {
	depth := 0
	for {
		r := l.read()
		switch r {
		case eofRune:
			if l.err != nil {
				return l.lexEnd
			}
			return l.errorf("BODY block not terminated")
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				continue
			}
			l.back()
			l.emit(Raw)
			l.read()
			l.emit(RBrace)
			return l.lexInit
		}
	}
}

func (l *Lexer) lexComment() stateFunc {
	l.accum(func(r rune) bool {
		switch r {
		case '\n', eofRune:
			return false
		default:
			return true
		}
	})
	l.emit(Comment)
	return l.lexInit
}

// lexEnd is the terminal state of the lexer, indicating that it will only return EOF tokens.
func (l *Lexer) lexEnd() stateFunc {
	l.emit(EOF)
	return l.lexEnd
}

func (l *Lexer) accept(valid string) bool {
	if r := l.read(); strings.ContainsRune(valid, r) {
		return true
	} else {
		l.back()
		return false
	}
}

func (l *Lexer) acceptRun(valid string) {
	for l.accept(valid) {
	}
}

func (l *Lexer) ignore() {
	l.buf, _ = pop(l.buf)
	l.bufOffset++
}

func (l *Lexer) accum(fn func(rune) bool) {
	for {
		r := l.read()
		if !fn(r) {
			l.back()
			return
		}
	}
}

// skipWhitespace advances through the whitespace without emitting any tokens.
func (l *Lexer) skipWhitespace() stateFunc {
	for {
		r := l.read()
		if isWhitespace(r) {
			l.ignore()
		} else {
			l.back()
			return l.lexInit
		}
	}
}

func (l *Lexer) errorf(fstr string, args ...any) stateFunc {
	if l.err == nil {
		l.err = &Error{
			At:  l.bufOffset,
			Msg: fmt.Sprintf(fstr, args...),
		}
	}
	return l.lexEnd
}

func isWhitespace(ch rune) bool {
	return ch >= 0 && unicode.IsSpace(ch)
}
func isIdent(ch rune) bool {
	return isLetter(ch) || isDecimal(ch) || ch == '.'
}
func isLetter(ch rune) bool {
	return 'a' <= lower(ch) && lower(ch) <= 'z' || ch == '_'
}
func lower(ch rune) rune     { return ('a' - 'A') | ch } // returns lower-case ch iff ch is ASCII letter
func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }

func digitVal(ch rune) int {
	switch {
	case '0' <= ch && ch <= '9':
		return int(ch - '0')
	case 'a' <= lower(ch) && lower(ch) <= 'f':
		return int(lower(ch) - 'a' + 10)
	}
	return 16 // larger than any legal digit val
}

func pop[E any, S ~[]E](s S) (S, E) {
	l := len(s)
	return s[:l-1], s[l-1]
}

const eofRune = -1
