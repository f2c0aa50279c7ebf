// Package parser turns soul source text into a sequence of ast.Nodes.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"aeterna.dev/aeterna"
	"aeterna.dev/aeterna/internal/ringbuf"
	"aeterna.dev/aeterna/soul/ast"
	"aeterna.dev/aeterna/soul/lexer"
)

type (
	Token = lexer.Token
	Pos   = lexer.Pos
	Node  = ast.Node
)

type Span struct {
	Bound    lexer.Span
	Children []Span
}

type Options struct {
	// MaxDepth limits how deeply MANIFOLD blocks may nest.
	// Zero means aeterna.MaxDepth.
	MaxDepth int
	// KeepComments causes line comments to be returned as ast.Comment nodes.
	KeepComments bool
}

type Parser struct {
	lex   *lexer.Lexer
	inBuf ringbuf.RingBuf[Token]
	opts  Options

	depth   int
	lastEnd Pos
}

func NewParser(r io.RuneReader, opts Options) *Parser {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = aeterna.MaxDepth
	}
	return &Parser{
		lex:   lexer.NewLexer(r),
		inBuf: ringbuf.New[Token](2),
		opts:  opts,
	}
}

// ParseStatement parses the next statement.
// It returns a nil Node once the input is exhausted.
func (p *Parser) ParseStatement() (Span, Node, error) {
	for {
		tok, err := p.nextAny("statement")
		if err != nil {
			return Span{}, nil, err
		}
		switch tok.Type() {
		case lexer.EOF:
			return Span{}, nil, nil
		case lexer.Semicolon:
			continue
		case lexer.Comment:
			if !p.opts.KeepComments {
				continue
			}
			return Span{Bound: tok.Span()}, ast.Comment{Text: strings.TrimPrefix(tok.Text(), "//")}, nil
		case lexer.Ident:
			return p.parseKeyword(tok)
		default:
			return Span{}, nil, p.errorf("statement", tok, "unexpected %s", describe(tok))
		}
	}
}

func (p *Parser) parseKeyword(kw Token) (Span, Node, error) {
	var node Node
	var err error
	switch strings.ToUpper(kw.Text()) {
	case "IMMORTAL":
		node, err = p.parseImmortal()
	case "BODY":
		node, err = p.parseBody()
	case "SPIRIT":
		node, err = p.parseSpirit()
	case "MANIFOLD":
		return p.parseManifold(kw)
	case "RESONATE":
		node, err = p.parseResonate()
	case "COLLAPSE":
		node, err = p.parseCollapse()
	case "ENTRENCH":
		node, err = p.parseEntrench()
	case "MAGNET":
		node, err = p.parseMagnet()
	case "DEPARTMENT":
		node, err = p.parseDepartment()
	case "REFLECT":
		node = ast.Reflect{}
	case "AXIOM":
		node, err = p.parseAxiom()
	case "CAUSALITY":
		node, err = p.parseCausality()
	case "MANIFEST":
		node, err = p.parseManifest()
	case "ANCHOR":
		node, err = p.parseAnchor()
	case "TRANSCEND":
		node = ast.Transcend{}
	case "ECHO":
		node = ast.Echo{}
	case "BECOME":
		node, err = p.parseVoid()
	default:
		return Span{}, nil, p.errorf("statement", kw, "unknown keyword %q", kw.Text())
	}
	if err != nil {
		return Span{}, nil, err
	}
	return p.spanFrom(kw), node, nil
}

func (p *Parser) parseImmortal() (Node, error) {
	const rule = "immortal"
	name, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.Equals); err != nil {
		return nil, err
	}
	val, err := p.parseString(rule)
	if err != nil {
		return nil, err
	}
	return ast.Immortal{Name: name, Value: val}, nil
}

func (p *Parser) parseBody() (Node, error) {
	const rule = "body"
	name, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.LBrace); err != nil {
		return nil, err
	}
	raw, err := p.expect(rule, lexer.Raw)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.RBrace); err != nil {
		return nil, err
	}
	return ast.Body{Name: name, Content: strings.TrimSpace(raw.Text())}, nil
}

// parseSpirit reads the fields of a SPIRIT block.
// Only the first string field is kept, as the goal.
func (p *Parser) parseSpirit() (Node, error) {
	const rule = "spirit"
	name, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.LBrace); err != nil {
		return nil, err
	}
	var goal *string
	for {
		tok, err := p.next(rule)
		if err != nil {
			return nil, err
		}
		if tok.Type() == lexer.RBrace {
			break
		}
		if tok.Type() != lexer.Ident {
			return nil, p.errorf(rule, tok, "expected field name, found %s", describe(tok))
		}
		if _, err := p.expect(rule, lexer.Colon); err != nil {
			return nil, err
		}
		lit, err := p.next(rule)
		if err != nil {
			return nil, err
		}
		switch lit.Type() {
		case lexer.String:
			s, err := p.unquote(rule, lit)
			if err != nil {
				return nil, err
			}
			if goal == nil {
				goal = &s
			}
		case lexer.Int, lexer.Float:
			if _, err := p.parseFloat(rule, lit, 64); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(rule, lit, "expected literal, found %s", describe(lit))
		}
		if err := p.skip(rule, lexer.Comma); err != nil {
			return nil, err
		}
	}
	ret := ast.Spirit{Name: name}
	if goal != nil {
		ret.Goal = *goal
	}
	return ret, nil
}

func (p *Parser) parseManifold(kw Token) (Span, Node, error) {
	const rule = "manifold"
	if p.depth >= p.opts.MaxDepth {
		return Span{}, nil, &Error{Rule: rule, Pos: Position{Offset: kw.Span().Begin}, Cause: ErrTooDeep}
	}
	p.depth++
	defer func() { p.depth-- }()

	name, err := p.parseIdent(rule)
	if err != nil {
		return Span{}, nil, err
	}
	if _, err := p.expect(rule, lexer.LBrace); err != nil {
		return Span{}, nil, err
	}
	span := Span{Bound: kw.Span()}
	body := []Node{}
	for {
		tok, err := p.peekAny(rule)
		if err != nil {
			return Span{}, nil, err
		}
		switch {
		case tok.Type() == lexer.RBrace:
			p.nextAny(rule)
			span.Bound.End = p.lastEnd
			return span, ast.Manifold{Name: name, Body: body}, nil
		case tok.Type() == lexer.EOF:
			return Span{}, nil, p.errorf(rule, tok, "MANIFOLD %s is not closed", name)
		case tok.Type() == lexer.Semicolon,
			tok.Type() == lexer.Comment && !p.opts.KeepComments:
			p.nextAny(rule)
			continue
		}
		span2, node, err := p.ParseStatement()
		if err != nil {
			return Span{}, nil, err
		}
		span.Children = append(span.Children, span2)
		body = append(body, node)
	}
}

func (p *Parser) parseResonate() (Node, error) {
	const rule = "resonate"
	target, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	freq, err := p.optFloat(rule, 1.0)
	if err != nil {
		return nil, err
	}
	return ast.Resonate{Target: target, Frequency: freq}, nil
}

func (p *Parser) parseCollapse() (Node, error) {
	const rule = "collapse"
	target, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	thr, err := p.optFloat(rule, 0.5)
	if err != nil {
		return nil, err
	}
	return ast.Collapse{Target: target, EntropyThreshold: thr}, nil
}

func (p *Parser) parseEntrench() (Node, error) {
	const rule = "entrench"
	key, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.Equals); err != nil {
		return nil, err
	}
	tok, err := p.next(rule)
	if err != nil {
		return nil, err
	}
	var val ast.EntrenchValue
	switch tok.Type() {
	case lexer.LBracket:
		v, err := p.parseVector()
		if err != nil {
			return nil, err
		}
		val = v
	case lexer.String:
		s, err := p.unquote(rule, tok)
		if err != nil {
			return nil, err
		}
		val = ast.String(s)
	case lexer.Int, lexer.Float:
		f, err := p.parseFloat(rule, tok, 32)
		if err != nil {
			return nil, err
		}
		val = ast.Number(f)
	default:
		return nil, p.errorf(rule, tok, "expected vector, string or number, found %s", describe(tok))
	}
	return ast.Entrench{Key: key, Value: val}, nil
}

// parseVector parses the rest of a vector, after the '['
func (p *Parser) parseVector() (ast.Vector, error) {
	const rule = "vector"
	ret := ast.Vector{}
	for {
		tok, err := p.next(rule)
		if err != nil {
			return nil, err
		}
		switch tok.Type() {
		case lexer.RBracket:
			return ret, nil
		case lexer.Int, lexer.Float:
			f, err := p.parseFloat(rule, tok, 32)
			if err != nil {
				return nil, err
			}
			ret = append(ret, float32(f))
		default:
			return nil, p.errorf(rule, tok, "expected number, found %s", describe(tok))
		}
		next, err := p.peek(rule)
		if err != nil {
			return nil, err
		}
		switch next.Type() {
		case lexer.Comma:
			p.next(rule)
		case lexer.RBracket:
		default:
			return nil, p.errorf(rule, next, "expected ',' or ']', found %s", describe(next))
		}
	}
}

func (p *Parser) parseMagnet() (Node, error) {
	const rule = "magnet"
	label, err := p.parseString(rule)
	if err != nil {
		return nil, err
	}
	power, err := p.optFloat(rule, 1.0)
	if err != nil {
		return nil, err
	}
	return ast.Magnet{Label: label, Power: power}, nil
}

func (p *Parser) parseDepartment() (Node, error) {
	const rule = "department"
	name, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	prio, err := p.optFloat(rule, 1.0)
	if err != nil {
		return nil, err
	}
	return ast.Department{Name: name, Priority: prio}, nil
}

func (p *Parser) parseAxiom() (Node, error) {
	const rule = "axiom"
	name, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.Equals); err != nil {
		return nil, err
	}
	expr, err := p.parseString(rule)
	if err != nil {
		return nil, err
	}
	return ast.Axiom{Name: name, Expression: expr}, nil
}

func (p *Parser) parseCausality() (Node, error) {
	const rule = "causality"
	cause, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.Arrow); err != nil {
		return nil, err
	}
	effect, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(rule, lexer.Colon); err != nil {
		return nil, err
	}
	ctype, err := p.parseIdent(rule)
	if err != nil {
		return nil, err
	}
	return ast.Causality{Cause: cause, Effect: effect, CType: ctype}, nil
}

func (p *Parser) parseManifest() (Node, error) {
	const rule = "manifest"
	tok, err := p.expect(rule, lexer.Int)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(tok.Text(), 10, 64)
	if err != nil {
		return nil, p.errorf(rule, tok, "%w", err)
	}
	return ast.Manifest{Value: n}, nil
}

func (p *Parser) parseAnchor() (Node, error) {
	const rule = "anchor"
	tok, err := p.expect(rule, lexer.Int)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(tok.Text(), "-") {
		return nil, p.errorf(rule, tok, "address cannot be negative")
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(tok.Text(), "+"), 10, 64)
	if err != nil {
		return nil, p.errorf(rule, tok, "%w", err)
	}
	return ast.Anchor{Addr: n}, nil
}

func (p *Parser) parseVoid() (Node, error) {
	const rule = "void"
	tok, err := p.expect(rule, lexer.Ident)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(tok.Text(), "VOID") {
		return nil, p.errorf(rule, tok, "expected VOID after BECOME, found %s", describe(tok))
	}
	return ast.Void{}, nil
}

func (p *Parser) parseIdent(rule string) (string, error) {
	tok, err := p.expect(rule, lexer.Ident)
	if err != nil {
		return "", err
	}
	return tok.Text(), nil
}

func (p *Parser) parseString(rule string) (string, error) {
	tok, err := p.expect(rule, lexer.String)
	if err != nil {
		return "", err
	}
	return p.unquote(rule, tok)
}

func (p *Parser) unquote(rule string, tok Token) (string, error) {
	s, err := strconv.Unquote(tok.Text())
	if err != nil {
		return "", p.errorf(rule, tok, "invalid string literal %s: %w", tok.Text(), err)
	}
	return s, nil
}

func (p *Parser) parseFloat(rule string, tok Token, bitSize int) (float64, error) {
	if tok.Type() != lexer.Int && tok.Type() != lexer.Float {
		return 0, p.errorf(rule, tok, "cannot parse number from %s", describe(tok))
	}
	f, err := strconv.ParseFloat(tok.Text(), bitSize)
	if err != nil {
		return 0, p.errorf(rule, tok, "%w", err)
	}
	return f, nil
}

// optFloat parses a number if one is next, otherwise it returns def.
func (p *Parser) optFloat(rule string, def float64) (float64, error) {
	tok, err := p.peek(rule)
	if err != nil {
		return 0, err
	}
	if tok.Type() != lexer.Int && tok.Type() != lexer.Float {
		return def, nil
	}
	p.next(rule)
	return p.parseFloat(rule, tok, 64)
}

func (p *Parser) expect(rule string, ty lexer.TokenType) (Token, error) {
	tok, err := p.next(rule)
	if err != nil {
		return Token{}, err
	}
	if tok.Type() != ty {
		return Token{}, p.errorf(rule, tok, "expected %v, found %s", ty, describe(tok))
	}
	return tok, nil
}

// skip consumes the next token if it has type ty
func (p *Parser) skip(rule string, ty lexer.TokenType) error {
	tok, err := p.peek(rule)
	if err != nil {
		return err
	}
	if tok.Type() == ty {
		p.next(rule)
	}
	return nil
}

func (p *Parser) fill(rule string, n int) error {
	for p.inBuf.Len() < n {
		tok, err := p.lex.Next()
		if err != nil {
			var lerr *lexer.Error
			if errors.As(err, &lerr) {
				return &Error{Rule: RuleToken, Pos: Position{Offset: lerr.At}, Cause: lerr}
			}
			return err
		}
		p.inBuf.PushBack(tok)
		if tok.Type() == lexer.EOF {
			break
		}
	}
	return nil
}

// peekAny returns the next token, including comments, without consuming it.
func (p *Parser) peekAny(rule string) (Token, error) {
	if err := p.fill(rule, 1); err != nil {
		return Token{}, err
	}
	return p.inBuf.At(0), nil
}

func (p *Parser) nextAny(rule string) (Token, error) {
	tok, err := p.peekAny(rule)
	if err != nil {
		return Token{}, err
	}
	p.inBuf.PopFront()
	p.lastEnd = tok.Span().End
	return tok, nil
}

// peek is like peekAny, but it discards comments.
func (p *Parser) peek(rule string) (Token, error) {
	for {
		tok, err := p.peekAny(rule)
		if err != nil {
			return Token{}, err
		}
		if tok.Type() != lexer.Comment {
			return tok, nil
		}
		p.inBuf.PopFront()
	}
}

func (p *Parser) next(rule string) (Token, error) {
	if _, err := p.peek(rule); err != nil {
		return Token{}, err
	}
	return p.nextAny(rule)
}

func (p *Parser) spanFrom(tok Token) Span {
	return Span{Bound: lexer.Span{Begin: tok.Span().Begin, End: p.lastEnd}}
}

func (p *Parser) errorf(rule string, tok Token, format string, args ...any) error {
	return &Error{
		Rule:  rule,
		Pos:   Position{Offset: tok.Span().Begin},
		Cause: fmt.Errorf(format, args...),
	}
}

func describe(tok Token) string {
	switch tok.Type() {
	case lexer.EOF:
		return "end of input"
	case lexer.Ident, lexer.Int, lexer.Float, lexer.String:
		return fmt.Sprintf("%v %v", tok.Type(), tok)
	default:
		return tok.Type().String()
	}
}

// ReadAll parses statements until the input is exhausted.
func ReadAll(p *Parser) (rootSpan Span, ret []Node, _ error) {
	for {
		span, n, err := p.ParseStatement()
		if err != nil {
			return span, nil, err
		}
		if n == nil {
			break
		}
		rootSpan.Children = append(rootSpan.Children, span)
		ret = append(ret, n)
	}
	if len(rootSpan.Children) > 0 {
		rootSpan.Bound.Begin = rootSpan.Children[0].Bound.Begin
		rootSpan.Bound.End = rootSpan.Children[len(rootSpan.Children)-1].Bound.End
	}
	return rootSpan, ret, nil
}

// Parse parses a whole program.
// Errors are *Error, with line and column filled in.
func Parse(src []byte, opts Options) ([]Node, error) {
	_, nodes, err := ReadAll(NewParser(bytes.NewReader(src), opts))
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Pos = Locate(src, perr.Pos.Offset)
		}
		return nil, err
	}
	return nodes, nil
}
