package avm

import (
	"fmt"
	"strconv"
	"strings"

	"go.brendoncarroll.net/exp/slices2"

	"aeterna.dev/aeterna/soul/lexer"
)

// Format renders prog as assembly, one instruction per line.
func Format(prog []I) string {
	if len(prog) == 0 {
		return ""
	}
	return strings.Join(slices2.Map(prog, FormatI), "\n") + "\n"
}

// FormatI renders a single instruction as assembly.
func FormatI(ix I) string {
	name := ix.Op().String()
	switch ix := ix.(type) {
	case Load:
		return name + " " + strconv.FormatInt(ix.X, 10)
	case Store:
		return fmtU64(name, ix.Addr)
	case Jump:
		return fmtU64(name, ix.Addr)
	case JumpIf:
		return fmtU64(name, ix.Addr)

	case OntologicalShift:
		return fmtU64(name, ix.Coords)
	case ResonateMembrane:
		return fmtU64(name, ix.Frequency)
	case InvertEntropy:
		return fmtU64(name, ix.Joules)
	case VerifyTimeline:
		return fmtU64(name, ix.Hash)
	case PredictNeed:
		return fmtU64(name, ix.Entity)
	case TuneConstant:
		return fmtU64(name, ix.ID) + " " + fmtFloat(ix.Value)
	case InvertLogic:
		return fmtU64(name, ix.Gate)
	case DefineMatter:
		return name + " " + strconv.Quote(ix.Syntax)
	case RecycleChrono:
		return name + " " + fmtFloat(ix.Delta)
	case ForkInstance:
		return fmtU64(name, ix.ID)
	case PatchReality:
		return fmtU64(name, ix.Bug) + " " + strconv.Quote(ix.Fix)
	default:
		return name
	}
}

func fmtU64(name string, x uint64) string {
	return name + " " + strconv.FormatUint(x, 10)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// AsmError is returned by ParseAsm
type AsmError struct {
	Offset lexer.Pos
	Cause  error
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("asm: offset %d: %v", e.Offset, e.Cause)
}

func (e *AsmError) Unwrap() error {
	return e.Cause
}

// ParseAsm parses the output of Format.
// Instructions may be separated by any whitespace or by ';'.
// Opcode names are case insensitive, and // starts a comment.
func ParseAsm(src string) ([]I, error) {
	ap := asmParser{lex: lexer.NewLexer(strings.NewReader(src))}
	prog := []I{}
	for {
		tok, err := ap.next()
		if err != nil {
			return nil, err
		}
		if tok.IsEOF() {
			return prog, nil
		}
		if tok.Type() != lexer.Ident {
			return nil, ap.errorf(tok, "expected opcode, found %v", tok)
		}
		op, ok := ParseOpcode(strings.ToUpper(tok.Text()))
		if !ok {
			return nil, ap.errorf(tok, "unknown opcode %q", tok.Text())
		}
		ix, err := ap.operands(op)
		if err != nil {
			return nil, err
		}
		prog = append(prog, ix)
	}
}

type asmParser struct {
	lex *lexer.Lexer
}

func (ap *asmParser) operands(op Opcode) (I, error) {
	if ix, ok := zeroOperand(op); ok {
		return ix, nil
	}
	switch op {
	case OpLoad:
		x, err := ap.readInt()
		return Load{X: x}, err
	case OpTuneConstant:
		id, err := ap.readUint()
		if err != nil {
			return nil, err
		}
		val, err := ap.readFloat()
		return TuneConstant{ID: id, Value: val}, err
	case OpDefineMatter:
		s, err := ap.readString()
		return DefineMatter{Syntax: s}, err
	case OpRecycleChrono:
		d, err := ap.readFloat()
		return RecycleChrono{Delta: d}, err
	case OpPatchReality:
		bug, err := ap.readUint()
		if err != nil {
			return nil, err
		}
		fix, err := ap.readString()
		return PatchReality{Bug: bug, Fix: fix}, err
	}
	x, err := ap.readUint()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpStore:
		return Store{Addr: x}, nil
	case OpJump:
		return Jump{Addr: x}, nil
	case OpJumpIf:
		return JumpIf{Addr: x}, nil
	case OpOntologicalShift:
		return OntologicalShift{Coords: x}, nil
	case OpResonateMembrane:
		return ResonateMembrane{Frequency: x}, nil
	case OpInvertEntropy:
		return InvertEntropy{Joules: x}, nil
	case OpVerifyTimeline:
		return VerifyTimeline{Hash: x}, nil
	case OpPredictNeed:
		return PredictNeed{Entity: x}, nil
	case OpInvertLogic:
		return InvertLogic{Gate: x}, nil
	case OpForkInstance:
		return ForkInstance{ID: x}, nil
	default:
		panic(fmt.Sprintf("no operand parser for %v", op))
	}
}

// next returns the next token which is not a comment or separator.
func (ap *asmParser) next() (lexer.Token, error) {
	for {
		tok, err := ap.lex.Next()
		if err != nil {
			if lerr, ok := err.(*lexer.Error); ok {
				return lexer.Token{}, &AsmError{Offset: lerr.At, Cause: lerr}
			}
			return lexer.Token{}, err
		}
		switch tok.Type() {
		case lexer.Comment, lexer.Semicolon:
			continue
		}
		return tok, nil
	}
}

func (ap *asmParser) expect(ty lexer.TokenType) (lexer.Token, error) {
	tok, err := ap.next()
	if err != nil {
		return tok, err
	}
	if tok.Type() != ty {
		return tok, ap.errorf(tok, "expected %v, found %v", ty, tok)
	}
	return tok, nil
}

func (ap *asmParser) readInt() (int64, error) {
	tok, err := ap.expect(lexer.Int)
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseInt(tok.Text(), 10, 64)
	if err != nil {
		return 0, ap.errorf(tok, "%w", err)
	}
	return x, nil
}

func (ap *asmParser) readUint() (uint64, error) {
	tok, err := ap.expect(lexer.Int)
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseUint(strings.TrimPrefix(tok.Text(), "+"), 10, 64)
	if err != nil {
		return 0, ap.errorf(tok, "%w", err)
	}
	return x, nil
}

func (ap *asmParser) readFloat() (float64, error) {
	tok, err := ap.next()
	if err != nil {
		return 0, err
	}
	if tok.Type() != lexer.Int && tok.Type() != lexer.Float {
		return 0, ap.errorf(tok, "expected number, found %v", tok)
	}
	x, err := strconv.ParseFloat(tok.Text(), 64)
	if err != nil {
		return 0, ap.errorf(tok, "%w", err)
	}
	return x, nil
}

func (ap *asmParser) readString() (string, error) {
	tok, err := ap.expect(lexer.String)
	if err != nil {
		return "", err
	}
	s, err := strconv.Unquote(tok.Text())
	if err != nil {
		return "", ap.errorf(tok, "%w", err)
	}
	return s, nil
}

func (ap *asmParser) errorf(tok lexer.Token, format string, args ...any) error {
	return &AsmError{Offset: tok.Span().Begin, Cause: fmt.Errorf(format, args...)}
}
