// Package printer renders soul syntax trees as source text.
package printer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.brendoncarroll.net/exp/slices2"

	"aeterna.dev/aeterna/soul/ast"
)

type AST = ast.Node

// Writer is used by the Print functions
type Writer interface {
	io.Writer
	io.StringWriter
	io.ByteWriter
}

type Printer struct {
	// Indent is written once per level of MANIFOLD nesting.
	// The empty string means a tab.
	Indent string
}

func (p Printer) PrintString(x AST) string {
	sb := strings.Builder{}
	if err := p.Print(&sb, x); err != nil {
		return err.Error()
	}
	return sb.String()
}

func (p Printer) Print(w Writer, x AST) error {
	return p.printNode(w, x, 0)
}

// PrintAll writes each node on its own line.
func (p Printer) PrintAll(w Writer, xs []AST) error {
	for _, x := range xs {
		if err := p.printNode(w, x, 0); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (p Printer) printNode(w Writer, x AST, depth int) error {
	var s string
	switch x := x.(type) {
	case ast.Immortal:
		s = fmt.Sprintf("IMMORTAL %s = %s", x.Name, strconv.Quote(x.Value))
	case ast.Body:
		if x.Content == "" {
			s = fmt.Sprintf("BODY %s {}", x.Name)
		} else {
			s = fmt.Sprintf("BODY %s { %s }", x.Name, x.Content)
		}
	case ast.Spirit:
		if x.Goal == "" {
			s = fmt.Sprintf("SPIRIT %s {}", x.Name)
		} else {
			s = fmt.Sprintf("SPIRIT %s { goal: %s }", x.Name, strconv.Quote(x.Goal))
		}
	case ast.Manifold:
		return p.printManifold(w, x, depth)
	case ast.Resonate:
		s = fmt.Sprintf("RESONATE %s %s", x.Target, formatFloat(x.Frequency, 64))
	case ast.Collapse:
		s = fmt.Sprintf("COLLAPSE %s %s", x.Target, formatFloat(x.EntropyThreshold, 64))
	case ast.Entrench:
		s = fmt.Sprintf("ENTRENCH %s = %s", x.Key, formatEntrenchValue(x.Value))
	case ast.Magnet:
		s = fmt.Sprintf("MAGNET %s %s", strconv.Quote(x.Label), formatFloat(x.Power, 64))
	case ast.Department:
		s = fmt.Sprintf("DEPARTMENT %s %s", x.Name, formatFloat(x.Priority, 64))
	case ast.Reflect:
		s = "REFLECT"
	case ast.Axiom:
		s = fmt.Sprintf("AXIOM %s = %s", x.Name, strconv.Quote(x.Expression))
	case ast.Causality:
		s = fmt.Sprintf("CAUSALITY %s -> %s : %s", x.Cause, x.Effect, x.CType)
	case ast.Manifest:
		s = "MANIFEST " + strconv.FormatInt(x.Value, 10)
	case ast.Anchor:
		s = "ANCHOR " + strconv.FormatUint(x.Addr, 10)
	case ast.Transcend:
		s = "TRANSCEND"
	case ast.Echo:
		s = "ECHO"
	case ast.Void:
		s = "BECOME VOID"
	case ast.Comment:
		s = "//" + x.Text
	default:
		return fmt.Errorf("printer: cannot print %T", x)
	}
	_, err := w.WriteString(s)
	return err
}

func (p Printer) printManifold(w Writer, x ast.Manifold, depth int) error {
	if _, err := fmt.Fprintf(w, "MANIFOLD %s {", x.Name); err != nil {
		return err
	}
	if len(x.Body) == 0 {
		_, err := w.WriteString("}")
		return err
	}
	for _, child := range x.Body {
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		if err := p.writeIndent(w, depth+1); err != nil {
			return err
		}
		if err := p.printNode(w, child, depth+1); err != nil {
			return err
		}
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	if err := p.writeIndent(w, depth); err != nil {
		return err
	}
	_, err := w.WriteString("}")
	return err
}

func (p Printer) writeIndent(w Writer, depth int) error {
	indent := p.Indent
	if indent == "" {
		indent = "\t"
	}
	_, err := w.WriteString(strings.Repeat(indent, depth))
	return err
}

func formatEntrenchValue(x ast.EntrenchValue) string {
	switch x := x.(type) {
	case ast.Vector:
		parts := slices2.Map(x, func(f float32) string {
			return formatFloat(float64(f), 32)
		})
		return "[" + strings.Join(parts, ", ") + "]"
	case ast.String:
		return strconv.Quote(string(x))
	case ast.Number:
		return formatFloat(float64(x), 32)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// formatFloat renders x so that the lexer reads it back as the same number.
func formatFloat(x float64, bitSize int) string {
	return strconv.FormatFloat(x, 'g', -1, bitSize)
}
