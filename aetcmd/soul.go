package aetcmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"go.brendoncarroll.net/star"
	"golang.org/x/exp/maps"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/soul"
	"aeterna.dev/aeterna/soul/ast"
	"aeterna.dev/aeterna/soul/compile"
)

var parseCmd = star.Command{
	Metadata: star.Metadata{
		Short: "parse a soul program and summarize it",
	},
	Pos: []star.IParam{fileParam},
	F: func(c star.Context) error {
		src, err := readSource(c)
		if err != nil {
			return err
		}
		nodes, err := soul.Parse(src)
		if err != nil {
			return err
		}
		return summarize(c.StdOut, nodes)
	},
}

// summarize writes the number of statements of each kind in nodes.
func summarize(w io.Writer, nodes []ast.Node) error {
	counts := map[string]int{}
	var total int
	ast.Walk(nodes, func(n ast.Node) bool {
		counts[ast.Keyword(n)]++
		total++
		return true
	})
	if _, err := fmt.Fprintf(w, "STATEMENTS: %d\nDEPTH: %d\n", total, ast.Depth(nodes)); err != nil {
		return err
	}
	kws := maps.Keys(counts)
	slices.Sort(kws)
	for _, kw := range kws {
		if _, err := fmt.Fprintf(w, "%-12s %d\n", kw, counts[kw]); err != nil {
			return err
		}
	}
	return nil
}

var fmtCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print a soul program in canonical form",
	},
	Pos: []star.IParam{fileParam},
	F: func(c star.Context) error {
		src, err := readSource(c)
		if err != nil {
			return err
		}
		out, err := soul.Format(src)
		if err != nil {
			return err
		}
		_, err = c.StdOut.Write(out)
		return err
	},
}

var compileCmd = star.Command{
	Metadata: star.Metadata{
		Short: "compile a soul program and print its assembly",
	},
	Flags: []star.IParam{strictParam, verboseParam},
	Pos:   []star.IParam{fileParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		src, err := readSource(c)
		if err != nil {
			return err
		}
		prog, err := build(ctx, src, strictParam.Load(c))
		if err != nil {
			return err
		}
		_, err = io.WriteString(c.StdOut, avm.Format(prog))
		return err
	},
}

func build(ctx context.Context, src []byte, strict bool) ([]avm.I, error) {
	tc := soul.NewToolchain(1, soul.Options{
		Compile: compile.Options{Strict: strict},
	})
	return tc.Build(ctx, src)
}
