// Package soul ties the soul toolchain together: source text in, avm programs out.
package soul

import (
	"bytes"
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"aeterna.dev/aeterna"
	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/soul/ast"
	"aeterna.dev/aeterna/soul/compile"
	"aeterna.dev/aeterna/soul/parser"
	"aeterna.dev/aeterna/soul/printer"
)

type Options struct {
	Parser  parser.Options
	Compile compile.Options
}

// Parse parses a whole soul program.
func Parse(src []byte) ([]ast.Node, error) {
	return parser.Parse(src, parser.Options{})
}

// Compile parses and compiles src with the default options.
func Compile(ctx context.Context, src []byte) ([]avm.I, error) {
	nodes, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return compile.Compile(ctx, nodes), nil
}

// Format parses src and prints it back in canonical form, keeping comments.
func Format(src []byte) ([]byte, error) {
	nodes, err := parser.Parse(src, parser.Options{KeepComments: true})
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := (printer.Printer{}).PrintAll(buf, nodes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Toolchain builds programs from source, remembering recent builds.
// It is safe for concurrent use.
type Toolchain struct {
	opts  Options
	cache *lru.Cache[aeterna.CID, []avm.I]
}

func NewToolchain(cacheSize int, opts Options) *Toolchain {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[aeterna.CID, []avm.I](cacheSize)
	if err != nil {
		panic(err)
	}
	return &Toolchain{opts: opts, cache: cache}
}

// Build parses and compiles src.
// The returned program belongs to the caller.
func (tc *Toolchain) Build(ctx context.Context, src []byte) ([]avm.I, error) {
	key := aeterna.Hash(nil, src)
	if prog, ok := tc.cache.Get(key); ok {
		logctx.Debug(ctx, "build cache hit", zap.Stringer("src", key))
		return slices.Clone(prog), nil
	}
	nodes, err := parser.Parse(src, tc.opts.Parser)
	if err != nil {
		return nil, err
	}
	prog, err := compile.New(tc.opts.Compile).Compile(ctx, nodes)
	if err != nil {
		return nil, err
	}
	tc.cache.Add(key, prog)
	return slices.Clone(prog), nil
}

// Len is the number of programs in the cache.
func (tc *Toolchain) Len() int {
	return tc.cache.Len()
}
