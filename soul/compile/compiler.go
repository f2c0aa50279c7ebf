// Package compile turns soul syntax trees into avm instructions.
package compile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/soul/ast"
)

// ErrUnmapped is the cause of an Error for a node which has no instructions, in strict mode.
var ErrUnmapped = errors.New("node has no instruction mapping")

// timelineHash is the operand of the VERIFY_TIMELINE emitted for ENTRENCH.
const timelineHash = 0x4121

// Loc is a location in the tree: the index at each level of MANIFOLD nesting.
type Loc []uint32

type Error struct {
	Loc   Loc
	Node  ast.Node
	Cause error
}

func (e Error) Error() string {
	return fmt.Sprintf("node %v (%s): %v", e.Loc, ast.Keyword(e.Node), e.Cause)
}

func (e Error) Unwrap() error {
	return e.Cause
}

type Options struct {
	// Strict makes nodes without an instruction mapping an error, instead of skipping them.
	Strict bool
}

type Compiler struct {
	opts Options
}

func New(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Compile compiles a whole program.
// The result always ends with exactly one HALT; an empty program compiles to just HALT.
func (c *Compiler) Compile(ctx context.Context, nodes []ast.Node) ([]avm.I, error) {
	out, err := c.compileSeq(ctx, nil, nodes, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || out[len(out)-1].Op() != avm.OpHalt {
		out = append(out, avm.Halt{})
	}
	logctx.Debug(ctx, "compiled", zap.Int("nodes", len(nodes)), zap.Int("instructions", len(out)))
	return out, nil
}

// Compile compiles nodes with the default options, which cannot fail.
func Compile(ctx context.Context, nodes []ast.Node) []avm.I {
	out, err := New(Options{}).Compile(ctx, nodes)
	if err != nil {
		panic(err)
	}
	return out
}

func (c *Compiler) compileSeq(ctx context.Context, loc Loc, nodes []ast.Node, out []avm.I) ([]avm.I, error) {
	for i, node := range nodes {
		var err error
		if out, err = c.compileNode(ctx, append(slices.Clone(loc), uint32(i)), node, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Compiler) compileNode(ctx context.Context, loc Loc, node ast.Node, out []avm.I) ([]avm.I, error) {
	switch x := node.(type) {
	case ast.Manifold:
		logctx.Debug(ctx, "manifold", zap.String("name", x.Name), zap.Int("len", len(x.Body)))
		out = append(out,
			avm.Load{X: int64(len(x.Body)) * 1000},
			avm.Store{Addr: 0},
		)
		return c.compileSeq(ctx, loc, x.Body, out)
	case ast.Resonate:
		out = append(out, avm.ResonateMembrane{Frequency: saturate(x.Frequency)})
	case ast.Collapse:
		out = append(out, avm.InvertEntropy{Joules: saturate(x.EntropyThreshold * 100)})
	case ast.Entrench:
		out = append(out, avm.VerifyTimeline{Hash: timelineHash})
	case ast.Immortal:
		out = append(out, avm.Load{X: int64(len(x.Value))})
	case ast.Body:
		out = append(out, avm.DefineMatter{Syntax: x.Content})
	case ast.Spirit:
		out = append(out, avm.PredictNeed{Entity: uint64(len(x.Name))})
	case ast.Magnet:
		out = append(out, avm.OntologicalShift{Coords: saturate(x.Power)})
	case ast.Department:
		out = append(out, avm.ForkInstance{ID: saturate(x.Priority)})
	case ast.Reflect:
		out = append(out, avm.EntropyReset{})
	case ast.Axiom:
		out = append(out, avm.InvertLogic{Gate: uint64(len(x.Name))})
	case ast.Causality:
		out = append(out, avm.PatchReality{Bug: 0, Fix: x.Cause + "_to_" + x.Effect})
	case ast.Manifest:
		out = append(out, avm.Load{X: x.Value})
	case ast.Anchor:
		out = append(out, avm.Store{Addr: x.Addr})
	case ast.Transcend:
		out = append(out, avm.Add{})
	case ast.Echo:
		out = append(out, avm.Print{})
	case ast.Void:
		out = append(out, avm.EntropyReset{})
	default:
		if c.opts.Strict {
			return nil, Error{Loc: loc, Node: node, Cause: ErrUnmapped}
		}
		logctx.Debug(ctx, "skipping node", zap.Any("loc", loc), zap.String("node", ast.Keyword(node)))
		return out, nil
	}
	logctx.Debug(ctx, "compiled node", zap.Any("loc", loc), zap.String("node", ast.Keyword(node)))
	return out, nil
}

// saturate truncates x toward zero and clamps it to the range of uint64.
// NaN becomes 0.
func saturate(x float64) uint64 {
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= 1<<64:
		return math.MaxUint64
	default:
		return uint64(x)
	}
}
