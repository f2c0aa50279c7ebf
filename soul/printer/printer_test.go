package printer

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"aeterna.dev/aeterna/soul/ast"
	"aeterna.dev/aeterna/soul/parser"
)

func TestPrinter(t *testing.T) {
	t.Parallel()
	type testCase struct {
		I ast.Node
		O string
	}
	tcs := []testCase{
		{
			I: ast.Immortal{Name: "core", Value: "line\n"},
			O: `IMMORTAL core = "line\n"`,
		},
		{
			I: ast.Entrench{Key: "v", Value: ast.Vector{0.1, 2, -3.5}},
			O: `ENTRENCH v = [0.1, 2, -3.5]`,
		},
		{
			I: ast.Causality{Cause: "a", Effect: "b", CType: "c"},
			O: `CAUSALITY a -> b : c`,
		},
		{
			I: ast.Manifold{Name: "outer", Body: []ast.Node{
				ast.Echo{},
				ast.Manifold{Name: "inner", Body: []ast.Node{ast.Void{}}},
			}},
			O: "MANIFOLD outer {\n  ECHO\n  MANIFOLD inner {\n    BECOME VOID\n  }\n}",
		},
		{
			I: ast.Manifold{Name: "empty"},
			O: "MANIFOLD empty {}",
		},
	}
	for i, tc := range tcs {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			p := Printer{Indent: "  "}
			require.Equal(t, tc.O, p.PrintString(tc.I))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	srcs := []string{
		`IMMORTAL core = "eternal \"quoted\" ✓"`,
		`BODY matter { fn main() { if x { y } } }`,
		`BODY empty {}`,
		`SPIRIT guide { goal: "protect", level: 3 }`,
		`SPIRIT quiet { level: 3 }`,
		`RESONATE membrane 432.125 COLLAPSE wave`,
		`ENTRENCH a = [0.1, 1e-7, 3] ENTRENCH b = "s" ENTRENCH c = 1e+30`,
		`MAGNET "north" DEPARTMENT ops 0.25 REFLECT`,
		`AXIOM truth = "a == a" CAUSALITY rain -> flood : direct`,
		`MANIFEST -9223372036854775808 ANCHOR 18446744073709551615 TRANSCEND ECHO BECOME VOID`,
		"// leading\nMANIFOLD a { MANIFOLD b { ECHO // trailing\n } REFLECT }",
	}
	opts := parser.Options{KeepComments: true}
	for i, src := range srcs {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			expected, err := parser.Parse([]byte(src), opts)
			require.NoError(t, err)

			sb := &strings.Builder{}
			require.NoError(t, Printer{}.PrintAll(sb, expected))
			t.Log(sb.String())

			actual, err := parser.Parse([]byte(sb.String()), opts)
			require.NoError(t, err)
			require.Equal(t, expected, actual)
		})
	}
}
