package lexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLex(t *testing.T) {
	t.Parallel()
	type testCase struct {
		I string
		O []Token
	}
	mkCase := func(in string, toks ...Token) testCase {
		return testCase{in, toks}
	}
	tcs := []testCase{
		mkCase("", []Token{}...),
		mkCase("{}", mkTok(LBrace, 0), mkTok(RBrace, 1)),
		mkCase("[   ]", mkTok(LBracket, 0), mkTok(RBracket, 4)),
		mkCase("a -> b : c", mkIdent("a", 0), mkTok(Arrow, 2), mkIdent("b", 5), mkTok(Colon, 7), mkIdent("c", 9)),

		mkCase("1234", mkText(Int, "1234", 0)),
		mkCase("1 2 3", mkText(Int, "1", 0), mkText(Int, "2", 2), mkText(Int, "3", 4)),
		mkCase("-7", mkText(Int, "-7", 0)),
		mkCase("+0.5", mkText(Float, "+0.5", 0)),
		mkCase("1e-3", mkText(Float, "1e-3", 0)),
		mkCase("[0.1, 0.2]",
			mkTok(LBracket, 0), mkText(Float, "0.1", 1), mkTok(Comma, 4), mkText(Float, "0.2", 6), mkTok(RBracket, 9),
		),

		mkCase(`"hello world"`, mkStr("hello world", 0)),
		mkCase(`"hello\n"`, mkStr("hello\n", 0)),
		mkCase(`"\x41"`, mkText(String, `"\x41"`, 0)),

		mkCase("core.membrane_2", mkIdent("core.membrane_2", 0)),
		mkCase(`IMMORTAL x = "v";`,
			mkIdent("IMMORTAL", 0), mkIdent("x", 9), mkTok(Equals, 11), mkStr("v", 13), mkTok(Semicolon, 16),
		),
		mkCase("1234 // this is a comment\n x",
			mkText(Int, "1234", 0), mkText(Comment, "// this is a comment", 5), mkIdent("x", 27),
		),
		mkCase("BODY b { fn x() { y } }",
			mkIdent("BODY", 0), mkIdent("b", 5), mkTok(LBrace, 7), mkText(Raw, " fn x() { y } ", 8), mkTok(RBrace, 22),
		),
		mkCase("body b {}",
			mkIdent("body", 0), mkIdent("b", 5), mkTok(LBrace, 7), mkText(Raw, "", 8), mkTok(RBrace, 8),
		),
		// only BODY opens a raw block
		mkCase("SPIRIT s {}",
			mkIdent("SPIRIT", 0), mkIdent("s", 7), mkTok(LBrace, 9), mkTok(RBrace, 10),
		),
	}
	for i, tc := range tcs {
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			t.Log(tc.I)
			l := NewLexer(strings.NewReader(tc.I))
			// collect all the tokens
			actual := []Token{}
			for range tc.O {
				tok, err := l.Next()
				require.NoError(t, err)
				require.False(t, tok.IsEOF())
				actual = append(actual, tok)
			}
			tok, err := l.Next()
			require.NoError(t, err)
			require.True(t, tok.IsEOF())

			require.Equal(t, tc.O, actual)
		})
	}
}

func TestLexError(t *testing.T) {
	t.Parallel()
	type testCase struct {
		I  string
		At Pos
	}
	tcs := []testCase{
		{`"abc`, 0},
		{"x = 12abc", 4},
		{"a $", 2},
		{"BODY b { {", 8},
		{`"\q"`, 0},
		{"1.", 0},
		{"a / b", 2},
	}
	for i, tc := range tcs {
		t.Run(fmt.Sprintf("%02d", i), func(t *testing.T) {
			l := NewLexer(strings.NewReader(tc.I))
			var err error
			for err == nil {
				var tok Token
				tok, err = l.Next()
				if err == nil {
					require.False(t, tok.IsEOF(), "expected an error before EOF")
				}
			}
			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			require.Equal(t, tc.At, lerr.At)
		})
	}
}

func mkIdent(x string, pos Pos) Token {
	return mkText(Ident, x, pos)
}

func mkStr(x string, pos Pos) Token {
	return mkText(String, fmt.Sprintf("%q", x), pos)
}

func mkText(ty TokenType, text string, pos Pos) Token {
	return Token{
		ty:   ty,
		text: text,
		span: Span{pos, pos + Pos(len([]rune(text)))},
	}
}
