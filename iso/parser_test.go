package iso

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	l := newLexer("let x = 10n; // trailing\nx !== \"a\\nb\" /* block */ && y")
	var got []TokenType
	var literals []string
	for {
		tok := l.NextToken()
		if tok.Type == tokenEOF {
			break
		}
		got = append(got, tok.Type)
		literals = append(literals, tok.Literal)
	}
	assert.Equal(t, []TokenType{
		tokenLet, tokenIdent, tokenAssign, tokenBigInt, tokenSemicolon,
		tokenIdent, tokenStrictNEQ, tokenString, tokenAnd, tokenIdent,
	}, got)
	assert.Equal(t, "10", literals[3])
	assert.Equal(t, "a\nb", literals[7])
}

func TestParseKeepsFunctionSource(t *testing.T) {
	src := `var greet = function(name){ return "hi " + name };
function add(a, b) {
  return a + b
}`
	program, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, program.Statements, 2)

	decl, ok := program.Statements[0].(*VarStatement)
	require.True(t, ok)
	lit, ok := decl.Decls[0].Value.(*FunctionLiteral)
	require.True(t, ok)
	assert.Equal(t, `function(name){ return "hi " + name }`, lit.Source)
	assert.Equal(t, []string{"name"}, lit.Params)

	fn, ok := program.Statements[1].(*FunctionStatement)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Fn.Name)
	assert.Equal(t, "function add(a, b) {\n  return a + b\n}", fn.Fn.Source)
}

func TestParseErrorHasCodeFrame(t *testing.T) {
	_, err := Parse("var a = 1;\nvar b = ;")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Pos.Line)
	assert.Contains(t, parseErr.CodeFrame, "line 2")
	assert.Contains(t, parseErr.CodeFrame, "var b = ;")
	assert.Contains(t, err.Error(), "parse error at 2:")
}

func TestParsePrecedence(t *testing.T) {
	r := NewRealm()
	cases := map[string]float64{
		`1 + 2 * 3`:         7,
		`(1 + 2) * 3`:       9,
		`10 - 4 - 3`:        3,
		`-2 * 3`:            -6,
		`7 % 4 + 1`:         4,
		`[1, 2, 3][1] * 10`: 20,
		`({a: {b: 5}}).a.b`: 5,
	}
	for src, want := range cases {
		v, err := r.Eval(src)
		require.NoError(t, err, src)
		assert.Equal(t, want, v.Number(), src)
	}
}
