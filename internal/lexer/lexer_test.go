package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ms-lang/ms/internal/lexer"
	"github.com/ms-lang/ms/internal/token"
)

func tokenTypes(t *testing.T, source string) []token.Type {
	t.Helper()
	l := lexer.New(source)
	var kinds []token.Type
	for {
		tok := l.NextToken()
		kinds = append(kinds, tok.Type)
		if tok.Type == token.EOF {
			break
		}
	}
	return kinds
}

func TestIndentDedentAroundBlock(t *testing.T) {
	source := "if x:\n    y\nz\n"
	kinds := tokenTypes(t, source)

	require.Contains(t, kinds, token.INDENT)
	require.Contains(t, kinds, token.DEDENT)

	var indents, dedents int
	for _, k := range kinds {
		switch k {
		case token.INDENT:
			indents++
		case token.DEDENT:
			dedents++
		}
	}
	require.Equal(t, indents, dedents, "every INDENT must be balanced by a DEDENT")
}

func TestNewlineSuppressedInsideParens(t *testing.T) {
	source := "f(1,\n2,\n3)\n"
	kinds := tokenTypes(t, source)

	var newlines int
	for _, k := range kinds {
		if k == token.NEWLINE {
			newlines++
		}
	}
	require.Equal(t, 1, newlines, "newlines inside ()/[]/{} must not emit NEWLINE tokens")
}

func TestKeywordsAndIdentifiersDistinguished(t *testing.T) {
	kinds := tokenTypes(t, "def class return pass foo\n")
	require.Equal(t, []token.Type{
		token.DEF, token.CLASS, token.RETURN, token.PASS, token.IDENT, token.NEWLINE, token.EOF,
	}, kinds)
}

func TestNumericLiterals(t *testing.T) {
	l := lexer.New("42 3.14\n")
	intTok := l.NextToken()
	require.Equal(t, token.INT, intTok.Type)
	require.Equal(t, "42", intTok.Lexeme)

	floatTok := l.NextToken()
	require.Equal(t, token.FLOAT, floatTok.Type)
	require.Equal(t, "3.14", floatTok.Lexeme)
}

func TestStringLiteral(t *testing.T) {
	l := lexer.New(`"hello"` + "\n")
	tok := l.NextToken()
	require.Equal(t, token.STRING, tok.Type)
	require.Equal(t, "hello", tok.Lexeme)
}

func TestFStringLiteral(t *testing.T) {
	l := lexer.New("f\"x={x}\"\n")
	tok := l.NextToken()
	require.Equal(t, token.FSTRING, tok.Type)
}
