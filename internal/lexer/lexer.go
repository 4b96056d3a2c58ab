// Package lexer implements the indentation-sensitive tokenizer for ms.
package lexer

import (
	"strings"

	"github.com/ms-lang/ms/internal/token"
)

// Lexer turns ms source bytes into a token stream. It mirrors the teacher's
// position/readPosition/ch cursor discipline and layers an indent-stack
// state machine on top, since ms (unlike the brace-delimited source
// language this package is adapted from) is indentation-significant.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int

	indents        []int
	pendingDedents int
	atLineStart    bool
	parenDepth     int // inside (), [], {} newlines do not trigger indent logic
}

// New creates a Lexer over the given source.
func New(input string) *Lexer {
	l := &Lexer{
		input:       input,
		line:        1,
		column:      0,
		indents:     []int{0},
		atLineStart: true,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func newToken(tt token.Type, ch byte, line, col int) token.Token {
	return token.Token{Type: tt, Lexeme: string(ch), Line: line, Column: col}
}

func errToken(msg string, line, col int) token.Token {
	return token.Token{Type: token.ERROR, Message: msg, Line: line, Column: col}
}

// NextToken returns the next token in the stream, ending in an EOF token.
func (l *Lexer) NextToken() token.Token {
	if l.pendingDedents > 0 {
		l.pendingDedents--
		return token.Token{Type: token.DEDENT, Line: l.line, Column: l.column}
	}

	if l.atLineStart && l.parenDepth == 0 {
		if tok, ok := l.handleIndentation(); ok {
			return tok
		}
	}

	l.skipNonNewlineWhitespace()

	line, col := l.line, l.column

	if l.ch == 0 {
		if len(l.indents) > 1 {
			l.indents = l.indents[:len(l.indents)-1]
			for len(l.indents) > 1 {
				l.indents = l.indents[:len(l.indents)-1]
				l.pendingDedents++
			}
			return token.Token{Type: token.DEDENT, Line: line, Column: col}
		}
		return token.Token{Type: token.EOF, Line: line, Column: col}
	}

	switch l.ch {
	case '\n':
		l.readChar()
		if l.parenDepth > 0 {
			return l.NextToken()
		}
		l.atLineStart = true
		return token.Token{Type: token.NEWLINE, Line: line, Column: col}
	case '#':
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
		return l.NextToken()
	case '(':
		l.parenDepth++
		l.readChar()
		return newToken(token.LPAREN, '(', line, col)
	case ')':
		l.parenDepth--
		l.readChar()
		return newToken(token.RPAREN, ')', line, col)
	case '[':
		l.parenDepth++
		l.readChar()
		return newToken(token.LBRACKET, '[', line, col)
	case ']':
		l.parenDepth--
		l.readChar()
		return newToken(token.RBRACKET, ']', line, col)
	case '{':
		l.parenDepth++
		l.readChar()
		return newToken(token.LBRACE, '{', line, col)
	case '}':
		l.parenDepth--
		l.readChar()
		return newToken(token.RBRACE, '}', line, col)
	case ',':
		l.readChar()
		return newToken(token.COMMA, ',', line, col)
	case ':':
		l.readChar()
		return newToken(token.COLON, ':', line, col)
	case ';':
		l.readChar()
		return newToken(token.SEMICOLON, ';', line, col)
	case '@':
		l.readChar()
		return newToken(token.AT, '@', line, col)
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			if l.peekChar() == '.' {
				l.readChar()
				l.readChar()
				return token.Token{Type: token.DOTDOTDOT, Lexeme: "...", Line: line, Column: col}
			}
		}
		l.readChar()
		return newToken(token.DOT, '.', line, col)
	case '+':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.PLUS_ASSIGN, Lexeme: "+=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.PLUS, '+', line, col)
	case '-':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.MINUS_ASSIGN, Lexeme: "-=", Line: line, Column: col}
		}
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.ARROW, Lexeme: "->", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.MINUS, '-', line, col)
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.STAR_STAR, Lexeme: "**", Line: line, Column: col}
		}
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.STAR_ASSIGN, Lexeme: "*=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.STAR, '*', line, col)
	case '/':
		if l.peekChar() == '/' {
			l.readChar()
			if l.peekChar() == '=' {
				l.readChar()
				l.readChar()
				return token.Token{Type: token.SLASH_SLASH_ASSIGN, Lexeme: "//=", Line: line, Column: col}
			}
			l.readChar()
			return token.Token{Type: token.SLASH_SLASH, Lexeme: "//", Line: line, Column: col}
		}
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.SLASH_ASSIGN, Lexeme: "/=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.SLASH, '/', line, col)
	case '%':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.PERCENT_ASSIGN, Lexeme: "%=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.PERCENT, '%', line, col)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.EQ, Lexeme: "==", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.ASSIGN, '=', line, col)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.NOT_EQ, Lexeme: "!=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.BANG, '!', line, col)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.LE, Lexeme: "<=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.LT, '<', line, col)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.GE, Lexeme: ">=", Line: line, Column: col}
		}
		l.readChar()
		return newToken(token.GT, '>', line, col)
	case '"', '\'':
		return l.readString(l.ch, line, col)
	}

	if isLetter(l.ch) {
		if (l.ch == 'f' || l.ch == 'F') && (l.peekChar() == '"' || l.peekChar() == '\'') {
			quote := l.peekChar()
			l.readChar() // consume f/F
			return l.readFString(quote, line, col)
		}
		ident := l.readIdentifier()
		return token.Token{Type: token.LookupIdent(ident), Lexeme: ident, Line: line, Column: col}
	}
	if isDigit(l.ch) {
		return l.readNumber(line, col)
	}

	ch := l.ch
	l.readChar()
	return errToken("unexpected character '"+string(ch)+"'", line, col)
}

// handleIndentation consumes leading whitespace/blank/comment lines at the
// start of a logical line and emits INDENT/DEDENT/ERROR tokens per spec
// §4.1. Returns ok=false when the current line carries no such token (the
// caller falls through to ordinary tokenizing).
func (l *Lexer) handleIndentation() (token.Token, bool) {
	for {
		width := 0
		line := l.line
		for l.ch == ' ' || l.ch == '\t' {
			if l.ch == '\t' {
				width += 4
			} else {
				width++
			}
			l.readChar()
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		}
		if l.ch == '\n' {
			l.readChar()
			continue
		}
		if l.ch == 0 {
			l.atLineStart = false
			return token.Token{}, false
		}

		l.atLineStart = false

		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			return token.Token{Type: token.INDENT, Line: line, Column: 1}, true
		case width < top:
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
				l.indents = l.indents[:len(l.indents)-1]
				l.pendingDedents++
			}
			if l.indents[len(l.indents)-1] != width {
				l.pendingDedents = 0
				return errToken("Indentation error", line, 1), true
			}
			l.pendingDedents--
			return token.Token{Type: token.DEDENT, Line: line, Column: 1}, true
		default:
			return token.Token{}, false
		}
	}
}

func (l *Lexer) skipNonNewlineWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber(line, col int) token.Token {
	start := l.position
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	lit := l.input[start:l.position]
	tt := token.INT
	if isFloat {
		tt = token.FLOAT
	}
	return token.Token{Type: tt, Lexeme: lit, Line: line, Column: col}
}

// readString scans a single- or triple-quoted string literal. No escape
// expansion is performed beyond passing bytes through, per spec §4.1.
func (l *Lexer) readString(quote byte, line, col int) token.Token {
	triple := false
	l.readChar() // consume opening quote
	if l.ch == quote && l.peekChar() == quote {
		triple = true
		l.readChar()
		l.readChar()
	}
	start := l.position
	for {
		if l.ch == 0 {
			return errToken("unterminated string literal", line, col)
		}
		if l.ch == quote {
			if !triple {
				break
			}
			if l.peekChar() == quote {
				save := l.position
				l.readChar()
				if l.ch == quote && l.peekChar() == quote {
					lit := l.input[start:save]
					l.readChar()
					l.readChar()
					return token.Token{Type: token.STRING, Lexeme: lit, Line: line, Column: col}
				}
				l.position = save
				l.ch = quote
			} else {
				l.readChar()
				continue
			}
		}
		l.readChar()
	}
	lit := l.input[start:l.position]
	l.readChar() // consume closing quote
	return token.Token{Type: token.STRING, Lexeme: lit, Line: line, Column: col}
}

// readFString scans an f"..."/f'...' token as one opaque unit; the compiler
// re-scans its {…} segments, per spec §4.1/§4.2.
func (l *Lexer) readFString(quote byte, line, col int) token.Token {
	l.readChar() // consume opening quote
	start := l.position
	depth := 0
	for {
		if l.ch == 0 {
			return errToken("unterminated f-string literal", line, col)
		}
		if l.ch == '{' {
			depth++
		} else if l.ch == '}' && depth > 0 {
			depth--
		} else if l.ch == quote && depth == 0 {
			break
		}
		l.readChar()
	}
	lit := l.input[start:l.position]
	l.readChar()
	return token.Token{Type: token.FSTRING, Lexeme: lit, Line: line, Column: col}
}

// SourceRange returns the raw bytes between two byte offsets, trimmed. The
// compiler does not call it: comprehension elements are replayed from
// buffered tokens and f-string segments are compiled from their own text.
func SourceRange(src string, start, end int) string {
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return strings.TrimSpace(src[start:end])
}
