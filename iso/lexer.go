package iso

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexer struct {
	input string

	offset int
	width  int

	line   int
	column int

	ch rune
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1, column: 0}
	l.readRune()
	return l
}

func (l *lexer) readRune() {
	if l.offset >= len(l.input) {
		l.width = 0
		l.ch = 0
		l.offset = len(l.input) + 1
		l.column++
		return
	}

	r, w := utf8.DecodeRuneInString(l.input[l.offset:])
	l.width = w
	l.offset += w

	if l.ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}

	l.ch = r
}

// pos returns the position of the current rune.
func (l *lexer) pos() Position {
	start := l.offset - l.width
	if start > len(l.input) {
		start = len(l.input)
	}
	return Position{Line: l.line, Column: l.column, Offset: start}
}

// cur returns the byte offset of the current rune.
func (l *lexer) cur() int {
	return l.pos().Offset
}

func (l *lexer) peekRune() rune {
	if l.offset >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])
	return r
}

func (l *lexer) atEOF() bool {
	return l.offset > len(l.input)
}

func (l *lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.pos()
	if l.atEOF() {
		return Token{Type: tokenEOF, Pos: pos, End: len(l.input)}
	}

	single := func(tt TokenType) Token {
		l.readRune()
		return Token{Type: tt, Literal: string(tt), Pos: pos, End: l.cur()}
	}
	// longest matches one of the operator spellings starting at the current rune.
	longest := func(options ...TokenType) Token {
		rest := l.input[pos.Offset:]
		for _, opt := range options {
			if strings.HasPrefix(rest, string(opt)) {
				for range string(opt) {
					l.readRune()
				}
				return Token{Type: opt, Literal: string(opt), Pos: pos, End: l.cur()}
			}
		}
		l.readRune()
		return Token{Type: tokenIllegal, Literal: rest[:1], Pos: pos, End: l.cur()}
	}

	switch l.ch {
	case '+':
		return single(tokenPlus)
	case '-':
		return single(tokenMinus)
	case '*':
		return single(tokenAsterisk)
	case '/':
		return single(tokenSlash)
	case '%':
		return single(tokenPercent)
	case ',':
		return single(tokenComma)
	case ':':
		return single(tokenColon)
	case ';':
		return single(tokenSemicolon)
	case '(':
		return single(tokenLParen)
	case ')':
		return single(tokenRParen)
	case '{':
		return single(tokenLBrace)
	case '}':
		return single(tokenRBrace)
	case '[':
		return single(tokenLBracket)
	case ']':
		return single(tokenRBracket)
	case '=':
		return longest(tokenStrictEQ, tokenEQ, tokenAssign)
	case '!':
		return longest(tokenStrictNEQ, tokenNotEQ, tokenBang)
	case '<':
		return longest(tokenLTE, tokenLT)
	case '>':
		return longest(tokenGTE, tokenGT)
	case '&':
		return longest(tokenAnd)
	case '|':
		return longest(tokenOr)
	case '.':
		if isDigit(l.peekRune()) {
			return l.readNumber(pos)
		}
		return single(tokenDot)
	case '"', '\'':
		return l.readString(pos)
	}

	switch {
	case isIdentStart(l.ch):
		start := pos.Offset
		for isIdentPart(l.ch) {
			l.readRune()
		}
		literal := l.input[start:l.cur()]
		return Token{Type: lookupIdent(literal), Literal: literal, Pos: pos, End: l.cur()}
	case isDigit(l.ch):
		return l.readNumber(pos)
	}

	illegal := string(l.ch)
	l.readRune()
	return Token{Type: tokenIllegal, Literal: illegal, Pos: pos, End: l.cur()}
}

func (l *lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\uFEFF':
			l.readRune()
		case l.ch == '/' && l.peekRune() == '/':
			for l.ch != '\n' && !l.atEOF() {
				l.readRune()
			}
		case l.ch == '/' && l.peekRune() == '*':
			l.readRune()
			l.readRune()
			for !l.atEOF() && !(l.ch == '*' && l.peekRune() == '/') {
				l.readRune()
			}
			if !l.atEOF() {
				l.readRune()
				l.readRune()
			}
		case unicode.IsSpace(l.ch) && !l.atEOF() && l.ch != 0:
			l.readRune()
		default:
			return
		}
	}
}

func (l *lexer) readNumber(pos Position) Token {
	start := pos.Offset
	if l.ch == '0' && (l.peekRune() == 'x' || l.peekRune() == 'X' || l.peekRune() == 'b' || l.peekRune() == 'B' || l.peekRune() == 'o' || l.peekRune() == 'O') {
		l.readRune()
		l.readRune()
		for isHexDigit(l.ch) {
			l.readRune()
		}
	} else {
		for isDigit(l.ch) {
			l.readRune()
		}
		if l.ch == '.' {
			l.readRune()
			for isDigit(l.ch) {
				l.readRune()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			l.readRune()
			if l.ch == '+' || l.ch == '-' {
				l.readRune()
			}
			for isDigit(l.ch) {
				l.readRune()
			}
		}
	}
	literal := l.input[start:l.cur()]
	if l.ch == 'n' {
		l.readRune()
		return Token{Type: tokenBigInt, Literal: literal, Pos: pos, End: l.cur()}
	}
	return Token{Type: tokenNumber, Literal: literal, Pos: pos, End: l.cur()}
}

// readString decodes a quoted literal. The token's Literal is the decoded
// text; an unterminated or malformed literal is returned as ILLEGAL with
// the reason in Literal.
func (l *lexer) readString(pos Position) Token {
	quote := l.ch
	l.readRune()
	var b strings.Builder
	for {
		switch {
		case l.atEOF() || l.ch == '\n':
			return Token{Type: tokenIllegal, Literal: "unterminated string literal", Pos: pos, End: l.cur()}
		case l.ch == quote:
			l.readRune()
			return Token{Type: tokenString, Literal: b.String(), Pos: pos, End: l.cur()}
		case l.ch == '\\':
			l.readRune()
			if !l.readEscape(&b) {
				return Token{Type: tokenIllegal, Literal: "invalid escape sequence", Pos: pos, End: l.cur()}
			}
		default:
			b.WriteRune(l.ch)
			l.readRune()
		}
	}
}

func (l *lexer) readEscape(b *strings.Builder) bool {
	switch l.ch {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case 'x':
		r, ok := l.readHex(2)
		if !ok {
			return false
		}
		b.WriteRune(r)
		return true
	case 'u':
		if l.peekRune() == '{' {
			l.readRune()
			l.readRune()
			start := l.cur()
			for isHexDigit(l.ch) {
				l.readRune()
			}
			if l.ch != '}' {
				return false
			}
			n, err := strconv.ParseUint(l.input[start:l.cur()], 16, 32)
			if err != nil || n > unicode.MaxRune {
				return false
			}
			l.readRune()
			b.WriteRune(rune(n))
			return true
		}
		r, ok := l.readHex(4)
		if !ok {
			return false
		}
		if r >= 0xD800 && r < 0xDC00 && l.ch == '\\' && l.peekRune() == 'u' {
			l.readRune()
			lo, ok := l.readHex(4)
			if !ok {
				return false
			}
			r = 0x10000 + (r-0xD800)<<10 + (lo - 0xDC00)
		}
		b.WriteRune(r)
		return true
	case '\n':
	default:
		if l.atEOF() {
			return false
		}
		b.WriteRune(l.ch)
	}
	l.readRune()
	return true
}

// readHex consumes the escape letter and n hex digits.
func (l *lexer) readHex(n int) (rune, bool) {
	l.readRune()
	start := l.cur()
	for i := 0; i < n; i++ {
		if !isHexDigit(l.ch) {
			return 0, false
		}
		l.readRune()
	}
	v, err := strconv.ParseUint(l.input[start:l.cur()], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch)
}
