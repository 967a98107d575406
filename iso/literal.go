package iso

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// reservedWords are the names that cannot appear unquoted as property keys in
// generated programs, whichever target evaluates them.
var reservedWords = map[string]struct{}{
	"break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {},
	"debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {}, "enum": {},
	"export": {}, "extends": {}, "false": {}, "finally": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "in": {}, "instanceof": {}, "let": {}, "new": {},
	"null": {}, "return": {}, "super": {}, "switch": {}, "this": {}, "throw": {},
	"true": {}, "try": {}, "typeof": {}, "var": {}, "void": {}, "while": {},
	"with": {}, "yield": {}, "await": {}, "static": {},
}

// encodePrimitive returns the source text of a primitive value. Symbols are
// handled by the encoder because fresh ones need an identity slot.
func encodePrimitive(v Value) (string, bool) {
	switch v.Kind() {
	case KindUndefined:
		return "void 0", true
	case KindNull:
		return "null", true
	case KindBool:
		if v.Bool() {
			return "true", true
		}
		return "false", true
	case KindNumber:
		return numberLiteral(v.Number()), true
	case KindString:
		return quoteString(v.Str()), true
	case KindBigInt:
		return v.BigInt().String() + "n", true
	}
	return "", false
}

func numberLiteral(f float64) string {
	if f == 0 && math.Signbit(f) {
		return "-0"
	}
	return formatNumber(f)
}

// quoteString renders s as a double-quoted literal. Every control character,
// the line separators and any byte that is not valid UTF-8 are escaped.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && w == 1 {
			b.WriteString(`\ufffd`)
			i++
			continue
		}
		i += w
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case '\u2028', '\u2029':
			b.WriteString(`\u`)
			b.WriteString(strconv.FormatInt(int64(r), 16))
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\x`)
				if r < 0x10 {
					b.WriteByte('0')
				}
				b.WriteString(strconv.FormatInt(int64(r), 16))
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

// propertyName renders a string key for an object literal.
func propertyName(name string) string {
	if _, reserved := reservedWords[name]; !reserved && isIdentifierName(name) {
		return name
	}
	return quoteString(name)
}

// memberAccess renders base.name or base["name"].
func memberAccess(base, name string) string {
	if _, reserved := reservedWords[name]; !reserved && isIdentifierName(name) {
		return base + "." + name
	}
	return base + "[" + quoteString(name) + "]"
}
