package iso

import "slices"

// TokenType identifies the lexical category of a token.
type TokenType string

const (
	tokenIllegal TokenType = "ILLEGAL"
	tokenEOF     TokenType = "EOF"

	tokenIdent  TokenType = "IDENT"
	tokenNumber TokenType = "NUMBER"
	tokenBigInt TokenType = "BIGINT"
	tokenString TokenType = "STRING"

	tokenAssign    TokenType = "="
	tokenPlus      TokenType = "+"
	tokenMinus     TokenType = "-"
	tokenBang      TokenType = "!"
	tokenAsterisk  TokenType = "*"
	tokenSlash     TokenType = "/"
	tokenPercent   TokenType = "%"
	tokenLT        TokenType = "<"
	tokenGT        TokenType = ">"
	tokenLTE       TokenType = "<="
	tokenGTE       TokenType = ">="
	tokenEQ        TokenType = "=="
	tokenNotEQ     TokenType = "!="
	tokenStrictEQ  TokenType = "==="
	tokenStrictNEQ TokenType = "!=="
	tokenAnd       TokenType = "&&"
	tokenOr        TokenType = "||"

	tokenComma     TokenType = ","
	tokenColon     TokenType = ":"
	tokenSemicolon TokenType = ";"
	tokenDot       TokenType = "."
	tokenLParen    TokenType = "("
	tokenRParen    TokenType = ")"
	tokenLBrace    TokenType = "{"
	tokenRBrace    TokenType = "}"
	tokenLBracket  TokenType = "["
	tokenRBracket  TokenType = "]"

	tokenVar        TokenType = "VAR"
	tokenLet        TokenType = "LET"
	tokenConst      TokenType = "CONST"
	tokenFunction   TokenType = "FUNCTION"
	tokenReturn     TokenType = "RETURN"
	tokenIf         TokenType = "IF"
	tokenElse       TokenType = "ELSE"
	tokenThrow      TokenType = "THROW"
	tokenNew        TokenType = "NEW"
	tokenThis       TokenType = "THIS"
	tokenTrue       TokenType = "TRUE"
	tokenFalse      TokenType = "FALSE"
	tokenNull       TokenType = "NULL"
	tokenTypeof     TokenType = "TYPEOF"
	tokenVoid       TokenType = "VOID"
	tokenInstanceof TokenType = "INSTANCEOF"
)

// Token captures lexical information for the parser. End is the byte offset
// just past the token, so the parser can slice exact source text.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	End     int
}

// Position identifies a location in the source text.
type Position struct {
	Line   int
	Column int
	Offset int
}

var keywords = map[string]TokenType{
	"var":        tokenVar,
	"let":        tokenLet,
	"const":      tokenConst,
	"function":   tokenFunction,
	"return":     tokenReturn,
	"if":         tokenIf,
	"else":       tokenElse,
	"throw":      tokenThrow,
	"new":        tokenNew,
	"this":       tokenThis,
	"true":       tokenTrue,
	"false":      tokenFalse,
	"null":       tokenNull,
	"typeof":     tokenTypeof,
	"void":       tokenVoid,
	"instanceof": tokenInstanceof,
}

// Keywords returns the reserved words the lexer recognizes, sorted.
func Keywords() []string {
	names := make([]string, 0, len(keywords))
	for name := range keywords {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return tokenIdent
}
