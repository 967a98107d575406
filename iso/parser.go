package iso

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

type (
	prefixParseFn func() Expression
	infixParseFn  func(Expression) Expression
)

type parser struct {
	l *lexer

	curToken  Token
	peekToken Token

	errors []*ParseError

	prefixFns map[TokenType]prefixParseFn
	infixFns  map[TokenType]infixParseFn
}

func newParser(input string) *parser {
	l := newLexer(input)
	p := &parser{l: l}

	p.prefixFns = make(map[TokenType]prefixParseFn)
	p.infixFns = make(map[TokenType]infixParseFn)

	p.prefixFns[tokenIdent] = p.parseIdentifier
	p.prefixFns[tokenNumber] = p.parseNumberLiteral
	p.prefixFns[tokenBigInt] = p.parseBigIntLiteral
	p.prefixFns[tokenString] = p.parseStringLiteral
	p.prefixFns[tokenTrue] = p.parseBooleanLiteral
	p.prefixFns[tokenFalse] = p.parseBooleanLiteral
	p.prefixFns[tokenNull] = p.parseNullLiteral
	p.prefixFns[tokenThis] = p.parseThis
	p.prefixFns[tokenLParen] = p.parseGroupedExpression
	p.prefixFns[tokenLBracket] = p.parseArrayLiteral
	p.prefixFns[tokenLBrace] = p.parseObjectLiteral
	p.prefixFns[tokenFunction] = p.parseFunctionLiteral
	p.prefixFns[tokenNew] = p.parseNewExpression
	for _, tt := range []TokenType{tokenBang, tokenMinus, tokenPlus, tokenTypeof, tokenVoid} {
		p.prefixFns[tt] = p.parsePrefixExpression
	}

	for _, tt := range []TokenType{
		tokenPlus, tokenMinus, tokenAsterisk, tokenSlash, tokenPercent,
		tokenLT, tokenGT, tokenLTE, tokenGTE,
		tokenEQ, tokenNotEQ, tokenStrictEQ, tokenStrictNEQ, tokenInstanceof,
	} {
		p.infixFns[tt] = p.parseInfixExpression
	}
	p.infixFns[tokenAnd] = p.parseLogicalExpression
	p.infixFns[tokenOr] = p.parseLogicalExpression
	p.infixFns[tokenAssign] = p.parseAssignExpression
	p.infixFns[tokenLParen] = p.parseCallExpression
	p.infixFns[tokenDot] = p.parseMemberExpression
	p.infixFns[tokenLBracket] = p.parseIndexExpression

	p.nextToken()
	p.nextToken()

	return p
}

func (p *parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *parser) curTokenIs(tt TokenType) bool  { return p.curToken.Type == tt }
func (p *parser) peekTokenIs(tt TokenType) bool { return p.peekToken.Type == tt }

func (p *parser) expectPeek(tt TokenType) bool {
	if p.peekTokenIs(tt) {
		p.nextToken()
		return true
	}
	p.errorExpected(p.peekToken, string(tt))
	return false
}

func (p *parser) addError(pos Position, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (p *parser) errorExpected(tok Token, what string) {
	if tok.Type == tokenIllegal {
		p.addError(tok.Pos, "%s", tok.Literal)
		return
	}
	p.addError(tok.Pos, "expected %s, got %s", what, describeToken(tok))
}

func describeToken(tok Token) string {
	switch tok.Type {
	case tokenEOF:
		return "end of input"
	case tokenIdent, tokenNumber, tokenBigInt:
		return tok.Literal
	case tokenString:
		return strconv.Quote(tok.Literal)
	}
	return "'" + tok.Literal + "'"
}

func (p *parser) ParseProgram() (*Program, []*ParseError) {
	program := &Program{}

	for !p.curTokenIs(tokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		if len(p.errors) > 0 {
			break
		}
		p.nextToken()
	}

	return program, p.errors
}

func (p *parser) parseStatement() Statement {
	var stmt Statement
	switch p.curToken.Type {
	case tokenVar, tokenLet, tokenConst:
		stmt = p.parseVarStatement()
	case tokenFunction:
		if p.peekTokenIs(tokenIdent) {
			pos := p.curToken.Pos
			fn, _ := p.parseFunctionLiteral().(*FunctionLiteral)
			if fn == nil {
				return nil
			}
			return &FunctionStatement{Fn: fn, position: pos}
		}
		stmt = p.parseExpressionStatement()
	case tokenReturn:
		stmt = p.parseReturnStatement()
	case tokenIf:
		return p.parseIfStatement()
	case tokenThrow:
		stmt = p.parseThrowStatement()
	case tokenLBrace:
		if block := p.parseBlockStatement(); block != nil {
			return block
		}
		return nil
	case tokenSemicolon:
		return &EmptyStatement{position: p.curToken.Pos}
	default:
		stmt = p.parseExpressionStatement()
	}
	if p.peekTokenIs(tokenSemicolon) {
		p.nextToken()
	}
	return stmt
}

func (p *parser) parseVarStatement() Statement {
	stmt := &VarStatement{Kind: p.curToken.Type, position: p.curToken.Pos}
	for {
		if !p.expectPeek(tokenIdent) {
			return nil
		}
		decl := VarDecl{Name: p.curToken.Literal, Pos: p.curToken.Pos}
		if p.peekTokenIs(tokenAssign) {
			p.nextToken()
			p.nextToken()
			decl.Value = p.parseExpression(lowestPrec)
			if decl.Value == nil {
				return nil
			}
		} else if stmt.Kind == tokenConst {
			p.addError(p.peekToken.Pos, "missing initializer in const declaration")
			return nil
		}
		stmt.Decls = append(stmt.Decls, decl)
		if !p.peekTokenIs(tokenComma) {
			return stmt
		}
		p.nextToken()
	}
}

func (p *parser) parseReturnStatement() Statement {
	stmt := &ReturnStatement{position: p.curToken.Pos}
	if p.peekTokenIs(tokenSemicolon) || p.peekTokenIs(tokenRBrace) || p.peekTokenIs(tokenEOF) {
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression(lowestPrec)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *parser) parseThrowStatement() Statement {
	stmt := &ThrowStatement{position: p.curToken.Pos}
	p.nextToken()
	stmt.Value = p.parseExpression(lowestPrec)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *parser) parseIfStatement() Statement {
	stmt := &IfStatement{position: p.curToken.Pos}
	if !p.expectPeek(tokenLParen) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(lowestPrec)
	if stmt.Condition == nil || !p.expectPeek(tokenRParen) {
		return nil
	}
	p.nextToken()
	stmt.Consequent = p.parseStatement()
	if stmt.Consequent == nil {
		return nil
	}
	if p.peekTokenIs(tokenElse) {
		p.nextToken()
		p.nextToken()
		stmt.Alternative = p.parseStatement()
		if stmt.Alternative == nil {
			return nil
		}
	}
	return stmt
}

// parseBlockStatement expects the current token to be '{' and leaves it on '}'.
func (p *parser) parseBlockStatement() *BlockStatement {
	block := &BlockStatement{position: p.curToken.Pos}
	p.nextToken()
	for !p.curTokenIs(tokenRBrace) {
		if p.curTokenIs(tokenEOF) {
			p.errorExpected(p.curToken, "'}'")
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
		p.nextToken()
	}
	return block
}

func (p *parser) parseExpressionStatement() Statement {
	pos := p.curToken.Pos
	expr := p.parseExpression(lowestPrec)
	if expr == nil {
		return nil
	}
	return &ExpressionStatement{Expr: expr, position: pos}
}

func (p *parser) parseExpression(precedence int) Expression {
	prefix := p.prefixFns[p.curToken.Type]
	if prefix == nil {
		p.errorExpected(p.curToken, "expression")
		return nil
	}
	left := prefix()
	for left != nil && !p.peekTokenIs(tokenSemicolon) && precedence < p.peekPrecedence() {
		infix := p.infixFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return lowestPrec
}

func (p *parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return lowestPrec
}

func (p *parser) parseIdentifier() Expression {
	return &Identifier{Name: p.curToken.Literal, position: p.curToken.Pos}
}

func (p *parser) parseNumberLiteral() Expression {
	lit := p.curToken.Literal
	var value float64
	if len(lit) > 1 && lit[0] == '0' && strings.ContainsAny(lit[1:2], "xXbBoO") {
		n, ok := new(big.Int).SetString(lit, 0)
		if !ok {
			p.addError(p.curToken.Pos, "invalid number literal %s", lit)
			return nil
		}
		value, _ = new(big.Float).SetInt(n).Float64()
	} else {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			p.addError(p.curToken.Pos, "invalid number literal %s", lit)
			return nil
		}
		value = f
	}
	return &NumberLiteral{Value: value, position: p.curToken.Pos}
}

func (p *parser) parseBigIntLiteral() Expression {
	lit := p.curToken.Literal
	base := 10
	if len(lit) > 1 && lit[0] == '0' && strings.ContainsAny(lit[1:2], "xXbBoO") {
		base = 0
	}
	n, ok := new(big.Int).SetString(lit, base)
	if !ok {
		p.addError(p.curToken.Pos, "invalid bigint literal %sn", lit)
		return nil
	}
	return &BigIntLiteral{Value: n, position: p.curToken.Pos}
}

func (p *parser) parseStringLiteral() Expression {
	return &StringLiteral{Value: p.curToken.Literal, position: p.curToken.Pos}
}

func (p *parser) parseBooleanLiteral() Expression {
	return &BooleanLiteral{Value: p.curTokenIs(tokenTrue), position: p.curToken.Pos}
}

func (p *parser) parseNullLiteral() Expression {
	return &NullLiteral{position: p.curToken.Pos}
}

func (p *parser) parseThis() Expression {
	return &ThisExpr{position: p.curToken.Pos}
}

func (p *parser) parseGroupedExpression() Expression {
	p.nextToken()
	expr := p.parseExpression(lowestPrec)
	if expr == nil || !p.expectPeek(tokenRParen) {
		return nil
	}
	return expr
}

// parseExpressionList parses comma separated expressions up to end,
// allowing a trailing comma.
func (p *parser) parseExpressionList(end TokenType) ([]Expression, bool) {
	var list []Expression
	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}
	for {
		p.nextToken()
		expr := p.parseExpression(lowestPrec)
		if expr == nil {
			return nil, false
		}
		list = append(list, expr)
		if !p.peekTokenIs(tokenComma) {
			break
		}
		p.nextToken()
		if p.peekTokenIs(end) {
			break
		}
	}
	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}

func (p *parser) parseArrayLiteral() Expression {
	pos := p.curToken.Pos
	elements, ok := p.parseExpressionList(tokenRBracket)
	if !ok {
		return nil
	}
	return &ArrayLiteral{Elements: elements, position: pos}
}

// propertyName accepts identifiers and keywords, which are both valid after
// a dot and as object literal keys.
func (p *parser) propertyName(tok Token) (string, bool) {
	if tok.Type == tokenIdent {
		return tok.Literal, true
	}
	if _, ok := keywords[tok.Literal]; ok && tok.Type == keywords[tok.Literal] {
		return tok.Literal, true
	}
	return "", false
}

func (p *parser) parseObjectLiteral() Expression {
	obj := &ObjectLiteral{position: p.curToken.Pos}
	for !p.peekTokenIs(tokenRBrace) {
		p.nextToken()
		var prop ObjectProperty
		switch p.curToken.Type {
		case tokenString:
			prop.Key = p.curToken.Literal
		case tokenNumber:
			num, ok := p.parseNumberLiteral().(*NumberLiteral)
			if !ok {
				return nil
			}
			prop.Key = formatNumber(num.Value)
		case tokenLBracket:
			p.nextToken()
			prop.Computed = p.parseExpression(lowestPrec)
			if prop.Computed == nil || !p.expectPeek(tokenRBracket) {
				return nil
			}
		default:
			name, ok := p.propertyName(p.curToken)
			if !ok {
				p.errorExpected(p.curToken, "property name")
				return nil
			}
			prop.Key = name
		}
		if !p.expectPeek(tokenColon) {
			return nil
		}
		p.nextToken()
		prop.Value = p.parseExpression(lowestPrec)
		if prop.Value == nil {
			return nil
		}
		obj.Props = append(obj.Props, prop)
		if !p.peekTokenIs(tokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(tokenRBrace) {
		return nil
	}
	return obj
}

func (p *parser) parseFunctionLiteral() Expression {
	start := p.curToken
	fn := &FunctionLiteral{position: start.Pos}
	if p.peekTokenIs(tokenIdent) {
		p.nextToken()
		fn.Name = p.curToken.Literal
	}
	if !p.expectPeek(tokenLParen) {
		return nil
	}
	seen := map[string]bool{}
	for !p.peekTokenIs(tokenRParen) {
		if !p.expectPeek(tokenIdent) {
			return nil
		}
		name := p.curToken.Literal
		if seen[name] {
			p.addError(p.curToken.Pos, "duplicate parameter name %s", name)
			return nil
		}
		seen[name] = true
		fn.Params = append(fn.Params, name)
		if !p.peekTokenIs(tokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(tokenRParen) || !p.expectPeek(tokenLBrace) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	if fn.Body == nil {
		return nil
	}
	fn.Source = p.l.input[start.Pos.Offset:p.curToken.End]
	return fn
}

func (p *parser) parseNewExpression() Expression {
	expr := &NewExpr{position: p.curToken.Pos}
	p.nextToken()
	expr.Callee = p.parseExpression(precCall)
	if expr.Callee == nil {
		return nil
	}
	if p.peekTokenIs(tokenLParen) {
		p.nextToken()
		args, ok := p.parseExpressionList(tokenRParen)
		if !ok {
			return nil
		}
		expr.Args = args
	}
	return expr
}

func (p *parser) parsePrefixExpression() Expression {
	expr := &UnaryExpr{Operator: p.curToken.Type, position: p.curToken.Pos}
	p.nextToken()
	expr.Operand = p.parseExpression(precPrefix)
	if expr.Operand == nil {
		return nil
	}
	return expr
}

func (p *parser) parseInfixExpression(left Expression) Expression {
	expr := &BinaryExpr{Operator: p.curToken.Type, Left: left, position: p.curToken.Pos}
	prec := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(prec)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *parser) parseLogicalExpression(left Expression) Expression {
	expr := &LogicalExpr{Operator: p.curToken.Type, Left: left, position: p.curToken.Pos}
	prec := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(prec)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *parser) parseAssignExpression(left Expression) Expression {
	if !isAssignable(left) {
		p.addError(p.curToken.Pos, "invalid assignment target")
		return nil
	}
	expr := &AssignExpr{Target: left, position: p.curToken.Pos}
	p.nextToken()
	expr.Value = p.parseExpression(precAssign - 1)
	if expr.Value == nil {
		return nil
	}
	return expr
}

func (p *parser) parseCallExpression(callee Expression) Expression {
	expr := &CallExpr{Callee: callee, position: p.curToken.Pos}
	args, ok := p.parseExpressionList(tokenRParen)
	if !ok {
		return nil
	}
	expr.Args = args
	return expr
}

func (p *parser) parseMemberExpression(object Expression) Expression {
	pos := p.curToken.Pos
	p.nextToken()
	name, ok := p.propertyName(p.curToken)
	if !ok {
		p.errorExpected(p.curToken, "property name")
		return nil
	}
	return &MemberExpr{Object: object, Property: name, position: pos}
}

func (p *parser) parseIndexExpression(object Expression) Expression {
	expr := &IndexExpr{Object: object, position: p.curToken.Pos}
	p.nextToken()
	expr.Index = p.parseExpression(lowestPrec)
	if expr.Index == nil || !p.expectPeek(tokenRBracket) {
		return nil
	}
	return expr
}

// Parse parses source as a program, returning the first syntax error with
// a code frame attached.
func Parse(source string) (*Program, error) {
	program, errs := newParser(source).ParseProgram()
	if len(errs) > 0 {
		err := errs[0]
		err.CodeFrame = formatCodeFrame(source, err.Pos)
		return nil, err
	}
	return program, nil
}
