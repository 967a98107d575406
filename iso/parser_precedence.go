package iso

func isAssignable(expr Expression) bool {
	switch expr.(type) {
	case *Identifier, *MemberExpr, *IndexExpr:
		return true
	default:
		return false
	}
}

const (
	lowestPrec = iota
	precAssign
	precOr
	precAnd
	precEquality
	precComparison
	precSum
	precProduct
	precPrefix
	precCall
	precMember
)

var precedences = map[TokenType]int{
	tokenAssign:     precAssign,
	tokenOr:         precOr,
	tokenAnd:        precAnd,
	tokenEQ:         precEquality,
	tokenNotEQ:      precEquality,
	tokenStrictEQ:   precEquality,
	tokenStrictNEQ:  precEquality,
	tokenLT:         precComparison,
	tokenLTE:        precComparison,
	tokenGT:         precComparison,
	tokenGTE:        precComparison,
	tokenInstanceof: precComparison,
	tokenPlus:       precSum,
	tokenMinus:      precSum,
	tokenSlash:      precProduct,
	tokenAsterisk:   precProduct,
	tokenPercent:    precProduct,
	tokenLParen:     precCall,
	tokenDot:        precMember,
	tokenLBracket:   precMember,
}
