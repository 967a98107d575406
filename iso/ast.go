package iso

import "math/big"

type Node interface {
	Pos() Position
}

type Statement interface {
	Node
	stmtNode()
}

type Expression interface {
	Node
	exprNode()
}

type Program struct {
	Statements []Statement
}

type VarDecl struct {
	Name  string
	Value Expression
	Pos   Position
}

// VarStatement covers var, let and const.
type VarStatement struct {
	Kind     TokenType
	Decls    []VarDecl
	position Position
}

func (s *VarStatement) stmtNode()     {}
func (s *VarStatement) Pos() Position { return s.position }

type FunctionStatement struct {
	Fn       *FunctionLiteral
	position Position
}

func (s *FunctionStatement) stmtNode()     {}
func (s *FunctionStatement) Pos() Position { return s.position }

type ReturnStatement struct {
	Value    Expression
	position Position
}

func (s *ReturnStatement) stmtNode()     {}
func (s *ReturnStatement) Pos() Position { return s.position }

type IfStatement struct {
	Condition   Expression
	Consequent  Statement
	Alternative Statement
	position    Position
}

func (s *IfStatement) stmtNode()     {}
func (s *IfStatement) Pos() Position { return s.position }

type ThrowStatement struct {
	Value    Expression
	position Position
}

func (s *ThrowStatement) stmtNode()     {}
func (s *ThrowStatement) Pos() Position { return s.position }

type BlockStatement struct {
	Statements []Statement
	position   Position
}

func (s *BlockStatement) stmtNode()     {}
func (s *BlockStatement) Pos() Position { return s.position }

type ExpressionStatement struct {
	Expr     Expression
	position Position
}

func (s *ExpressionStatement) stmtNode()     {}
func (s *ExpressionStatement) Pos() Position { return s.position }

type EmptyStatement struct {
	position Position
}

func (s *EmptyStatement) stmtNode()     {}
func (s *EmptyStatement) Pos() Position { return s.position }

type Identifier struct {
	Name     string
	position Position
}

func (e *Identifier) exprNode()     {}
func (e *Identifier) Pos() Position { return e.position }

type NumberLiteral struct {
	Value    float64
	position Position
}

func (e *NumberLiteral) exprNode()     {}
func (e *NumberLiteral) Pos() Position { return e.position }

type BigIntLiteral struct {
	Value    *big.Int
	position Position
}

func (e *BigIntLiteral) exprNode()     {}
func (e *BigIntLiteral) Pos() Position { return e.position }

type StringLiteral struct {
	Value    string
	position Position
}

func (e *StringLiteral) exprNode()     {}
func (e *StringLiteral) Pos() Position { return e.position }

type BooleanLiteral struct {
	Value    bool
	position Position
}

func (e *BooleanLiteral) exprNode()     {}
func (e *BooleanLiteral) Pos() Position { return e.position }

type NullLiteral struct {
	position Position
}

func (e *NullLiteral) exprNode()     {}
func (e *NullLiteral) Pos() Position { return e.position }

type ThisExpr struct {
	position Position
}

func (e *ThisExpr) exprNode()     {}
func (e *ThisExpr) Pos() Position { return e.position }

type ArrayLiteral struct {
	Elements []Expression
	position Position
}

func (e *ArrayLiteral) exprNode()     {}
func (e *ArrayLiteral) Pos() Position { return e.position }

// ObjectProperty is one `key: value` entry; Computed is set for `[expr]: v`.
type ObjectProperty struct {
	Key      string
	Computed Expression
	Value    Expression
}

type ObjectLiteral struct {
	Props    []ObjectProperty
	position Position
}

func (e *ObjectLiteral) exprNode()     {}
func (e *ObjectLiteral) Pos() Position { return e.position }

// FunctionLiteral keeps the exact source text it was parsed from.
type FunctionLiteral struct {
	Name     string
	Params   []string
	Body     *BlockStatement
	Source   string
	position Position
}

func (e *FunctionLiteral) exprNode()     {}
func (e *FunctionLiteral) Pos() Position { return e.position }

type MemberExpr struct {
	Object   Expression
	Property string
	position Position
}

func (e *MemberExpr) exprNode()     {}
func (e *MemberExpr) Pos() Position { return e.position }

type IndexExpr struct {
	Object   Expression
	Index    Expression
	position Position
}

func (e *IndexExpr) exprNode()     {}
func (e *IndexExpr) Pos() Position { return e.position }

type CallExpr struct {
	Callee   Expression
	Args     []Expression
	position Position
}

func (e *CallExpr) exprNode()     {}
func (e *CallExpr) Pos() Position { return e.position }

type NewExpr struct {
	Callee   Expression
	Args     []Expression
	position Position
}

func (e *NewExpr) exprNode()     {}
func (e *NewExpr) Pos() Position { return e.position }

type UnaryExpr struct {
	Operator TokenType
	Operand  Expression
	position Position
}

func (e *UnaryExpr) exprNode()     {}
func (e *UnaryExpr) Pos() Position { return e.position }

type BinaryExpr struct {
	Operator TokenType
	Left     Expression
	Right    Expression
	position Position
}

func (e *BinaryExpr) exprNode()     {}
func (e *BinaryExpr) Pos() Position { return e.position }

type LogicalExpr struct {
	Operator TokenType
	Left     Expression
	Right    Expression
	position Position
}

func (e *LogicalExpr) exprNode()     {}
func (e *LogicalExpr) Pos() Position { return e.position }

type AssignExpr struct {
	Target   Expression
	Value    Expression
	position Position
}

func (e *AssignExpr) exprNode()     {}
func (e *AssignExpr) Pos() Position { return e.position }
