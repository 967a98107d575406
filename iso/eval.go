package iso

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"unicode/utf16"
)

const maxCallDepth = 1024

type completion int

const (
	normalCompletion completion = iota
	returnCompletion
)

// env is the evaluation state of one running function body or script.
type env struct {
	scope *scope
	this  Value
	fn    string
	top   bool
}

// Eval runs source as a script in the realm and returns the value of its
// last expression statement.
func (r *Realm) Eval(source string) (Value, error) {
	program, err := Parse(source)
	if err != nil {
		return Undefined(), err
	}
	return r.Run(program)
}

// Run executes a parsed program at top level.
func (r *Realm) Run(program *Program) (Value, error) {
	e := &env{scope: r.script, this: ObjectValue(r.global), fn: "<script>", top: true}
	if err := r.hoist(program.Statements, e, true); err != nil {
		return Undefined(), err
	}
	last := Undefined()
	for _, stmt := range program.Statements {
		v, c, err := r.execStatement(stmt, e)
		if err != nil {
			return Undefined(), r.withFrame(err, e.fn, stmt.Pos(), false)
		}
		if _, ok := stmt.(*ExpressionStatement); ok {
			last = v
		}
		if c == returnCompletion {
			return v, nil
		}
	}
	return last, nil
}

// withFrame records that err unwound through fn at pos. Runtime errors that
// are not yet error objects are materialized in r first. Unless always is
// set, errors that already carry frames pass through unchanged.
func (r *Realm) withFrame(err error, fn string, pos Position, always bool) error {
	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		return &ThrowError{
			Value:  ObjectValue(r.NewError(scriptErr.Name, scriptErr.Message)),
			Frames: []StackFrame{{Function: fn, Pos: pos}},
		}
	}
	if thrown, ok := err.(*ThrowError); ok && (always || len(thrown.Frames) == 0) {
		thrown.Frames = append(thrown.Frames, StackFrame{Function: fn, Pos: pos})
	}
	return err
}

// hoist binds function declarations of stmts, and when vars is set, every
// var declared anywhere in the body.
func (r *Realm) hoist(stmts []Statement, e *env, vars bool) error {
	if vars {
		var names []string
		collectVars(stmts, &names)
		for _, name := range names {
			if e.top {
				if !r.global.HasOwnProperty(StringKey(name)) {
					if err := r.global.Set(StringKey(name), Undefined()); err != nil {
						return err
					}
				}
				continue
			}
			if !e.scope.hasOwn(name) {
				e.scope.declare(name, Undefined(), false)
			}
		}
	}
	for _, stmt := range stmts {
		decl, ok := stmt.(*FunctionStatement)
		if !ok {
			continue
		}
		fn := r.makeFunction(decl.Fn, e.scope, false)
		if e.top && e.scope == r.script {
			if err := r.global.Set(StringKey(decl.Fn.Name), ObjectValue(fn)); err != nil {
				return err
			}
			continue
		}
		e.scope.declare(decl.Fn.Name, ObjectValue(fn), false)
	}
	return nil
}

func collectVars(stmts []Statement, names *[]string) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *VarStatement:
			if s.Kind == tokenVar {
				for _, d := range s.Decls {
					*names = append(*names, d.Name)
				}
			}
		case *IfStatement:
			collectVars([]Statement{s.Consequent}, names)
			if s.Alternative != nil {
				collectVars([]Statement{s.Alternative}, names)
			}
		case *BlockStatement:
			collectVars(s.Statements, names)
		}
	}
}

func (r *Realm) makeFunction(lit *FunctionLiteral, s *scope, expression bool) *Object {
	fn := &Function{
		name:   lit.Name,
		source: lit.Source,
		decl:   lit,
		scope:  s,
		ctor:   true,
		arity:  len(lit.Params),
	}
	obj := r.newFunctionObject(fn)
	if expression && lit.Name != "" {
		fn.scope = newScope(s)
		fn.scope.declare(lit.Name, ObjectValue(obj), true)
	}
	return obj
}

// callScript runs a script function body with a fresh scope.
func (r *Realm) callScript(callee *Object, this Value, args []Value, newTarget *Object) (Value, error) {
	if r.depth >= maxCallDepth {
		return Undefined(), rangeErrorf("maximum call stack size exceeded")
	}
	r.depth++
	defer func() { r.depth-- }()

	fn := callee.fn
	s := newScope(fn.scope)
	for i, param := range fn.decl.Params {
		s.declare(param, argAt(args, i), false)
	}
	name := fn.name
	if name == "" {
		name = "<anonymous>"
	}
	e := &env{scope: s, this: this, fn: name}
	if err := r.hoist(fn.decl.Body.Statements, e, true); err != nil {
		return Undefined(), err
	}
	for _, stmt := range fn.decl.Body.Statements {
		v, c, err := r.execStatement(stmt, e)
		if err != nil {
			return Undefined(), r.withFrame(err, name, stmt.Pos(), false)
		}
		if c == returnCompletion {
			return v, nil
		}
	}
	return Undefined(), nil
}

func (r *Realm) execStatement(stmt Statement, e *env) (Value, completion, error) {
	switch s := stmt.(type) {
	case *ExpressionStatement:
		v, err := r.evalExpr(s.Expr, e)
		return v, normalCompletion, err
	case *VarStatement:
		return Undefined(), normalCompletion, r.execVar(s, e)
	case *FunctionStatement, *EmptyStatement:
		return Undefined(), normalCompletion, nil
	case *ReturnStatement:
		if s.Value == nil {
			return Undefined(), returnCompletion, nil
		}
		v, err := r.evalExpr(s.Value, e)
		return v, returnCompletion, err
	case *IfStatement:
		cond, err := r.evalExpr(s.Condition, e)
		if err != nil {
			return Undefined(), normalCompletion, err
		}
		if cond.Truthy() {
			return r.execStatement(s.Consequent, e)
		}
		if s.Alternative != nil {
			return r.execStatement(s.Alternative, e)
		}
		return Undefined(), normalCompletion, nil
	case *ThrowStatement:
		v, err := r.evalExpr(s.Value, e)
		if err != nil {
			return Undefined(), normalCompletion, err
		}
		return Undefined(), normalCompletion, &ThrowError{Value: v, Frames: []StackFrame{{Function: e.fn, Pos: s.Pos()}}}
	case *BlockStatement:
		inner := &env{scope: newScope(e.scope), this: e.this, fn: e.fn}
		if err := r.hoist(s.Statements, inner, false); err != nil {
			return Undefined(), normalCompletion, err
		}
		for _, child := range s.Statements {
			v, c, err := r.execStatement(child, inner)
			if err != nil || c == returnCompletion {
				return v, c, err
			}
		}
		return Undefined(), normalCompletion, nil
	}
	return Undefined(), normalCompletion, typeErrorf("unsupported statement %T", stmt)
}

func (r *Realm) execVar(s *VarStatement, e *env) error {
	for _, d := range s.Decls {
		v := Undefined()
		if d.Value != nil {
			var err error
			if v, err = r.evalExpr(d.Value, e); err != nil {
				return err
			}
		} else if s.Kind == tokenVar {
			continue
		}
		switch {
		case s.Kind == tokenVar:
			if err := r.assignVar(d.Name, v, e); err != nil {
				return err
			}
		default:
			e.scope.declare(d.Name, v, s.Kind == tokenConst)
		}
	}
	return nil
}

func (r *Realm) lookupVar(name string, e *env) (Value, bool, error) {
	if b := e.scope.lookup(name); b != nil {
		return b.value, true, nil
	}
	key := StringKey(name)
	for cur := r.global; cur != nil; cur = cur.proto {
		if cur.HasOwnProperty(key) {
			v, err := r.global.Get(key)
			return v, true, err
		}
	}
	return Undefined(), false, nil
}

func (r *Realm) assignVar(name string, v Value, e *env) error {
	if b := e.scope.lookup(name); b != nil {
		if b.constant {
			return typeErrorf("assignment to constant variable %s", name)
		}
		b.value = v
		return nil
	}
	return r.global.Set(StringKey(name), v)
}

func (r *Realm) evalExpr(expr Expression, e *env) (Value, error) {
	switch x := expr.(type) {
	case *NumberLiteral:
		return NewNumber(x.Value), nil
	case *BigIntLiteral:
		return NewBigInt(x.Value), nil
	case *StringLiteral:
		return NewString(x.Value), nil
	case *BooleanLiteral:
		return NewBool(x.Value), nil
	case *NullLiteral:
		return Null(), nil
	case *ThisExpr:
		return e.this, nil
	case *Identifier:
		v, ok, err := r.lookupVar(x.Name, e)
		if err != nil {
			return Undefined(), err
		}
		if !ok {
			return Undefined(), referenceErrorf("%s is not defined", x.Name)
		}
		return v, nil
	case *ArrayLiteral:
		items := make([]Value, len(x.Elements))
		for i, el := range x.Elements {
			v, err := r.evalExpr(el, e)
			if err != nil {
				return Undefined(), err
			}
			items[i] = v
		}
		return ObjectValue(r.NewArray(items...)), nil
	case *ObjectLiteral:
		return r.evalObjectLiteral(x, e)
	case *FunctionLiteral:
		return ObjectValue(r.makeFunction(x, e.scope, true)), nil
	case *MemberExpr:
		obj, err := r.evalExpr(x.Object, e)
		if err != nil {
			return Undefined(), err
		}
		return r.getMember(obj, StringKey(x.Property))
	case *IndexExpr:
		obj, key, err := r.evalIndexTarget(x, e)
		if err != nil {
			return Undefined(), err
		}
		return r.getMember(obj, key)
	case *CallExpr:
		return r.evalCall(x, e)
	case *NewExpr:
		callee, err := r.evalExpr(x.Callee, e)
		if err != nil {
			return Undefined(), err
		}
		args, err := r.evalArgs(x.Args, e)
		if err != nil {
			return Undefined(), err
		}
		if obj := callee.Object(); !obj.isCallable() || !obj.fn.ctor {
			return Undefined(), typeErrorf("%s is not a constructor", describeExpr(x.Callee))
		}
		v, err := construct(callee.Object(), args)
		if err != nil {
			return Undefined(), r.withFrame(err, e.fn, x.Pos(), true)
		}
		return v, nil
	case *UnaryExpr:
		return r.evalUnary(x, e)
	case *BinaryExpr:
		left, err := r.evalExpr(x.Left, e)
		if err != nil {
			return Undefined(), err
		}
		right, err := r.evalExpr(x.Right, e)
		if err != nil {
			return Undefined(), err
		}
		return binaryOp(x.Operator, left, right)
	case *LogicalExpr:
		left, err := r.evalExpr(x.Left, e)
		if err != nil {
			return Undefined(), err
		}
		if (x.Operator == tokenAnd) != left.Truthy() {
			return left, nil
		}
		return r.evalExpr(x.Right, e)
	case *AssignExpr:
		return r.evalAssign(x, e)
	}
	return Undefined(), typeErrorf("unsupported expression %T", expr)
}

func (r *Realm) evalObjectLiteral(x *ObjectLiteral, e *env) (Value, error) {
	obj := r.NewObject()
	for _, prop := range x.Props {
		key := StringKey(prop.Key)
		if prop.Computed != nil {
			k, err := r.evalExpr(prop.Computed, e)
			if err != nil {
				return Undefined(), err
			}
			key = toPropertyKey(k)
		}
		v, err := r.evalExpr(prop.Value, e)
		if err != nil {
			return Undefined(), err
		}
		if err := obj.DefineOwnProperty(key, DataProperty(v, true, true, true)); err != nil {
			return Undefined(), err
		}
	}
	return ObjectValue(obj), nil
}

func (r *Realm) evalIndexTarget(x *IndexExpr, e *env) (Value, PropertyKey, error) {
	obj, err := r.evalExpr(x.Object, e)
	if err != nil {
		return Undefined(), PropertyKey{}, err
	}
	idx, err := r.evalExpr(x.Index, e)
	if err != nil {
		return Undefined(), PropertyKey{}, err
	}
	return obj, toPropertyKey(idx), nil
}

func (r *Realm) evalArgs(exprs []Expression, e *env) ([]Value, error) {
	args := make([]Value, len(exprs))
	for i, arg := range exprs {
		v, err := r.evalExpr(arg, e)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (r *Realm) evalCall(x *CallExpr, e *env) (Value, error) {
	this := Undefined()
	var callee Value
	var err error
	switch target := x.Callee.(type) {
	case *MemberExpr:
		if this, err = r.evalExpr(target.Object, e); err != nil {
			return Undefined(), err
		}
		callee, err = r.getMember(this, StringKey(target.Property))
	case *IndexExpr:
		var key PropertyKey
		if this, key, err = r.evalIndexTarget(target, e); err != nil {
			return Undefined(), err
		}
		callee, err = r.getMember(this, key)
	default:
		callee, err = r.evalExpr(x.Callee, e)
	}
	if err != nil {
		return Undefined(), err
	}
	args, err := r.evalArgs(x.Args, e)
	if err != nil {
		return Undefined(), err
	}
	fn := callee.Object()
	if !fn.isCallable() {
		return Undefined(), typeErrorf("%s is not a function", describeExpr(x.Callee))
	}
	v, err := callFunction(fn, this, args)
	if err != nil {
		return Undefined(), r.withFrame(err, e.fn, x.Pos(), true)
	}
	return v, nil
}

func (r *Realm) evalAssign(x *AssignExpr, e *env) (Value, error) {
	switch target := x.Target.(type) {
	case *Identifier:
		v, err := r.evalExpr(x.Value, e)
		if err != nil {
			return Undefined(), err
		}
		return v, r.assignVar(target.Name, v, e)
	case *MemberExpr:
		obj, err := r.evalExpr(target.Object, e)
		if err != nil {
			return Undefined(), err
		}
		v, err := r.evalExpr(x.Value, e)
		if err != nil {
			return Undefined(), err
		}
		return v, setMember(obj, StringKey(target.Property), v)
	case *IndexExpr:
		obj, key, err := r.evalIndexTarget(target, e)
		if err != nil {
			return Undefined(), err
		}
		v, err := r.evalExpr(x.Value, e)
		if err != nil {
			return Undefined(), err
		}
		return v, setMember(obj, key, v)
	}
	return Undefined(), typeErrorf("invalid assignment target")
}

func setMember(target Value, key PropertyKey, v Value) error {
	if target.IsNullish() {
		return typeErrorf("cannot set properties of %s (setting '%s')", target.String(), key)
	}
	if obj := target.Object(); obj != nil {
		return obj.Set(key, v)
	}
	return nil
}

// getMember reads a property of any value; primitives read through their
// wrapper prototypes.
func (r *Realm) getMember(target Value, key PropertyKey) (Value, error) {
	switch target.Kind() {
	case KindObject:
		return target.Object().Get(key)
	case KindUndefined, KindNull:
		return Undefined(), typeErrorf("cannot read properties of %s (reading '%s')", target.String(), key)
	case KindString:
		if !key.IsSymbol() {
			units := utf16.Encode([]rune(target.Str()))
			if key.name == "length" {
				return NewInt(int64(len(units))), nil
			}
			if idx, ok := arrayIndex(key.name); ok {
				if idx >= len(units) {
					return Undefined(), nil
				}
				return NewString(string(utf16.Decode(units[idx : idx+1]))), nil
			}
		}
		return r.intrinsics["String.prototype"].get(key, target)
	case KindSymbol:
		if key.name == "description" && !key.IsSymbol() {
			if sym := target.Symbol(); sym.hasDesc {
				return NewString(sym.description), nil
			}
			return Undefined(), nil
		}
		return r.intrinsics["Symbol.prototype"].get(key, target)
	case KindNumber:
		return r.intrinsics["Number.prototype"].get(key, target)
	}
	return r.objectProto.get(key, target)
}

func describeExpr(expr Expression) string {
	switch x := expr.(type) {
	case *Identifier:
		return x.Name
	case *MemberExpr:
		return describeExpr(x.Object) + "." + x.Property
	case *IndexExpr:
		return describeExpr(x.Object) + "[...]"
	case *ThisExpr:
		return "this"
	case *CallExpr:
		return describeExpr(x.Callee) + "(...)"
	}
	return "expression"
}

func (r *Realm) evalUnary(x *UnaryExpr, e *env) (Value, error) {
	if x.Operator == tokenTypeof {
		if id, ok := x.Operand.(*Identifier); ok {
			v, found, err := r.lookupVar(id.Name, e)
			if err != nil {
				return Undefined(), err
			}
			if !found {
				return NewString("undefined"), nil
			}
			return NewString(v.typeOf()), nil
		}
	}
	v, err := r.evalExpr(x.Operand, e)
	if err != nil {
		return Undefined(), err
	}
	switch x.Operator {
	case tokenBang:
		return NewBool(!v.Truthy()), nil
	case tokenMinus:
		if b := v.BigInt(); b != nil {
			return NewBigInt(new(big.Int).Neg(b)), nil
		}
		return NewNumber(-toNumber(toPrimitive(v, "number"))), nil
	case tokenPlus:
		if v.Kind() == KindBigInt {
			return Undefined(), typeErrorf("cannot convert a BigInt value to a number")
		}
		return NewNumber(toNumber(toPrimitive(v, "number"))), nil
	case tokenTypeof:
		return NewString(v.typeOf()), nil
	case tokenVoid:
		return Undefined(), nil
	}
	return Undefined(), typeErrorf("unsupported unary operator %s", x.Operator)
}

// toPrimitive converts objects for arithmetic and comparison: dates become
// their time value under the number hint, everything else its string form.
func toPrimitive(v Value, hint string) Value {
	obj := v.Object()
	if obj == nil {
		return v
	}
	if obj.class == ClassDate && hint == "number" {
		return NewNumber(obj.date)
	}
	if obj.class == ClassDate {
		return NewString(formatDate(obj.date))
	}
	return NewString(v.String())
}

func binaryOp(op TokenType, left, right Value) (Value, error) {
	switch op {
	case tokenStrictEQ:
		return NewBool(StrictEquals(left, right)), nil
	case tokenStrictNEQ:
		return NewBool(!StrictEquals(left, right)), nil
	case tokenEQ:
		return NewBool(looseEquals(left, right)), nil
	case tokenNotEQ:
		return NewBool(!looseEquals(left, right)), nil
	case tokenInstanceof:
		return instanceOf(left, right)
	case tokenPlus:
		l, r := toPrimitive(left, "default"), toPrimitive(right, "default")
		if l.Kind() == KindString || r.Kind() == KindString {
			return NewString(l.String() + r.String()), nil
		}
		return arithmetic(op, l, r)
	case tokenLT, tokenGT, tokenLTE, tokenGTE:
		return compare(op, toPrimitive(left, "number"), toPrimitive(right, "number"))
	}
	return arithmetic(op, toPrimitive(left, "number"), toPrimitive(right, "number"))
}

func arithmetic(op TokenType, l, r Value) (Value, error) {
	lb, rb := l.BigInt(), r.BigInt()
	if lb != nil || rb != nil {
		if lb == nil || rb == nil {
			return Undefined(), typeErrorf("cannot mix BigInt and other types, use explicit conversions")
		}
		out := new(big.Int)
		switch op {
		case tokenPlus:
			out.Add(lb, rb)
		case tokenMinus:
			out.Sub(lb, rb)
		case tokenAsterisk:
			out.Mul(lb, rb)
		case tokenSlash, tokenPercent:
			if rb.Sign() == 0 {
				return Undefined(), rangeErrorf("division by zero")
			}
			if op == tokenSlash {
				out.Quo(lb, rb)
			} else {
				out.Rem(lb, rb)
			}
		}
		return NewBigInt(out), nil
	}
	a, b := toNumber(l), toNumber(r)
	switch op {
	case tokenPlus:
		return NewNumber(a + b), nil
	case tokenMinus:
		return NewNumber(a - b), nil
	case tokenAsterisk:
		return NewNumber(a * b), nil
	case tokenSlash:
		return NewNumber(a / b), nil
	case tokenPercent:
		return NewNumber(math.Mod(a, b)), nil
	}
	return Undefined(), typeErrorf("unsupported operator %s", op)
}

func compare(op TokenType, l, r Value) (Value, error) {
	var c int
	switch {
	case l.Kind() == KindString && r.Kind() == KindString:
		c = strings.Compare(l.Str(), r.Str())
	case l.Kind() == KindBigInt || r.Kind() == KindBigInt:
		lf, lok := bigFloat(l)
		rf, rok := bigFloat(r)
		if !lok || !rok {
			return NewBool(false), nil
		}
		c = lf.Cmp(rf)
	default:
		a, b := toNumber(l), toNumber(r)
		if math.IsNaN(a) || math.IsNaN(b) {
			return NewBool(false), nil
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}
	switch op {
	case tokenLT:
		return NewBool(c < 0), nil
	case tokenGT:
		return NewBool(c > 0), nil
	case tokenLTE:
		return NewBool(c <= 0), nil
	default:
		return NewBool(c >= 0), nil
	}
}

func bigFloat(v Value) (*big.Float, bool) {
	if b := v.BigInt(); b != nil {
		return new(big.Float).SetInt(b), true
	}
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return big.NewFloat(f), true
}

func instanceOf(left, right Value) (Value, error) {
	ctor := right.Object()
	if !ctor.isCallable() {
		return Undefined(), typeErrorf("right-hand side of 'instanceof' is not callable")
	}
	obj := left.Object()
	if obj == nil {
		return NewBool(false), nil
	}
	protoVal, err := ctor.Get(StringKey("prototype"))
	if err != nil {
		return Undefined(), err
	}
	proto := protoVal.Object()
	if proto == nil {
		return Undefined(), typeErrorf("function has non-object prototype in instanceof check")
	}
	for cur := obj.proto; cur != nil; cur = cur.proto {
		if cur == proto {
			return NewBool(true), nil
		}
	}
	return NewBool(false), nil
}
