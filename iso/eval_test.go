package iso

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalScopesAndClosures(t *testing.T) {
	r := newScriptRealm(t, `function makeCounter() {
  var n = 0;
  return function() { n = n + 1; return n };
}
var c = makeCounter();
c();
c();`)
	requireTrue(t, r, `c() === 3`, `typeof n === "undefined"`)
}

func TestEvalHoisting(t *testing.T) {
	r := newScriptRealm(t, `var early = later();
function later() { return "hoisted" }`)
	requireTrue(t, r, `early === "hoisted"`)
}

func TestEvalThisAndNew(t *testing.T) {
	r := newScriptRealm(t, `var obj = {v: 3, get: function() { return this.v }};
function Box(v) { this.v = v }
Box.prototype.twice = function() { return this.v * 2 };
var b = new Box(4);`)
	requireTrue(t, r,
		`obj.get() === 3`,
		`b.twice() === 8`,
		`b instanceof Box`,
		`Object.getPrototypeOf(b) === Box.prototype`,
	)
}

func TestEvalNamedFunctionExpression(t *testing.T) {
	r := newScriptRealm(t, `var fact = function f(n) { if (n < 2) { return 1 } return n * f(n - 1) };`)
	requireTrue(t, r, `fact(5) === 120`, `typeof f === "undefined"`)
}

func TestEvalConstAssignment(t *testing.T) {
	r := NewRealm()
	_, err := r.Eval(`const k = 1; k = 2;`)
	var thrown *ThrowError
	require.ErrorAs(t, err, &thrown)
	name, _, _ := errorParts(err)
	assert.Equal(t, "TypeError", name)
}

func TestEvalThrowCarriesValueAndFrames(t *testing.T) {
	r := NewRealm()
	_, err := r.Eval(`function fail() { throw new RangeError("out of range") }
fail();`)
	var thrown *ThrowError
	require.ErrorAs(t, err, &thrown)
	name, message, trace := errorParts(err)
	assert.Equal(t, "RangeError", name)
	assert.Equal(t, "out of range", message)
	assert.Contains(t, trace, "at fail")

	_, err = r.Eval(`throw "plain"`)
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "plain", thrown.Value.Str())
}

func TestEvalRecursionLimit(t *testing.T) {
	r := NewRealm()
	_, err := r.Eval(`function loop() { return loop() }
loop();`)
	require.Error(t, err)
	name, message, _ := errorParts(err)
	assert.Equal(t, "RangeError", name)
	assert.Contains(t, message, "maximum call stack")
}

func TestEvalOperators(t *testing.T) {
	r := NewRealm()
	requireTrue(t, r,
		`"ab" + 1 === "ab1"`,
		`"abc".length === 3`,
		`"abc"[1] === "b"`,
		`2n * 3n === 6n`,
		`1 == "1" && 1 !== "1"`,
		`null == undefined && null !== undefined`,
		`typeof undeclaredName === "undefined"`,
		`typeof function() {} === "function"`,
		`typeof Symbol("x") === "symbol"`,
		`void 0 === undefined`,
		`(0 || "fallback") === "fallback"`,
		`(1 && 2) === 2`,
		`"b" > "a"`,
	)

	_, err := r.Eval(`1n + 1`)
	name, _, _ := errorParts(err)
	assert.Equal(t, "TypeError", name)

	_, err = r.Eval(`1n / 0n`)
	name, _, _ = errorParts(err)
	assert.Equal(t, "RangeError", name)
}

func TestEvalUndeclaredReference(t *testing.T) {
	r := NewRealm()
	_, err := r.Eval(`missing + 1`)
	require.Error(t, err)
	name, message, _ := errorParts(err)
	assert.Equal(t, "ReferenceError", name)
	assert.Contains(t, message, "missing")
}

func TestRealmCallAndConstruct(t *testing.T) {
	r := newScriptRealm(t, `function Pair(a, b) { this.sum = a + b }
function add(a, b) { return a + b }`)

	v, err := r.Call(r.GlobalValue("add"), NewInt(2), NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, float64(5), v.Number())

	p, err := r.Construct(r.GlobalValue("Pair"), NewInt(1), NewInt(2))
	require.NoError(t, err)
	sum, err := p.Object().Get(StringKey("sum"))
	require.NoError(t, err)
	assert.Equal(t, float64(3), sum.Number())

	_, err = r.Call(NewInt(1))
	var scriptErr *ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, "TypeError", scriptErr.Name)
}

func TestGoFunctionThrow(t *testing.T) {
	r := NewRealm()
	require.NoError(t, r.SetGlobal("reject", ObjectValue(r.NewGoFunction("reject", func(c *Call) (Value, error) {
		return Undefined(), c.Realm.Throw("SyntaxError", "bad %s", c.Arg(0).String())
	}))))
	_, err := r.Eval(`reject("input")`)
	name, message, _ := errorParts(err)
	assert.Equal(t, "SyntaxError", name)
	assert.Equal(t, "bad input", message)
}
