package iso

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RegisterBody("iso_test.inc", func(c *Call) (Value, error) {
		n, err := c.Capture("n")
		if err != nil {
			return Undefined(), err
		}
		next := NewNumber(n.Number() + 1)
		return next, c.SetCapture("n", next)
	})
	RegisterBody("iso_test.peek", func(c *Call) (Value, error) {
		return c.Capture("n")
	})
	RegisterBody("iso_test.self", func(c *Call) (Value, error) {
		return c.Capture("self")
	})
}

var plainCaps = ContextConfig{Capabilities: Capabilities{Buffers: true, Handles: []string{HandleMessagePort}}}

func TestCreateContextGreetProgram(t *testing.T) {
	r := newScriptRealm(t, `var count = 5;
var greet = function(name){ return "hi " + name };`)

	ctx, err := CreateContext(bindGlobals(r, "count", "greet"), plainCaps)
	require.NoError(t, err)
	assert.Equal(t, "self.count = 5;\nself.greet = function(name){ return \"hi \" + name };", ctx.Program)
	assert.Empty(t, ctx.Patches)
	assert.Empty(t, ctx.Transfer)
	assert.Empty(t, ctx.PatchData().Code)
}

func TestRoundTripPrimitives(t *testing.T) {
	r := newScriptRealm(t, `var prims = {
  zero: -0, big: 12345678901234567890n, nan: NaN, inf: -Infinity,
  text: "say \"hi\"\n\ttab", nothing: null, missing: undefined, yes: true
};`)
	target, _ := replay(t, r, bindGlobals(r, "prims"), plainCaps)

	requireTrue(t, target,
		`1 / prims.zero === -Infinity`,
		`prims.big === 12345678901234567890n`,
		`prims.nan !== prims.nan`,
		`prims.inf === -Infinity`,
		`prims.text === "say \"hi\"\n\ttab"`,
		`prims.nothing === null`,
		`prims.hasOwnProperty("missing") && prims.missing === undefined`,
		`prims.yes === true`,
	)
}

func TestRoundTripSharedReferences(t *testing.T) {
	r := newScriptRealm(t, `var shared = {x: 1};
var a = {p: shared, q: shared};`)
	target, ctx := replay(t, r, bindGlobals(r, "a", "shared"), plainCaps)

	requireTrue(t, target, `a.p === a.q`, `a.p === shared`, `shared.x === 1`)
	assert.Equal(t, 1, strings.Count(ctx.Program, "{x: 1}"))
	assert.Contains(t, ctx.Program, "self.shared = __iso[")
}

func TestUnsharedValuesHaveNoSlots(t *testing.T) {
	r := newScriptRealm(t, `var a = {p: {x: 1}, list: [1, 2]};`)
	ctx, err := CreateContext(bindGlobals(r, "a"), plainCaps)
	require.NoError(t, err)
	assert.NotContains(t, ctx.Program, "__iso")
}

func TestRoundTripCycles(t *testing.T) {
	r := newScriptRealm(t, `var a = {name: "a"};
a.self = a;
var list = [1];
list.push(list);
var frozen = {};
frozen.me = frozen;
Object.freeze(frozen);`)
	target, ctx := replay(t, r, bindGlobals(r, "a", "list", "frozen"), plainCaps)

	requireTrue(t, target,
		`a.self === a`,
		`a.name === "a"`,
		`list[1] === list`,
		`list.length === 2`,
		`frozen.me === frozen`,
		`Object.isFrozen(frozen)`,
	)
	assert.NotEmpty(t, ctx.Patches)
}

func TestRoundTripDescriptorsAndLocks(t *testing.T) {
	r := newScriptRealm(t, `var o = {shown: 1};
Object.defineProperty(o, "hidden", {value: 2, enumerable: false});
Object.defineProperty(o, "answer", {get: function(){ return 42 }, enumerable: true, configurable: true});
var sealed = Object.seal({a: 1});
var closed = Object.preventExtensions({b: 2});
var bare = Object.create(null);
bare.x = 1;
var arr = [1, 2];
arr.extra = "x";`)
	target, _ := replay(t, r, bindGlobals(r, "o", "sealed", "closed", "bare", "arr"), plainCaps)

	requireTrue(t, target,
		`o.shown === 1 && o.hidden === 2 && o.answer === 42`,
		`Object.getOwnPropertyDescriptor(o, "hidden").enumerable === false`,
		`Object.getOwnPropertyDescriptor(o, "hidden").writable === false`,
		`Object.keys(o).length === 2`,
		`Object.isSealed(sealed) && !Object.isFrozen(sealed)`,
		`!Object.isExtensible(closed) && !Object.isSealed(closed)`,
		`Object.getPrototypeOf(bare) === null && bare.x === 1`,
		`Array.isArray(arr) && arr.length === 2 && arr.extra === "x"`,
	)
}

func TestRoundTripSymbols(t *testing.T) {
	r := newScriptRealm(t, `var tag = Symbol("tag");
var shared = Symbol.for("app.key");
var tagged = {};
tagged[tag] = 1;
tagged[shared] = 2;`)
	target, ctx := replay(t, r, bindGlobals(r, "tagged", "tag", "shared"), plainCaps)

	requireTrue(t, target,
		`tagged[tag] === 1`,
		`tagged[shared] === 2`,
		`shared === Symbol.for("app.key")`,
		`tag !== Symbol.for("tag")`,
	)
	assert.Contains(t, ctx.Program, `Symbol.for("app.key")`)
}

func TestRoundTripCollections(t *testing.T) {
	r := newScriptRealm(t, `var m = new Map();
m.set("k", 1);
m.set(m, "self");
var holder = new Map();
holder.set("me", holder);
var s = new Set();
s.add(1);
s.add(s);
s.add("last");`)
	target, _ := replay(t, r, bindGlobals(r, "m", "holder", "s"), plainCaps)

	requireTrue(t, target,
		`m.size === 2 && m.get("k") === 1 && m.get(m) === "self"`,
		`holder.get("me") === holder`,
		`s.size === 3 && s.has(1) && s.has(s) && s.has("last")`,
	)

	entries := target.GlobalValue("m").Object().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "k", entries[0].Key.Str())
	assert.Same(t, target.GlobalValue("m").Object(), entries[1].Key.Object())

	members := target.GlobalValue("s").Object().Entries()
	require.Len(t, members, 3)
	assert.Equal(t, float64(1), members[0].Key.Number())
	assert.Same(t, target.GlobalValue("s").Object(), members[1].Key.Object())
	assert.Equal(t, "last", members[2].Key.Str())
}

func TestRoundTripDatesErrorsPromises(t *testing.T) {
	r := newScriptRealm(t, `var when = new Date(1000);
var boom = new TypeError("bad");
boom.code = 7;
var custom = new Error("odd");
var ok = Promise.resolve(5);
var no = Promise.reject("nope");`)
	target, _ := replay(t, r, bindGlobals(r, "when", "boom", "custom", "ok", "no"), plainCaps)

	requireTrue(t, target,
		`when.getTime() === 1000`,
		`boom instanceof TypeError && boom.message === "bad" && boom.code === 7`,
		`custom instanceof Error && custom.message === "odd"`,
	)
	settled, rejected, v := target.GlobalValue("ok").Object().PromiseState()
	assert.True(t, settled)
	assert.False(t, rejected)
	assert.Equal(t, float64(5), v.Number())

	settled, rejected, v = target.GlobalValue("no").Object().PromiseState()
	assert.True(t, settled)
	assert.True(t, rejected)
	assert.Equal(t, "nope", v.Str())
}

func TestRoundTripClasses(t *testing.T) {
	r := newScriptRealm(t, `function Animal(name){ this.name = name }
Animal.prototype.speak = function(){ return this.name + " speaks" };
Animal.kingdom = "animalia";
function Dog(name){ Animal.call(this, name) }
Object.setPrototypeOf(Dog.prototype, Animal.prototype);
Object.setPrototypeOf(Dog, Animal);
Dog.prototype.bark = function(){ return "woof" };
var rex = new Dog("rex");
var fido = new Dog("fido");`)
	target, _ := replay(t, r, bindGlobals(r, "rex", "fido"), plainCaps)

	requireTrue(t, target,
		`rex.speak() === "rex speaks"`,
		`rex.bark() === "woof"`,
		`Object.getPrototypeOf(rex) === Object.getPrototypeOf(fido)`,
		`rex.constructor === fido.constructor`,
		`Object.getPrototypeOf(rex.constructor).kingdom === "animalia"`,
		`new rex.constructor("max").speak() === "max speaks"`,
	)
}

func TestRoundTripPublishesConstructors(t *testing.T) {
	r := newScriptRealm(t, `function Animal(name){ this.name = name }
Animal.prototype.speak = function(){ return this.name + " speaks" };
function Dog(name){ Animal.call(this, name) }
Object.setPrototypeOf(Dog.prototype, Animal.prototype);
var rex = new Dog("rex");
var make = function(n){ return new Dog(n) };`)
	target, ctx := replay(t, r, bindGlobals(r, "rex", "make"), plainCaps)

	assert.Contains(t, ctx.PatchData().Code, "self.Dog = __iso[")
	assert.Contains(t, ctx.PatchData().Code, "self.Animal = __iso[")
	requireTrue(t, target,
		`typeof Dog === "function" && typeof Animal === "function"`,
		`Object.getPrototypeOf(rex) === Dog.prototype`,
		`make("max").speak() === "max speaks"`,
		`make("max") instanceof Animal`,
	)

	deps := append(bindGlobals(r, "rex"), Binding{Name: "Animal", Value: NewString("taken")})
	target, ctx = replay(t, r, deps, plainCaps)
	assert.NotContains(t, ctx.PatchData().Code, "self.Animal =")
	requireTrue(t, target, `Animal === "taken"`, `typeof Dog === "function"`)
}

func TestRoundTripSharedClassInstance(t *testing.T) {
	r := newScriptRealm(t, `function Point(x){ this.x = x }
Point.prototype.double = function(){ return this.x * 2 };
var origin = new Point(0);
var registry = {first: origin, all: [origin, new Point(3)]};`)
	target, _ := replay(t, r, bindGlobals(r, "Point", "registry", "origin"), plainCaps)

	requireTrue(t, target,
		`origin instanceof Point`,
		`registry.first === origin`,
		`registry.all[0] === origin`,
		`registry.all[1] instanceof Point && registry.all[1].double() === 6`,
		`Point.prototype.constructor === Point`,
	)
}

func TestRoundTripClosures(t *testing.T) {
	r := NewRealm()
	captures := r.NewObject()
	require.NoError(t, captures.Put("n", NewInt(0)))
	inc, err := r.NewClosure("iso_test.inc", "inc", captures)
	require.NoError(t, err)
	peek, err := r.NewClosure("iso_test.peek", "peek", captures)
	require.NoError(t, err)

	selfCaps := r.NewObject()
	me, err := r.NewClosure("iso_test.self", "me", selfCaps)
	require.NoError(t, err)
	require.NoError(t, selfCaps.Put("self", ObjectValue(me)))

	deps := []Binding{
		{Name: "inc", Value: ObjectValue(inc)},
		{Name: "peek", Value: ObjectValue(peek)},
		{Name: "me", Value: ObjectValue(me)},
	}
	target, ctx := replay(t, r, deps, plainCaps)

	evalValue(t, target, `inc(); inc();`)
	requireTrue(t, target, `peek() === 2`, `me() === me`)
	assert.Contains(t, ctx.Program, `__iso.closure("iso_test.inc", "inc"`)
	assert.Contains(t, ctx.PatchData().Code, `"self"`)
}

func TestRoundTripClosureCapturingItsOwner(t *testing.T) {
	r := NewRealm()
	owner := r.NewObject()
	require.NoError(t, owner.Put("n", NewInt(1)))
	inc, err := r.NewClosure("iso_test.inc", "inc", owner)
	require.NoError(t, err)
	require.NoError(t, owner.Put("fn", ObjectValue(inc)))

	target, ctx := replay(t, r, []Binding{{Name: "o", Value: ObjectValue(owner)}}, plainCaps)

	assert.Contains(t, ctx.PatchData().Code, "__iso.capture(")
	evalValue(t, target, `var before = o.fn; o.fn();`)
	requireTrue(t, target, `o.n === 2`, `o.fn === before`, `o.fn() === 3`)
}

func TestRoundTripNatives(t *testing.T) {
	r := newScriptRealm(t, `var mx = Math.max;`)
	target, ctx := replay(t, r, bindGlobals(r, "mx"), plainCaps)

	assert.Equal(t, "self.mx = Math.max;", ctx.Program)
	requireTrue(t, target, `mx === Math.max`, `mx(1, 3) === 3`)
}

func TestRoundTripNestedBindingNames(t *testing.T) {
	r := NewRealm()
	deps := []Binding{
		{Name: "ns.util.answer", Value: NewInt(42)},
		{Name: "ns.util.label", Value: NewString("x")},
		{Name: `cfg["max size"]`, Value: NewInt(10)},
	}
	target, _ := replay(t, r, deps, plainCaps)
	requireTrue(t, target,
		`ns.util.answer === 42`,
		`ns.util.label === "x"`,
		`cfg["max size"] === 10`,
	)
}

func TestRoundTripBuffers(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer([]byte{1, 2, 3, 4})
	view, err := r.NewTypedArray("Uint8Array", buf, 1, 2)
	require.NoError(t, err)
	holder := r.NewObject()
	require.NoError(t, holder.Put("buf", ObjectValue(buf)))
	require.NoError(t, holder.Put("view", ObjectValue(view)))

	target, ctx := replay(t, r, []Binding{{Name: "holder", Value: ObjectValue(holder)}}, plainCaps)
	require.Len(t, ctx.Transfer, 1)
	assert.Same(t, buf, ctx.Transfer[0])
	assert.True(t, buf.Detached())
	assert.NotContains(t, ctx.Program, "1, 2, 3")

	got := target.GlobalValue("holder").Object()
	gotBuf, err := got.Get(StringKey("buf"))
	require.NoError(t, err)
	gotView, err := got.Get(StringKey("view"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, gotBuf.Object().Bytes())
	assert.Same(t, gotBuf.Object(), gotView.Object().ViewBuffer())
	assert.Equal(t, []byte{2, 3}, gotView.Object().Bytes())
}

func TestRoundTripBuffersCopied(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer([]byte{9, 8})
	cfg := plainCaps
	cfg.CopyBuffers = true

	target, ctx := replay(t, r, []Binding{{Name: "buf", Value: ObjectValue(buf)}}, cfg)
	assert.Empty(t, ctx.Transfer)
	assert.False(t, buf.Detached())
	assert.Equal(t, []byte{9, 8}, target.GlobalValue("buf").Object().Bytes())
}

func TestRoundTripHandles(t *testing.T) {
	r := NewRealm()
	port := r.NewHandle(HandleMessagePort, "port-1")

	target, ctx := replay(t, r, []Binding{{Name: "port", Value: ObjectValue(port)}}, plainCaps)
	require.Len(t, ctx.Transfer, 1)
	got := target.GlobalValue("port").Object()
	assert.Equal(t, HandleMessagePort, got.HandleKind())
	assert.Equal(t, "port-1", got.Resource())
	assert.True(t, port.Detached())

	_, err := CreateContext([]Binding{{Name: "canvas", Value: ObjectValue(r.NewHandle(HandleOffscreenCanvas, nil))}}, plainCaps)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestCreateContextEncodingErrors(t *testing.T) {
	r := NewRealm()
	local := r.NewGoFunction("local", func(*Call) (Value, error) { return Undefined(), nil })
	pending, _, _ := r.NewPromise()
	nested := r.NewObject()
	require.NoError(t, nested.Put("fn", ObjectValue(local)))

	cases := []struct {
		name string
		dep  Binding
		path string
	}{
		{"go function", Binding{Name: "local", Value: ObjectValue(local)}, "local"},
		{"pending promise", Binding{Name: "later", Value: ObjectValue(pending)}, "later"},
		{"nested go function", Binding{Name: "holder", Value: ObjectValue(nested)}, "holder.fn"},
		{"bad name", Binding{Name: "a..b", Value: NewInt(1)}, "a..b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateContext([]Binding{tc.dep}, plainCaps)
			var encErr *EncodingError
			require.True(t, errors.As(err, &encErr), "got %v", err)
			assert.Equal(t, tc.path, encErr.Path)
		})
	}
}

func TestDependencies(t *testing.T) {
	r := newScriptRealm(t, `var count = 5;
var util = {x: 1};
var producer = function() { return [count, util.x] };`)

	assert.Equal(t, []string{"count", "util.x"}, DependencyNames(r.GlobalValue("producer").Object().Func().Source()))

	deps, err := Dependencies(r, r.GlobalValue("producer"))
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "count", deps[0].Name)
	assert.Equal(t, float64(5), deps[0].Value.Number())
	assert.Equal(t, "util.x", deps[1].Name)
	assert.Equal(t, float64(1), deps[1].Value.Number())

	_, err = Dependencies(r, NewInt(1))
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
}

func TestNumberLiteralNegativeZero(t *testing.T) {
	assert.Equal(t, "-0", numberLiteral(math.Copysign(0, -1)))
	assert.Equal(t, "0", numberLiteral(0))
}

func TestCreateContextRejectsNULInFunctionSource(t *testing.T) {
	r := newScriptRealm(t, "var f = function(){ return \"a\x00b\" };")
	_, err := CreateContext(bindGlobals(r, "f"), plainCaps)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "f", encErr.Path)
	assert.Contains(t, encErr.Reason, "NUL")
}
