package iso

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspect(t *testing.T) {
	r := newScriptRealm(t, `function Point(x) { this.x = x }
var cases = {
  str: "a\"b",
  big: 3n,
  list: [1, "two", null],
  point: new Point(1),
  fn: function named() {},
  map: new Map(),
  empty: {},
  when: new Date(0)
};
cases.map.set("k", [true]);
var loop = {};
loop.self = loop;`)

	get := func(name string) Value {
		v, _ := r.GlobalValue("cases").Object().Get(StringKey(name))
		return v
	}
	assert.Equal(t, `"a\"b"`, Inspect(get("str")))
	assert.Equal(t, "3n", Inspect(get("big")))
	assert.Equal(t, `[ 1, "two", null ]`, Inspect(get("list")))
	assert.Equal(t, "Point { x: 1 }", Inspect(get("point")))
	assert.Equal(t, "[Function: named]", Inspect(get("fn")))
	assert.Equal(t, `Map(1) { "k" => [ true ] }`, Inspect(get("map")))
	assert.Equal(t, "{}", Inspect(get("empty")))
	assert.Equal(t, "1970-01-01T00:00:00.000Z", Inspect(get("when")))
	assert.Equal(t, "{ self: [Circular] }", Inspect(r.GlobalValue("loop")))
	assert.Equal(t, "undefined", Inspect(Undefined()))
}
