package iso

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneReviveGraph(t *testing.T) {
	src := newScriptRealm(t, `var shared = {n: 1};
var root = {a: shared, b: [shared, "x", 2n], when: new Date(5), err: new RangeError("r")};
root.self = root;
var m = new Map();
m.set("k", shared);
root.m = m;
var s = new Set();
s.add(root);
root.s = s;`)

	rec, err := Clone(src.GlobalValue("root"), nil)
	require.NoError(t, err)

	dst := NewRealm()
	v, err := dst.Revive(rec)
	require.NoError(t, err)
	require.NoError(t, dst.SetGlobal("root", v))
	requireTrue(t, dst,
		`root.self === root`,
		`root.a === root.b[0]`,
		`root.b[2] === 2n`,
		`root.when.getTime() === 5`,
		`root.err instanceof RangeError && root.err.message === "r"`,
		`root.m.get("k") === root.a`,
		`root.s.has(root)`,
	)
}

func TestCloneRejectsUncloneable(t *testing.T) {
	r := newScriptRealm(t, `var withFn = {f: function() {}};
var withSym = {s: Symbol("x")};
var withPromise = [Promise.resolve(1)];`)

	for _, name := range []string{"withFn", "withSym", "withPromise"} {
		_, err := Clone(r.GlobalValue(name), nil)
		errName, _, _ := errorParts(err)
		assert.Equal(t, "DataCloneError", errName, name)
	}

	port := r.NewHandle(HandleMessagePort, nil)
	_, err := Clone(ObjectValue(port), nil)
	require.Error(t, err, "handles only move")
}

func TestCloneTransfersDetachAfterSuccess(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer([]byte{1, 2, 3})
	holder := r.NewArray(ObjectValue(buf), ObjectValue(r.NewGoFunction("f", nil)))

	_, err := Clone(ObjectValue(holder), []*Object{buf})
	require.Error(t, err)
	assert.False(t, buf.Detached(), "a failed clone leaves transfers in place")

	copied := r.NewArrayBuffer([]byte{4})
	rec, err := Clone(ObjectValue(r.NewArray(ObjectValue(buf), ObjectValue(copied))), []*Object{buf})
	require.NoError(t, err)
	assert.True(t, buf.Detached())
	assert.False(t, copied.Detached())

	v, err := NewRealm().Revive(rec)
	require.NoError(t, err)
	items := v.Object().Items()
	assert.Equal(t, []byte{1, 2, 3}, items[0].Object().Bytes())
	assert.Equal(t, []byte{4}, items[1].Object().Bytes())

	_, err = Clone(ObjectValue(buf), []*Object{buf})
	require.Error(t, err)
}

func TestWireFramesRoundTrip(t *testing.T) {
	src := newScriptRealm(t, `var payload = {name: "n", list: [1, true, null, undefined], big: -7n, when: new Date(9)};
payload.loop = payload;`)
	view, err := src.NewTypedArray("Uint16Array", src.NewArrayBuffer([]byte{1, 0, 2, 0}), 2, 1)
	require.NoError(t, err)
	require.NoError(t, src.GlobalValue("payload").Object().Put("view", ObjectValue(view)))

	rec, err := Clone(src.GlobalValue("payload"), nil)
	require.NoError(t, err)

	var wire bytes.Buffer
	fw := newFrameWriter(&wire)
	require.NoError(t, fw.writeProgram("self.x = 1;"))
	require.NoError(t, fw.writeRecord(rec))

	fr := newFrameReader(&wire)
	first, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, uint8(frameProgram), first.kind)
	assert.Equal(t, "self.x = 1;", first.program)

	second, err := fr.next()
	require.NoError(t, err)
	require.Equal(t, uint8(frameMessage), second.kind)
	assert.Equal(t, rec.Root, second.record.Root)
	assert.Len(t, second.record.Nodes, len(rec.Nodes))

	dst := NewRealm()
	v, err := dst.Revive(second.record)
	require.NoError(t, err)
	require.NoError(t, dst.SetGlobal("payload", v))
	requireTrue(t, dst,
		`payload.loop === payload`,
		`payload.name === "n"`,
		`payload.list[1] === true && payload.list[2] === null && payload.list[3] === undefined`,
		`payload.big === -7n`,
		`payload.when.getTime() === 9`,
		`payload.view[0] === 2`,
	)

	_, err = fr.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWireRejectsHandles(t *testing.T) {
	r := NewRealm()
	port := r.NewHandle(HandleMessagePort, "p")
	rec, err := Clone(ObjectValue(port), []*Object{port})
	require.NoError(t, err)

	var wire bytes.Buffer
	assert.Error(t, newFrameWriter(&wire).writeRecord(rec))
}
