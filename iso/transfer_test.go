package iso

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectDeduplicates(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer(make([]byte, 8))
	view, err := r.NewTypedArray("Uint8Array", buf, 0, -1)
	require.NoError(t, err)
	other := r.NewArrayBuffer([]byte{1})
	port := r.NewHandle(HandleMessagePort, nil)

	m := r.NewMap()
	m.MapSet(ObjectValue(other), ObjectValue(view))
	record := r.NewObject()
	require.NoError(t, record.Put("a", ObjectValue(buf)))
	require.NoError(t, record.Put("b", ObjectValue(view)))
	require.NoError(t, record.Put("m", ObjectValue(m)))
	require.NoError(t, record.Put("port", ObjectValue(port)))
	require.NoError(t, record.Put("self", ObjectValue(record)))

	caps := Capabilities{Buffers: true, Handles: []string{HandleMessagePort}}
	got := Collect(caps, ObjectValue(record), ObjectValue(buf))
	assert.Equal(t, []*Object{buf, other, port}, got)

	assert.Empty(t, Collect(Capabilities{}, ObjectValue(record)))
	assert.Equal(t, []*Object{port}, Collect(Capabilities{Handles: []string{HandleMessagePort}}, ObjectValue(record)))
}

func TestCollectSkipsDetached(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer([]byte{1, 2})
	_, err := Clone(ObjectValue(buf), []*Object{buf})
	require.NoError(t, err)
	assert.Empty(t, Collect(Capabilities{Buffers: true}, ObjectValue(buf)))
}

func TestTransferPolicies(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer([]byte{1})
	port := r.NewHandle(HandleMessagePort, nil)
	args := []Value{ObjectValue(buf), ObjectValue(port)}
	caps := Capabilities{Buffers: true, Handles: []string{HandleMessagePort}}

	assert.Equal(t, []*Object{buf, port}, AutoTransfer.transfers(caps, args))
	assert.Equal(t, []*Object{port}, CopyOnly.transfers(caps, args))

	extra := r.NewArrayBuffer(nil)
	list := TransferList(ObjectValue(extra), ObjectValue(extra), NewInt(1))
	assert.Equal(t, []*Object{extra}, list.transfers(caps, args))
}
