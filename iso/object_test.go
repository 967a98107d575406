package iso

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnKeysOrder(t *testing.T) {
	r := NewRealm()
	o := r.NewObject()
	sym := r.NewSymbol("s")
	require.NoError(t, o.Put("b", NewInt(1)))
	require.NoError(t, o.Set(SymbolKey(sym), NewInt(2)))
	require.NoError(t, o.Put("10", NewInt(3)))
	require.NoError(t, o.Put("a", NewInt(4)))
	require.NoError(t, o.Put("2", NewInt(5)))

	var names []string
	for _, k := range o.OwnKeys() {
		names = append(names, k.String())
	}
	assert.Equal(t, []string{"2", "10", "b", "a", "[" + sym.String() + "]"}, names)
}

func TestIntegrityLevels(t *testing.T) {
	r := NewRealm()

	o := r.NewObject()
	require.NoError(t, o.Put("a", NewInt(1)))
	o.PreventExtensions()
	assert.False(t, o.IsExtensible())
	assert.False(t, o.IsSealed())
	assert.Error(t, o.Put("b", NewInt(2)))
	assert.NoError(t, o.Put("a", NewInt(3)))

	sealed := r.NewObject()
	require.NoError(t, sealed.Put("a", NewInt(1)))
	require.NoError(t, sealed.Seal())
	assert.True(t, sealed.IsSealed())
	assert.False(t, sealed.IsFrozen())
	assert.False(t, sealed.Delete(StringKey("a")))

	frozen := r.NewArray(NewInt(1))
	require.NoError(t, frozen.Freeze())
	assert.True(t, frozen.IsFrozen())
	assert.Error(t, frozen.Set(StringKey("0"), NewInt(2)))

	empty := r.NewObject()
	empty.PreventExtensions()
	assert.True(t, empty.IsFrozen())
}

func TestDefineOwnPropertyRejectsNonConfigurableChange(t *testing.T) {
	r := NewRealm()
	o := r.NewObject()
	require.NoError(t, o.DefineOwnProperty(StringKey("k"), DataProperty(NewInt(1), false, false, false)))

	err := o.DefineOwnProperty(StringKey("k"), DataProperty(NewInt(2), true, true, true))
	require.Error(t, err)

	d, ok := o.GetOwnProperty(StringKey("k"))
	require.True(t, ok)
	assert.Equal(t, float64(1), d.Value.Number())
	assert.False(t, d.Enumerable)
}

func TestAccessorProperty(t *testing.T) {
	r := NewRealm()
	o := r.NewObject()
	get := r.NewGoFunction("get", func(*Call) (Value, error) { return NewString("computed"), nil })
	require.NoError(t, o.DefineOwnProperty(StringKey("v"), AccessorProperty(get, nil, true, true)))

	v, err := o.Get(StringKey("v"))
	require.NoError(t, err)
	assert.Equal(t, "computed", v.Str())
	assert.Error(t, o.Put("v", NewInt(1)))
}

func TestSymbolsInterned(t *testing.T) {
	r := NewRealm()
	a := r.SymbolFor("k")
	b := r.SymbolFor("k")
	assert.Same(t, a, b)
	key, ok := a.Key()
	assert.True(t, ok)
	assert.Equal(t, "k", key)

	fresh := r.NewSymbol("k")
	assert.NotSame(t, a, fresh)
	_, ok = fresh.Key()
	assert.False(t, ok)
}
