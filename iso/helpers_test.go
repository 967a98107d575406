package iso

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newScriptRealm evaluates source in a fresh realm.
func newScriptRealm(t *testing.T, source string) *Realm {
	t.Helper()
	r := NewRealm()
	_, err := r.Eval(source)
	require.NoError(t, err)
	return r
}

// bindGlobals pairs global names of r with their values.
func bindGlobals(r *Realm, names ...string) []Binding {
	deps := make([]Binding, len(names))
	for i, name := range names {
		deps[i] = Binding{Name: name, Value: r.GlobalValue(name)}
	}
	return deps
}

// replay builds a context from deps and runs it in a new realm the way an
// isolate does: program first, then the patch payload as a structured clone.
func replay(t *testing.T, src *Realm, deps []Binding, cfg ContextConfig) (*Realm, *Context) {
	t.Helper()
	ctx, err := CreateContext(deps, cfg)
	require.NoError(t, err)

	target := NewRealm()
	_, err = target.Eval(ctx.Program)
	require.NoError(t, err, "program:\n%s", ctx.Program)

	data := ctx.PatchData()
	rec, err := Clone(ObjectValue(src.NewArray(data.Values...)), ctx.Transfer)
	require.NoError(t, err)
	values, err := target.Revive(rec)
	require.NoError(t, err)
	err = target.applyPatches(PatchData{Code: data.Code, Values: values.Object().Items()})
	require.NoError(t, err, "patches:\n%s", data.Code)
	return target, ctx
}

func evalValue(t *testing.T, r *Realm, expr string) Value {
	t.Helper()
	v, err := r.Eval(expr)
	require.NoError(t, err, expr)
	return v
}

func requireTrue(t *testing.T, r *Realm, exprs ...string) {
	t.Helper()
	for _, expr := range exprs {
		v := evalValue(t, r, expr)
		require.Equal(t, KindBool, v.Kind(), expr)
		require.True(t, v.Bool(), expr)
	}
}
