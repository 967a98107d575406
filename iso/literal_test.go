package iso

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePrimitive(t *testing.T) {
	huge, _ := new(big.Int).SetString("-123456789012345678901234567890", 10)
	cases := []struct {
		in   Value
		want string
	}{
		{Undefined(), "void 0"},
		{Null(), "null"},
		{NewBool(true), "true"},
		{NewBool(false), "false"},
		{NewNumber(1.5), "1.5"},
		{NewNumber(math.NaN()), "NaN"},
		{NewNumber(math.Inf(1)), "Infinity"},
		{NewNumber(math.Inf(-1)), "-Infinity"},
		{NewNumber(math.Copysign(0, -1)), "-0"},
		{NewNumber(1e21), "1e+21"},
		{NewString("plain"), `"plain"`},
		{NewBigInt(huge), "-123456789012345678901234567890n"},
	}
	for _, tc := range cases {
		got, ok := encodePrimitive(tc.in)
		require.True(t, ok)
		assert.Equal(t, tc.want, got)
	}

	_, ok := encodePrimitive(ObjectValue(NewRealm().NewObject()))
	assert.False(t, ok)
}

func TestQuoteStringEscapes(t *testing.T) {
	cases := map[string]string{
		`say "hi"`:        `"say \"hi\""`,
		`back\slash`:      `"back\\slash"`,
		"tab\tnl\ncr\r":   `"tab\tnl\ncr\r"`,
		"\b\f\v":          `"\b\f\v"`,
		"\x00\x1f\x7f":    `"\x00\x1f\x7f"`,
		"sep\u2028\u2029": `"sep\u2028\u2029"`,
		"bad\xffbyte":     `"bad\ufffdbyte"`,
		"héllo":           `"héllo"`,
	}
	for in, want := range cases {
		assert.Equal(t, want, quoteString(in), "%q", in)
	}
}

func TestQuotedStringsEvaluateBack(t *testing.T) {
	r := NewRealm()
	for _, s := range []string{"a\"b", "line\nbreak", "\x01ctl", "sep\u2028", "tab\there"} {
		v, err := r.Eval(quoteString(s))
		require.NoError(t, err)
		assert.Equal(t, s, v.Str())
	}
}

func TestPropertyNames(t *testing.T) {
	assert.Equal(t, "plain", propertyName("plain"))
	assert.Equal(t, `"two words"`, propertyName("two words"))
	assert.Equal(t, `"class"`, propertyName("class"))
	assert.Equal(t, "a.b", memberAccess("a", "b"))
	assert.Equal(t, `a["x-y"]`, memberAccess("a", "x-y"))
	assert.Equal(t, `a["default"]`, memberAccess("a", "default"))
}

func TestRegistryFinalize(t *testing.T) {
	r := NewRealm()
	reg := NewRegistry()
	shared := ObjectValue(r.NewObject())
	lonely := ObjectValue(r.NewObject())

	first := reg.Bind(shared, "{}")
	second := reg.Bind(lonely, "[]")
	ref, ok := reg.Slot(shared)
	require.True(t, ok)
	assert.Equal(t, "__iso[0]", ref)
	assert.Equal(t, 2, reg.Len())

	text := reg.Finalize("a = " + first + "; b = " + second + "; c = " + ref)
	assert.Equal(t, "a = (__iso[0] = {}); b = []; c = __iso[0]", text)

	_, ok = reg.Slot(ObjectValue(r.NewObject()))
	assert.False(t, ok)
	assert.Equal(t, "void 0", reg.Bind(Undefined(), "void 0"))
}
