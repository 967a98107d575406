package iso

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindBigInt
	KindSymbol
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBigInt:
		return "bigint"
	case KindSymbol:
		return "symbol"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a runtime value of a realm. The zero Value is undefined.
type Value struct {
	kind ValueKind
	data any
}

func Undefined() Value            { return Value{kind: KindUndefined} }
func Null() Value                 { return Value{kind: KindNull} }
func NewBool(b bool) Value        { return Value{kind: KindBool, data: b} }
func NewNumber(f float64) Value   { return Value{kind: KindNumber, data: f} }
func NewInt(i int64) Value        { return Value{kind: KindNumber, data: float64(i)} }
func NewString(s string) Value    { return Value{kind: KindString, data: s} }
func SymbolValue(s *Symbol) Value { return Value{kind: KindSymbol, data: s} }
func NewBigInt(b *big.Int) Value  { return Value{kind: KindBigInt, data: new(big.Int).Set(b)} }

// ObjectValue wraps o; a nil object becomes null.
func ObjectValue(o *Object) Value {
	if o == nil {
		return Null()
	}
	return Value{kind: KindObject, data: o}
}

func (v Value) Kind() ValueKind   { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsNullish() bool   { return v.kind == KindUndefined || v.kind == KindNull }
func (v Value) IsObject() bool    { return v.kind == KindObject }

func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.data.(bool)
	}
	return false
}

func (v Value) Number() float64 {
	if v.kind == KindNumber {
		return v.data.(float64)
	}
	return math.NaN()
}

// Str returns the raw text of a string value and "" for every other kind.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.data.(string)
	}
	return ""
}

func (v Value) BigInt() *big.Int {
	if v.kind == KindBigInt {
		return v.data.(*big.Int)
	}
	return nil
}

func (v Value) Symbol() *Symbol {
	if v.kind == KindSymbol {
		return v.data.(*Symbol)
	}
	return nil
}

func (v Value) Object() *Object {
	if v.kind == KindObject {
		return v.data.(*Object)
	}
	return nil
}

// IsCallable reports whether v is a function object.
func (v Value) IsCallable() bool {
	obj := v.Object()
	return obj != nil && obj.fn != nil
}

func (v Value) Truthy() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBool:
		return v.Bool()
	case KindNumber:
		f := v.Number()
		return f != 0 && !math.IsNaN(f)
	case KindString:
		return v.Str() != ""
	case KindBigInt:
		return v.BigInt().Sign() != 0
	default:
		return true
	}
}

func (v Value) typeOf() string {
	if v.IsCallable() {
		return "function"
	}
	return v.kind.String()
}

// String converts v the way the language's String() does. Objects render as a
// short tag; use Inspect for a structural rendering.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Number())
	case KindString:
		return v.Str()
	case KindBigInt:
		return v.BigInt().String()
	case KindSymbol:
		return v.Symbol().String()
	default:
		obj := v.Object()
		switch obj.class {
		case ClassArray:
			parts := make([]string, obj.arrayLen)
			for i := range parts {
				item, _ := obj.getOwnValue(StringKey(strconv.Itoa(i)))
				if !item.IsNullish() {
					parts[i] = item.String()
				}
			}
			return strings.Join(parts, ",")
		case ClassFunction:
			if obj.fn.source != "" {
				return obj.fn.source
			}
			return "function " + obj.fn.name + "() { [native code] }"
		case ClassError:
			name, _ := obj.lookupValue(StringKey("name"))
			msg, _ := obj.lookupValue(StringKey("message"))
			if msg.String() == "" {
				return name.String()
			}
			return name.String() + ": " + msg.String()
		default:
			return "[object " + obj.class.String() + "]"
		}
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Go pads exponents to two digits; the language does not.
	if i := strings.IndexAny(s, "e"); i >= 0 && len(s) > i+2 && s[i+2] == '0' {
		s = s[:i+2] + s[i+3:]
	}
	return s
}

// toNumber is ToNumber for primitives; objects convert to NaN.
func toNumber(v Value) float64 {
	switch v.kind {
	case KindUndefined:
		return math.NaN()
	case KindNull:
		return 0
	case KindBool:
		if v.Bool() {
			return 1
		}
		return 0
	case KindNumber:
		return v.Number()
	case KindString:
		s := strings.TrimSpace(v.Str())
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// StrictEquals implements ===.
func StrictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.Bool() == b.Bool()
	case KindNumber:
		return a.Number() == b.Number()
	case KindString:
		return a.Str() == b.Str()
	case KindBigInt:
		return a.BigInt().Cmp(b.BigInt()) == 0
	case KindSymbol:
		return a.Symbol() == b.Symbol()
	default:
		return a.Object() == b.Object()
	}
}

// SameValue is StrictEquals except NaN equals NaN and +0 differs from -0.
func SameValue(a, b Value) bool {
	if a.kind == KindNumber && b.kind == KindNumber {
		x, y := a.Number(), b.Number()
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		if x == 0 && y == 0 {
			return math.Signbit(x) == math.Signbit(y)
		}
		return x == y
	}
	return StrictEquals(a, b)
}

func looseEquals(a, b Value) bool {
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.kind == b.kind {
		return StrictEquals(a, b)
	}
	if a.kind == KindObject || b.kind == KindObject || a.IsNullish() || b.IsNullish() {
		return false
	}
	if a.kind == KindSymbol || b.kind == KindSymbol {
		return false
	}
	return toNumber(a) == toNumber(b)
}
