package iso

import (
	"math"
	"strconv"
	"strings"
)

func objectArg(c *Call, i int, fn string) (*Object, error) {
	obj := c.Arg(i).Object()
	if obj == nil {
		return nil, typeErrorf("%s called on non-object", fn)
	}
	return obj, nil
}

// toDescriptor reads a property descriptor record, reporting which fields it
// actually carries.
func toDescriptor(v Value) (Descriptor, descFields, error) {
	obj := v.Object()
	if obj == nil {
		return Descriptor{}, 0, typeErrorf("property description must be an object: %s", v.String())
	}
	var d Descriptor
	var fields descFields
	read := func(name string, field descFields) (Value, bool, error) {
		key := StringKey(name)
		for cur := obj; cur != nil; cur = cur.proto {
			if cur.HasOwnProperty(key) {
				val, err := obj.Get(key)
				if err != nil {
					return Undefined(), false, err
				}
				fields |= field
				return val, true, nil
			}
		}
		return Undefined(), false, nil
	}
	if val, ok, err := read("enumerable", fieldEnumerable); err != nil {
		return d, 0, err
	} else if ok {
		d.Enumerable = val.Truthy()
	}
	if val, ok, err := read("configurable", fieldConfigurable); err != nil {
		return d, 0, err
	} else if ok {
		d.Configurable = val.Truthy()
	}
	if val, ok, err := read("value", fieldValue); err != nil {
		return d, 0, err
	} else if ok {
		d.Value = val
	}
	if val, ok, err := read("writable", fieldWritable); err != nil {
		return d, 0, err
	} else if ok {
		d.Writable = val.Truthy()
	}
	for _, name := range []string{"get", "set"} {
		field := fieldGet
		if name == "set" {
			field = fieldSet
		}
		val, ok, err := read(name, field)
		if err != nil {
			return d, 0, err
		}
		if !ok || val.IsUndefined() {
			continue
		}
		fn := val.Object()
		if !fn.isCallable() {
			return d, 0, typeErrorf("%s must be a function: %s", name, val.String())
		}
		if name == "get" {
			d.Get = fn
		} else {
			d.Set = fn
		}
	}
	if fields&(fieldGet|fieldSet) != 0 {
		if fields&(fieldValue|fieldWritable) != 0 {
			return d, 0, typeErrorf("invalid property descriptor: cannot both specify accessors and a value or writable attribute")
		}
		d.Accessor = true
	}
	return d, fields, nil
}

func (r *Realm) fromDescriptor(d Descriptor) Value {
	obj := r.NewObject()
	if d.Accessor {
		_ = obj.Put("get", optionalObject(d.Get))
		_ = obj.Put("set", optionalObject(d.Set))
	} else {
		_ = obj.Put("value", d.Value)
		_ = obj.Put("writable", NewBool(d.Writable))
	}
	_ = obj.Put("enumerable", NewBool(d.Enumerable))
	_ = obj.Put("configurable", NewBool(d.Configurable))
	return ObjectValue(obj)
}

// optionalObject is ObjectValue with nil mapped to undefined.
func optionalObject(o *Object) Value {
	if o == nil {
		return Undefined()
	}
	return ObjectValue(o)
}

func definePropertiesFrom(target *Object, descs *Object) error {
	type pending struct {
		key    PropertyKey
		desc   Descriptor
		fields descFields
	}
	var list []pending
	for _, key := range descs.OwnKeys() {
		own, _ := descs.GetOwnProperty(key)
		if !own.Enumerable {
			continue
		}
		v, err := descs.Get(key)
		if err != nil {
			return err
		}
		d, fields, err := toDescriptor(v)
		if err != nil {
			return err
		}
		list = append(list, pending{key: key, desc: d, fields: fields})
	}
	for _, p := range list {
		if err := target.defineProperty(p.key, p.desc, p.fields); err != nil {
			return err
		}
	}
	return nil
}

func (r *Realm) installObject() {
	objectCtor := r.defineConstructor("Object", 1, r.objectProto, func(c *Call) (Value, error) {
		if v := c.Arg(0); v.IsObject() {
			return v, nil
		}
		return ObjectValue(c.Realm.NewObject()), nil
	})
	const path = "Object"

	r.defineMethod(objectCtor, path, "defineProperty", 3, func(c *Call) (Value, error) {
		obj, err := objectArg(c, 0, "Object.defineProperty")
		if err != nil {
			return Undefined(), err
		}
		d, fields, err := toDescriptor(c.Arg(2))
		if err != nil {
			return Undefined(), err
		}
		if err := obj.defineProperty(toPropertyKey(c.Arg(1)), d, fields); err != nil {
			return Undefined(), err
		}
		return c.Arg(0), nil
	})
	r.defineMethod(objectCtor, path, "defineProperties", 2, func(c *Call) (Value, error) {
		obj, err := objectArg(c, 0, "Object.defineProperties")
		if err != nil {
			return Undefined(), err
		}
		descs := c.Arg(1).Object()
		if descs == nil {
			return Undefined(), typeErrorf("Object.defineProperties needs a descriptor map")
		}
		return c.Arg(0), definePropertiesFrom(obj, descs)
	})
	r.defineMethod(objectCtor, path, "create", 2, func(c *Call) (Value, error) {
		proto := c.Arg(0)
		if !proto.IsObject() && !proto.IsNull() {
			return Undefined(), typeErrorf("object prototype may only be an object or null: %s", proto.String())
		}
		obj := newObject(ClassObject, proto.Object())
		if descs := c.Arg(1).Object(); descs != nil {
			if err := definePropertiesFrom(obj, descs); err != nil {
				return Undefined(), err
			}
		}
		return ObjectValue(obj), nil
	})
	r.defineMethod(objectCtor, path, "getPrototypeOf", 1, func(c *Call) (Value, error) {
		obj, err := objectArg(c, 0, "Object.getPrototypeOf")
		if err != nil {
			return Undefined(), err
		}
		return ObjectValue(obj.proto), nil
	})
	r.defineMethod(objectCtor, path, "setPrototypeOf", 2, func(c *Call) (Value, error) {
		proto := c.Arg(1)
		if !proto.IsObject() && !proto.IsNull() {
			return Undefined(), typeErrorf("object prototype may only be an object or null: %s", proto.String())
		}
		obj := c.Arg(0).Object()
		if obj == nil {
			return c.Arg(0), nil
		}
		if !obj.SetProto(proto.Object()) {
			return Undefined(), typeErrorf("cannot set prototype of %s", c.Arg(0).String())
		}
		return c.Arg(0), nil
	})
	lock := func(name string, apply func(*Object) error) {
		r.defineMethod(objectCtor, path, name, 1, func(c *Call) (Value, error) {
			if obj := c.Arg(0).Object(); obj != nil {
				if err := apply(obj); err != nil {
					return Undefined(), err
				}
			}
			return c.Arg(0), nil
		})
	}
	lock("freeze", (*Object).Freeze)
	lock("seal", (*Object).Seal)
	lock("preventExtensions", func(o *Object) error { o.PreventExtensions(); return nil })
	test := func(name string, primitive bool, check func(*Object) bool) {
		r.defineMethod(objectCtor, path, name, 1, func(c *Call) (Value, error) {
			if obj := c.Arg(0).Object(); obj != nil {
				return NewBool(check(obj)), nil
			}
			return NewBool(primitive), nil
		})
	}
	test("isFrozen", true, (*Object).IsFrozen)
	test("isSealed", true, (*Object).IsSealed)
	test("isExtensible", false, (*Object).IsExtensible)

	listKeys := func(name string, include func(PropertyKey, Descriptor) bool) {
		r.defineMethod(objectCtor, path, name, 1, func(c *Call) (Value, error) {
			obj, err := objectArg(c, 0, "Object."+name)
			if err != nil {
				return Undefined(), err
			}
			var out []Value
			for _, key := range obj.OwnKeys() {
				d, _ := obj.GetOwnProperty(key)
				if include(key, d) {
					out = append(out, key.Value())
				}
			}
			return ObjectValue(c.Realm.NewArray(out...)), nil
		})
	}
	listKeys("keys", func(k PropertyKey, d Descriptor) bool { return !k.IsSymbol() && d.Enumerable })
	listKeys("getOwnPropertyNames", func(k PropertyKey, _ Descriptor) bool { return !k.IsSymbol() })
	listKeys("getOwnPropertySymbols", func(k PropertyKey, _ Descriptor) bool { return k.IsSymbol() })

	r.defineMethod(objectCtor, path, "getOwnPropertyDescriptor", 2, func(c *Call) (Value, error) {
		obj, err := objectArg(c, 0, "Object.getOwnPropertyDescriptor")
		if err != nil {
			return Undefined(), err
		}
		d, ok := obj.GetOwnProperty(toPropertyKey(c.Arg(1)))
		if !ok {
			return Undefined(), nil
		}
		return c.Realm.fromDescriptor(d), nil
	})

	r.defineMethod(r.objectProto, "Object.prototype", "hasOwnProperty", 1, func(c *Call) (Value, error) {
		obj := c.This.Object()
		if obj == nil {
			return NewBool(false), nil
		}
		return NewBool(obj.HasOwnProperty(toPropertyKey(c.Arg(0)))), nil
	})
	r.defineMethod(r.objectProto, "Object.prototype", "toString", 0, func(c *Call) (Value, error) {
		if c.This.IsObject() {
			return NewString("[object " + c.This.Object().class.String() + "]"), nil
		}
		return NewString("[object " + c.This.String() + "]"), nil
	})
}

func (r *Realm) installFunction() {
	r.defineMethod(r.functionProto, "Function.prototype", "call", 1, func(c *Call) (Value, error) {
		fn := c.This.Object()
		if !fn.isCallable() {
			return Undefined(), typeErrorf("Function.prototype.call called on %s", c.This.String())
		}
		var args []Value
		if len(c.Args) > 1 {
			args = c.Args[1:]
		}
		return callFunction(fn, c.Arg(0), args)
	})
}

func (r *Realm) installArray() {
	r.arrayProto = newObject(ClassObject, r.objectProto)
	arrayCtor := r.defineConstructor("Array", 1, r.arrayProto, func(c *Call) (Value, error) {
		if len(c.Args) == 1 && c.Args[0].Kind() == KindNumber {
			n := c.Args[0].Number()
			if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
				return Undefined(), rangeErrorf("invalid array length")
			}
			arr := newObject(ClassArray, c.protoFor(c.Realm.arrayProto))
			arr.arrayLen = int(n)
			return ObjectValue(arr), nil
		}
		arr := c.Realm.NewArray(c.Args...)
		arr.proto = c.protoFor(c.Realm.arrayProto)
		return ObjectValue(arr), nil
	})
	r.defineMethod(arrayCtor, "Array", "isArray", 1, func(c *Call) (Value, error) {
		obj := c.Arg(0).Object()
		return NewBool(obj != nil && obj.class == ClassArray), nil
	})
	r.defineMethod(r.arrayProto, "Array.prototype", "push", 1, func(c *Call) (Value, error) {
		arr := c.This.Object()
		if arr == nil {
			return Undefined(), typeErrorf("Array.prototype.push called on %s", c.This.String())
		}
		n := arr.arrayLen
		for _, item := range c.Args {
			if err := arr.Set(StringKey(strconv.Itoa(n)), item); err != nil {
				return Undefined(), err
			}
			n++
		}
		if arr.class != ClassArray {
			if err := arr.Set(StringKey("length"), NewInt(int64(n))); err != nil {
				return Undefined(), err
			}
		}
		return NewInt(int64(n)), nil
	})
	r.defineMethod(r.arrayProto, "Array.prototype", "join", 1, func(c *Call) (Value, error) {
		arr := c.This.Object()
		if arr == nil {
			return Undefined(), typeErrorf("Array.prototype.join called on %s", c.This.String())
		}
		sep := ","
		if v := c.Arg(0); !v.IsUndefined() {
			sep = v.String()
		}
		parts := make([]string, arr.arrayLen)
		for i := range parts {
			item, err := arr.Get(StringKey(strconv.Itoa(i)))
			if err != nil {
				return Undefined(), err
			}
			if !item.IsNullish() {
				parts[i] = item.String()
			}
		}
		return NewString(strings.Join(parts, sep)), nil
	})
}

func (r *Realm) installSymbol() {
	symbolProto := newObject(ClassObject, r.objectProto)
	symbolCtor := r.defineConstructor("Symbol", 0, symbolProto, func(c *Call) (Value, error) {
		if c.NewTarget != nil {
			return Undefined(), typeErrorf("Symbol is not a constructor")
		}
		if desc := c.Arg(0); !desc.IsUndefined() {
			return SymbolValue(c.Realm.NewSymbol(desc.String())), nil
		}
		return SymbolValue(newSymbol("", false)), nil
	})
	r.defineMethod(symbolCtor, "Symbol", "for", 1, func(c *Call) (Value, error) {
		return SymbolValue(c.Realm.SymbolFor(c.Arg(0).String())), nil
	})
	r.defineMethod(symbolCtor, "Symbol", "keyFor", 1, func(c *Call) (Value, error) {
		sym := c.Arg(0).Symbol()
		if sym == nil {
			return Undefined(), typeErrorf("%s is not a symbol", c.Arg(0).String())
		}
		if key, ok := sym.Key(); ok {
			return NewString(key), nil
		}
		return Undefined(), nil
	})
}

func (r *Realm) installPrimitives() {
	stringProto := newObject(ClassObject, r.objectProto)
	r.defineConstructor("String", 1, stringProto, func(c *Call) (Value, error) {
		if len(c.Args) == 0 {
			return NewString(""), nil
		}
		return NewString(c.Args[0].String()), nil
	})
	numberProto := newObject(ClassObject, r.objectProto)
	r.defineConstructor("Number", 1, numberProto, func(c *Call) (Value, error) {
		if len(c.Args) == 0 {
			return NewNumber(0), nil
		}
		return NewNumber(toNumber(c.Args[0])), nil
	})
}

func (r *Realm) installMath() {
	mathObj := r.NewObject()
	r.markIntrinsic(mathObj, "Math")
	defineHidden(r.global, "Math", ObjectValue(mathObj))
	extreme := func(name string, init float64, better func(a, b float64) bool) {
		r.defineMethod(mathObj, "Math", name, 2, func(c *Call) (Value, error) {
			out := init
			for _, arg := range c.Args {
				f := toNumber(arg)
				if math.IsNaN(f) {
					return NewNumber(math.NaN()), nil
				}
				if better(f, out) || (f == 0 && out == 0 && better(signedZero(f), signedZero(out))) {
					out = f
				}
			}
			return NewNumber(out), nil
		})
	}
	extreme("max", math.Inf(-1), func(a, b float64) bool { return a > b })
	extreme("min", math.Inf(1), func(a, b float64) bool { return a < b })
	unary := func(name string, op func(float64) float64) {
		r.defineMethod(mathObj, "Math", name, 1, func(c *Call) (Value, error) {
			return NewNumber(op(toNumber(c.Arg(0)))), nil
		})
	}
	unary("floor", math.Floor)
	unary("abs", math.Abs)
}

// signedZero maps -0 below +0 so max/min can order them.
func signedZero(f float64) float64 {
	if math.Signbit(f) {
		return -1
	}
	return 1
}
