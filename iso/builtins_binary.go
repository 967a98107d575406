package iso

import "math"

func toLength(v Value, what string) (int, error) {
	if v.IsUndefined() {
		return 0, nil
	}
	f := toNumber(v)
	if math.IsNaN(f) {
		return 0, nil
	}
	f = math.Trunc(f)
	if f < 0 || f > math.MaxInt32 {
		return 0, rangeErrorf("invalid %s: %s", what, v.String())
	}
	return int(f), nil
}

func (r *Realm) installBinary() {
	r.bufferProto = newObject(ClassObject, r.objectProto)
	r.defineConstructor("ArrayBuffer", 1, r.bufferProto, func(c *Call) (Value, error) {
		if c.NewTarget == nil {
			return Undefined(), typeErrorf("constructor ArrayBuffer requires 'new'")
		}
		n, err := toLength(c.Arg(0), "array buffer length")
		if err != nil {
			return Undefined(), err
		}
		b := c.Realm.NewArrayBuffer(make([]byte, n))
		b.proto = c.protoFor(c.Realm.bufferProto)
		return ObjectValue(b), nil
	})
	thisBuffer := func(c *Call, name string) (*bufferData, error) {
		b := c.This.Object()
		if b == nil || b.buffer == nil {
			return nil, typeErrorf("ArrayBuffer.prototype.%s called on %s", name, c.This.String())
		}
		return b.buffer, nil
	}
	r.defineGetter(r.bufferProto, "byteLength", func(c *Call) (Value, error) {
		b, err := thisBuffer(c, "byteLength")
		if err != nil {
			return Undefined(), err
		}
		return NewInt(int64(len(b.data))), nil
	})
	r.defineMethod(r.bufferProto, "ArrayBuffer.prototype", "slice", 2, func(c *Call) (Value, error) {
		b, err := thisBuffer(c, "slice")
		if err != nil {
			return Undefined(), err
		}
		if b.detached {
			return Undefined(), typeErrorf("cannot perform ArrayBuffer.prototype.slice on a detached ArrayBuffer")
		}
		start, end := relativeIndex(c.Arg(0), len(b.data), 0), relativeIndex(c.Arg(1), len(b.data), len(b.data))
		if end < start {
			end = start
		}
		data := make([]byte, end-start)
		copy(data, b.data[start:end])
		return ObjectValue(c.Realm.NewArrayBuffer(data)), nil
	})

	for _, vk := range viewKinds {
		vk := vk
		proto := newObject(ClassObject, r.objectProto)
		r.viewProtos[vk.name] = proto
		r.defineConstructor(vk.name, 3, proto, func(c *Call) (Value, error) {
			if c.NewTarget == nil {
				return Undefined(), typeErrorf("constructor %s requires 'new'", vk.name)
			}
			view, err := c.Realm.constructView(vk, c.Args)
			if err != nil {
				return Undefined(), err
			}
			view.proto = c.protoFor(proto)
			return ObjectValue(view), nil
		})
		thisView := func(c *Call, name string) (*viewData, error) {
			v := c.This.Object()
			if v == nil || v.view == nil {
				return nil, typeErrorf("%s.prototype.%s called on %s", vk.name, name, c.This.String())
			}
			return v.view, nil
		}
		getters := map[string]func(*viewData) Value{
			"length":     func(v *viewData) Value { return NewInt(int64(v.length())) },
			"byteLength": func(v *viewData) Value { return NewInt(int64(v.length() * v.kind.size)) },
			"byteOffset": func(v *viewData) Value {
				if v.length() == 0 {
					return NewInt(0)
				}
				return NewInt(int64(v.offset))
			},
			"buffer": func(v *viewData) Value { return ObjectValue(v.buffer) },
		}
		for _, name := range []string{"length", "byteLength", "byteOffset", "buffer"} {
			name, get := name, getters[name]
			r.defineGetter(proto, name, func(c *Call) (Value, error) {
				v, err := thisView(c, name)
				if err != nil {
					return Undefined(), err
				}
				return get(v), nil
			})
		}
	}
}

func (r *Realm) constructView(vk viewKind, args []Value) (*Object, error) {
	first := Undefined()
	if len(args) > 0 {
		first = args[0]
	}
	src := first.Object()
	switch {
	case src != nil && src.buffer != nil:
		offset, err := toLength(argAt(args, 1), "offset")
		if err != nil {
			return nil, err
		}
		length := -1
		if l := argAt(args, 2); !l.IsUndefined() {
			if length, err = toLength(l, "typed array length"); err != nil {
				return nil, err
			}
		}
		return r.NewTypedArray(vk.name, src, offset, length)
	case src != nil:
		items, err := iterableItems(r, first)
		if err != nil {
			return nil, err
		}
		view, err := r.NewTypedArray(vk.name, r.NewArrayBuffer(make([]byte, len(items)*vk.size)), 0, len(items))
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			if err := view.view.set(i, item); err != nil {
				return nil, err
			}
		}
		return view, nil
	default:
		n, err := toLength(first, "typed array length")
		if err != nil {
			return nil, err
		}
		return r.NewTypedArray(vk.name, r.NewArrayBuffer(make([]byte, n*vk.size)), 0, n)
	}
}

func argAt(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined()
}

// relativeIndex resolves a slice bound that may count from the end.
func relativeIndex(v Value, length, def int) int {
	if v.IsUndefined() {
		return def
	}
	f := math.Trunc(toNumber(v))
	if math.IsNaN(f) {
		return 0
	}
	if f < 0 {
		f += float64(length)
		if f < 0 {
			return 0
		}
	}
	if f > float64(length) {
		return length
	}
	return int(f)
}
