package iso

import (
	"sort"
	"strconv"
)

type ObjectClass int

const (
	ClassObject ObjectClass = iota
	ClassArray
	ClassFunction
	ClassDate
	ClassMap
	ClassSet
	ClassError
	ClassArrayBuffer
	ClassTypedArray
	ClassHandle
	ClassPromise
)

func (c ObjectClass) String() string {
	switch c {
	case ClassArray:
		return "Array"
	case ClassFunction:
		return "Function"
	case ClassDate:
		return "Date"
	case ClassMap:
		return "Map"
	case ClassSet:
		return "Set"
	case ClassError:
		return "Error"
	case ClassArrayBuffer:
		return "ArrayBuffer"
	case ClassTypedArray:
		return "TypedArray"
	case ClassHandle:
		return "Handle"
	case ClassPromise:
		return "Promise"
	default:
		return "Object"
	}
}

// PropertyKey is either a string name or a symbol.
type PropertyKey struct {
	name string
	sym  *Symbol
}

func StringKey(name string) PropertyKey { return PropertyKey{name: name} }
func SymbolKey(sym *Symbol) PropertyKey { return PropertyKey{sym: sym} }

func (k PropertyKey) IsSymbol() bool  { return k.sym != nil }
func (k PropertyKey) Name() string    { return k.name }
func (k PropertyKey) Symbol() *Symbol { return k.sym }

func (k PropertyKey) Value() Value {
	if k.sym != nil {
		return SymbolValue(k.sym)
	}
	return NewString(k.name)
}

func (k PropertyKey) String() string {
	if k.sym != nil {
		return "[" + k.sym.String() + "]"
	}
	return k.name
}

func toPropertyKey(v Value) PropertyKey {
	if sym := v.Symbol(); sym != nil {
		return SymbolKey(sym)
	}
	return StringKey(v.String())
}

func itoa(i int) string { return strconv.Itoa(i) }

// arrayIndex reports whether name is a canonical array index.
func arrayIndex(name string) (int, bool) {
	if name == "" || len(name) > 10 || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	n := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n >= 1<<32-1 {
		return 0, false
	}
	return n, true
}

// Descriptor describes one own property: either a data property (Value,
// Writable) or an accessor pair (Get, Set), plus Enumerable and Configurable.
type Descriptor struct {
	Value        Value
	Get          *Object
	Set          *Object
	Writable     bool
	Enumerable   bool
	Configurable bool
	Accessor     bool
}

func DataProperty(v Value, writable, enumerable, configurable bool) Descriptor {
	return Descriptor{Value: v, Writable: writable, Enumerable: enumerable, Configurable: configurable}
}

func AccessorProperty(get, set *Object, enumerable, configurable bool) Descriptor {
	return Descriptor{Get: get, Set: set, Enumerable: enumerable, Configurable: configurable, Accessor: true}
}

// IsPlain reports whether the descriptor is what a plain assignment creates.
func (d Descriptor) IsPlain() bool {
	return !d.Accessor && d.Writable && d.Enumerable && d.Configurable
}

type descFields uint8

const (
	fieldValue descFields = 1 << iota
	fieldWritable
	fieldGet
	fieldSet
	fieldEnumerable
	fieldConfigurable
)

const (
	dataFields     = fieldValue | fieldWritable | fieldEnumerable | fieldConfigurable
	accessorFields = fieldGet | fieldSet | fieldEnumerable | fieldConfigurable
)

func (d Descriptor) fields() descFields {
	if d.Accessor {
		return accessorFields
	}
	return dataFields
}

// Object is a heap value with ordered own properties, a prototype link and
// an optional class payload (array length, date, map entries, buffer bytes...).
type Object struct {
	class      ObjectClass
	proto      *Object
	props      map[PropertyKey]*Descriptor
	keys       []PropertyKey
	extensible bool
	intrinsic  string

	arrayLen     int
	lengthLocked bool

	date    float64
	entries *orderedMap
	buffer  *bufferData
	view    *viewData
	handle  *handleData
	fn      *Function
	promise *promiseState
}

func newObject(class ObjectClass, proto *Object) *Object {
	return &Object{
		class:      class,
		proto:      proto,
		props:      make(map[PropertyKey]*Descriptor),
		extensible: true,
	}
}

func (o *Object) Class() ObjectClass { return o.class }
func (o *Object) Proto() *Object     { return o.proto }

// Intrinsic returns the global path of a realm intrinsic ("Object.prototype"),
// or "" for ordinary objects.
func (o *Object) Intrinsic() string { return o.intrinsic }

// SetProto re-points the prototype link. It fails on non-extensible objects
// and when the new chain would loop back to o.
func (o *Object) SetProto(proto *Object) bool {
	if proto == o.proto {
		return true
	}
	if !o.extensible {
		return false
	}
	for p := proto; p != nil; p = p.proto {
		if p == o {
			return false
		}
	}
	o.proto = proto
	return true
}

func (o *Object) GetOwnProperty(key PropertyKey) (Descriptor, bool) {
	if !key.IsSymbol() {
		switch o.class {
		case ClassArray:
			if key.name == "length" {
				return DataProperty(NewInt(int64(o.arrayLen)), !o.lengthLocked, false, false), true
			}
		case ClassTypedArray:
			if idx, ok := arrayIndex(key.name); ok {
				v, ok := o.view.get(idx)
				if !ok {
					return Descriptor{}, false
				}
				return DataProperty(v, true, true, true), true
			}
		}
	}
	d, ok := o.props[key]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

func (o *Object) HasOwnProperty(key PropertyKey) bool {
	_, ok := o.GetOwnProperty(key)
	return ok
}

// OwnKeys lists own keys: array indices ascending, then other strings in
// insertion order, then symbols in insertion order.
func (o *Object) OwnKeys() []PropertyKey {
	var indices []int
	var names, syms []PropertyKey
	if o.class == ClassTypedArray {
		for i := 0; i < o.view.length(); i++ {
			indices = append(indices, i)
		}
	}
	for _, k := range o.keys {
		if k.sym != nil {
			syms = append(syms, k)
			continue
		}
		if idx, ok := arrayIndex(k.name); ok {
			indices = append(indices, idx)
			continue
		}
		names = append(names, k)
	}
	sort.Ints(indices)
	out := make([]PropertyKey, 0, len(indices)+len(names)+len(syms)+1)
	for _, idx := range indices {
		out = append(out, StringKey(strconv.Itoa(idx)))
	}
	if o.class == ClassArray {
		out = append(out, StringKey("length"))
	}
	out = append(out, names...)
	return append(out, syms...)
}

// DefineOwnProperty installs a complete descriptor, validating it against an
// existing non-configurable property the way Object.defineProperty does.
func (o *Object) DefineOwnProperty(key PropertyKey, d Descriptor) error {
	return o.defineProperty(key, d, d.fields())
}

func (o *Object) defineProperty(key PropertyKey, d Descriptor, fields descFields) error {
	if !key.IsSymbol() {
		switch o.class {
		case ClassArray:
			if key.name == "length" {
				return o.defineArrayLength(d, fields)
			}
		case ClassTypedArray:
			if idx, ok := arrayIndex(key.name); ok {
				if fields&(fieldGet|fieldSet) != 0 ||
					(fields&fieldConfigurable != 0 && !d.Configurable) ||
					(fields&fieldEnumerable != 0 && !d.Enumerable) ||
					(fields&fieldWritable != 0 && !d.Writable) {
					return typeErrorf("cannot redefine typed array element %d", idx)
				}
				if fields&fieldValue != 0 {
					return o.view.set(idx, d.Value)
				}
				return nil
			}
		}
	}

	current, exists := o.props[key]
	if !exists {
		if !o.extensible {
			return typeErrorf("cannot define property %s, object is not extensible", key)
		}
		nd := &Descriptor{}
		if fields&(fieldGet|fieldSet) != 0 {
			nd.Accessor = true
			if fields&fieldGet != 0 {
				nd.Get = d.Get
			}
			if fields&fieldSet != 0 {
				nd.Set = d.Set
			}
		} else {
			if fields&fieldValue != 0 {
				nd.Value = d.Value
			}
			nd.Writable = fields&fieldWritable != 0 && d.Writable
		}
		nd.Enumerable = fields&fieldEnumerable != 0 && d.Enumerable
		nd.Configurable = fields&fieldConfigurable != 0 && d.Configurable
		if o.class == ClassArray && !key.IsSymbol() {
			if idx, ok := arrayIndex(key.name); ok && idx >= o.arrayLen {
				if o.lengthLocked {
					return typeErrorf("cannot add index %d, array length is read-only", idx)
				}
				o.arrayLen = idx + 1
			}
		}
		o.props[key] = nd
		o.keys = append(o.keys, key)
		return nil
	}

	if !current.Configurable {
		wantsAccessor := fields&(fieldGet|fieldSet) != 0
		wantsData := fields&(fieldValue|fieldWritable) != 0
		switch {
		case fields&fieldConfigurable != 0 && d.Configurable,
			fields&fieldEnumerable != 0 && d.Enumerable != current.Enumerable,
			wantsAccessor && !current.Accessor,
			wantsData && current.Accessor:
			return typeErrorf("cannot redefine property: %s", key)
		}
		if current.Accessor {
			if (fields&fieldGet != 0 && d.Get != current.Get) || (fields&fieldSet != 0 && d.Set != current.Set) {
				return typeErrorf("cannot redefine property: %s", key)
			}
		} else if !current.Writable {
			if (fields&fieldWritable != 0 && d.Writable) || (fields&fieldValue != 0 && !SameValue(d.Value, current.Value)) {
				return typeErrorf("cannot redefine property: %s", key)
			}
		}
	}

	if fields&(fieldGet|fieldSet) != 0 && !current.Accessor {
		*current = Descriptor{Accessor: true, Enumerable: current.Enumerable, Configurable: current.Configurable}
	} else if fields&(fieldValue|fieldWritable) != 0 && current.Accessor {
		*current = Descriptor{Enumerable: current.Enumerable, Configurable: current.Configurable}
	}
	if fields&fieldValue != 0 {
		current.Value = d.Value
	}
	if fields&fieldWritable != 0 {
		current.Writable = d.Writable
	}
	if fields&fieldGet != 0 {
		current.Get = d.Get
	}
	if fields&fieldSet != 0 {
		current.Set = d.Set
	}
	if fields&fieldEnumerable != 0 {
		current.Enumerable = d.Enumerable
	}
	if fields&fieldConfigurable != 0 {
		current.Configurable = d.Configurable
	}
	return nil
}

func (o *Object) defineArrayLength(d Descriptor, fields descFields) error {
	if fields&(fieldGet|fieldSet) != 0 ||
		(fields&fieldEnumerable != 0 && d.Enumerable) ||
		(fields&fieldConfigurable != 0 && d.Configurable) {
		return typeErrorf("cannot redefine property: length")
	}
	if fields&fieldValue != 0 {
		f := toNumber(d.Value)
		n := int(f)
		if f < 0 || float64(n) != f {
			return rangeErrorf("invalid array length")
		}
		if n != o.arrayLen {
			if o.lengthLocked {
				return typeErrorf("cannot assign to read only property length")
			}
			for idx := n; idx < o.arrayLen; idx++ {
				o.deleteKey(StringKey(strconv.Itoa(idx)))
			}
			o.arrayLen = n
		}
	}
	if fields&fieldWritable != 0 {
		if d.Writable && o.lengthLocked {
			return typeErrorf("cannot redefine property: length")
		}
		if !d.Writable {
			o.lengthLocked = true
		}
	}
	return nil
}

// Delete removes an own configurable property and reports whether the key is
// now absent.
func (o *Object) Delete(key PropertyKey) bool {
	if !key.IsSymbol() {
		switch o.class {
		case ClassArray:
			if key.name == "length" {
				return false
			}
		case ClassTypedArray:
			if idx, ok := arrayIndex(key.name); ok {
				return idx >= o.view.length()
			}
		}
	}
	d, ok := o.props[key]
	if !ok {
		return true
	}
	if !d.Configurable {
		return false
	}
	o.deleteKey(key)
	return true
}

func (o *Object) deleteKey(key PropertyKey) {
	if _, ok := o.props[key]; !ok {
		return
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Get reads key through the prototype chain, invoking getters with o as this.
func (o *Object) Get(key PropertyKey) (Value, error) {
	return o.get(key, ObjectValue(o))
}

func (o *Object) get(key PropertyKey, receiver Value) (Value, error) {
	for cur := o; cur != nil; cur = cur.proto {
		d, ok := cur.GetOwnProperty(key)
		if !ok {
			continue
		}
		if d.Accessor {
			if d.Get == nil {
				return Undefined(), nil
			}
			return callFunction(d.Get, receiver, nil)
		}
		return d.Value, nil
	}
	return Undefined(), nil
}

// getOwnValue reads an own data property without running accessors.
func (o *Object) getOwnValue(key PropertyKey) (Value, bool) {
	d, ok := o.GetOwnProperty(key)
	if !ok || d.Accessor {
		return Undefined(), false
	}
	return d.Value, true
}

// lookupValue is getOwnValue along the prototype chain.
func (o *Object) lookupValue(key PropertyKey) (Value, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		if d, ok := cur.GetOwnProperty(key); ok {
			if d.Accessor {
				return Undefined(), false
			}
			return d.Value, true
		}
	}
	return Undefined(), false
}

// Set assigns through the prototype chain: setters run, read-only and
// non-extensible targets fail with a TypeError.
func (o *Object) Set(key PropertyKey, v Value) error {
	if o.class == ClassTypedArray && !key.IsSymbol() {
		if idx, ok := arrayIndex(key.name); ok {
			if idx >= o.view.length() {
				return nil
			}
			return o.view.set(idx, v)
		}
	}
	for cur := o; cur != nil; cur = cur.proto {
		d, ok := cur.GetOwnProperty(key)
		if !ok {
			continue
		}
		if d.Accessor {
			if d.Set == nil {
				return typeErrorf("cannot set property %s which has only a getter", key)
			}
			_, err := callFunction(d.Set, ObjectValue(o), []Value{v})
			return err
		}
		if !d.Writable {
			return typeErrorf("cannot assign to read only property %s", key)
		}
		if cur == o {
			return o.defineProperty(key, Descriptor{Value: v}, fieldValue)
		}
		break
	}
	return o.defineProperty(key, DataProperty(v, true, true, true), dataFields)
}

// Put is Set for string keys; it is meant for Go callers building values.
func (o *Object) Put(name string, v Value) error {
	return o.Set(StringKey(name), v)
}

func (o *Object) PreventExtensions() {
	o.extensible = false
}

func (o *Object) Seal() error {
	if o.class == ClassTypedArray && o.view.length() > 0 {
		return typeErrorf("cannot seal array buffer views with elements")
	}
	o.extensible = false
	for _, d := range o.props {
		d.Configurable = false
	}
	return nil
}

func (o *Object) Freeze() error {
	if o.class == ClassTypedArray && o.view.length() > 0 {
		return typeErrorf("cannot freeze array buffer views with elements")
	}
	o.extensible = false
	for _, d := range o.props {
		d.Configurable = false
		if !d.Accessor {
			d.Writable = false
		}
	}
	if o.class == ClassArray {
		o.lengthLocked = true
	}
	return nil
}

func (o *Object) IsExtensible() bool { return o.extensible }

func (o *Object) IsSealed() bool {
	if o.extensible || (o.class == ClassTypedArray && o.view.length() > 0) {
		return false
	}
	for _, d := range o.props {
		if d.Configurable {
			return false
		}
	}
	return true
}

func (o *Object) IsFrozen() bool {
	if !o.IsSealed() {
		return false
	}
	for _, d := range o.props {
		if !d.Accessor && d.Writable {
			return false
		}
	}
	return o.class != ClassArray || o.lengthLocked
}

// Len returns the length of an array.
func (o *Object) Len() int { return o.arrayLen }

// Items returns the element values of an array without running accessors.
func (o *Object) Items() []Value {
	items := make([]Value, o.arrayLen)
	for i := range items {
		items[i], _ = o.getOwnValue(StringKey(strconv.Itoa(i)))
	}
	return items
}

// Time returns a date's epoch milliseconds.
func (o *Object) Time() float64 { return o.date }

// Func returns the callable payload of a function object.
func (o *Object) Func() *Function { return o.fn }

func (o *Object) isCallable() bool { return o != nil && o.fn != nil }

// ownDataFunction returns the function stored in an own data property.
func (o *Object) ownDataFunction(name string) *Object {
	v, ok := o.getOwnValue(StringKey(name))
	if !ok {
		return nil
	}
	if fn := v.Object(); fn.isCallable() {
		return fn
	}
	return nil
}
