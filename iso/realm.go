package iso

import (
	"fmt"
	"math"
	"strconv"
)

// Realm is one execution context: its own intrinsics, its own global object
// (reachable as self and globalThis) and its own symbol registry. Realms
// share no mutable state, so two realms never observe each other's objects
// except through a structured clone.
//
// A realm is not safe for concurrent mutation. Workerize delivers responses
// into the caller realm from the host's goroutine; callers must not mutate
// that realm's globals while calls are in flight.
type Realm struct {
	global     *Object
	namespace  *Object
	symbols    map[string]*Symbol
	intrinsics map[string]*Object
	script     *scope
	depth      int

	objectProto   *Object
	functionProto *Object
	arrayProto    *Object
	dateProto     *Object
	mapProto      *Object
	setProto      *Object
	errorProto    *Object
	bufferProto   *Object
	promiseProto  *Object
	errorProtos   map[string]*Object
	viewProtos    map[string]*Object
}

func NewRealm() *Realm {
	r := &Realm{
		symbols:     make(map[string]*Symbol),
		script:      newScope(nil),
		intrinsics:  make(map[string]*Object),
		errorProtos: make(map[string]*Object),
		viewProtos:  make(map[string]*Object),
	}
	r.objectProto = newObject(ClassObject, nil)
	r.functionProto = newObject(ClassObject, r.objectProto)
	r.global = newObject(ClassObject, r.objectProto)
	r.markIntrinsic(r.global, "self")
	r.markIntrinsic(r.objectProto, "Object.prototype")
	r.markIntrinsic(r.functionProto, "Function.prototype")

	defineHidden(r.global, "self", ObjectValue(r.global))
	defineHidden(r.global, "globalThis", ObjectValue(r.global))
	_ = r.global.DefineOwnProperty(StringKey("NaN"), DataProperty(NewNumber(math.NaN()), false, false, false))
	_ = r.global.DefineOwnProperty(StringKey("Infinity"), DataProperty(NewNumber(math.Inf(1)), false, false, false))
	_ = r.global.DefineOwnProperty(StringKey("undefined"), DataProperty(Undefined(), false, false, false))

	r.installObject()
	r.installFunction()
	r.installArray()
	r.installSymbol()
	r.installPrimitives()
	r.installMath()
	r.installDate()
	r.installCollections()
	r.installErrors()
	r.installBinary()
	r.installPromise()
	r.installNamespace()
	return r
}

func (r *Realm) markIntrinsic(obj *Object, path string) {
	obj.intrinsic = path
	r.intrinsics[path] = obj
}

// Global returns the realm's global object.
func (r *Realm) Global() *Object { return r.global }

// Namespace returns the private __iso namespace.
func (r *Realm) Namespace() *Object { return r.namespace }

// Intrinsic looks up a built-in by its global path ("Map.prototype").
func (r *Realm) Intrinsic(path string) *Object { return r.intrinsics[path] }

// GlobalValue reads a global binding; missing names read as undefined.
func (r *Realm) GlobalValue(name string) Value {
	v, _ := r.global.getOwnValue(StringKey(name))
	return v
}

func (r *Realm) SetGlobal(name string, v Value) error {
	return r.global.Set(StringKey(name), v)
}

func (r *Realm) NewObject() *Object {
	return newObject(ClassObject, r.objectProto)
}

func (r *Realm) NewArray(items ...Value) *Object {
	arr := newObject(ClassArray, r.arrayProto)
	for i, item := range items {
		key := StringKey(strconv.Itoa(i))
		arr.props[key] = &Descriptor{Value: item, Writable: true, Enumerable: true, Configurable: true}
		arr.keys = append(arr.keys, key)
	}
	arr.arrayLen = len(items)
	return arr
}

func (r *Realm) NewDate(ms float64) *Object {
	d := newObject(ClassDate, r.dateProto)
	d.date = timeClip(ms)
	return d
}

func timeClip(ms float64) float64 {
	if math.IsNaN(ms) || math.Abs(ms) > 8.64e15 {
		return math.NaN()
	}
	return math.Trunc(ms) + 0
}

func (r *Realm) NewMap() *Object {
	m := newObject(ClassMap, r.mapProto)
	m.entries = newOrderedMap()
	return m
}

func (r *Realm) NewSet() *Object {
	s := newObject(ClassSet, r.setProto)
	s.entries = newOrderedMap()
	return s
}

// NewError creates an error object whose prototype is the named error type's,
// falling back to Error.prototype for unknown names.
func (r *Realm) NewError(name, message string) *Object {
	proto, ok := r.errorProtos[name]
	if !ok {
		proto = r.errorProto
	}
	e := newObject(ClassError, proto)
	defineHidden(e, "message", NewString(message))
	if !ok {
		defineHidden(e, "name", NewString(name))
	}
	return e
}

// Throw builds an error of the named type in this realm, ready to be
// returned from a Body.
func (r *Realm) Throw(name, format string, args ...any) error {
	return &ThrowError{Value: ObjectValue(r.NewError(name, fmt.Sprintf(format, args...)))}
}

// NewArrayBuffer wraps data; the buffer owns it from here on.
func (r *Realm) NewArrayBuffer(data []byte) *Object {
	b := newObject(ClassArrayBuffer, r.bufferProto)
	if data == nil {
		data = []byte{}
	}
	b.buffer = &bufferData{data: data}
	return b
}

// NewTypedArray views length elements of buf starting at byte offset.
func (r *Realm) NewTypedArray(kind string, buf *Object, offset, length int) (*Object, error) {
	vk, ok := lookupViewKind(kind)
	if !ok {
		return nil, typeErrorf("unknown typed array %s", kind)
	}
	if buf == nil || buf.buffer == nil {
		return nil, typeErrorf("%s needs an ArrayBuffer", kind)
	}
	if buf.buffer.detached {
		return nil, typeErrorf("cannot construct %s on a detached ArrayBuffer", kind)
	}
	if offset < 0 || offset%vk.size != 0 {
		return nil, rangeErrorf("start offset of %s should be a multiple of %d", kind, vk.size)
	}
	if length < 0 {
		rest := len(buf.buffer.data) - offset
		if rest < 0 || rest%vk.size != 0 {
			return nil, rangeErrorf("byte length of %s should be a multiple of %d", kind, vk.size)
		}
		length = rest / vk.size
	}
	if offset+length*vk.size > len(buf.buffer.data) {
		return nil, rangeErrorf("invalid typed array length: %d", length)
	}
	v := newObject(ClassTypedArray, r.viewProtos[kind])
	v.view = &viewData{kind: vk, buffer: buf, offset: offset, count: length}
	return v, nil
}

// NewHandle wraps an externally owned resource as a transferable handle.
func (r *Realm) NewHandle(kind string, resource any) *Object {
	h := newObject(ClassHandle, r.objectProto)
	h.handle = &handleData{kind: kind, resource: resource}
	return h
}

// NewPromise returns a pending promise and its settle functions. The settle
// functions may be called from any goroutine; only the first call counts.
func (r *Realm) NewPromise() (p *Object, resolve, reject func(Value)) {
	p = newObject(ClassPromise, r.promiseProto)
	p.promise = newPromiseState()
	state := p.promise
	return p, func(v Value) { state.settle(promiseFulfilled, v) }, func(v Value) { state.settle(promiseRejected, v) }
}

// protoFor returns the prototype a native constructor should allocate
// from: NewTarget's prototype when it is an object, else def.
func (c *Call) protoFor(def *Object) *Object {
	if c.NewTarget == nil {
		return def
	}
	v, _ := c.NewTarget.lookupValue(StringKey("prototype"))
	if p := v.Object(); p != nil {
		return p
	}
	return def
}

func defineHidden(target *Object, name string, v Value) {
	_ = target.DefineOwnProperty(StringKey(name), DataProperty(v, true, false, true))
}

// defineMethod installs a native method on target; path is target's global
// path and becomes the method's intrinsic name.
func (r *Realm) defineMethod(target *Object, path, name string, arity int, body Body) *Object {
	fn := r.newNative(path+"."+name, name, arity, false, body)
	r.intrinsics[fn.intrinsic] = fn
	defineHidden(target, name, ObjectValue(fn))
	return fn
}

// defineGetter installs a native accessor. Getters have no global path, so
// they cannot be serialized on their own.
func (r *Realm) defineGetter(target *Object, name string, body Body) {
	get := r.newFunctionObject(&Function{name: "get " + name, body: body})
	_ = target.DefineOwnProperty(StringKey(name), AccessorProperty(get, nil, false, true))
}

// defineConstructor installs a global constructor and links it with proto.
func (r *Realm) defineConstructor(name string, arity int, proto *Object, body Body) *Object {
	ctor := r.newNative(name, name, arity, true, body)
	r.intrinsics[name] = ctor
	_ = ctor.DefineOwnProperty(StringKey("prototype"), DataProperty(ObjectValue(proto), false, false, false))
	defineHidden(proto, "constructor", ObjectValue(ctor))
	r.markIntrinsic(proto, name+".prototype")
	defineHidden(r.global, name, ObjectValue(ctor))
	return ctor
}
