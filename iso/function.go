package iso

import (
	"fmt"
	"sync"
)

// Body is the Go implementation of a closure or native callable.
type Body func(c *Call) (Value, error)

// Call is what a Body sees of one invocation.
type Call struct {
	Realm    *Realm
	Callee   *Object
	This     Value
	Args     []Value
	Captures *Object
	// NewTarget is the constructor named by `new`, nil for plain calls.
	NewTarget *Object
}

func (c *Call) Arg(i int) Value {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return Undefined()
}

// Capture reads a captured variable. Captures are ordinary properties, so a
// capture shared by two closures is one value.
func (c *Call) Capture(name string) (Value, error) {
	if c.Captures == nil {
		return Undefined(), nil
	}
	return c.Captures.Get(StringKey(name))
}

// SetCapture writes a captured variable.
func (c *Call) SetCapture(name string, v Value) error {
	if c.Captures == nil {
		return typeErrorf("%s has no captures", c.Callee.fn.name)
	}
	return c.Captures.Set(StringKey(name), v)
}

type CallableKind int

const (
	CallableScript CallableKind = iota
	CallableClosure
	CallableNative
	CallableOpaque
)

// Function is the callable payload of a function object. Exactly one of
// source (script), bodyRef (closure) or native (intrinsic path) identifies how
// the callable is re-created in another realm; a Go function with none of
// them runs locally but cannot be serialized.
type Function struct {
	realm    *Realm
	name     string
	source   string
	decl     *FunctionLiteral
	scope    *scope
	bodyRef  string
	body     Body
	captures *Object
	native   string
	ctor     bool
	arity    int
}

func (f *Function) Name() string      { return f.name }
func (f *Function) Source() string    { return f.source }
func (f *Function) BodyRef() string   { return f.bodyRef }
func (f *Function) Captures() *Object { return f.captures }
func (f *Function) NativeName() string {
	return f.native
}

func (f *Function) Kind() CallableKind {
	switch {
	case f.decl != nil:
		return CallableScript
	case f.bodyRef != "":
		return CallableClosure
	case f.native != "":
		return CallableNative
	default:
		return CallableOpaque
	}
}

var bodies = struct {
	sync.RWMutex
	m map[string]Body
}{m: make(map[string]Body)}

// RegisterBody publishes a closure body under ref for every realm of the
// process. Like gob.Register it is meant for init functions; registering the
// same ref twice panics.
func RegisterBody(ref string, body Body) {
	if ref == "" || body == nil {
		panic("isoworker: RegisterBody needs a ref and a body")
	}
	bodies.Lock()
	defer bodies.Unlock()
	if _, dup := bodies.m[ref]; dup {
		panic(fmt.Sprintf("isoworker: body %q registered twice", ref))
	}
	bodies.m[ref] = body
}

func lookupBody(ref string) (Body, bool) {
	bodies.RLock()
	defer bodies.RUnlock()
	body, ok := bodies.m[ref]
	return body, ok
}

// newFunctionObject wraps fn and installs the own properties every function
// starts with: length, name, and for constructors a fresh prototype.
func (r *Realm) newFunctionObject(fn *Function) *Object {
	fn.realm = r
	obj := newObject(ClassFunction, r.functionProto)
	obj.fn = fn
	obj.props[StringKey("length")] = &Descriptor{Value: NewInt(int64(fn.arity)), Configurable: true}
	obj.props[StringKey("name")] = &Descriptor{Value: NewString(fn.name), Configurable: true}
	obj.keys = append(obj.keys, StringKey("length"), StringKey("name"))
	if fn.ctor && fn.native == "" {
		proto := newObject(ClassObject, r.objectProto)
		proto.props[StringKey("constructor")] = &Descriptor{Value: ObjectValue(obj), Writable: true, Configurable: true}
		proto.keys = append(proto.keys, StringKey("constructor"))
		obj.props[StringKey("prototype")] = &Descriptor{Value: ObjectValue(proto), Writable: true}
		obj.keys = append(obj.keys, StringKey("prototype"))
	}
	return obj
}

// NewClosure builds a closure callable from a registered body. captures may
// be nil.
func (r *Realm) NewClosure(ref, name string, captures *Object) (*Object, error) {
	body, ok := lookupBody(ref)
	if !ok {
		return nil, fmt.Errorf("isoworker: no body registered as %q", ref)
	}
	return r.newFunctionObject(&Function{name: name, bodyRef: ref, body: body, captures: captures, ctor: true}), nil
}

// NewGoFunction wraps body as a callable usable in this realm only.
// Serializing it is an EncodingError.
func (r *Realm) NewGoFunction(name string, body Body) *Object {
	return r.newFunctionObject(&Function{name: name, body: body})
}

func (r *Realm) newNative(path, name string, arity int, ctor bool, body Body) *Object {
	obj := r.newFunctionObject(&Function{name: name, native: path, body: body, ctor: ctor, arity: arity})
	obj.intrinsic = path
	return obj
}

// callFunction invokes a function object with an explicit this.
func callFunction(callee *Object, this Value, args []Value) (Value, error) {
	if !callee.isCallable() {
		return Undefined(), typeErrorf("%s is not a function", ObjectValue(callee).String())
	}
	fn := callee.fn
	if fn.decl != nil {
		return fn.realm.callScript(callee, this, args, nil)
	}
	return fn.body(&Call{Realm: fn.realm, Callee: callee, This: this, Args: args, Captures: fn.captures})
}

// construct runs `new callee(...args)`.
func construct(callee *Object, args []Value) (Value, error) {
	if !callee.isCallable() || !callee.fn.ctor {
		return Undefined(), typeErrorf("%s is not a constructor", calleeName(callee))
	}
	fn := callee.fn
	if fn.native != "" {
		return fn.body(&Call{Realm: fn.realm, Callee: callee, This: Undefined(), Args: args, NewTarget: callee})
	}
	protoVal, err := callee.Get(StringKey("prototype"))
	if err != nil {
		return Undefined(), err
	}
	proto := protoVal.Object()
	if proto == nil {
		proto = fn.realm.objectProto
	}
	this := ObjectValue(newObject(ClassObject, proto))
	var result Value
	if fn.decl != nil {
		result, err = fn.realm.callScript(callee, this, args, callee)
	} else {
		result, err = fn.body(&Call{Realm: fn.realm, Callee: callee, This: this, Args: args, Captures: fn.captures, NewTarget: callee})
	}
	if err != nil {
		return Undefined(), err
	}
	if result.IsObject() {
		return result, nil
	}
	return this, nil
}

func calleeName(obj *Object) string {
	if obj == nil {
		return "value"
	}
	if obj.fn != nil && obj.fn.name != "" {
		return obj.fn.name
	}
	return ObjectValue(obj).String()
}

// Call invokes fn with this set to undefined.
func (r *Realm) Call(fn Value, args ...Value) (Value, error) {
	obj := fn.Object()
	if !obj.isCallable() {
		return Undefined(), typeErrorf("%s is not a function", fn.String())
	}
	return callFunction(obj, Undefined(), args)
}

// Construct runs `new fn(...args)`.
func (r *Realm) Construct(fn Value, args ...Value) (Value, error) {
	return construct(fn.Object(), args)
}
