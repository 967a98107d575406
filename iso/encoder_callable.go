package iso

import (
	"strings"
	"sync"
)

// encodeFunction emits a callable together with everything that makes it a
// type: its prototype object and inheritance links, then its statics.
//
//	Object.defineProperties(
//	  __iso.reparent(__iso.klass((__iso[f] = BASE), parentProto, {members}), parentCtor),
//	  {statics})
//
// Each wrapper is only emitted when it changes something.
func (e *encoder) encodeFunction(fo *Object, path string) (string, bool, error) {
	s := e.reg.reserve(fo)
	proto := ownedPrototype(fo)
	if proto != nil && e.reg.objects[proto] != nil {
		proto = nil
	}
	if proto != nil {
		e.reg.alias(proto, s, ".prototype")
	}

	base, err := e.functionBase(fo, s, path)
	if err != nil {
		return "", false, err
	}
	expr := e.reg.wrap(s, base)
	if proto != nil {
		if expr, err = e.klass(fo, proto, path, expr); err != nil {
			return "", false, err
		}
	}
	if expr, err = e.reparent(fo, s, path, expr); err != nil {
		return "", false, err
	}
	if expr, err = e.statics(fo, s, proto, path, expr); err != nil {
		return "", false, err
	}
	s.state = slotDone
	if fo.fn.name != "" && ownedPrototype(fo) != nil {
		e.ctors = append(e.ctors, fo)
	}
	e.lock(fo, s, path)
	if proto != nil {
		e.lock(proto, e.reg.objects[proto], path+".prototype")
	}
	return expr, false, nil
}

// publish binds every named constructor met during encoding as a global of
// the isolate, so bodies that name a type (`Animal.call(this)`, `new Dog()`)
// resolve there too. Names a binding or a built-in already owns are skipped.
// The assignments run last, after every slot they read has been filled.
func (e *encoder) publish(bound map[string]bool) {
	for _, fo := range e.ctors {
		name := fo.fn.name
		if bound[name] || builtinGlobals()[name] || !isIdentifierName(name) {
			continue
		}
		bound[name] = true
		e.patch(name, ObjectValue(fo), memberAccess("self", name)+" = "+e.reg.refer(e.reg.objects[fo]))
	}
}

// builtinGlobals lists the globals every fresh realm starts with.
var builtinGlobals = sync.OnceValue(func() map[string]bool {
	names := make(map[string]bool)
	for _, key := range NewRealm().Global().OwnKeys() {
		if !key.IsSymbol() {
			names[key.Name()] = true
		}
	}
	return names
})

func (e *encoder) functionBase(fo *Object, s *slot, path string) (string, error) {
	fn := fo.fn
	switch fn.Kind() {
	case CallableScript:
		if strings.IndexByte(fn.source, 0) >= 0 {
			return "", &EncodingError{Path: path, Reason: "function source contains a NUL byte"}
		}
		return fn.source, nil
	case CallableClosure:
		args := quoteString(fn.bodyRef) + ", " + quoteString(fn.name)
		if fn.captures != nil {
			captures, late, err := e.encodeObject(fn.captures, path+"<captures>")
			if err != nil {
				return "", err
			}
			if late {
				e.patch(path+"<captures>", ObjectValue(fn.captures), "__iso.capture("+e.reg.refer(s)+", "+captures+")")
			} else {
				args += ", " + captures
			}
		}
		return "__iso.closure(" + args + ")", nil
	case CallableNative:
		return fn.native, nil
	}
	name := fn.name
	if name == "" {
		name = "anonymous"
	}
	return "", &EncodingError{Path: path, Reason: "function " + name + " has no source text, closure body or native name"}
}

// klass installs the members and parent link of fo's own prototype object.
func (e *encoder) klass(fo, proto *Object, path, expr string) (string, error) {
	protoSlot := e.reg.objects[proto]
	protoPath := path + ".prototype"
	parent := "void 0"
	switch {
	case proto.proto == nil:
		parent = "null"
	case proto.proto.intrinsic == "Object.prototype":
	default:
		p, late, err := e.encodeObject(proto.proto, protoPath+".__proto__")
		if err != nil {
			return "", err
		}
		if late {
			e.patch(protoPath, ObjectValue(proto.proto), "Object.setPrototypeOf("+e.reg.refer(protoSlot)+", "+p+")")
		} else {
			parent = p
		}
	}

	var keys []PropertyKey
	for _, key := range proto.OwnKeys() {
		if !key.IsSymbol() && key.name == "constructor" && isDefaultConstructor(proto, fo) {
			continue
		}
		keys = append(keys, key)
	}
	_, descs, err := e.properties(proto, protoSlot, protoPath, keys, false, true)
	if err != nil {
		return "", err
	}
	if parent == "void 0" && len(descs) == 0 {
		return expr, nil
	}
	args := expr + ", " + parent
	if len(descs) > 0 {
		args += ", {" + strings.Join(descs, ", ") + "}"
	}
	return "__iso.klass(" + args + ")", nil
}

// reparent re-points fo's own prototype link, which class-style inheritance
// sets to the parent constructor.
func (e *encoder) reparent(fo *Object, s *slot, path, expr string) (string, error) {
	switch {
	case fo.proto == nil:
		return "__iso.reparent(" + expr + ", null)", nil
	case fo.proto.intrinsic == "Function.prototype":
		return expr, nil
	}
	parent, late, err := e.encodeObject(fo.proto, path+".__proto__")
	if err != nil {
		return "", err
	}
	if late {
		e.patch(path, ObjectValue(fo.proto), "__iso.reparent("+e.reg.refer(s)+", "+parent+")")
		return expr, nil
	}
	return "__iso.reparent(" + expr + ", " + parent + ")", nil
}

// statics copies fo's own properties except those the base expression
// already recreates identically.
func (e *encoder) statics(fo *Object, s *slot, proto *Object, path, expr string) (string, error) {
	var keys []PropertyKey
	for _, key := range fo.OwnKeys() {
		if !key.IsSymbol() {
			d, _ := fo.GetOwnProperty(key)
			switch key.name {
			case "length":
				if isFunctionMeta(d, NewInt(int64(fo.fn.arity))) {
					continue
				}
			case "name":
				if isFunctionMeta(d, NewString(fo.fn.name)) {
					continue
				}
			case "prototype":
				if proto == nil {
					break
				}
				if d.Enumerable || d.Configurable || !d.Writable {
					ref := e.reg.refer(s)
					e.patch(path+".prototype", d.Value, "Object.defineProperty("+ref+", \"prototype\", "+renderDescriptor(d, ref+".prototype", "", "", true)+")")
				}
				continue
			}
		}
		keys = append(keys, key)
	}
	_, descs, err := e.properties(fo, s, path, keys, false, true)
	if err != nil {
		return "", err
	}
	if len(descs) == 0 {
		return expr, nil
	}
	return "Object.defineProperties(" + expr + ", {" + strings.Join(descs, ", ") + "})", nil
}

func isFunctionMeta(d Descriptor, want Value) bool {
	return !d.Accessor && !d.Writable && !d.Enumerable && d.Configurable && SameValue(d.Value, want)
}

// ownedPrototype returns fo.prototype when it is an ordinary object whose
// constructor points back at fo.
func ownedPrototype(fo *Object) *Object {
	d, ok := fo.props[StringKey("prototype")]
	if !ok || d.Accessor {
		return nil
	}
	p := d.Value.Object()
	if p == nil || p.class != ClassObject || p.intrinsic != "" {
		return nil
	}
	if c, ok := p.props[StringKey("constructor")]; !ok || c.Accessor || c.Value.Object() != fo {
		return nil
	}
	return p
}

// prototypeOwner is the inverse of ownedPrototype.
func prototypeOwner(o *Object) *Object {
	if o.class != ClassObject {
		return nil
	}
	c, ok := o.props[StringKey("constructor")]
	if !ok || c.Accessor {
		return nil
	}
	fo := c.Value.Object()
	if !fo.isCallable() || fo.intrinsic != "" || ownedPrototype(fo) != o {
		return nil
	}
	return fo
}

func isDefaultConstructor(proto, fo *Object) bool {
	c := proto.props[StringKey("constructor")]
	return c != nil && !c.Accessor && c.Value.Object() == fo && c.Writable && !c.Enumerable && c.Configurable
}
