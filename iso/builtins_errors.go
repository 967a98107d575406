package iso

var errorNames = []string{"TypeError", "RangeError", "SyntaxError", "ReferenceError", "EvalError", "URIError"}

func (r *Realm) installErrors() {
	r.errorProto = newObject(ClassObject, r.objectProto)
	errorCtor := r.defineErrorType("Error", r.errorProto)
	r.defineMethod(r.errorProto, "Error.prototype", "toString", 0, func(c *Call) (Value, error) {
		obj := c.This.Object()
		if obj == nil {
			return Undefined(), typeErrorf("Error.prototype.toString called on %s", c.This.String())
		}
		name, err := obj.Get(StringKey("name"))
		if err != nil {
			return Undefined(), err
		}
		msg, err := obj.Get(StringKey("message"))
		if err != nil {
			return Undefined(), err
		}
		n, m := "Error", ""
		if !name.IsUndefined() {
			n = name.String()
		}
		if !msg.IsUndefined() {
			m = msg.String()
		}
		switch {
		case m == "":
			return NewString(n), nil
		case n == "":
			return NewString(m), nil
		}
		return NewString(n + ": " + m), nil
	})
	for _, name := range errorNames {
		proto := newObject(ClassObject, r.errorProto)
		ctor := r.defineErrorType(name, proto)
		ctor.proto = errorCtor
	}
}

func (r *Realm) defineErrorType(name string, proto *Object) *Object {
	r.errorProtos[name] = proto
	defineHidden(proto, "name", NewString(name))
	defineHidden(proto, "message", NewString(""))
	return r.defineConstructor(name, 1, proto, func(c *Call) (Value, error) {
		e := newObject(ClassError, c.protoFor(proto))
		if msg := c.Arg(0); !msg.IsUndefined() {
			defineHidden(e, "message", NewString(msg.String()))
		}
		return ObjectValue(e), nil
	})
}

// reviveError rebuilds a fault in r by looking the error type up by name in
// the global scope, falling back to Error when the name is unknown or not an
// error constructor.
func (r *Realm) reviveError(name, message, stack string) *Object {
	proto := r.errorProto
	if ctor := r.GlobalValue(name).Object(); ctor.isCallable() {
		if p, _ := ctor.lookupValue(StringKey("prototype")); p.IsObject() && inheritsFrom(p.Object(), r.errorProto) {
			proto = p.Object()
		}
	}
	e := newObject(ClassError, proto)
	defineHidden(e, "message", NewString(message))
	if inherited, _ := proto.lookupValue(StringKey("name")); inherited.String() != name {
		defineHidden(e, "name", NewString(name))
	}
	if stack != "" {
		defineHidden(e, "stack", NewString(stack))
	}
	return e
}

func inheritsFrom(obj, proto *Object) bool {
	for cur := obj; cur != nil; cur = cur.proto {
		if cur == proto {
			return true
		}
	}
	return false
}
