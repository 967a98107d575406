package iso

// installNamespace sets up __iso: identity slots live under numeric keys, the
// helpers below are what generated programs call to rebuild what a literal
// cannot express.
func (r *Realm) installNamespace() {
	ns := r.NewObject()
	r.namespace = ns
	r.markIntrinsic(ns, "__iso")
	defineHidden(r.global, "__iso", ObjectValue(ns))

	// closure(ref, name, captures) rebuilds a Go closure from the body registry.
	r.defineMethod(ns, "__iso", "closure", 3, func(c *Call) (Value, error) {
		ref := c.Arg(0)
		if ref.Kind() != KindString {
			return Undefined(), typeErrorf("closure body reference must be a string")
		}
		name := ""
		if n := c.Arg(1); !n.IsNullish() {
			name = n.String()
		}
		fn, err := c.Realm.NewClosure(ref.Str(), name, c.Arg(2).Object())
		if err != nil {
			return Undefined(), c.Realm.Throw("ReferenceError", "%s", err.Error())
		}
		return ObjectValue(fn), nil
	})
	// capture(fn, captures) re-points a closure at its captured record.
	r.defineMethod(ns, "__iso", "capture", 2, func(c *Call) (Value, error) {
		fn := c.Arg(0).Object()
		if !fn.isCallable() || fn.fn.bodyRef == "" {
			return Undefined(), typeErrorf("%s is not a closure", c.Arg(0).String())
		}
		fn.fn.captures = c.Arg(1).Object()
		return c.Arg(0), nil
	})
	// klass(F, parentProto, descs) links F.prototype to parentProto (left
	// alone when undefined) and installs the prototype members.
	r.defineMethod(ns, "__iso", "klass", 3, func(c *Call) (Value, error) {
		fn := c.Arg(0).Object()
		if !fn.isCallable() {
			return Undefined(), typeErrorf("%s is not a function", c.Arg(0).String())
		}
		protoVal, err := fn.Get(StringKey("prototype"))
		if err != nil {
			return Undefined(), err
		}
		proto := protoVal.Object()
		if proto == nil {
			return Undefined(), typeErrorf("%s has no prototype object", calleeName(fn))
		}
		if parent := c.Arg(1); !parent.IsUndefined() {
			if !parent.IsObject() && !parent.IsNull() {
				return Undefined(), typeErrorf("object prototype may only be an object or null: %s", parent.String())
			}
			if !proto.SetProto(parent.Object()) {
				return Undefined(), typeErrorf("cannot set prototype of %s.prototype", calleeName(fn))
			}
		}
		if descs := c.Arg(2).Object(); descs != nil {
			if err := definePropertiesFrom(proto, descs); err != nil {
				return Undefined(), err
			}
		}
		return c.Arg(0), nil
	})
	// reparent(F, P) re-points F's own prototype link (static inheritance).
	r.defineMethod(ns, "__iso", "reparent", 2, func(c *Call) (Value, error) {
		obj := c.Arg(0).Object()
		parent := c.Arg(1)
		if obj == nil || (!parent.IsObject() && !parent.IsNull()) {
			return Undefined(), typeErrorf("cannot reparent %s onto %s", c.Arg(0).String(), parent.String())
		}
		if !obj.SetProto(parent.Object()) {
			return Undefined(), typeErrorf("cannot set prototype of %s", c.Arg(0).String())
		}
		return c.Arg(0), nil
	})
	// hole() mints a placeholder Map key or Set element.
	r.defineMethod(ns, "__iso", "hole", 0, func(c *Call) (Value, error) {
		return ObjectValue(newObject(ClassObject, nil)), nil
	})
	// rekey(container, hole, key[, value]) swaps a placeholder for its real
	// key without moving the entry.
	r.defineMethod(ns, "__iso", "rekey", 4, func(c *Call) (Value, error) {
		container := c.Arg(0).Object()
		if container == nil || container.entries == nil {
			return Undefined(), typeErrorf("%s is not a Map or Set", c.Arg(0).String())
		}
		key := c.Arg(2)
		if !container.entries.rekey(c.Arg(1), key) {
			return Undefined(), typeErrorf("no placeholder entry to rekey")
		}
		switch {
		case container.class == ClassSet:
			container.entries.set(key, key)
		case len(c.Args) > 3:
			container.entries.set(key, c.Args[3])
		}
		return c.Arg(0), nil
	})
}
