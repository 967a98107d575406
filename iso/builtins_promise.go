package iso

func (r *Realm) installPromise() {
	r.promiseProto = newObject(ClassObject, r.objectProto)
	promiseCtor := r.defineConstructor("Promise", 1, r.promiseProto, func(c *Call) (Value, error) {
		if c.NewTarget == nil {
			return Undefined(), typeErrorf("constructor Promise requires 'new'")
		}
		executor := c.Arg(0).Object()
		if !executor.isCallable() {
			return Undefined(), typeErrorf("promise resolver %s is not a function", c.Arg(0).String())
		}
		p, resolve, reject := c.Realm.NewPromise()
		p.proto = c.protoFor(c.Realm.promiseProto)
		resolveFn := c.Realm.NewGoFunction("resolve", func(c *Call) (Value, error) {
			resolve(c.Arg(0))
			return Undefined(), nil
		})
		rejectFn := c.Realm.NewGoFunction("reject", func(c *Call) (Value, error) {
			reject(c.Arg(0))
			return Undefined(), nil
		})
		if _, err := callFunction(executor, Undefined(), []Value{ObjectValue(resolveFn), ObjectValue(rejectFn)}); err != nil {
			reject(c.Realm.thrownValue(err))
		}
		return ObjectValue(p), nil
	})
	r.defineMethod(promiseCtor, "Promise", "resolve", 1, func(c *Call) (Value, error) {
		if obj := c.Arg(0).Object(); obj != nil && obj.promise != nil {
			return c.Arg(0), nil
		}
		p, resolve, _ := c.Realm.NewPromise()
		resolve(c.Arg(0))
		return ObjectValue(p), nil
	})
	r.defineMethod(promiseCtor, "Promise", "reject", 1, func(c *Call) (Value, error) {
		p, _, reject := c.Realm.NewPromise()
		reject(c.Arg(0))
		return ObjectValue(p), nil
	})
}

// thrownValue turns a Go error from a call into the value a script would
// have caught.
func (r *Realm) thrownValue(err error) Value {
	if thrown, ok := err.(*ThrowError); ok {
		return thrown.Value
	}
	name, message, _ := errorParts(err)
	return ObjectValue(r.NewError(name, message))
}
