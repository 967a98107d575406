package iso

import (
	"math"
	"time"
)

func (r *Realm) installDate() {
	r.dateProto = newObject(ClassObject, r.objectProto)
	dateCtor := r.defineConstructor("Date", 1, r.dateProto, func(c *Call) (Value, error) {
		now := float64(time.Now().UnixMilli())
		if c.NewTarget == nil {
			return NewString(formatDate(now)), nil
		}
		ms := now
		if len(c.Args) > 0 {
			arg := c.Args[0]
			if obj := arg.Object(); obj != nil && obj.class == ClassDate {
				ms = obj.date
			} else {
				ms = toNumber(arg)
			}
		}
		d := c.Realm.NewDate(ms)
		d.proto = c.protoFor(c.Realm.dateProto)
		return ObjectValue(d), nil
	})
	r.defineMethod(dateCtor, "Date", "now", 0, func(c *Call) (Value, error) {
		return NewNumber(float64(time.Now().UnixMilli())), nil
	})
	thisDate := func(c *Call, name string) (*Object, error) {
		d := c.This.Object()
		if d == nil || d.class != ClassDate {
			return nil, typeErrorf("Date.prototype.%s called on %s", name, c.This.String())
		}
		return d, nil
	}
	r.defineMethod(r.dateProto, "Date.prototype", "getTime", 0, func(c *Call) (Value, error) {
		d, err := thisDate(c, "getTime")
		if err != nil {
			return Undefined(), err
		}
		return NewNumber(d.date), nil
	})
	r.defineMethod(r.dateProto, "Date.prototype", "toISOString", 0, func(c *Call) (Value, error) {
		d, err := thisDate(c, "toISOString")
		if err != nil {
			return Undefined(), err
		}
		if math.IsNaN(d.date) {
			return Undefined(), rangeErrorf("invalid time value")
		}
		return NewString(formatDate(d.date)), nil
	})
}

func formatDate(ms float64) string {
	if math.IsNaN(ms) {
		return "Invalid Date"
	}
	return time.UnixMilli(int64(ms)).UTC().Format("2006-01-02T15:04:05.000Z")
}

// iterableItems lists the elements of an array, Map (as [k, v] pairs) or Set.
func iterableItems(r *Realm, v Value) ([]Value, error) {
	obj := v.Object()
	if obj == nil {
		return nil, typeErrorf("%s is not iterable", v.String())
	}
	switch obj.class {
	case ClassArray:
		items := make([]Value, obj.arrayLen)
		for i := range items {
			item, err := obj.Get(StringKey(itoa(i)))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	case ClassTypedArray:
		items := make([]Value, obj.view.length())
		for i := range items {
			items[i], _ = obj.view.get(i)
		}
		return items, nil
	case ClassMap:
		var items []Value
		for _, e := range obj.entries.list() {
			items = append(items, ObjectValue(r.NewArray(e.Key, e.Value)))
		}
		return items, nil
	case ClassSet:
		var items []Value
		for _, e := range obj.entries.list() {
			items = append(items, e.Key)
		}
		return items, nil
	}
	return nil, typeErrorf("%s is not iterable", v.String())
}

func (r *Realm) installCollections() {
	r.mapProto = newObject(ClassObject, r.objectProto)
	r.setProto = newObject(ClassObject, r.objectProto)

	r.defineConstructor("Map", 0, r.mapProto, func(c *Call) (Value, error) {
		if c.NewTarget == nil {
			return Undefined(), typeErrorf("constructor Map requires 'new'")
		}
		m := c.Realm.NewMap()
		m.proto = c.protoFor(c.Realm.mapProto)
		if init := c.Arg(0); !init.IsNullish() {
			items, err := iterableItems(c.Realm, init)
			if err != nil {
				return Undefined(), err
			}
			for _, item := range items {
				pair := item.Object()
				if pair == nil {
					return Undefined(), typeErrorf("iterator value %s is not an entry object", item.String())
				}
				k, err := pair.Get(StringKey("0"))
				if err != nil {
					return Undefined(), err
				}
				v, err := pair.Get(StringKey("1"))
				if err != nil {
					return Undefined(), err
				}
				m.entries.set(k, v)
			}
		}
		return ObjectValue(m), nil
	})
	r.defineConstructor("Set", 0, r.setProto, func(c *Call) (Value, error) {
		if c.NewTarget == nil {
			return Undefined(), typeErrorf("constructor Set requires 'new'")
		}
		s := c.Realm.NewSet()
		s.proto = c.protoFor(c.Realm.setProto)
		if init := c.Arg(0); !init.IsNullish() {
			items, err := iterableItems(c.Realm, init)
			if err != nil {
				return Undefined(), err
			}
			for _, item := range items {
				s.entries.set(item, item)
			}
		}
		return ObjectValue(s), nil
	})

	thisCollection := func(class ObjectClass, method string) func(c *Call) (*orderedMap, error) {
		return func(c *Call) (*orderedMap, error) {
			obj := c.This.Object()
			if obj == nil || obj.class != class {
				return nil, typeErrorf("%s.prototype.%s called on incompatible receiver %s", class, method, c.This.String())
			}
			return obj.entries, nil
		}
	}
	method := func(proto *Object, class ObjectClass, name string, arity int, run func(c *Call, m *orderedMap) (Value, error)) {
		this := thisCollection(class, name)
		r.defineMethod(proto, class.String()+".prototype", name, arity, func(c *Call) (Value, error) {
			m, err := this(c)
			if err != nil {
				return Undefined(), err
			}
			return run(c, m)
		})
	}
	for _, class := range []ObjectClass{ClassMap, ClassSet} {
		proto := r.mapProto
		if class == ClassSet {
			proto = r.setProto
		}
		method(proto, class, "has", 1, func(c *Call, m *orderedMap) (Value, error) {
			return NewBool(m.has(c.Arg(0))), nil
		})
		method(proto, class, "delete", 1, func(c *Call, m *orderedMap) (Value, error) {
			return NewBool(m.delete(c.Arg(0))), nil
		})
		method(proto, class, "forEach", 1, func(c *Call, m *orderedMap) (Value, error) {
			fn := c.Arg(0).Object()
			if !fn.isCallable() {
				return Undefined(), typeErrorf("%s is not a function", c.Arg(0).String())
			}
			for _, e := range m.list() {
				if _, err := callFunction(fn, c.Arg(1), []Value{e.Value, e.Key, c.This}); err != nil {
					return Undefined(), err
				}
			}
			return Undefined(), nil
		})
		size := thisCollection(class, "size")
		r.defineGetter(proto, "size", func(c *Call) (Value, error) {
			m, err := size(c)
			if err != nil {
				return Undefined(), err
			}
			return NewInt(int64(m.size())), nil
		})
	}
	method(r.mapProto, ClassMap, "get", 1, func(c *Call, m *orderedMap) (Value, error) {
		v, _ := m.get(c.Arg(0))
		return v, nil
	})
	method(r.mapProto, ClassMap, "set", 2, func(c *Call, m *orderedMap) (Value, error) {
		m.set(c.Arg(0), c.Arg(1))
		return c.This, nil
	})
	method(r.setProto, ClassSet, "add", 1, func(c *Call, m *orderedMap) (Value, error) {
		m.set(c.Arg(0), c.Arg(0))
		return c.This, nil
	})
}
