package iso

import (
	"bytes"
	"math/big"
)

type cloneKind uint8

const (
	cloneUndefined cloneKind = iota
	cloneNull
	cloneBool
	cloneNumber
	cloneString
	cloneBigInt
	cloneObject
	cloneArray
	cloneDate
	cloneMap
	cloneSet
	cloneError
	cloneBuffer
	cloneView
	cloneHandle
)

// CloneNode is one value of a CloneRecord. Which fields are meaningful
// depends on Kind; composite nodes refer to their children by index.
type CloneNode struct {
	Kind cloneKind
	Bool bool
	Num  float64
	// Str holds strings, bigint digits, view and handle kinds.
	Str  string
	Keys []string
	Refs []int

	Name, Message, Stack string

	Bytes  []byte
	Moved  bool
	Offset int
	Length int
	// Resource is the payload of a handle; it never leaves the process.
	Resource any
}

// CloneRecord is a realm-independent snapshot of a value graph, the unit
// that crosses the isolate boundary. Shared references and cycles are kept:
// every object is one node however often it is reached.
type CloneRecord struct {
	Nodes []CloneNode
	Root  int
}

type cloner struct {
	nodes    []CloneNode
	seen     map[*Object]int
	transfer map[*Object]bool
}

// Clone snapshots v. Buffers and handles in transfer move: the record takes
// their contents and the originals are detached once the snapshot succeeds.
// Other buffers are copied.
func Clone(v Value, transfer []*Object) (*CloneRecord, error) {
	c := &cloner{seen: make(map[*Object]int), transfer: make(map[*Object]bool)}
	for _, obj := range transfer {
		switch {
		case obj.class == ClassArrayBuffer && !obj.buffer.detached:
		case obj.class == ClassHandle && !obj.handle.detached:
		default:
			return nil, cloneErrorf("%s is not transferable", ObjectValue(obj).String())
		}
		if c.transfer[obj] {
			return nil, cloneErrorf("%s is listed for transfer twice", ObjectValue(obj).String())
		}
		c.transfer[obj] = true
	}
	root, err := c.clone(v)
	if err != nil {
		return nil, err
	}
	for _, obj := range transfer {
		if obj.buffer != nil {
			obj.buffer.detach()
		} else {
			obj.handle.detached = true
		}
	}
	return &CloneRecord{Nodes: c.nodes, Root: root}, nil
}

func (c *cloner) add(n CloneNode) int {
	c.nodes = append(c.nodes, n)
	return len(c.nodes) - 1
}

func (c *cloner) clone(v Value) (int, error) {
	switch v.Kind() {
	case KindUndefined:
		return c.add(CloneNode{Kind: cloneUndefined}), nil
	case KindNull:
		return c.add(CloneNode{Kind: cloneNull}), nil
	case KindBool:
		return c.add(CloneNode{Kind: cloneBool, Bool: v.Bool()}), nil
	case KindNumber:
		return c.add(CloneNode{Kind: cloneNumber, Num: v.Number()}), nil
	case KindString:
		return c.add(CloneNode{Kind: cloneString, Str: v.Str()}), nil
	case KindBigInt:
		return c.add(CloneNode{Kind: cloneBigInt, Str: v.BigInt().String()}), nil
	case KindSymbol:
		return 0, cloneErrorf("%s could not be cloned", v.String())
	}

	obj := v.Object()
	if idx, ok := c.seen[obj]; ok {
		return idx, nil
	}
	switch obj.class {
	case ClassFunction:
		return 0, cloneErrorf("%s could not be cloned", calleeName(obj))
	case ClassPromise:
		return 0, cloneErrorf("#<Promise> could not be cloned")
	case ClassDate:
		return c.memo(obj, CloneNode{Kind: cloneDate, Num: obj.date}), nil
	case ClassArrayBuffer:
		if obj.buffer.detached {
			return 0, cloneErrorf("an ArrayBuffer is detached and could not be cloned")
		}
		if c.transfer[obj] {
			return c.memo(obj, CloneNode{Kind: cloneBuffer, Bytes: obj.buffer.data, Moved: true}), nil
		}
		return c.memo(obj, CloneNode{Kind: cloneBuffer, Bytes: bytes.Clone(obj.buffer.data)}), nil
	case ClassTypedArray:
		idx := c.memo(obj, CloneNode{Kind: cloneView, Str: obj.view.kind.name, Offset: obj.view.offset, Length: obj.view.count})
		buf, err := c.clone(ObjectValue(obj.view.buffer))
		if err != nil {
			return 0, err
		}
		c.nodes[idx].Refs = []int{buf}
		return idx, nil
	case ClassHandle:
		if !c.transfer[obj] {
			return 0, cloneErrorf("%s handle must be transferred, not copied", obj.handle.kind)
		}
		return c.memo(obj, CloneNode{Kind: cloneHandle, Str: obj.handle.kind, Resource: obj.handle.resource}), nil
	case ClassError:
		name, message, stack := errorFields(obj)
		return c.memo(obj, CloneNode{Kind: cloneError, Name: name, Message: message, Stack: stack}), nil
	case ClassMap, ClassSet:
		kind := cloneMap
		if obj.class == ClassSet {
			kind = cloneSet
		}
		idx := c.memo(obj, CloneNode{Kind: kind})
		var refs []int
		for _, entry := range obj.entries.list() {
			k, err := c.clone(entry.Key)
			if err != nil {
				return 0, err
			}
			refs = append(refs, k)
			if kind == cloneSet {
				continue
			}
			val, err := c.clone(entry.Value)
			if err != nil {
				return 0, err
			}
			refs = append(refs, val)
		}
		c.nodes[idx].Refs = refs
		return idx, nil
	case ClassArray:
		idx := c.memo(obj, CloneNode{Kind: cloneArray, Length: obj.arrayLen})
		refs := make([]int, 0, obj.arrayLen)
		for i := 0; i < obj.arrayLen; i++ {
			item, err := obj.Get(StringKey(itoa(i)))
			if err != nil {
				return 0, err
			}
			ref, err := c.clone(item)
			if err != nil {
				return 0, err
			}
			refs = append(refs, ref)
		}
		c.nodes[idx].Refs = refs
		return idx, nil
	}

	idx := c.memo(obj, CloneNode{Kind: cloneObject})
	var keys []string
	var refs []int
	for _, key := range obj.OwnKeys() {
		if key.IsSymbol() {
			continue
		}
		if d, ok := obj.GetOwnProperty(key); !ok || !d.Enumerable {
			continue
		}
		val, err := obj.Get(key)
		if err != nil {
			return 0, err
		}
		ref, err := c.clone(val)
		if err != nil {
			return 0, err
		}
		keys = append(keys, key.name)
		refs = append(refs, ref)
	}
	c.nodes[idx].Keys = keys
	c.nodes[idx].Refs = refs
	return idx, nil
}

func (c *cloner) memo(obj *Object, n CloneNode) int {
	idx := c.add(n)
	c.seen[obj] = idx
	return idx
}

func errorFields(obj *Object) (name, message, stack string) {
	n, _ := obj.lookupValue(StringKey("name"))
	m, _ := obj.lookupValue(StringKey("message"))
	s, _ := obj.getOwnValue(StringKey("stack"))
	name = "Error"
	if n.Kind() == KindString {
		name = n.Str()
	}
	if !m.IsUndefined() {
		message = m.String()
	}
	if s.Kind() == KindString {
		stack = s.Str()
	}
	return name, message, stack
}

// Revive rebuilds a record as fresh objects of r.
func (r *Realm) Revive(rec *CloneRecord) (Value, error) {
	v := reviver{realm: r, rec: rec, objects: make(map[int]*Object)}
	return v.revive(rec.Root)
}

type reviver struct {
	realm   *Realm
	rec     *CloneRecord
	objects map[int]*Object
}

func (v *reviver) revive(idx int) (Value, error) {
	if idx < 0 || idx >= len(v.rec.Nodes) {
		return Undefined(), cloneErrorf("clone record refers to missing node %d", idx)
	}
	if obj, ok := v.objects[idx]; ok {
		return ObjectValue(obj), nil
	}
	n := &v.rec.Nodes[idx]
	r := v.realm
	switch n.Kind {
	case cloneUndefined:
		return Undefined(), nil
	case cloneNull:
		return Null(), nil
	case cloneBool:
		return NewBool(n.Bool), nil
	case cloneNumber:
		return NewNumber(n.Num), nil
	case cloneString:
		return NewString(n.Str), nil
	case cloneBigInt:
		b, ok := new(big.Int).SetString(n.Str, 10)
		if !ok {
			return Undefined(), cloneErrorf("invalid bigint %q", n.Str)
		}
		return NewBigInt(b), nil
	case cloneDate:
		return ObjectValue(v.keep(idx, r.NewDate(n.Num))), nil
	case cloneError:
		return ObjectValue(v.keep(idx, r.reviveError(n.Name, n.Message, n.Stack))), nil
	case cloneBuffer:
		data := n.Bytes
		if !n.Moved {
			data = bytes.Clone(data)
		}
		return ObjectValue(v.keep(idx, r.NewArrayBuffer(data))), nil
	case cloneHandle:
		return ObjectValue(v.keep(idx, r.NewHandle(n.Str, n.Resource))), nil
	case cloneView:
		if len(n.Refs) != 1 {
			return Undefined(), cloneErrorf("typed array without buffer")
		}
		buf, err := v.revive(n.Refs[0])
		if err != nil {
			return Undefined(), err
		}
		view, err := r.NewTypedArray(n.Str, buf.Object(), n.Offset, n.Length)
		if err != nil {
			return Undefined(), err
		}
		return ObjectValue(v.keep(idx, view)), nil
	case cloneArray:
		arr := v.keep(idx, r.NewArray())
		for i, ref := range n.Refs {
			item, err := v.revive(ref)
			if err != nil {
				return Undefined(), err
			}
			if err := arr.DefineOwnProperty(StringKey(itoa(i)), DataProperty(item, true, true, true)); err != nil {
				return Undefined(), err
			}
		}
		return ObjectValue(arr), nil
	case cloneMap, cloneSet:
		var container *Object
		step := 2
		if n.Kind == cloneSet {
			container, step = r.NewSet(), 1
		} else {
			container = r.NewMap()
		}
		v.objects[idx] = container
		if len(n.Refs)%step != 0 {
			return Undefined(), cloneErrorf("map record has an odd number of refs")
		}
		for i := 0; i < len(n.Refs); i += step {
			key, err := v.revive(n.Refs[i])
			if err != nil {
				return Undefined(), err
			}
			val := key
			if step == 2 {
				if val, err = v.revive(n.Refs[i+1]); err != nil {
					return Undefined(), err
				}
			}
			container.MapSet(key, val)
		}
		return ObjectValue(container), nil
	case cloneObject:
		obj := v.keep(idx, r.NewObject())
		if len(n.Keys) != len(n.Refs) {
			return Undefined(), cloneErrorf("record keys and values differ in length")
		}
		for i, key := range n.Keys {
			val, err := v.revive(n.Refs[i])
			if err != nil {
				return Undefined(), err
			}
			if err := obj.DefineOwnProperty(StringKey(key), DataProperty(val, true, true, true)); err != nil {
				return Undefined(), err
			}
		}
		return ObjectValue(obj), nil
	}
	return Undefined(), cloneErrorf("unknown clone node kind %d", n.Kind)
}

func (v *reviver) keep(idx int, obj *Object) *Object {
	v.objects[idx] = obj
	return obj
}
