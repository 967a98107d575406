package iso

import "slices"

// Capabilities is a host's static table of what it can move rather than
// copy across the isolate boundary.
type Capabilities struct {
	// Buffers reports whether ArrayBuffers (and the buffers behind typed
	// views) are transferable.
	Buffers bool
	// Handles lists the transferable handle kinds.
	Handles []string
}

func (c Capabilities) handle(kind string) bool {
	return slices.Contains(c.Handles, kind)
}

func (c Capabilities) transferable(o *Object) bool {
	switch o.class {
	case ClassArrayBuffer:
		return c.Buffers && !o.buffer.detached
	case ClassHandle:
		return c.handle(o.handle.kind) && !o.handle.detached
	}
	return false
}

type transferMode int

const (
	transferAuto transferMode = iota
	transferCopy
	transferList
)

// TransferPolicy decides which buffers and handles move with each call.
type TransferPolicy struct {
	mode transferMode
	list []*Object
}

var (
	// AutoTransfer moves every transferable value found in the arguments.
	AutoTransfer = TransferPolicy{}
	// CopyOnly never moves buffers; handles, which cannot be copied, still
	// move.
	CopyOnly = TransferPolicy{mode: transferCopy}
)

// TransferList moves exactly the given values with every call.
func TransferList(values ...Value) TransferPolicy {
	p := TransferPolicy{mode: transferList}
	seen := make(map[*Object]bool)
	for _, v := range values {
		if obj := v.Object(); obj != nil && !seen[obj] {
			seen[obj] = true
			p.list = append(p.list, obj)
		}
	}
	return p
}

func (p TransferPolicy) transfers(caps Capabilities, args []Value) []*Object {
	switch p.mode {
	case transferList:
		return p.list
	case transferCopy:
		handles := Capabilities{Handles: caps.Handles}
		return Collect(handles, args...)
	}
	return Collect(caps, args...)
}

// Collect walks values and returns every transferable buffer and handle they
// reach, each at most once.
func Collect(caps Capabilities, values ...Value) []*Object {
	c := collector{caps: caps, seen: make(map[*Object]bool)}
	for _, v := range values {
		c.walk(v)
	}
	return c.out
}

type collector struct {
	caps Capabilities
	seen map[*Object]bool
	out  []*Object
}

func (c *collector) walk(v Value) {
	o := v.Object()
	if o == nil || o.intrinsic != "" || c.seen[o] {
		return
	}
	c.seen[o] = true
	switch o.class {
	case ClassArrayBuffer, ClassHandle:
		if c.caps.transferable(o) {
			c.out = append(c.out, o)
		}
		return
	case ClassTypedArray:
		c.walk(ObjectValue(o.view.buffer))
		return
	case ClassFunction, ClassPromise:
		return
	case ClassMap, ClassSet:
		for _, entry := range o.entries.list() {
			c.walk(entry.Key)
			c.walk(entry.Value)
		}
	}
	for _, key := range o.keys {
		if d := o.props[key]; d != nil && !d.Accessor {
			c.walk(d.Value)
		}
	}
}
