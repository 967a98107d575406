package iso

import (
	"encoding/binary"
	"math"
)

type bufferData struct {
	data     []byte
	detached bool
}

// detach hands the bytes to the caller and leaves the buffer empty.
func (b *bufferData) detach() []byte {
	data := b.data
	b.data = nil
	b.detached = true
	return data
}

type viewKind struct {
	name    string
	size    int
	float   bool
	signed  bool
	clamped bool
}

var viewKinds = []viewKind{
	{name: "Int8Array", size: 1, signed: true},
	{name: "Uint8Array", size: 1},
	{name: "Uint8ClampedArray", size: 1, clamped: true},
	{name: "Int16Array", size: 2, signed: true},
	{name: "Uint16Array", size: 2},
	{name: "Int32Array", size: 4, signed: true},
	{name: "Uint32Array", size: 4},
	{name: "Float32Array", size: 4, float: true},
	{name: "Float64Array", size: 8, float: true},
}

func lookupViewKind(name string) (viewKind, bool) {
	for _, k := range viewKinds {
		if k.name == name {
			return k, true
		}
	}
	return viewKind{}, false
}

type viewData struct {
	kind   viewKind
	buffer *Object
	offset int
	count  int
}

func (v *viewData) length() int {
	if v.buffer.buffer.detached {
		return 0
	}
	return v.count
}

func (v *viewData) bytes(idx int) []byte {
	start := v.offset + idx*v.kind.size
	return v.buffer.buffer.data[start : start+v.kind.size]
}

func (v *viewData) get(idx int) (Value, bool) {
	if idx < 0 || idx >= v.length() {
		return Undefined(), false
	}
	b := v.bytes(idx)
	var f float64
	switch {
	case v.kind.float && v.kind.size == 4:
		f = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case v.kind.float:
		f = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case v.kind.size == 1 && v.kind.signed:
		f = float64(int8(b[0]))
	case v.kind.size == 1:
		f = float64(b[0])
	case v.kind.size == 2 && v.kind.signed:
		f = float64(int16(binary.LittleEndian.Uint16(b)))
	case v.kind.size == 2:
		f = float64(binary.LittleEndian.Uint16(b))
	case v.kind.signed:
		f = float64(int32(binary.LittleEndian.Uint32(b)))
	default:
		f = float64(binary.LittleEndian.Uint32(b))
	}
	return NewNumber(f), true
}

func (v *viewData) set(idx int, val Value) error {
	if idx < 0 || idx >= v.length() {
		return nil
	}
	f := toNumber(val)
	b := v.bytes(idx)
	switch {
	case v.kind.float && v.kind.size == 4:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
	case v.kind.float:
		binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	case v.kind.clamped:
		switch {
		case math.IsNaN(f) || f <= 0:
			b[0] = 0
		case f >= 255:
			b[0] = 255
		default:
			b[0] = uint8(math.RoundToEven(f))
		}
	default:
		n := wrapInt(f)
		switch v.kind.size {
		case 1:
			b[0] = uint8(n)
		case 2:
			binary.LittleEndian.PutUint16(b, uint16(n))
		default:
			binary.LittleEndian.PutUint32(b, uint32(n))
		}
	}
	return nil
}

// wrapInt is the modular integer conversion shared by the integer views.
func wrapInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Mod(math.Trunc(f), 1<<32))
}

// Bytes returns the live backing bytes of an ArrayBuffer, or the viewed
// window of a typed array.
func (o *Object) Bytes() []byte {
	switch {
	case o.buffer != nil:
		return o.buffer.data
	case o.view != nil:
		if o.view.length() == 0 {
			return nil
		}
		start := o.view.offset
		return o.view.buffer.buffer.data[start : start+o.view.count*o.view.kind.size]
	}
	return nil
}

// Detached reports whether a buffer (or a view's buffer) has been moved away.
func (o *Object) Detached() bool {
	switch {
	case o.buffer != nil:
		return o.buffer.detached
	case o.view != nil:
		return o.view.buffer.buffer.detached
	case o.handle != nil:
		return o.handle.detached
	}
	return false
}

// ViewKind returns the constructor name of a typed array ("Uint8Array").
func (o *Object) ViewKind() string {
	if o.view == nil {
		return ""
	}
	return o.view.kind.name
}

// ViewBuffer returns the ArrayBuffer behind a typed array.
func (o *Object) ViewBuffer() *Object {
	if o.view == nil {
		return nil
	}
	return o.view.buffer
}
