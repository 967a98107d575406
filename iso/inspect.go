package iso

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Inspect renders v structurally: strings quoted, records and collections
// expanded, cycles shown as [Circular].
func Inspect(v Value) string {
	s := inspectState{seen: make(map[*Object]struct{})}
	return s.format(v)
}

type inspectState struct {
	seen map[*Object]struct{}
}

func (s *inspectState) format(v Value) string {
	switch v.Kind() {
	case KindString:
		return quoteString(v.Str())
	case KindBigInt:
		return v.BigInt().String() + "n"
	case KindNumber:
		return numberLiteral(v.Number())
	case KindObject:
	default:
		return v.String()
	}

	obj := v.Object()
	if _, ok := s.seen[obj]; ok {
		return "[Circular]"
	}
	s.seen[obj] = struct{}{}
	defer delete(s.seen, obj)

	switch obj.class {
	case ClassFunction:
		name := obj.fn.name
		if name == "" {
			name = "(anonymous)"
		}
		return "[Function: " + name + "]"
	case ClassArray:
		parts := make([]string, obj.arrayLen)
		for i := range parts {
			item, ok := obj.getOwnValue(StringKey(strconv.Itoa(i)))
			if !ok {
				parts[i] = "<empty>"
				continue
			}
			parts[i] = s.format(item)
		}
		return s.wrap("", "[", "]", parts)
	case ClassDate:
		if math.IsNaN(obj.date) {
			return "Invalid Date"
		}
		return time.UnixMilli(int64(obj.date)).UTC().Format("2006-01-02T15:04:05.000Z")
	case ClassMap:
		var parts []string
		for _, entry := range obj.Entries() {
			parts = append(parts, s.format(entry.Key)+" => "+s.format(entry.Value))
		}
		return s.wrap("Map("+strconv.Itoa(len(parts))+") ", "{", "}", parts)
	case ClassSet:
		var parts []string
		for _, entry := range obj.Entries() {
			parts = append(parts, s.format(entry.Key))
		}
		return s.wrap("Set("+strconv.Itoa(len(parts))+") ", "{", "}", parts)
	case ClassError:
		return ObjectValue(obj).String()
	case ClassArrayBuffer:
		if obj.buffer.detached {
			return "ArrayBuffer { (detached) }"
		}
		return "ArrayBuffer { byteLength: " + strconv.Itoa(len(obj.buffer.data)) + " }"
	case ClassTypedArray:
		n := obj.view.length()
		parts := make([]string, n)
		for i := range parts {
			item, _ := obj.view.get(i)
			parts[i] = s.format(item)
		}
		return s.wrap(obj.view.kind.name+"("+strconv.Itoa(n)+") ", "[", "]", parts)
	case ClassHandle:
		return "[" + obj.handle.kind + "]"
	case ClassPromise:
		settled, rejected, result := obj.PromiseState()
		switch {
		case !settled:
			return "Promise { <pending> }"
		case rejected:
			return "Promise { <rejected> " + s.format(result) + " }"
		}
		return "Promise { " + s.format(result) + " }"
	}
	return s.record(obj)
}

func (s *inspectState) record(obj *Object) string {
	var parts []string
	for _, key := range obj.OwnKeys() {
		d, _ := obj.GetOwnProperty(key)
		if !d.Enumerable {
			continue
		}
		name := propertyName(key.name)
		if key.IsSymbol() {
			name = "[" + key.sym.String() + "]"
		}
		switch {
		case d.Accessor && d.Set != nil && d.Get != nil:
			parts = append(parts, name+": [Getter/Setter]")
		case d.Accessor && d.Get != nil:
			parts = append(parts, name+": [Getter]")
		case d.Accessor:
			parts = append(parts, name+": [Setter]")
		default:
			parts = append(parts, name+": "+s.format(d.Value))
		}
	}
	prefix := ""
	if obj.proto == nil {
		prefix = "[Object: null prototype] "
	} else if owner := prototypeOwner(obj.proto); owner != nil && owner.fn.name != "" {
		prefix = owner.fn.name + " "
	}
	return s.wrap(prefix, "{", "}", parts)
}

func (s *inspectState) wrap(prefix, open, close string, parts []string) string {
	if len(parts) == 0 {
		return prefix + open + close
	}
	return prefix + open + " " + strings.Join(parts, ", ") + " " + close
}
