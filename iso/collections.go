package iso

import "math"

// mapKey is the SameValueZero identity of a Map key or Set element.
type mapKey struct {
	kind ValueKind
	str  string
	num  float64
	ref  any
}

func hashKey(v Value) mapKey {
	switch v.kind {
	case KindNumber:
		f := v.Number()
		if math.IsNaN(f) {
			return mapKey{kind: KindNumber, str: "NaN"}
		}
		if f == 0 {
			f = 0
		}
		return mapKey{kind: KindNumber, num: f}
	case KindString:
		return mapKey{kind: KindString, str: v.Str()}
	case KindBool:
		if v.Bool() {
			return mapKey{kind: KindBool, num: 1}
		}
		return mapKey{kind: KindBool}
	case KindBigInt:
		return mapKey{kind: KindBigInt, str: v.BigInt().String()}
	case KindSymbol:
		return mapKey{kind: KindSymbol, ref: v.Symbol()}
	case KindObject:
		return mapKey{kind: KindObject, ref: v.Object()}
	default:
		return mapKey{kind: v.kind}
	}
}

type MapEntry struct {
	Key   Value
	Value Value
}

// orderedMap keeps Map/Set entries in insertion order. Deleted entries are
// tombstoned and compacted once they outnumber live ones.
type orderedMap struct {
	index   map[mapKey]int
	entries []MapEntry
	deleted []bool
	live    int
}

func newOrderedMap() *orderedMap {
	return &orderedMap{index: make(map[mapKey]int)}
}

func (m *orderedMap) get(k Value) (Value, bool) {
	i, ok := m.index[hashKey(k)]
	if !ok {
		return Undefined(), false
	}
	return m.entries[i].Value, true
}

func (m *orderedMap) has(k Value) bool {
	_, ok := m.index[hashKey(k)]
	return ok
}

func (m *orderedMap) set(k, v Value) {
	h := hashKey(k)
	if i, ok := m.index[h]; ok {
		m.entries[i].Value = v
		return
	}
	if k.kind == KindNumber && k.Number() == 0 {
		k = NewNumber(0)
	}
	m.index[h] = len(m.entries)
	m.entries = append(m.entries, MapEntry{Key: k, Value: v})
	m.deleted = append(m.deleted, false)
	m.live++
}

func (m *orderedMap) delete(k Value) bool {
	h := hashKey(k)
	i, ok := m.index[h]
	if !ok {
		return false
	}
	delete(m.index, h)
	m.entries[i] = MapEntry{}
	m.deleted[i] = true
	m.live--
	if len(m.entries) > 8 && m.live < len(m.entries)/2 {
		m.compact()
	}
	return true
}

// rekey replaces the key old with key in place, keeping the entry's position.
func (m *orderedMap) rekey(old, key Value) bool {
	h := hashKey(old)
	i, ok := m.index[h]
	if !ok {
		return false
	}
	nh := hashKey(key)
	if j, dup := m.index[nh]; dup && j != i {
		return false
	}
	delete(m.index, h)
	m.index[nh] = i
	m.entries[i].Key = key
	return true
}

func (m *orderedMap) compact() {
	entries := make([]MapEntry, 0, m.live)
	for i, e := range m.entries {
		if !m.deleted[i] {
			m.index[hashKey(e.Key)] = len(entries)
			entries = append(entries, e)
		}
	}
	m.entries = entries
	m.deleted = make([]bool, len(entries))
}

func (m *orderedMap) size() int { return m.live }

func (m *orderedMap) list() []MapEntry {
	out := make([]MapEntry, 0, m.live)
	for i, e := range m.entries {
		if !m.deleted[i] {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns the entries of a Map, or the elements of a Set as keys.
func (o *Object) Entries() []MapEntry {
	if o.entries == nil {
		return nil
	}
	return o.entries.list()
}

func (o *Object) MapGet(k Value) (Value, bool) {
	if o.entries == nil {
		return Undefined(), false
	}
	return o.entries.get(k)
}

// MapSet inserts into a Map; on a Set, v is ignored and k is added.
func (o *Object) MapSet(k, v Value) {
	if o.entries == nil {
		return
	}
	if o.class == ClassSet {
		v = k
	}
	o.entries.set(k, v)
}

func (o *Object) MapHas(k Value) bool {
	return o.entries != nil && o.entries.has(k)
}
