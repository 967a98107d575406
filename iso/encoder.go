package iso

import (
	"fmt"
	"strconv"
	"strings"
)

// encoder turns one dependency graph into program text. Values it cannot
// place inline (cycles, moved buffers, handles) come back late: the caller
// writes a placeholder and the real value arrives through a patch.
type encoder struct {
	reg      *Registry
	caps     Capabilities
	copy     bool
	patches  []PendingPatch
	data     []Value
	transfer []*Object
	queued   map[*Object]bool
	// ctors are named constructors in the order they were first emitted.
	ctors []*Object
}

func newEncoder(reg *Registry, cfg ContextConfig) *encoder {
	return &encoder{
		reg:    reg,
		caps:   cfg.Capabilities,
		copy:   cfg.CopyBuffers,
		queued: make(map[*Object]bool),
	}
}

// encode returns the expression for v. When late is set, expr is only valid
// after the patches preceding it have run.
func (e *encoder) encode(v Value, path string) (expr string, late bool, err error) {
	switch v.Kind() {
	case KindSymbol:
		return e.encodeSymbol(v), false, nil
	case KindObject:
		return e.encodeObject(v.Object(), path)
	}
	text, _ := encodePrimitive(v)
	return text, false, nil
}

func (e *encoder) encodeSymbol(v Value) string {
	sym := v.Symbol()
	if key, ok := sym.Key(); ok {
		return "Symbol.for(" + quoteString(key) + ")"
	}
	if ref, ok := e.reg.Slot(v); ok {
		return ref
	}
	if !sym.hasDesc {
		return e.reg.Bind(v, "Symbol()")
	}
	return e.reg.Bind(v, "Symbol("+quoteString(sym.description)+")")
}

// reference re-reads a value whose construction was already emitted.
func (e *encoder) reference(v Value) string {
	if obj := v.Object(); obj != nil {
		if obj.intrinsic != "" {
			return obj.intrinsic
		}
		if ref, ok := e.reg.Slot(v); ok {
			return ref
		}
	}
	expr, _, _ := e.encode(v, "")
	return expr
}

func (e *encoder) patch(target string, source Value, code string) {
	e.patches = append(e.patches, PendingPatch{Target: target, Source: source, Code: code})
}

func (e *encoder) encodeObject(o *Object, path string) (string, bool, error) {
	if o.intrinsic != "" {
		return o.intrinsic, false, nil
	}
	if s := e.reg.objects[o]; s != nil {
		return e.reg.refer(s), e.reg.state(s) != slotDone, nil
	}
	switch o.class {
	case ClassArrayBuffer, ClassTypedArray, ClassHandle:
		return e.encodeMoved(o, path)
	case ClassFunction:
		return e.encodeFunction(o, path)
	}
	if fo := prototypeOwner(o); fo != nil && e.reg.objects[fo] == nil {
		expr, _, err := e.encodeFunction(fo, path+".constructor")
		if err != nil {
			return "", false, err
		}
		return "(" + expr + ").prototype", false, nil
	}

	s := e.reg.reserve(o)
	expr, err := e.construct(o, s, path)
	if err != nil {
		return "", false, err
	}
	s.state = slotDone
	e.lock(o, s, path)
	return e.reg.wrap(s, expr), false, nil
}

// encodeMoved routes buffers, views and handles through the patch payload.
func (e *encoder) encodeMoved(o *Object, path string) (string, bool, error) {
	switch o.class {
	case ClassHandle:
		if o.handle.detached {
			return "", false, &EncodingError{Path: path, Reason: "handle was already transferred"}
		}
		if !e.caps.handle(o.handle.kind) {
			return "", false, &EncodingError{Path: path, Reason: o.handle.kind + " handles cannot be transferred by this host"}
		}
		e.queue(o)
	case ClassArrayBuffer:
		if o.buffer.detached {
			return "", false, &EncodingError{Path: path, Reason: "ArrayBuffer is detached"}
		}
		if e.caps.Buffers && !e.copy {
			e.queue(o)
		}
	case ClassTypedArray:
		if o.view.buffer.buffer.detached {
			return "", false, &EncodingError{Path: path, Reason: "underlying ArrayBuffer is detached"}
		}
		if e.caps.Buffers && !e.copy {
			e.queue(o.view.buffer)
		}
	}
	ref := "__iso.data[" + strconv.Itoa(len(e.data)) + "]"
	e.data = append(e.data, ObjectValue(o))
	e.reg.deferred(o, ref)
	return ref, true, nil
}

func (e *encoder) queue(o *Object) {
	if !e.queued[o] {
		e.queued[o] = true
		e.transfer = append(e.transfer, o)
	}
}

func (e *encoder) construct(o *Object, s *slot, path string) (string, error) {
	switch o.class {
	case ClassObject:
		return e.constructRecord(o, s, path)
	case ClassArray:
		return e.constructArray(o, s, path)
	}

	var base, protoPath string
	var err error
	switch o.class {
	case ClassDate:
		base, protoPath = "new Date("+numberLiteral(o.date)+")", "Date.prototype"
	case ClassMap, ClassSet:
		base, err = e.constructCollection(o, s, path)
		protoPath = o.class.String() + ".prototype"
	case ClassError:
		base, protoPath = errorBase(o)
	case ClassPromise:
		base, err = e.constructPromise(o, path)
		protoPath = "Promise.prototype"
	default:
		return "", &EncodingError{Path: path, Reason: "unsupported object class " + o.class.String()}
	}
	if err != nil {
		return "", err
	}
	_, descs, err := e.properties(o, s, path, o.OwnKeys(), false, false)
	if err != nil {
		return "", err
	}
	if len(descs) > 0 {
		base = "Object.defineProperties(" + base + ", {" + strings.Join(descs, ", ") + "})"
	}
	return e.withProto(o, s, path, base, protoPath)
}

// withProto re-points expr's prototype when o's differs from protoPath.
func (e *encoder) withProto(o *Object, s *slot, path, expr, protoPath string) (string, error) {
	switch {
	case o.proto == nil:
		return "Object.setPrototypeOf(" + expr + ", null)", nil
	case o.proto.intrinsic == protoPath:
		return expr, nil
	}
	proto, late, err := e.encodeObject(o.proto, path+".__proto__")
	if err != nil {
		return "", err
	}
	if late {
		e.patch(path, ObjectValue(o.proto), "Object.setPrototypeOf("+e.reg.refer(s)+", "+proto+")")
		return expr, nil
	}
	return "Object.setPrototypeOf(" + expr + ", " + proto + ")", nil
}

func (e *encoder) constructRecord(o *Object, s *slot, path string) (string, error) {
	var proto, lateProto string
	switch {
	case o.proto == nil:
		proto = "null"
	case o.proto.intrinsic == "Object.prototype":
	default:
		p, late, err := e.encodeObject(o.proto, path+".__proto__")
		if err != nil {
			return "", err
		}
		if late {
			lateProto = p
		} else {
			proto = p
		}
	}
	if lateProto != "" {
		e.patch(path, ObjectValue(o.proto), "Object.setPrototypeOf("+e.reg.refer(s)+", "+lateProto+")")
	}

	literal, descs, err := e.properties(o, s, path, o.OwnKeys(), proto == "", false)
	if err != nil {
		return "", err
	}
	if proto != "" {
		if len(descs) == 0 {
			return "Object.create(" + proto + ")", nil
		}
		return "Object.create(" + proto + ", {" + strings.Join(descs, ", ") + "})", nil
	}
	expr := "{" + strings.Join(literal, ", ") + "}"
	if len(descs) > 0 {
		expr = "Object.defineProperties(" + expr + ", {" + strings.Join(descs, ", ") + "})"
	}
	return expr, nil
}

func (e *encoder) constructArray(o *Object, s *slot, path string) (string, error) {
	keys := o.OwnKeys()
	var items []string
	i := 0
	for ; i < len(keys); i++ {
		idx, ok := arrayIndex(keys[i].name)
		if keys[i].IsSymbol() || !ok || idx != i {
			break
		}
		d, _ := o.GetOwnProperty(keys[i])
		if !d.IsPlain() {
			break
		}
		childPath := memberPath(path, keys[i])
		expr, late, err := e.encode(d.Value, childPath)
		if err != nil {
			return "", err
		}
		if late {
			e.deferProperty(s, keys[i], d, childPath, expr, "", "")
			expr = "void 0"
		}
		items = append(items, expr)
	}

	maxIndex := -1
	rest := make([]PropertyKey, 0, len(keys)-i)
	for _, key := range keys {
		if idx, ok := arrayIndex(key.name); ok && !key.IsSymbol() && idx > maxIndex {
			maxIndex = idx
		}
	}
	for _, key := range keys[i:] {
		if !key.IsSymbol() && key.name == "length" {
			continue
		}
		rest = append(rest, key)
	}
	_, descs, err := e.properties(o, s, path, rest, false, false)
	if err != nil {
		return "", err
	}
	if o.arrayLen != maxIndex+1 || (o.lengthLocked && !o.IsFrozen()) {
		descs = append(descs, "length: {value: "+strconv.Itoa(o.arrayLen)+", writable: "+strconv.FormatBool(!o.lengthLocked || o.IsFrozen())+"}")
	}
	expr := "[" + strings.Join(items, ", ") + "]"
	if len(descs) > 0 {
		expr = "Object.defineProperties(" + expr + ", {" + strings.Join(descs, ", ") + "})"
	}
	return e.withProto(o, s, path, expr, "Array.prototype")
}

func (e *encoder) constructCollection(o *Object, s *slot, path string) (string, error) {
	isSet := o.class == ClassSet
	items := make([]string, 0, o.entries.size())
	for i, entry := range o.entries.list() {
		entryPath := fmt.Sprintf("%s<entry %d>", path, i)
		key, keyLate, err := e.encode(entry.Key, entryPath)
		if err != nil {
			return "", err
		}
		if isSet {
			if keyLate {
				hole := e.hole()
				e.patch(entryPath, entry.Key, "__iso.rekey("+e.reg.refer(s)+", "+hole.ref+", "+key+")")
				key = "(" + hole.ref + " = __iso.hole())"
			}
			items = append(items, key)
			continue
		}
		value, valueLate, err := e.encode(entry.Value, entryPath+".value")
		if err != nil {
			return "", err
		}
		switch {
		case keyLate:
			hole := e.hole()
			code := "__iso.rekey(" + e.reg.refer(s) + ", " + hole.ref + ", " + key
			if valueLate {
				code += ", " + value
				value = "void 0"
			}
			e.patch(entryPath, entry.Key, code+")")
			key = "(" + hole.ref + " = __iso.hole())"
		case valueLate:
			e.patch(entryPath, entry.Value, e.reg.refer(s)+".set("+e.reference(entry.Key)+", "+value+")")
			value = "void 0"
		}
		items = append(items, "["+key+", "+value+"]")
	}
	ctor := "new " + o.class.String()
	if len(items) == 0 {
		return ctor + "()", nil
	}
	return ctor + "([" + strings.Join(items, ", ") + "])", nil
}

// hole mints a placeholder slot that is always assigned.
func (e *encoder) hole() *slot {
	h := e.reg.mint()
	e.reg.used[h.token] = true
	return h
}

// errorBase picks the constructor whose prototype o already has, so that
// only user-defined error subclasses need their prototype re-pointed.
func errorBase(o *Object) (string, string) {
	if o.proto != nil {
		if name, ok := strings.CutSuffix(o.proto.intrinsic, ".prototype"); ok && isErrorName(name) {
			return "new " + name + "()", o.proto.intrinsic
		}
	}
	return "new Error()", "Error.prototype"
}

func isErrorName(name string) bool {
	if name == "Error" {
		return true
	}
	for _, n := range errorNames {
		if n == name {
			return true
		}
	}
	return false
}

func (e *encoder) constructPromise(o *Object, path string) (string, error) {
	settled, rejected, v := o.PromiseState()
	if !settled {
		return "", &EncodingError{Path: path, Reason: "pending promise cannot be serialized"}
	}
	expr, late, err := e.encode(v, path+"<value>")
	if err != nil {
		return "", err
	}
	if late {
		return "", &EncodingError{Path: path, Reason: "promise settled with a value that only exists after transfer"}
	}
	if rejected {
		return "Promise.reject(" + expr + ")", nil
	}
	return "Promise.resolve(" + expr + ")", nil
}

// properties renders the own properties keys of o. While allowLiteral holds,
// leading plain properties become `key: value` literal entries; everything
// from the first non-plain property on becomes a descriptor entry. full
// spells out every attribute, for keys the target may already define.
func (e *encoder) properties(o *Object, s *slot, path string, keys []PropertyKey, allowLiteral, full bool) (literal, descs []string, err error) {
	inLiteral := allowLiteral
	for _, key := range keys {
		d, ok := o.GetOwnProperty(key)
		if !ok {
			continue
		}
		name := e.keyText(key)
		childPath := memberPath(path, key)
		if inLiteral && d.IsPlain() {
			expr, late, err := e.encode(d.Value, childPath)
			if err != nil {
				return nil, nil, err
			}
			if late {
				e.deferProperty(s, key, d, childPath, expr, "", "")
				expr = "void 0"
			}
			literal = append(literal, name+": "+expr)
			continue
		}
		inLiteral = false
		desc, err := e.descriptor(s, key, d, childPath, full)
		if err != nil {
			return nil, nil, err
		}
		descs = append(descs, name+": "+desc)
	}
	return literal, descs, nil
}

func (e *encoder) descriptor(s *slot, key PropertyKey, d Descriptor, path string, full bool) (string, error) {
	if !d.Accessor {
		expr, late, err := e.encode(d.Value, path)
		if err != nil {
			return "", err
		}
		if late {
			e.deferProperty(s, key, d, path, expr, "", "")
			return renderDescriptor(DataProperty(Undefined(), true, d.Enumerable, true), "void 0", "", "", full), nil
		}
		return renderDescriptor(d, expr, "", "", full), nil
	}

	var get, set string
	var getLate, setLate bool
	var err error
	if d.Get != nil {
		if get, getLate, err = e.encodeObject(d.Get, path+"<get>"); err != nil {
			return "", err
		}
	}
	if d.Set != nil {
		if set, setLate, err = e.encodeObject(d.Set, path+"<set>"); err != nil {
			return "", err
		}
	}
	if !getLate && !setLate {
		return renderDescriptor(d, "", get, set, full), nil
	}
	placeholder := d
	placeholder.Configurable = true
	lateGet, lateSet := "", ""
	if getLate {
		lateGet, get = get, ""
		placeholder.Get = nil
	}
	if setLate {
		lateSet, set = set, ""
		placeholder.Set = nil
	}
	e.deferProperty(s, key, d, path, "", lateGet, lateSet)
	return renderDescriptor(placeholder, "", get, set, full), nil
}

// deferProperty appends a patch that redefines key on the object in s with
// its real descriptor. Non-empty late expressions override the references
// of the values already emitted inline.
func (e *encoder) deferProperty(s *slot, key PropertyKey, d Descriptor, path, value, get, set string) {
	source := d.Value
	if d.Accessor {
		if get == "" && d.Get != nil {
			get = e.reference(ObjectValue(d.Get))
		}
		if set == "" && d.Set != nil {
			set = e.reference(ObjectValue(d.Set))
		}
		if d.Get != nil {
			source = ObjectValue(d.Get)
		} else {
			source = ObjectValue(d.Set)
		}
	}
	code := "Object.defineProperty(" + e.reg.refer(s) + ", " + e.keyExpr(key) + ", " + renderDescriptor(d, value, get, set, true) + ")"
	e.patch(path, source, code)
}

// keyText renders key for an object literal.
func (e *encoder) keyText(key PropertyKey) string {
	if key.IsSymbol() {
		return "[" + e.encodeSymbol(SymbolValue(key.sym)) + "]"
	}
	return propertyName(key.name)
}

// keyExpr renders key as an expression.
func (e *encoder) keyExpr(key PropertyKey) string {
	if key.IsSymbol() {
		return e.encodeSymbol(SymbolValue(key.sym))
	}
	return quoteString(key.name)
}

func renderDescriptor(d Descriptor, value, get, set string, full bool) string {
	var parts []string
	flag := func(name string, on bool) {
		if on || full {
			parts = append(parts, name+": "+strconv.FormatBool(on))
		}
	}
	if d.Accessor {
		if get != "" || full {
			parts = append(parts, "get: "+orUndefined(get))
		}
		if set != "" || full {
			parts = append(parts, "set: "+orUndefined(set))
		}
	} else {
		parts = append(parts, "value: "+value)
		flag("writable", d.Writable)
	}
	flag("enumerable", d.Enumerable)
	flag("configurable", d.Configurable)
	return "{" + strings.Join(parts, ", ") + "}"
}

func orUndefined(expr string) string {
	if expr == "" {
		return "void 0"
	}
	return expr
}

// lock appends the extensibility lock o carries, after all its properties.
func (e *encoder) lock(o *Object, s *slot, path string) {
	var op string
	switch {
	case o.extensible:
		return
	case o.IsFrozen():
		op = "freeze"
	case o.IsSealed():
		op = "seal"
	default:
		op = "preventExtensions"
	}
	e.patch(path, ObjectValue(o), "Object."+op+"("+e.reg.refer(s)+")")
}

func memberPath(path string, key PropertyKey) string {
	if key.IsSymbol() {
		return path + "[" + key.sym.String() + "]"
	}
	if _, ok := arrayIndex(key.name); ok {
		return path + "[" + key.name + "]"
	}
	if path == "" {
		return key.name
	}
	return path + "." + key.name
}
