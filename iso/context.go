package iso

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Binding names a value the isolate should find at Name. Name is a property
// path below the global object: "count", "ns.util", `cfg["max size"]`,
// "list[0]".
type Binding struct {
	Name  string
	Value Value
}

// ContextConfig tunes one CreateContext call.
type ContextConfig struct {
	Capabilities Capabilities
	// CopyBuffers keeps ArrayBuffers off the transfer list; they are cloned.
	CopyBuffers bool
}

// Context is everything an isolate needs to rebuild a set of bindings: the
// program to evaluate, the patches to replay after it, and the buffers and
// handles that move with the first message.
type Context struct {
	Program  string
	Patches  []PendingPatch
	Transfer []*Object
	Registry *Registry

	data []Value
}

// PatchData is the first message for the isolate.
func (c *Context) PatchData() PatchData {
	return PatchData{Code: patchCode(c.Patches), Values: c.data}
}

// CreateContext serializes deps into a program. Bindings are emitted in
// order; a value reachable from several bindings is constructed once.
func CreateContext(deps []Binding, cfg ContextConfig) (*Context, error) {
	reg := NewRegistry()
	enc := newEncoder(reg, cfg)
	statements := make([]string, 0, len(deps))
	bound := make(map[string]bool)
	for _, dep := range deps {
		segments, err := parseBindingPath(dep.Name)
		if err != nil {
			return nil, err
		}
		if global, ok := globalName(segments); ok {
			bound[global] = true
		}
		target, plain := bindingTarget(segments)
		expr, late, err := enc.encode(dep.Value, dep.Name)
		if err != nil {
			return nil, err
		}
		if late {
			enc.patch(dep.Name, dep.Value, plain+" = "+expr)
			expr = "void 0"
		}
		statements = append(statements, target+" = "+expr+";")
	}
	enc.publish(bound)

	ctx := &Context{
		Program:  reg.Finalize(strings.Join(statements, "\n")),
		Patches:  enc.patches,
		Transfer: enc.transfer,
		Registry: reg,
		data:     enc.data,
	}
	for i := range ctx.Patches {
		ctx.Patches[i].Code = reg.Finalize(ctx.Patches[i].Code)
	}
	return ctx, nil
}

// bindingTarget returns the assignment target for a path, creating missing
// intermediate objects on the way, and the plain member path that is valid
// once they exist.
func bindingTarget(segments []string) (target, plain string) {
	lazy, plain := "self", "self"
	start := 0
	if len(segments) > 1 && (segments[0] == "__iso" || segments[0] == "self") {
		lazy, plain = segments[0], segments[0]
		start = 1
	}
	for _, seg := range segments[start : len(segments)-1] {
		lazy = "(" + memberAccess(lazy, seg) + " || (" + memberAccess(plain, seg) + " = {}))"
		plain = memberAccess(plain, seg)
	}
	last := segments[len(segments)-1]
	return memberAccess(lazy, last), memberAccess(plain, last)
}

// globalName reports the global a binding path assigns directly, if any.
func globalName(segments []string) (string, bool) {
	switch {
	case len(segments) == 1:
		return segments[0], true
	case len(segments) == 2 && segments[0] == "self":
		return segments[1], true
	}
	return "", false
}

// parseBindingPath splits a dotted/bracketed path into property names.
func parseBindingPath(name string) ([]string, error) {
	bad := func(reason string) error {
		return &EncodingError{Path: name, Reason: "invalid binding name: " + reason}
	}
	var segments []string
	rest := strings.TrimSpace(name)
	if rest == "" {
		return nil, bad("empty")
	}
	expectName := true
	for rest != "" {
		switch {
		case rest[0] == '.':
			if expectName {
				return nil, bad("unexpected '.'")
			}
			rest = rest[1:]
			expectName = true
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, bad("unterminated '['")
			}
			inner := strings.TrimSpace(rest[1:end])
			seg, err := bracketSegment(inner)
			if err != nil {
				return nil, bad(err.Error())
			}
			if len(segments) == 0 {
				return nil, bad("path must start with a name")
			}
			segments = append(segments, seg)
			rest = rest[end+1:]
			expectName = false
		default:
			if !expectName {
				return nil, bad("expected '.' or '['")
			}
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			seg := strings.TrimSpace(rest[:end])
			if !isIdentifierName(seg) {
				return nil, bad(strconv.Quote(seg) + " is not an identifier")
			}
			segments = append(segments, seg)
			rest = rest[end:]
			expectName = false
		}
	}
	if expectName {
		return nil, bad("trailing '.'")
	}
	return segments, nil
}

func bracketSegment(inner string) (string, error) {
	if inner == "" {
		return "", errors.New("empty brackets")
	}
	if q := inner[0]; q == '"' || q == '\'' {
		if len(inner) < 2 || inner[len(inner)-1] != q {
			return "", errors.New("unterminated quote")
		}
		return inner[1 : len(inner)-1], nil
	}
	if _, ok := arrayIndex(inner); ok {
		return inner, nil
	}
	return "", fmt.Errorf("%q is not a quoted name or an index", inner)
}

// DependencyNames reads the binding names a producer declares: the
// comma-separated names between the first '[' and the last ']' of its source.
func DependencyNames(source string) []string {
	start := strings.IndexByte(source, '[')
	end := strings.LastIndexByte(source, ']')
	if start < 0 || end <= start {
		return nil
	}
	var names []string
	for _, part := range strings.Split(source[start+1:end], ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// Dependencies calls a zero-argument producer such as
//
//	function() { return [count, util.greet] }
//
// and pairs the names in its source with the values it returns.
func Dependencies(r *Realm, producer Value) ([]Binding, error) {
	fn := producer.Object()
	if !fn.isCallable() || fn.fn.source == "" {
		return nil, &UsageError{Message: "dependency producer must be a script function"}
	}
	names := DependencyNames(fn.fn.source)
	out, err := r.Call(producer)
	if err != nil {
		return nil, err
	}
	list := out.Object()
	if list == nil || list.class != ClassArray {
		return nil, &UsageError{Message: "dependency producer must return an array"}
	}
	values := list.Items()
	if len(values) != len(names) {
		return nil, &UsageError{Message: "dependency producer returned " + strconv.Itoa(len(values)) + " values for " + strconv.Itoa(len(names)) + " names"}
	}
	deps := make([]Binding, len(names))
	for i, name := range names {
		deps[i] = Binding{Name: name, Value: values[i]}
	}
	return deps, nil
}
