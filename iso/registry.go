package iso

import (
	"strconv"
	"strings"
)

type slotState int

const (
	// slotBuilding marks a value whose construction expression is still
	// being emitted; meeting it again means a cycle.
	slotBuilding slotState = iota
	slotDone
	// slotDeferred values only exist in the isolate once patches run.
	slotDeferred
)

type slot struct {
	token int
	state slotState
	ref   string
	owner *slot
}

func (s *slot) root() *slot {
	for s.owner != nil {
		s = s.owner
	}
	return s
}

// Registry records which values already have a home in the isolate, so a
// value reachable along two paths is constructed once. A Registry belongs to
// one CreateContext call.
//
// Bind emits its construction wrapped in markers; Finalize turns the markers
// into `(__iso[t] = ...)` only for tokens something refers back to, so values
// that are never shared cost nothing in the program text.
type Registry struct {
	next    int
	objects map[*Object]*slot
	symbols map[*Symbol]*slot
	used    map[int]bool
}

func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[*Object]*slot),
		symbols: make(map[*Symbol]*slot),
		used:    make(map[int]bool),
	}
}

// Slot returns the reference expression of an already registered value.
func (g *Registry) Slot(v Value) (string, bool) {
	s := g.lookup(v)
	if s == nil {
		return "", false
	}
	return g.refer(s), true
}

// Bind registers v as constructed by expr and returns the expression to emit
// in its place.
func (g *Registry) Bind(v Value, expr string) string {
	var s *slot
	switch v.Kind() {
	case KindSymbol:
		s = g.mint()
		g.symbols[v.Symbol()] = s
	case KindObject:
		s = g.reserve(v.Object())
	default:
		return expr
	}
	s.state = slotDone
	return g.wrap(s, expr)
}

// Len reports how many identity tokens were minted.
func (g *Registry) Len() int { return g.next }

func (g *Registry) lookup(v Value) *slot {
	switch v.Kind() {
	case KindSymbol:
		return g.symbols[v.Symbol()]
	case KindObject:
		return g.objects[v.Object()]
	}
	return nil
}

func (g *Registry) mint() *slot {
	s := &slot{token: g.next}
	s.ref = "__iso[" + strconv.Itoa(s.token) + "]"
	g.next++
	return s
}

// reserve gives obj a token in the building state.
func (g *Registry) reserve(obj *Object) *slot {
	s := g.mint()
	g.objects[obj] = s
	return s
}

// alias registers obj as reachable through owner's slot, sharing its state.
func (g *Registry) alias(obj *Object, owner *slot, suffix string) *slot {
	s := &slot{token: -1, ref: owner.ref + suffix, owner: owner}
	g.objects[obj] = s
	return s
}

// deferred registers obj as arriving through the patch payload.
func (g *Registry) deferred(obj *Object, ref string) *slot {
	s := &slot{token: -1, state: slotDeferred, ref: ref}
	g.objects[obj] = s
	return s
}

func (g *Registry) state(s *slot) slotState {
	return s.root().state
}

// refer returns s's reference and records that its token must be assigned.
func (g *Registry) refer(s *slot) string {
	if root := s.root(); root.token >= 0 {
		g.used[root.token] = true
	}
	return s.ref
}

func (g *Registry) wrap(s *slot, expr string) string {
	t := strconv.Itoa(s.token)
	return "\x00B" + t + "\x00" + expr + "\x00E" + t + "\x00"
}

// Finalize resolves binding markers in emitted text.
func (g *Registry) Finalize(text string) string {
	if !strings.Contains(text, "\x00") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for {
		i := strings.IndexByte(text, 0)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:i])
		rest := text[i+1:]
		j := strings.IndexByte(rest, 0)
		if j < 1 {
			b.WriteString(text[i:])
			return b.String()
		}
		mark := rest[:j]
		text = rest[j+1:]
		token, err := strconv.Atoi(mark[1:])
		if err != nil || !g.used[token] {
			continue
		}
		if mark[0] == 'B' {
			b.WriteString("(__iso[" + mark[1:] + "] = ")
		} else {
			b.WriteString(")")
		}
	}
}
