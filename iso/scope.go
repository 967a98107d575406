package iso

type binding struct {
	value    Value
	constant bool
}

// scope is one lexical environment. The realm's script scope holds top-level
// let and const; top-level var and function declarations live on the global
// object instead.
type scope struct {
	vars   map[string]*binding
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*binding), parent: parent}
}

func (s *scope) lookup(name string) *binding {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b
		}
	}
	return nil
}

func (s *scope) declare(name string, v Value, constant bool) {
	s.vars[name] = &binding{value: v, constant: constant}
}

func (s *scope) hasOwn(name string) bool {
	_, ok := s.vars[name]
	return ok
}
