package iso

// Symbol is an unforgeable-identity atom. Interned symbols are published in
// their realm's registry under a key and can be looked up by name from any
// program text; fresh symbols are only reachable by reference.
type Symbol struct {
	description string
	hasDesc     bool
	key         string
	interned    bool
}

func newSymbol(description string, hasDesc bool) *Symbol {
	return &Symbol{description: description, hasDesc: hasDesc}
}

func (s *Symbol) Description() string { return s.description }

// Key returns the registry key of an interned symbol.
func (s *Symbol) Key() (string, bool) { return s.key, s.interned }

func (s *Symbol) String() string {
	return "Symbol(" + s.description + ")"
}

// NewSymbol mints a fresh, non-interned symbol.
func (r *Realm) NewSymbol(description string) *Symbol {
	return newSymbol(description, true)
}

// SymbolFor returns the realm's interned symbol for key, creating it on first use.
func (r *Realm) SymbolFor(key string) *Symbol {
	if sym, ok := r.symbols[key]; ok {
		return sym
	}
	sym := &Symbol{description: key, hasDesc: true, key: key, interned: true}
	r.symbols[key] = sym
	return sym
}
