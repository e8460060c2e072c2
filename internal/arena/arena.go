// Package arena provides the per-LoadingSet string arena: a bump
// allocator scoped to one set, freed in a single step rather than by
// individual deallocation. Go has no manual memory management, so the
// "bump allocator" degenerates to an interning pool: every string
// admitted to a set is canonicalized through one Arena, and the whole
// pool is released in a single step — dropping the Arena value — when
// its owning LoadingSet is discarded.
package arena

// Arena interns strings for a single LoadingSet. It is not safe for
// concurrent use without an external lock, matching every other
// set-scoped structure in this engine: the set's arena is mutated only
// under its own lock.
type Arena struct {
	interned map[string]string
}

// New constructs an empty Arena.
func New() *Arena {
	return &Arena{interned: make(map[string]string)}
}

// Intern returns the canonical copy of s, storing it on first sight.
func (a *Arena) Intern(s string) string {
	if existing, ok := a.interned[s]; ok {
		return existing
	}

	a.interned[s] = s

	return s
}

// Len reports how many distinct strings have been interned, useful for
// arena-utilization statistics.
func (a *Arena) Len() int {
	return len(a.interned)
}

// Reset releases every interned string in one step, mirroring a bump
// allocator's single free-on-drop semantics.
func (a *Arena) Reset() {
	a.interned = make(map[string]string)
}
