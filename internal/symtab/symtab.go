// Package symtab implements the keyed symbol store and namespace registry:
// a (name, namespace) -> {owner, version} table with per-namespace
// reference counting and auto-cleanup when idle.
package symtab

import (
	"fmt"
	"sort"

	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/modver"
)

// Global denotes the implicit global namespace: always "exists", never
// tracked as a row in NamespaceRegistry.
const Global = ""

// Key is a (name, namespace) pair. The zero value is not meaningful on
// its own; construct with NewKey.
type Key struct {
	Name      string
	Namespace string
}

// NewKey builds a Key; an empty namespace denotes the implicit global
// namespace.
func NewKey(name, namespace string) Key {
	return Key{Name: name, Namespace: namespace}
}

// String renders "namespace::name", or bare "name" for the global namespace.
func (k Key) String() string {
	if k.Namespace == Global {
		return k.Name
	}

	return fmt.Sprintf("%s::%s", k.Namespace, k.Name)
}

// Ref is the value associated with a symbol key: the owning instance's
// name and the version under which it was exported.
type Ref struct {
	Owner   string
	Version modver.Version
}

// Table is a (name, namespace) -> Ref store with namespace ref-counting.
// A single Table backs both LoadingSet staging and the process-wide
// GlobalRegistry; both callers hold their own outer mutex, so Table
// itself is not internally synchronized — callers serialize access per
// the engine's lock-order discipline.
type Table struct {
	symbols map[Key]Ref
	ns      map[string]*nsRow
}

type nsRow struct {
	numSymbols int
	numRefs    int
}

// New constructs an empty Table.
func New() *Table {
	return &Table{
		symbols: make(map[Key]Ref),
		ns:      make(map[string]*nsRow),
	}
}

// Add registers a new symbol. Returns a *merr.Error of kind Duplicate if
// the key already exists.
func (t *Table) Add(name, namespace string, version modver.Version, owner string) error {
	key := NewKey(name, namespace)
	if _, exists := t.symbols[key]; exists {
		return merr.New(merr.Duplicate, "symbol %s already registered", key)
	}

	t.symbols[key] = Ref{Owner: owner, Version: version}
	t.touchNamespace(namespace, +1, 0)

	return nil
}

// Remove deletes a symbol. Returns a *merr.Error of kind NotFound if absent.
func (t *Table) Remove(name, namespace string) error {
	key := NewKey(name, namespace)
	if _, exists := t.symbols[key]; !exists {
		return merr.New(merr.NotFound, "symbol %s not registered", key)
	}

	delete(t.symbols, key)
	t.touchNamespace(namespace, -1, 0)

	return nil
}

// Get returns the Ref for (name, namespace), or ok=false.
func (t *Table) Get(name, namespace string) (Ref, bool) {
	ref, ok := t.symbols[NewKey(name, namespace)]
	return ref, ok
}

// GetCompatible returns the Ref for (name, namespace) if its version
// satisfies reqVer per the modver.Satisfies rule.
func (t *Table) GetCompatible(name, namespace string, reqVer modver.Version) (Ref, bool) {
	ref, ok := t.Get(name, namespace)
	if !ok {
		return Ref{}, false
	}

	if !modver.Satisfies(reqVer, ref.Version) {
		return Ref{}, false
	}

	return ref, true
}

// RefNamespace increments a namespace's import ref-count, creating the
// row if needed. The global namespace always exists but is never
// tracked.
func (t *Table) RefNamespace(namespace string) {
	if namespace == Global {
		return
	}

	t.touchNamespace(namespace, 0, +1)
}

// UnrefNamespace decrements a namespace's import ref-count, removing the
// row once both counters hit zero.
func (t *Table) UnrefNamespace(namespace string) {
	if namespace == Global {
		return
	}

	t.touchNamespace(namespace, 0, -1)
}

// HasNamespace reports whether namespace is the global namespace or has a
// tracked row with at least one symbol or reference.
func (t *Table) HasNamespace(namespace string) bool {
	if namespace == Global {
		return true
	}

	row, ok := t.ns[namespace]
	return ok && (row.numSymbols > 0 || row.numRefs > 0)
}

// NamespaceCounts returns the (numSymbols, numRefs) for a tracked namespace.
func (t *Table) NamespaceCounts(namespace string) (numSymbols, numRefs int) {
	row, ok := t.ns[namespace]
	if !ok {
		return 0, 0
	}

	return row.numSymbols, row.numRefs
}

// Namespaces returns the sorted names of all currently tracked namespaces.
func (t *Table) Namespaces() []string {
	out := make([]string, 0, len(t.ns))
	for name := range t.ns {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// Keys returns all registered symbol keys, sorted for determinism.
func (t *Table) Keys() []Key {
	out := make([]Key, 0, len(t.symbols))
	for k := range t.symbols {
		out = append(out, k)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}

		return out[i].Name < out[j].Name
	})

	return out
}

// touchNamespace applies deltas to a namespace row, creating it lazily
// and deleting it the instant both counters reach zero: auto-cleanup
// applied eagerly rather than deferred to a GC pass.
func (t *Table) touchNamespace(namespace string, dSymbols, dRefs int) {
	if namespace == Global {
		return
	}

	row, ok := t.ns[namespace]
	if !ok {
		row = &nsRow{}
		t.ns[namespace] = row
	}

	row.numSymbols += dSymbols
	row.numRefs += dRefs

	if row.numSymbols <= 0 && row.numRefs <= 0 {
		delete(t.ns, namespace)
	}
}

// Snapshot returns a defensive copy of all symbol rows.
func (t *Table) Snapshot() map[Key]Ref {
	out := make(map[Key]Ref, len(t.symbols))
	for k, v := range t.symbols {
		out[k] = v
	}

	return out
}
