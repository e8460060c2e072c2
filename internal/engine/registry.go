package engine

import (
	"context"
	"sync"

	"github.com/arborlang/modlink/internal/depgraph"
	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/modver"
	"github.com/arborlang/modlink/internal/symtab"
)

// GlobalRegistry is the process-wide table of live instances, their
// exported symbols, and the dependency graph linking them. It is the
// single source of truth add_instance and prune_instances operate on.
type GlobalRegistry struct {
	mu        sync.RWMutex
	instances map[string]*InstanceHandle
	symbols   *symtab.Table
	graph     *depgraph.Graph[string]
}

func newGlobalRegistry() *GlobalRegistry {
	return &GlobalRegistry{
		instances: make(map[string]*InstanceHandle),
		symbols:   symtab.New(),
		graph:     depgraph.New[string](true),
	}
}

// FindByName returns the instance registered under name, if any.
func (r *GlobalRegistry) FindByName(name string) (*InstanceHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.instances[name]

	return h, ok
}

// FindBySymbol resolves (name, namespace) to its owning instance,
// requiring the owner's exported version to satisfy reqVer.
func (r *GlobalRegistry) FindBySymbol(name, namespace string, reqVer modver.Version) (*InstanceHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.symbols.GetCompatible(name, namespace, reqVer)
	if !ok {
		return nil, false
	}

	h, ok := r.instances[ref.Owner]

	return h, ok
}

// QueryNamespace reports whether namespace is the implicit global
// namespace or currently has symbols or references registered.
func (r *GlobalRegistry) QueryNamespace(namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.symbols.HasNamespace(namespace)
}

// globalSymbolExists reports whether (name, namespace) is already
// registered anywhere in the global symbol table.
func (r *GlobalRegistry) globalSymbolExists(name, namespace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.symbols.Get(name, namespace)

	return ok
}

// globalSymbolCompatible reports whether a globally registered
// (name, namespace) symbol satisfies reqVer.
func (r *GlobalRegistry) globalSymbolCompatible(name, namespace string, reqVer modver.Version) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.symbols.GetCompatible(name, namespace, reqVer)

	return ok
}

// addInstanceResult captures what AddInstance did, so PruneInstances
// (and a failed commit) can unwind it symmetrically.
type addInstanceResult struct {
	refdNamespaces []string
	addedEdges     []string
	addedSymbols   []symtab.Key
}

// AddInstance registers h, atomically: creates its dependency-graph
// node, verifies its exports are free and its imported namespaces
// exist, acquires namespace reference counts, wires dependency edges,
// runs a global acyclicity check, and finally exports h's symbols and
// records it. Any failure unwinds every step already taken.
func (r *GlobalRegistry) AddInstance(h *InstanceHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[h.name]; exists {
		return merr.New(merr.Duplicate, "instance %q already registered", h.name)
	}

	var done addInstanceResult

	unwind := func() {
		for _, k := range done.addedSymbols {
			_ = r.symbols.Remove(k.Name, k.Namespace)
		}

		for _, dep := range done.addedEdges {
			if depHandle, ok := r.instances[dep]; ok {
				depHandle.DecDependents()
			}
		}

		for _, ns := range done.refdNamespaces {
			r.symbols.UnrefNamespace(ns)
		}

		r.graph.RemoveNode(h.name)
	}

	// Step 1: create the dependency-graph node.
	r.graph.AddNode(h.name)

	// Step 2: verify exports are free, imported namespaces exist.
	for _, key := range h.exportedKeys {
		if _, exists := r.symbols.Get(key.Name, key.Namespace); exists {
			unwind()
			return merr.New(merr.Duplicate, "symbol %s already registered globally", key)
		}
	}

	for _, ns := range h.importedNamespaces {
		if !r.symbols.HasNamespace(ns) {
			unwind()
			return merr.New(merr.NotFound, "imported namespace %q does not exist", ns)
		}
	}

	// Step 3: acquire namespace import ref-counts (undoable).
	for _, ns := range h.importedNamespaces {
		r.symbols.RefNamespace(ns)
		done.refdNamespaces = append(done.refdNamespaces, ns)
	}

	// Step 4: wire dependency edges; the referenced instance must
	// actually be the one registered under that name. Since this
	// registry keys instances by name uniquely, a mismatch can only
	// mean the dependency does not exist yet.
	for _, dep := range h.dependencyNames {
		depHandle, exists := r.instances[dep]
		if !exists {
			unwind()
			return merr.New(merr.NotADependency, "dependency %q is not a registered instance", dep)
		}

		r.graph.AddEdge(h.name, dep)
		done.addedEdges = append(done.addedEdges, dep)
		depHandle.IncDependents()
	}

	// Step 5: global acyclicity check.
	if cyc := r.graph.IsCyclic(); cyc != nil {
		unwind()
		return merr.New(merr.CyclicDependency, "registering %q would close a cycle: %v", h.name, cyc.Cycle)
	}

	// Step 6: export symbols at their declared versions, record the
	// instance.
	versions := make(map[symtab.Key]modver.Version, len(h.exportedKeys))
	for _, se := range h.export.SymbolExports {
		versions[symtab.NewKey(se.Name, se.Namespace)] = se.Version
	}

	for _, dse := range h.export.DynamicSymbolExports {
		versions[symtab.NewKey(dse.Name, dse.Namespace)] = dse.Version
	}

	for _, key := range h.exportedKeys {
		if err := r.symbols.Add(key.Name, key.Namespace, versions[key], h.name); err != nil {
			unwind()
			return err
		}

		done.addedSymbols = append(done.addedSymbols, key)
	}

	r.instances[h.name] = h

	return nil
}

// removeInstance is the symmetric reverse of AddInstance, used by
// PruneInstances once an instance is confirmed unloadable.
func (r *GlobalRegistry) removeInstance(h *InstanceHandle) {
	for _, key := range h.exportedKeys {
		_ = r.symbols.Remove(key.Name, key.Namespace)
	}

	for _, ns := range h.importedNamespaces {
		r.symbols.UnrefNamespace(ns)
	}

	for _, dep := range h.dependencyNames {
		if depHandle, ok := r.instances[dep]; ok {
			depHandle.DecDependents()
		}
	}

	r.graph.RemoveNode(h.name)
	delete(r.instances, h.name)
}

// PruneInstances walks instances in reverse dependency order (dependents
// first) and, for every non-root instance, either requests unload (if
// it still has strong refs or dependents) or stops, detaches, and
// removes it.
func (r *GlobalRegistry) PruneInstances(ctx context.Context, rootName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.graph.TopologicalSort()
	if err != nil {
		return merr.New(merr.CyclicDependency, "registry graph is cyclic: %v", err)
	}

	// Dependents must be considered before their dependencies are torn
	// down, so walk in reverse dependency order.
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if name == rootName {
			continue
		}

		h, ok := r.instances[name]
		if !ok {
			continue
		}

		if h.StrongCount() > 0 || h.DependentsCount() > 0 {
			h.EnqueueUnload()
			continue
		}

		_ = h.Stop(ctx)
		h.Detach()
		r.removeInstance(h)
	}

	return nil
}

// ParameterStore is an optional capability an Instantiable may implement
// to back live parameter reads and writes. Instances that don't
// implement it only expose their descriptor's static default.
type ParameterStore interface {
	ReadParam(name string) (interface{}, error)
	WriteParam(name string, value interface{}) error
}

// QueryParameter returns the declared Parameter metadata for owner/param.
func (r *GlobalRegistry) QueryParameter(owner, param string) (export.Parameter, error) {
	h, ok := r.FindByName(owner)
	if !ok {
		return export.Parameter{}, merr.New(merr.NotFound, "instance %q not found", owner)
	}

	for _, p := range h.Export().Parameters {
		if p.Name == param {
			return p, nil
		}
	}

	return export.Parameter{}, merr.New(merr.NotFound, "parameter %q not found on %q", param, owner)
}

// ReadParameter returns the current value of a public parameter,
// delegating to the instance's ParameterStore if it implements one, and
// otherwise returning the descriptor's static default.
func (r *GlobalRegistry) ReadParameter(owner, param string) (interface{}, error) {
	p, err := r.QueryParameter(owner, param)
	if err != nil {
		return nil, err
	}

	if p.ReadGroup != export.AccessPublic {
		return nil, merr.New(merr.NotPermitted, "parameter %q on %q is not publicly readable", param, owner)
	}

	h, _ := r.FindByName(owner)
	if store, ok := h.impl.(ParameterStore); ok {
		return store.ReadParam(param)
	}

	return p.Default, nil
}

// WriteParameter writes value to a public, writable parameter via the
// instance's ParameterStore.
func (r *GlobalRegistry) WriteParameter(owner, param string, value interface{}) error {
	p, err := r.QueryParameter(owner, param)
	if err != nil {
		return err
	}

	if p.WriteGroup != export.AccessPublic {
		return merr.New(merr.NotPermitted, "parameter %q on %q is not publicly writable", param, owner)
	}

	h, _ := r.FindByName(owner)

	store, ok := h.impl.(ParameterStore)
	if !ok {
		return merr.New(merr.NotPermitted, "instance %q does not support live parameter writes", owner)
	}

	return store.WriteParam(param, value)
}
