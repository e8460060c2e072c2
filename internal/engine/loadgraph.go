package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arborlang/modlink/internal/depgraph"
	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/loadset"
	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/task"
)

// loadNode is one per-commit LoadGraph node: a module pending its S0-S4
// walk, with the waker other nodes park on while it is still unresolved.
type loadNode struct {
	name   string
	export export.Descriptor
	waker  *task.Waker
}

// LoadGraph is the per-commit DAG of modules being loaded together. It
// reuses the generic depgraph implementation without edge dedup, since a
// module may legitimately gain more than one edge to the same provider
// across separate imports.
type LoadGraph struct {
	mu    sync.Mutex
	graph *depgraph.Graph[string]
	nodes map[string]*loadNode

	enqueueCount atomic.Int64
	commitWaker  *task.Waker
}

func newLoadGraph(commitWaker *task.Waker) *LoadGraph {
	return &LoadGraph{
		graph:       depgraph.New[string](false),
		nodes:       make(map[string]*loadNode),
		commitWaker: commitWaker,
	}
}

func (lg *LoadGraph) lookupNode(name string) (*loadNode, bool) {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	n, ok := lg.nodes[name]

	return n, ok
}

// spawnMissingTasks runs the two-pass build described for a dirty set:
// first reject modules that cannot possibly load and create graph nodes
// for the rest, then wire intra-set dependency edges and spawn each
// surviving node's LoadOp.
func (lg *LoadGraph) spawnMissingTasks(ctx context.Context, set *loadset.Set, registry *GlobalRegistry, factory Factory) {
	type candidate struct {
		name string
		exp  export.Descriptor
	}

	var created []candidate

	for _, name := range set.Names() {
		status, _, ok := set.QueryModuleInfo(name)
		if !ok || status != loadset.StatusUnloaded {
			continue
		}

		exp, _ := set.Export(name)

		if _, exists := registry.FindByName(name); exists {
			set.MarkErr(name, merr.New(merr.Duplicate, "instance %q already globally loaded", name))
			continue
		}

		if !importsSatisfiable(set, registry, exp) {
			set.MarkErr(name, merr.New(merr.NotFound, "module %q has an unsatisfiable import", name))
			continue
		}

		if exportsCollideGlobally(registry, exp) {
			set.MarkErr(name, merr.New(merr.Duplicate, "module %q exports a symbol already globally registered", name))
			continue
		}

		lg.mu.Lock()
		lg.graph.AddNode(name)
		lg.nodes[name] = &loadNode{name: name, export: exp, waker: task.NewWaker()}
		lg.mu.Unlock()

		created = append(created, candidate{name: name, exp: exp})
	}

	for _, c := range created {
		if status, _, _ := set.QueryModuleInfo(c.name); status == loadset.StatusErr {
			continue
		}

		if err := lg.connectEdges(set, c.name, c.exp); err != nil {
			set.MarkErr(c.name, err)

			// The node was registered in the first pass with its own
			// Waker, but since it never reaches runLoadOp its Waker
			// would otherwise never fire; any node already spawned
			// and blocked in S0 waiting on this one (e.g. the other
			// half of a cycle) must still be woken to observe the Err.
			if node, ok := lg.lookupNode(c.name); ok {
				node.waker.Wake()
			}

			continue
		}

		node, _ := lg.lookupNode(c.name)

		lg.enqueueCount.Add(1)

		go lg.runLoadOp(ctx, set, registry, factory, node)
	}
}

// connectEdges adds a dependency edge to every intra-set provider name's
// import resolves to, returning an error if a provider is missing or
// already errored, or if the edge would close a cycle within this
// commit's graph. This is the defensive cycle check spec.md §4.5.3 S0
// calls for, performed before a node's LoadOp is ever spawned rather
// than only as a re-check once it is running: PathExists(ref.Owner,
// name) asks whether the provider already transitively depends on name,
// in which case adding name -> ref.Owner would close that cycle.
func (lg *LoadGraph) connectEdges(set *loadset.Set, name string, exp export.Descriptor) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	for _, imp := range exp.SymbolImports {
		ref, found := set.Symbols().GetCompatible(imp.Name, imp.Namespace, imp.Version)
		if !found || ref.Owner == name {
			continue // satisfied globally, or self-satisfied (no edge needed)
		}

		_, exists := lg.nodes[ref.Owner]
		providerStatus, _, providerKnown := set.QueryModuleInfo(ref.Owner)

		if !exists || !providerKnown || providerStatus == loadset.StatusErr {
			return merr.New(merr.NotADependency, "module %q depends on an errored or missing intra-set provider %q", name, ref.Owner)
		}

		if lg.graph.PathExists(ref.Owner, name) {
			return merr.New(merr.CyclicDependency, "module %q importing from %q would close a cycle within this commit", name, ref.Owner)
		}

		lg.graph.AddEdge(name, ref.Owner)
	}

	return nil
}

// importsSatisfiable reports whether every symbol_import of exp resolves
// to either a non-errored intra-set provider or a compatible global
// symbol.
func importsSatisfiable(set *loadset.Set, registry *GlobalRegistry, exp export.Descriptor) bool {
	for _, imp := range exp.SymbolImports {
		if ref, ok := set.Symbols().GetCompatible(imp.Name, imp.Namespace, imp.Version); ok {
			if status, _, known := set.QueryModuleInfo(ref.Owner); known && status == loadset.StatusErr {
				return false
			}

			continue
		}

		if registry.globalSymbolCompatible(imp.Name, imp.Namespace, imp.Version) {
			continue
		}

		return false
	}

	return true
}

// exportsCollideGlobally reports whether any static or dynamic export of
// exp is already registered in the global symbol table.
func exportsCollideGlobally(registry *GlobalRegistry, exp export.Descriptor) bool {
	for _, se := range exp.SymbolExports {
		if registry.globalSymbolExists(se.Name, se.Namespace) {
			return true
		}
	}

	for _, dse := range exp.DynamicSymbolExports {
		if registry.globalSymbolExists(dse.Name, dse.Namespace) {
			return true
		}
	}

	return false
}

// runLoadOp drives one node through its S0-S4 walk. Written as a
// straight-line goroutine rather than an explicit state-dispatch loop:
// Go's goroutines are already stackful, so S0's "register as waker and
// yield" is a blocking channel receive instead of a hand-rolled resumable
// state enum.
func (lg *LoadGraph) runLoadOp(ctx context.Context, set *loadset.Set, registry *GlobalRegistry, factory Factory, node *loadNode) {
	defer func() {
		node.waker.WakeUnref()

		if lg.enqueueCount.Add(-1) == 0 {
			lg.commitWaker.Wake()
		}
	}()

	// S0 Verify: wait until every dependency this node has an edge to is
	// Loaded, failing immediately if one errors.
	for _, dep := range lg.graph.Outgoing(node.name) {
		depNode, ok := lg.lookupNode(dep)
		if !ok {
			set.MarkErr(node.name, merr.New(merr.NotFound, "dependency %q has no load node", dep))
			return
		}

		for {
			status, _, known := set.QueryModuleInfo(dep)
			if !known {
				set.MarkErr(node.name, merr.New(merr.NotFound, "dependency %q vanished from the set", dep))
				return
			}

			if status == loadset.StatusErr {
				set.MarkErr(node.name, merr.New(merr.NotADependency, "dependency %q failed to load", dep))
				return
			}

			if status == loadset.StatusLoaded {
				break
			}

			select {
			case <-depNode.waker.C():
				// The waker holds a single pending wake; pass it on so
				// every other node parked on this dependency wakes too.
				depNode.waker.Wake()
			case <-ctx.Done():
				set.MarkErr(node.name, ctx.Err())
				return
			}
		}
	}

	exp, ok := set.Export(node.name)
	if !ok {
		set.MarkErr(node.name, merr.New(merr.NotFound, "module %q vanished from the set", node.name))
		return
	}

	moduleHandle, _ := set.ModuleHandle(node.name)
	if moduleHandle == nil {
		moduleHandle = loadset.NoopHandle
	}

	// S1/S2 Prepare, construct, await: InitExported is a synchronous call
	// on this goroutine, which is itself the construct sub-future.
	impl, err := factory.InitExported(ctx, set, exp, moduleHandle)
	if err != nil {
		set.MarkErr(node.name, err)
		return
	}

	handle := newInstanceHandle(node.name, exp, impl, exp.NamespaceImports, exportedKeysOf(exp), dependencyNamesOf(exp))

	// S3/S4 Start, await, register.
	if err := handle.Start(ctx); err != nil {
		handle.Detach()
		set.MarkErr(node.name, err)

		return
	}

	if err := registry.AddInstance(handle); err != nil {
		_ = handle.Stop(ctx)
		handle.Detach()
		set.MarkErr(node.name, err)

		return
	}

	set.MarkLoaded(node.name)
}
