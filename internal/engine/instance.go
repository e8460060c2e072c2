// Package engine implements the CommitEngine and GlobalRegistry: the
// process-wide authority that turns a LoadingSet's staged modules into
// live, dependency-ordered instances.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/loadset"
	"github.com/arborlang/modlink/internal/symtab"
)

// LifecycleState is an instance's position in its construction/teardown
// sequence.
type LifecycleState int

const (
	StateUninit LifecycleState = iota
	StateInit
	StateStarted
	StateStopping
	StateDetached
)

func (s LifecycleState) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateInit:
		return "init"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Instantiable is the behavior a constructed module instance supplies.
// The engine never constructs one directly; it is produced by a Factory
// during LoadOp's S1/S2 and driven through Start/Stop/Detach by the
// engine's own InstanceHandle wrapper.
type Instantiable interface {
	// Start runs the instance's on_start event.
	Start(ctx context.Context) error
	// Stop releases whatever Start acquired. Must be safe to call even
	// if Start never ran or already failed.
	Stop(ctx context.Context) error
	// Detach idempotently releases symbols, parameters, dependencies,
	// and the held module handle. Called exactly once, last.
	Detach()
}

// Factory builds an Instantiable from a validated, dependency-satisfied
// export descriptor. This is the collaborator boundary between the
// commit engine and whatever runtime actually executes module code; the
// engine only ever calls InitExported through this interface.
type Factory interface {
	InitExported(ctx context.Context, set *loadset.Set, exp export.Descriptor, moduleHandle loadset.Handle) (Instantiable, error)
}

// InstanceHandle is the engine-owned wrapper around a live Instantiable:
// lifecycle state, strong/dependents refcounts, and the bookkeeping
// GlobalRegistry needs to unwind a failed add or to prune safely.
type InstanceHandle struct {
	mu sync.Mutex

	name   string
	export export.Descriptor
	state  LifecycleState
	impl   Instantiable

	strong        atomic.Int64
	dependents    atomic.Int64
	unloadRequest bool

	importedNamespaces []string
	exportedKeys       []symtab.Key
	dependencyNames    []string
}

// newInstanceHandle wraps impl with refcounts starting at one strong
// reference (the caller that is about to register it).
func newInstanceHandle(name string, exp export.Descriptor, impl Instantiable, importedNamespaces []string, exportedKeys []symtab.Key, dependencyNames []string) *InstanceHandle {
	h := &InstanceHandle{
		name:               name,
		export:             exp,
		state:              StateInit,
		impl:               impl,
		importedNamespaces: importedNamespaces,
		exportedKeys:       exportedKeys,
		dependencyNames:    dependencyNames,
	}
	h.strong.Store(1)

	return h
}

// Name returns the instance's registered name.
func (h *InstanceHandle) Name() string { return h.name }

// Export returns the descriptor this instance was constructed from.
func (h *InstanceHandle) Export() export.Descriptor { return h.export }

// State returns the instance's current lifecycle state.
func (h *InstanceHandle) State() LifecycleState {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

// RefStrong increments the strong reference count.
func (h *InstanceHandle) RefStrong() { h.strong.Add(1) }

// UnrefStrong decrements and returns the strong reference count.
func (h *InstanceHandle) UnrefStrong() int64 { return h.strong.Add(-1) }

// StrongCount returns the current strong reference count.
func (h *InstanceHandle) StrongCount() int64 { return h.strong.Load() }

// IncDependents increments the count of other instances depending on
// this one. GlobalRegistry.AddInstance calls it for each "dependency"
// modifier naming this instance; symbol imports do not call it.
func (h *InstanceHandle) IncDependents() { h.dependents.Add(1) }

// DecDependents decrements the dependents count.
func (h *InstanceHandle) DecDependents() { h.dependents.Add(-1) }

// DependentsCount returns the current dependents count.
func (h *InstanceHandle) DependentsCount() int64 { return h.dependents.Load() }

// EnqueueUnload marks the instance for unload at the next opportunity
// where it has no strong refs and no dependents; Prune checks this flag
// rather than unloading eagerly.
func (h *InstanceHandle) EnqueueUnload() {
	h.mu.Lock()
	h.unloadRequest = true
	h.mu.Unlock()
}

// UnloadRequested reports whether EnqueueUnload was called.
func (h *InstanceHandle) UnloadRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.unloadRequest
}

// Start transitions Init -> Started by invoking the wrapped
// Instantiable's Start.
func (h *InstanceHandle) Start(ctx context.Context) error {
	h.mu.Lock()

	if h.state != StateInit {
		h.mu.Unlock()
		return fmt.Errorf("engine: instance %q not in Init state (got %s)", h.name, h.state)
	}

	h.mu.Unlock()

	if err := h.impl.Start(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.state = StateStarted
	h.mu.Unlock()

	return nil
}

// Stop transitions to Stopping and runs the wrapped Instantiable's Stop.
func (h *InstanceHandle) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.state = StateStopping
	h.mu.Unlock()

	return h.impl.Stop(ctx)
}

// Detach runs the wrapped Instantiable's Detach and marks the instance
// Detached. Its public Info (this handle) survives so late observers
// fail gracefully instead of dereferencing freed state.
func (h *InstanceHandle) Detach() {
	h.impl.Detach()

	h.mu.Lock()
	h.state = StateDetached
	h.mu.Unlock()
}

// exportedKeysOf collects the symbol-table keys a descriptor's static and
// dynamic exports will occupy.
func exportedKeysOf(exp export.Descriptor) []symtab.Key {
	keys := make([]symtab.Key, 0, len(exp.SymbolExports)+len(exp.DynamicSymbolExports))

	for _, se := range exp.SymbolExports {
		keys = append(keys, symtab.NewKey(se.Name, se.Namespace))
	}

	for _, dse := range exp.DynamicSymbolExports {
		keys = append(keys, symtab.NewKey(dse.Name, dse.Namespace))
	}

	return keys
}

// dependencyNamesOf collects the instance names referenced by a
// descriptor's "dependency" modifiers.
func dependencyNamesOf(exp export.Descriptor) []string {
	var names []string

	for _, m := range exp.Modifiers {
		if m.Tag != export.ModifierDependency {
			continue
		}

		if name, ok := m.Payload.(string); ok {
			names = append(names, name)
		}
	}

	return names
}

// BasicInstance is a minimal Instantiable adequate for the root instance
// and for tests. Real module execution is a different subsystem; this
// engine only needs something that can legitimately occupy the
// Instantiable contract end to end.
type BasicInstance struct {
	OnStart  func(ctx context.Context) error
	OnStop   func(ctx context.Context) error
	OnDetach func()

	constructed map[string]interface{}
}

func (b *BasicInstance) Start(ctx context.Context) error {
	if b.OnStart == nil {
		return nil
	}

	return b.OnStart(ctx)
}

func (b *BasicInstance) Stop(ctx context.Context) error {
	if b.OnStop == nil {
		return nil
	}

	return b.OnStop(ctx)
}

func (b *BasicInstance) Detach() {
	if b.OnDetach != nil {
		b.OnDetach()
	}
}

// BasicFactory constructs a BasicInstance for any descriptor, running
// every dynamic symbol's constructor sequentially as part of
// InitExported, matching the order real instance construction would
// use.
type BasicFactory struct{}

func (BasicFactory) InitExported(ctx context.Context, set *loadset.Set, exp export.Descriptor, moduleHandle loadset.Handle) (Instantiable, error) {
	constructed := make(map[string]interface{}, len(exp.DynamicSymbolExports))

	for _, dse := range exp.DynamicSymbolExports {
		if dse.Constructor == nil {
			continue
		}

		v, err := dse.Constructor()
		if err != nil {
			return nil, fmt.Errorf("engine: construct dynamic symbol %s for %q: %w", dse.Name, exp.Name, err)
		}

		constructed[dse.Name] = v
	}

	return &BasicInstance{constructed: constructed}, nil
}
