package engine

import (
	"context"

	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/loadset"
	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/modver"
	"github.com/arborlang/modlink/internal/task"
)

// Engine is the process-wide CommitEngine: it serializes commits one at a
// time, builds a LoadGraph per commit, and owns the GlobalRegistry every
// successfully loaded instance is recorded in.
type Engine struct {
	registry *GlobalRegistry
	factory  Factory

	// serialize is a capacity-1 token channel acting as a FIFO mutex: Go's
	// runtime queues blocked channel receivers in arrival order, giving
	// commits the same "enqueue a waker on a FIFO wait list" behavior
	// without a hand-rolled wait-list structure.
	serialize chan struct{}

	root *InstanceHandle
}

// NewEngine constructs an Engine with an empty registry, ready to accept
// a root instance and commits.
func NewEngine(factory Factory) *Engine {
	e := &Engine{
		registry:  newGlobalRegistry(),
		factory:   factory,
		serialize: make(chan struct{}, 1),
	}
	e.serialize <- struct{}{}

	return e
}

// NewLoadingSet constructs a LoadingSet bound to this engine as its
// committer.
func (e *Engine) NewLoadingSet() *loadset.Set {
	return loadset.New(e)
}

// Commit implements loadset.Committer. It acquires the engine's
// serialization token (a ctx cancelled while waiting for it rejects the
// commit future), builds a fresh LoadGraph, spawns every loadable module's
// LoadOp, and waits for the commit to drain before releasing the token
// for the next queued commit.
func (e *Engine) Commit(ctx context.Context, set *loadset.Set) *task.Future[struct{}] {
	return task.Spawn(func() (struct{}, error) {
		select {
		case <-e.serialize:
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}

		defer func() { e.serialize <- struct{}{} }()

		commitWaker := task.NewWaker()
		lg := newLoadGraph(commitWaker)

		lg.spawnMissingTasks(ctx, set, e.registry, e.factory)

		// Once spawned, the commit is non-abortable: it waits for every
		// in-flight LoadOp to reach its terminal state, to preserve
		// unwind symmetry. A LoadOp still waiting on a dependency when
		// ctx is cancelled ends in Err.
		for lg.enqueueCount.Load() > 0 {
			<-commitWaker.C()
		}

		return struct{}{}, nil
	})
}

// AddRootInstance bootstraps the engine's root instance directly through
// the registry, bypassing the commit pipeline since the root has no
// imports or dependencies to wait on.
func (e *Engine) AddRootInstance(ctx context.Context, name string) (*InstanceHandle, error) {
	if e.root != nil {
		return nil, merr.New(merr.Duplicate, "root instance %q already exists", e.root.name)
	}

	exp := export.Descriptor{Name: name, ContextVersion: modver.Version{Major: 1}}

	impl, err := e.factory.InitExported(ctx, nil, exp, loadset.NoopHandle)
	if err != nil {
		return nil, err
	}

	h := newInstanceHandle(name, exp, impl, nil, nil, nil)

	if err := h.Start(ctx); err != nil {
		h.Detach()
		return nil, err
	}

	if err := e.registry.AddInstance(h); err != nil {
		_ = h.Stop(ctx)
		h.Detach()

		return nil, err
	}

	e.root = h

	return h, nil
}

// FindInstanceByName returns the instance registered under name, if any.
// Only fully-registered instances are ever visible here: a module still
// mid-commit has not yet reached GlobalRegistry.AddInstance.
func (e *Engine) FindInstanceByName(name string) (*InstanceHandle, bool) {
	return e.registry.FindByName(name)
}

// FindInstanceBySymbol resolves (name, namespace) to its owning instance,
// requiring the owner's export to satisfy reqVer.
func (e *Engine) FindInstanceBySymbol(name, namespace string, reqVer modver.Version) (*InstanceHandle, bool) {
	return e.registry.FindBySymbol(name, namespace, reqVer)
}

// QueryNamespace reports whether namespace currently has symbols or
// references registered (or is the implicit global namespace).
func (e *Engine) QueryNamespace(namespace string) bool {
	return e.registry.QueryNamespace(namespace)
}

// PruneInstances walks the registry in dependency order, unloading every
// non-root instance that has no strong refs and no dependents.
func (e *Engine) PruneInstances(ctx context.Context) error {
	rootName := ""
	if e.root != nil {
		rootName = e.root.name
	}

	return e.registry.PruneInstances(ctx, rootName)
}

// QueryParameter returns the declared Parameter metadata for owner/param.
func (e *Engine) QueryParameter(owner, param string) (export.Parameter, error) {
	return e.registry.QueryParameter(owner, param)
}

// ReadParameter reads a public parameter's current value.
func (e *Engine) ReadParameter(owner, param string) (interface{}, error) {
	return e.registry.ReadParameter(owner, param)
}

// WriteParameter writes a public, writable parameter's value.
func (e *Engine) WriteParameter(owner, param string, value interface{}) error {
	return e.registry.WriteParameter(owner, param, value)
}
