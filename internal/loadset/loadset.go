// Package loadset implements the LoadingSet staging area: a per-commit
// workspace that collects candidate module exports, tentatively
// registers their declared symbols, and queues callbacks until each
// module reaches a terminal load status.
package loadset

import (
	"context"
	"fmt"
	"sync"

	"github.com/arborlang/modlink/internal/arena"
	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/modver"
	"github.com/arborlang/modlink/internal/symtab"
	"github.com/arborlang/modlink/internal/task"
)

// Status is a module's position in the per-set load pipeline.
type Status int

const (
	StatusUnloaded Status = iota
	StatusErr
	StatusLoaded
)

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusErr:
		return "error"
	case StatusLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Handle is a release-on-drop resource the set holds strongly: either a
// module's backing binary ("ModuleHandle") or an owner instance passed
// to AddModule, kept alive for as long as the set is pending.
type Handle interface {
	Release()
}

// noopHandle satisfies Handle for callers with nothing to release.
type noopHandle struct{}

func (noopHandle) Release() {}

// NoopHandle is a Handle with no side effects, for callers that do not
// need reference-counted cleanup.
var NoopHandle Handle = noopHandle{}

// SuccessCallback is invoked exactly once, after a module reaches
// StatusLoaded, with the module's terminal ModuleInfo.
type SuccessCallback func(*ModuleInfo)

// ErrorCallback is invoked exactly once, after a module reaches
// StatusErr, with its original export descriptor.
type ErrorCallback func(export.Descriptor)

// AbortCallback is invoked if the set itself is closed before the module
// reaches a terminal state.
type AbortCallback func()

type callbackEntry struct {
	onSuccess SuccessCallback
	onError   ErrorCallback
	onAbort   AbortCallback
}

// ModuleInfo is the per-module staging record held inside a Set.
type ModuleInfo struct {
	Name         string
	Status       Status
	Export       export.Descriptor
	Err          error
	OwnerHandle  Handle
	ModuleHandle Handle

	callbacks []callbackEntry
}

// Committer runs a LoadingSet's commit operation. Engine implements this;
// LoadingSet depends only on the interface to avoid an import cycle with
// the engine package. The returned future resolves once the commit
// itself has completed; it fails only on a commit-level problem (e.g.
// the caller's context was cancelled before serialization could be
// acquired), never on a per-module load failure — those are only
// observable through callbacks registered before Commit returns.
type Committer interface {
	Commit(ctx context.Context, set *Set) *task.Future[struct{}]
}

// Filter decides whether a discovered candidate descriptor should be
// admitted to a batch add (load or skip).
type FilterDecision int

const (
	FilterLoad FilterDecision = iota
	FilterSkip
)

type Filter func(export.Descriptor) FilterDecision

// Set is a LoadingSet: the staging workspace for one commit.
type Set struct {
	mu sync.Mutex

	arena     *arena.Arena
	symbols   *symtab.Table
	modules   map[string]*ModuleInfo
	order     []string // insertion order, for deterministic iteration
	committer Committer
}

// New constructs an empty Set bound to the given Committer (normally an
// *engine.Engine).
func New(committer Committer) *Set {
	return &Set{
		arena:     arena.New(),
		symbols:   symtab.New(),
		modules:   make(map[string]*ModuleInfo),
		committer: committer,
	}
}

// QueryModule reports whether name is present in the set (any status).
func (s *Set) QueryModule(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.modules[name]

	return ok
}

// QuerySymbol reports whether a compatible symbol is tentatively
// registered in the set.
func (s *Set) QuerySymbol(name, namespace string, version modver.Version) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.symbols.GetCompatible(name, namespace, version)

	return ok
}

// AddModule validates exp, tentatively registers its declared symbols,
// and stages a ModuleInfo in Unloaded status. On any failure, nothing is
// mutated: symbol rows already added by this call are rolled back
// atomically.
func (s *Set) AddModule(owner Handle, moduleHandle Handle, exp export.Descriptor, engineCompatible func(modver.Version) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if violations := export.Validate(exp, engineCompatible); len(violations) > 0 {
		return merr.New(merr.InvalidExport, "export %q failed validation: %v", exp.Name, violations)
	}

	name := s.arena.Intern(exp.Name)
	if _, exists := s.modules[name]; exists {
		return merr.New(merr.Duplicate, "module %q already present in this set", name)
	}

	// Stage symbol rows transactionally: collect keys first, bail before
	// mutating the table if any would collide.
	type pending struct {
		name, ns string
		ver      modver.Version
	}

	var toAdd []pending

	seen := make(map[symtab.Key]bool)

	addCandidate := func(n, ns string, ver modver.Version) error {
		key := symtab.NewKey(s.arena.Intern(n), s.arena.Intern(ns))
		if seen[key] {
			return merr.New(merr.Duplicate, "module %q declares %s more than once", name, key)
		}

		if _, exists := s.symbols.Get(n, ns); exists {
			return merr.New(merr.Duplicate, "symbol %s already staged in this set", key)
		}

		seen[key] = true
		toAdd = append(toAdd, pending{name: n, ns: ns, ver: ver})

		return nil
	}

	for _, se := range exp.SymbolExports {
		if err := addCandidate(se.Name, se.Namespace, se.Version); err != nil {
			return err
		}
	}

	for _, dse := range exp.DynamicSymbolExports {
		if err := addCandidate(dse.Name, dse.Namespace, dse.Version); err != nil {
			return err
		}
	}

	for _, p := range toAdd {
		if err := s.symbols.Add(p.name, p.ns, p.ver, name); err != nil {
			// Unreachable given the pre-check above, but roll back
			// defensively to honor the atomicity invariant.
			for _, added := range toAdd {
				_ = s.symbols.Remove(added.name, added.ns)

				if added == p {
					break
				}
			}

			return err
		}
	}

	info := &ModuleInfo{
		Name:         name,
		Status:       StatusUnloaded,
		Export:       exp,
		OwnerHandle:  owner,
		ModuleHandle: moduleHandle,
	}

	s.modules[name] = info
	s.order = append(s.order, name)

	return nil
}

// AddCallback registers callbacks for a module. If the module is already
// terminal, the matching callback fires synchronously before AddCallback
// returns.
func (s *Set) AddCallback(name string, onSuccess SuccessCallback, onError ErrorCallback, onAbort AbortCallback) error {
	s.mu.Lock()

	info, ok := s.modules[name]
	if !ok {
		s.mu.Unlock()
		return merr.New(merr.NotFound, "module %q not present in this set", name)
	}

	entry := callbackEntry{onSuccess: onSuccess, onError: onError, onAbort: onAbort}

	switch info.Status {
	case StatusLoaded:
		s.mu.Unlock()

		if onSuccess != nil {
			onSuccess(info)
		}

		return nil
	case StatusErr:
		exp := info.Export
		s.mu.Unlock()

		if onError != nil {
			onError(exp)
		}

		return nil
	default:
		info.callbacks = append(info.callbacks, entry)
		s.mu.Unlock()

		return nil
	}
}

// Names returns the set's module names in insertion order, for the
// commit engine to iterate deterministically.
func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

// Export returns the export descriptor staged for name, or ok=false.
func (s *Set) Export(name string) (export.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.modules[name]
	if !ok {
		return export.Descriptor{}, false
	}

	return info.Export, true
}

// ModuleHandle returns the module handle staged for name, or ok=false.
func (s *Set) ModuleHandle(name string) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.modules[name]
	if !ok {
		return nil, false
	}

	return info.ModuleHandle, true
}

// MarkLoaded transitions name to StatusLoaded, delivering its queued
// success callbacks. It is a no-op if name is unknown or already
// terminal.
func (s *Set) MarkLoaded(name string) {
	s.markTerminal(name, StatusLoaded, nil)
}

// MarkErr transitions name to StatusErr with cause, delivering its
// queued error callbacks. It is a no-op if name is unknown or already
// terminal.
func (s *Set) MarkErr(name string, cause error) {
	s.markTerminal(name, StatusErr, cause)
}

// QueryModuleInfo returns a defensive copy of the named module's status
// and error, or ok=false if absent.
func (s *Set) QueryModuleInfo(name string) (status Status, errOut error, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.modules[name]
	if !exists {
		return StatusUnloaded, nil, false
	}

	return info.Status, info.Err, true
}

// markTerminal transitions a module to a terminal status and delivers
// its queued callbacks exactly once. Once a module enters Loaded or Err
// it stays there. It is the sole mutator of ModuleInfo.Status used by
// the commit engine.
func (s *Set) markTerminal(name string, status Status, errOut error) {
	s.mu.Lock()
	info, ok := s.modules[name]

	if !ok || info.Status != StatusUnloaded {
		s.mu.Unlock()
		return
	}

	info.Status = status
	info.Err = errOut
	callbacks := info.callbacks
	info.callbacks = nil
	s.mu.Unlock()

	for _, cb := range callbacks {
		switch status {
		case StatusLoaded:
			if cb.onSuccess != nil {
				cb.onSuccess(info)
			}
		case StatusErr:
			if cb.onError != nil {
				cb.onError(info.Export)
			}
		}
	}
}

// Symbols exposes the set's tentative symbol table for the commit engine
// (read-only use expected; mutation stays behind Set's own lock).
func (s *Set) Symbols() *symtab.Table {
	return s.symbols
}

// Arena exposes the set's interning arena.
func (s *Set) Arena() *arena.Arena {
	return s.arena
}

// Close releases every held Handle (owner instances and module handles)
// and resets the set's interning arena in one step. Modules still
// Unloaded are abandoned: their queued abort callbacks fire once the
// set's lock is released, and their other queued callbacks are dropped.
func (s *Set) Close() {
	s.mu.Lock()

	var aborts []AbortCallback

	for _, info := range s.modules {
		if info.OwnerHandle != nil {
			info.OwnerHandle.Release()
		}

		if info.ModuleHandle != nil {
			info.ModuleHandle.Release()
		}

		if info.Status == StatusUnloaded {
			for _, cb := range info.callbacks {
				if cb.onAbort != nil {
					aborts = append(aborts, cb.onAbort)
				}
			}

			info.callbacks = nil
		}
	}

	s.arena.Reset()
	s.mu.Unlock()

	for _, abort := range aborts {
		abort()
	}
}

// Commit delegates to the bound Committer (the engine), returning a
// future that resolves once every staged module has reached a terminal
// status.
func (s *Set) Commit(ctx context.Context) *task.Future[struct{}] {
	if s.committer == nil {
		return task.Spawn(func() (struct{}, error) {
			return struct{}{}, fmt.Errorf("loadset: Set has no bound committer")
		})
	}

	return s.committer.Commit(ctx, s)
}
