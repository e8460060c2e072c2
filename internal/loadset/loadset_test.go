package loadset

import (
	"testing"

	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/modver"
)

func alwaysCompatible(modver.Version) bool { return true }

func descriptorNamed(name string, exports ...export.SymbolExport) export.Descriptor {
	return export.Descriptor{
		Name:           name,
		ContextVersion: modver.MustParse("1.0.0"),
		SymbolExports:  exports,
	}
}

func TestAddModuleStagesTentativeSymbols(t *testing.T) {
	s := New(nil)

	exp := descriptorNamed("logging", export.SymbolExport{
		Name: "log_info", Namespace: "logging", Version: modver.MustParse("1.0.0"), Linkage: export.LinkageGlobal,
	})

	if err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatalf("AddModule() error = %v", err)
	}

	if !s.QueryModule("logging") {
		t.Fatal("expected module to be staged")
	}

	if !s.QuerySymbol("log_info", "logging", modver.MustParse("1.0.0")) {
		t.Fatal("expected symbol to be tentatively registered")
	}
}

func TestAddModuleDuplicateName(t *testing.T) {
	s := New(nil)
	exp := descriptorNamed("logging")

	if err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatalf("first AddModule() error = %v", err)
	}

	err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible)
	if !merr.Is(err, merr.Duplicate) {
		t.Fatalf("AddModule() error = %v, want Duplicate", err)
	}
}

func TestAddModulePartialCollisionRollsBackWholeModule(t *testing.T) {
	s := New(nil)

	shared := export.SymbolExport{Name: "shared", Namespace: "ns", Version: modver.MustParse("1.0.0"), Linkage: export.LinkageGlobal}
	first := descriptorNamed("a", shared)

	if err := s.AddModule(NoopHandle, NoopHandle, first, alwaysCompatible); err != nil {
		t.Fatalf("first AddModule() error = %v", err)
	}

	fresh := export.SymbolExport{Name: "fresh", Namespace: "ns", Version: modver.MustParse("1.0.0"), Linkage: export.LinkageGlobal}
	second := descriptorNamed("b", fresh, shared)

	err := s.AddModule(NoopHandle, NoopHandle, second, alwaysCompatible)
	if !merr.Is(err, merr.Duplicate) {
		t.Fatalf("AddModule() error = %v, want Duplicate", err)
	}

	if s.QueryModule("b") {
		t.Fatal("module must not be staged after a rolled-back failure")
	}

	if s.QuerySymbol("fresh", "ns", modver.MustParse("1.0.0")) {
		t.Fatal("the already-added 'fresh' symbol row must be rolled back with the rest of the module")
	}
}

func TestAddModuleSymbolCollisionAcrossModules(t *testing.T) {
	s := New(nil)

	sym := export.SymbolExport{Name: "shared", Namespace: "ns", Version: modver.MustParse("1.0.0"), Linkage: export.LinkageGlobal}

	first := descriptorNamed("a", sym)
	second := descriptorNamed("b", sym)

	if err := s.AddModule(NoopHandle, NoopHandle, first, alwaysCompatible); err != nil {
		t.Fatalf("first AddModule() error = %v", err)
	}

	err := s.AddModule(NoopHandle, NoopHandle, second, alwaysCompatible)
	if !merr.Is(err, merr.Duplicate) {
		t.Fatalf("AddModule() error = %v, want Duplicate", err)
	}

	if s.QueryModule("b") {
		t.Fatal("module b must not be staged after symbol collision")
	}
}

func TestAddModuleInvalidExport(t *testing.T) {
	s := New(nil)

	bad := export.Descriptor{Name: "__reserved", ContextVersion: modver.MustParse("1.0.0")}

	err := s.AddModule(NoopHandle, NoopHandle, bad, alwaysCompatible)
	if !merr.Is(err, merr.InvalidExport) {
		t.Fatalf("AddModule() error = %v, want InvalidExport", err)
	}
}

func TestAddCallbackFiresSynchronouslyOnTerminal(t *testing.T) {
	s := New(nil)
	exp := descriptorNamed("logging")

	if err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatal(err)
	}

	s.MarkLoaded("logging")

	called := false

	err := s.AddCallback("logging", func(*ModuleInfo) { called = true }, nil, nil)
	if err != nil {
		t.Fatalf("AddCallback() error = %v", err)
	}

	if !called {
		t.Fatal("expected onSuccess to fire synchronously for an already-terminal module")
	}
}

func TestAddCallbackQueuedUntilTerminal(t *testing.T) {
	s := New(nil)
	exp := descriptorNamed("logging")

	if err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatal(err)
	}

	called := false

	if err := s.AddCallback("logging", func(*ModuleInfo) { called = true }, nil, nil); err != nil {
		t.Fatal(err)
	}

	if called {
		t.Fatal("callback must not fire before the module is terminal")
	}

	s.MarkLoaded("logging")

	if !called {
		t.Fatal("expected queued callback to fire on MarkLoaded")
	}
}

func TestAddCallbackErrorPath(t *testing.T) {
	s := New(nil)
	exp := descriptorNamed("logging")

	if err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatal(err)
	}

	var gotErr export.Descriptor

	cause := merr.New(merr.NotFound, "missing dependency")

	if err := s.AddCallback("logging", nil, func(d export.Descriptor) { gotErr = d }, nil); err != nil {
		t.Fatal(err)
	}

	s.MarkErr("logging", cause)

	if gotErr.Name != "logging" {
		t.Fatalf("expected onError callback with the original descriptor, got %+v", gotErr)
	}

	_, errOut, ok := s.QueryModuleInfo("logging")
	if !ok || errOut != cause {
		t.Fatalf("QueryModuleInfo() = (_, %v, %v), want (_, %v, true)", errOut, ok, cause)
	}
}

func TestMarkTerminalOnlyOnce(t *testing.T) {
	s := New(nil)
	exp := descriptorNamed("logging")

	if err := s.AddModule(NoopHandle, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatal(err)
	}

	count := 0

	if err := s.AddCallback("logging", func(*ModuleInfo) { count++ }, nil, nil); err != nil {
		t.Fatal(err)
	}

	s.MarkLoaded("logging")
	s.MarkLoaded("logging")

	if count != 1 {
		t.Fatalf("expected exactly one callback delivery, got %d", count)
	}
}

type releaseCounter struct{ released int }

func (r *releaseCounter) Release() { r.released++ }

func TestCloseReleasesHeldHandles(t *testing.T) {
	s := New(nil)
	owner := &releaseCounter{}

	exp := descriptorNamed("logging")

	if err := s.AddModule(owner, NoopHandle, exp, alwaysCompatible); err != nil {
		t.Fatal(err)
	}

	s.Close()

	if owner.released != 1 {
		t.Fatalf("owner.released = %d, want 1", owner.released)
	}

	if s.Arena().Len() != 0 {
		t.Fatal("expected arena to be reset on Close")
	}
}
