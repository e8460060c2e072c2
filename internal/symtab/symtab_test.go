package symtab

import (
	"testing"

	"github.com/arborlang/modlink/internal/merr"
	"github.com/arborlang/modlink/internal/modver"
)

func TestAddAndGet(t *testing.T) {
	tab := New()

	v := modver.MustParse("1.0.0")
	if err := tab.Add("sym1", "nsA", v, "A"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ref, ok := tab.Get("sym1", "nsA")
	if !ok {
		t.Fatal("expected symbol to be found")
	}

	if ref.Owner != "A" {
		t.Fatalf("owner = %q, want A", ref.Owner)
	}
}

func TestAddDuplicate(t *testing.T) {
	tab := New()
	v := modver.MustParse("1.0.0")

	if err := tab.Add("sym1", "nsA", v, "A"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	err := tab.Add("sym1", "nsA", v, "B")
	if !merr.Is(err, merr.Duplicate) {
		t.Fatalf("expected Duplicate error, got %v", err)
	}
}

func TestRemoveMissing(t *testing.T) {
	tab := New()

	err := tab.Remove("nope", "nsA")
	if !merr.Is(err, merr.NotFound) {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

func TestGetCompatible(t *testing.T) {
	tab := New()
	if err := tab.Add("sym1", "nsA", modver.MustParse("2.3.4"), "A"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, ok := tab.GetCompatible("sym1", "nsA", modver.MustParse("2.3.0")); !ok {
		t.Fatal("expected compatible version to resolve")
	}

	if _, ok := tab.GetCompatible("sym1", "nsA", modver.MustParse("2.4.0")); ok {
		t.Fatal("expected incompatible version to be rejected")
	}
}

func TestNamespaceAutoCleanup(t *testing.T) {
	tab := New()

	if tab.HasNamespace("nsA") {
		t.Fatal("namespace should not exist before use")
	}

	if err := tab.Add("sym1", "nsA", modver.MustParse("1.0.0"), "A"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if !tab.HasNamespace("nsA") {
		t.Fatal("namespace should exist once it has a symbol")
	}

	tab.RefNamespace("nsA")

	if err := tab.Remove("sym1", "nsA"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if !tab.HasNamespace("nsA") {
		t.Fatal("namespace should persist while still referenced")
	}

	tab.UnrefNamespace("nsA")

	if tab.HasNamespace("nsA") {
		t.Fatal("namespace should be pruned once idle")
	}
}

func TestGlobalNamespaceImplicit(t *testing.T) {
	tab := New()

	if !tab.HasNamespace(Global) {
		t.Fatal("global namespace must always be present")
	}

	if err := tab.Add("sym1", Global, modver.MustParse("1.0.0"), "A"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, ns := range tab.Namespaces() {
		if ns == Global {
			t.Fatal("global namespace must never be tracked as a row")
		}
	}
}
