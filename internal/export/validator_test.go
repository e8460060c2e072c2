package export

import (
	"testing"

	"github.com/arborlang/modlink/internal/modver"
)

func alwaysCompatible(modver.Version) bool { return true }

func TestValidateAcceptsCleanDescriptor(t *testing.T) {
	d := Descriptor{
		Name:           "A",
		ContextVersion: modver.MustParse("1.0.0"),
		SymbolExports: []SymbolExport{
			{Name: "sym1", Namespace: "nsA", Version: modver.MustParse("1.0.0"), Linkage: LinkageGlobal},
		},
	}

	if v := Validate(d, alwaysCompatible); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}
}

func TestValidateReservedName(t *testing.T) {
	d := Descriptor{Name: "__internal", ContextVersion: modver.MustParse("1.0.0")}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "reserved-name") {
		t.Fatalf("expected reserved-name violation, got %v", v)
	}
}

func TestValidateNextMustBeNil(t *testing.T) {
	d := Descriptor{Name: "A", ContextVersion: modver.MustParse("1.0.0"), Next: struct{}{}}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "next-reserved") {
		t.Fatalf("expected next-reserved violation, got %v", v)
	}
}

func TestValidateIncompatibleContextVersion(t *testing.T) {
	d := Descriptor{Name: "A", ContextVersion: modver.MustParse("1.0.0")}

	v := Validate(d, func(modver.Version) bool { return false })
	if !hasRule(v, "context-version") {
		t.Fatalf("expected context-version violation, got %v", v)
	}
}

func TestValidateDuplicateNamespaceImport(t *testing.T) {
	d := Descriptor{
		Name:             "A",
		ContextVersion:   modver.MustParse("1.0.0"),
		NamespaceImports: []string{"nsA", "nsA"},
	}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "namespace-import") {
		t.Fatalf("expected namespace-import violation, got %v", v)
	}
}

func TestValidateSymbolImportNamespaceMustBeImported(t *testing.T) {
	d := Descriptor{
		Name:           "A",
		ContextVersion: modver.MustParse("1.0.0"),
		SymbolImports: []SymbolImport{
			{Name: "sym1", Namespace: "nsB", Version: modver.MustParse("1.0.0")},
		},
	}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "symbol-import-namespace") {
		t.Fatalf("expected symbol-import-namespace violation, got %v", v)
	}
}

func TestValidateSymbolImportFromGlobalIsFine(t *testing.T) {
	d := Descriptor{
		Name:           "A",
		ContextVersion: modver.MustParse("1.0.0"),
		SymbolImports: []SymbolImport{
			{Name: "sym1", Namespace: "", Version: modver.MustParse("1.0.0")},
		},
	}

	if v := Validate(d, alwaysCompatible); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}
}

func TestValidateExportAlsoImported(t *testing.T) {
	d := Descriptor{
		Name:             "A",
		ContextVersion:   modver.MustParse("1.0.0"),
		NamespaceImports: []string{"nsA"},
		SymbolImports: []SymbolImport{
			{Name: "sym1", Namespace: "nsA", Version: modver.MustParse("1.0.0")},
		},
		SymbolExports: []SymbolExport{
			{Name: "sym1", Namespace: "nsA", Version: modver.MustParse("1.0.0"), Linkage: LinkageGlobal},
		},
	}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "export-also-imported") {
		t.Fatalf("expected export-also-imported violation, got %v", v)
	}
}

func TestValidateDuplicateExport(t *testing.T) {
	d := Descriptor{
		Name:           "A",
		ContextVersion: modver.MustParse("1.0.0"),
		SymbolExports: []SymbolExport{
			{Name: "sym1", Namespace: "nsA", Version: modver.MustParse("1.0.0"), Linkage: LinkageGlobal},
		},
		DynamicSymbolExports: []DynamicSymbolExport{
			{SymbolExport: SymbolExport{Name: "sym1", Namespace: "nsA", Version: modver.MustParse("1.0.0"), Linkage: LinkageGlobal}},
		},
	}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "duplicate-export") {
		t.Fatalf("expected duplicate-export violation, got %v", v)
	}
}

func TestValidateNonGlobalLinkageRejected(t *testing.T) {
	d := Descriptor{
		Name:           "A",
		ContextVersion: modver.MustParse("1.0.0"),
		SymbolExports: []SymbolExport{
			{Name: "sym1", Namespace: "nsA", Version: modver.MustParse("1.0.0"), Linkage: "local"},
		},
	}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "export-linkage") {
		t.Fatalf("expected export-linkage violation, got %v", v)
	}
}

func TestValidateModifierRules(t *testing.T) {
	d := Descriptor{
		Name:           "A",
		ContextVersion: modver.MustParse("1.0.0"),
		Modifiers: []Modifier{
			{Tag: ModifierStartEvent},
			{Tag: ModifierStartEvent},
			{Tag: "bogus"},
			{Tag: ModifierDependency, Payload: "B"},
			{Tag: ModifierDependency, Payload: "C"},
		},
	}

	v := Validate(d, alwaysCompatible)
	if !hasRule(v, "duplicate-modifier") {
		t.Fatalf("expected duplicate-modifier violation, got %v", v)
	}

	if !hasRule(v, "unknown-modifier") {
		t.Fatalf("expected unknown-modifier violation, got %v", v)
	}
}

func hasRule(violations []Violation, rule string) bool {
	for _, v := range violations {
		if v.Rule == rule {
			return true
		}
	}

	return false
}
