package export

import (
	"fmt"
	"strings"

	"github.com/arborlang/modlink/internal/modver"
)

// Violation is a single failed rule. Validate collects every violation in
// one pass rather than failing fast, so a caller's diagnostic surface can
// report everything wrong with one export at once.
type Violation struct {
	Rule    string
	Message string
}

func (v Violation) String() string { return fmt.Sprintf("%s: %s", v.Rule, v.Message) }

// reservedPrefix is the name prefix reserved for engine-internal symbols.
const reservedPrefix = "__"

// Validate runs every structural rule against d, given the engine's own
// context version for the version-compatibility check. It never mutates
// d.
func Validate(d Descriptor, engineCompatible func(requested modver.Version) bool) []Violation {
	var v []Violation

	// Rule 1: next pointer is null (reserved).
	if d.Next != nil {
		v = append(v, Violation{"next-reserved", "Next must be nil; descriptor chaining is reserved"})
	}

	// Rule 2: context version compatible with the engine.
	if engineCompatible != nil && !engineCompatible(d.ContextVersion) {
		v = append(v, Violation{"context-version", fmt.Sprintf("context version %s is not compatible with this engine", d.ContextVersion)})
	}

	// Rule 3: name does not begin with the reserved prefix.
	if strings.HasPrefix(d.Name, reservedPrefix) {
		v = append(v, Violation{"reserved-name", fmt.Sprintf("module name %q uses the reserved %q prefix", d.Name, reservedPrefix)})
	}

	// Rule 4: every imported namespace is non-empty and unique.
	seenNS := make(map[string]bool, len(d.NamespaceImports))

	for _, ns := range d.NamespaceImports {
		if ns == "" {
			v = append(v, Violation{"namespace-import", "imported namespace must not be empty"})
			continue
		}

		if seenNS[ns] {
			v = append(v, Violation{"namespace-import", fmt.Sprintf("namespace %q imported more than once", ns)})
			continue
		}

		seenNS[ns] = true
	}

	// Rule 5: every imported symbol's namespace is global or in the import set.
	for _, si := range d.SymbolImports {
		if si.Namespace == "" {
			continue
		}

		if !seenNS[si.Namespace] {
			v = append(v, Violation{"symbol-import-namespace", fmt.Sprintf("symbol import %s references namespace %q which was not imported", si.Name, si.Namespace)})
		}
	}

	// Rule 6: exported symbols are non-reserved, linkage global, not also
	// imported, and not duplicated (static or dynamic).
	importedNames := make(map[string]bool, len(d.SymbolImports))
	for _, si := range d.SymbolImports {
		importedNames[importKey(si.Name, si.Namespace)] = true
	}

	exportedNames := make(map[string]bool)

	checkExport := func(name, namespace string, linkage Linkage) {
		if strings.HasPrefix(name, reservedPrefix) {
			v = append(v, Violation{"reserved-export", fmt.Sprintf("exported symbol %q uses the reserved %q prefix", name, reservedPrefix)})
		}

		if linkage != LinkageGlobal {
			v = append(v, Violation{"export-linkage", fmt.Sprintf("exported symbol %s has non-global linkage %q", name, linkage)})
		}

		key := importKey(name, namespace)
		if importedNames[key] {
			v = append(v, Violation{"export-also-imported", fmt.Sprintf("symbol %s is both imported and exported", name)})
		}

		if exportedNames[key] {
			v = append(v, Violation{"duplicate-export", fmt.Sprintf("symbol %s is exported more than once", name)})
		}

		exportedNames[key] = true
	}

	for _, se := range d.SymbolExports {
		checkExport(se.Name, se.Namespace, se.Linkage)
	}

	for _, dse := range d.DynamicSymbolExports {
		checkExport(dse.Name, dse.Namespace, dse.Linkage)
	}

	// Rule 7: modifier tags are known; singleton tags appear at most once.
	seenSingleton := make(map[ModifierTag]bool)

	for _, m := range d.Modifiers {
		if !knownModifierTag(m.Tag) {
			v = append(v, Violation{"unknown-modifier", fmt.Sprintf("modifier tag %q is not recognized", m.Tag)})
			continue
		}

		if singletonModifierTags[m.Tag] {
			if seenSingleton[m.Tag] {
				v = append(v, Violation{"duplicate-modifier", fmt.Sprintf("modifier tag %q may appear at most once", m.Tag)})
				continue
			}

			seenSingleton[m.Tag] = true
		}
	}

	return v
}

func knownModifierTag(tag ModifierTag) bool {
	switch tag {
	case ModifierDebugInfo, ModifierInstanceState, ModifierStartEvent, ModifierStopEvent, ModifierDependency:
		return true
	default:
		return false
	}
}

func importKey(name, namespace string) string {
	return namespace + "\x00" + name
}
