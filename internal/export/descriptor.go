// Package export defines the wire-compatible ExportDescriptor and the
// pure Validate function that checks one descriptor before it is
// admitted to any LoadingSet.
package export

import "github.com/arborlang/modlink/internal/modver"

// Linkage is the linkage class of an exported symbol. Every exported
// symbol must carry LinkageGlobal.
type Linkage string

const LinkageGlobal Linkage = "global"

// AccessGroup controls who may read or write a Parameter: read_parameter
// and write_parameter only succeed from outside the owner when the
// parameter's group is AccessPublic.
type AccessGroup string

const (
	AccessPublic     AccessGroup = "public"
	AccessDependency AccessGroup = "dependency"
	AccessPrivate    AccessGroup = "private"
)

// ModifierTag is a known modifier kind. Tags debug_info, instance_state,
// start_event, stop_event may each appear at most once; "dependency"
// modifiers may repeat.
type ModifierTag string

const (
	ModifierDebugInfo     ModifierTag = "debug_info"
	ModifierInstanceState ModifierTag = "instance_state"
	ModifierStartEvent    ModifierTag = "start_event"
	ModifierStopEvent     ModifierTag = "stop_event"
	ModifierDependency    ModifierTag = "dependency"
)

var singletonModifierTags = map[ModifierTag]bool{
	ModifierDebugInfo:     true,
	ModifierInstanceState: true,
	ModifierStartEvent:    true,
	ModifierStopEvent:     true,
}

// SymbolImport names a symbol this module requires at a compatible version.
type SymbolImport struct {
	Name      string
	Namespace string
	Version   modver.Version
}

// SymbolExport names a symbol this module provides.
type SymbolExport struct {
	Name      string
	Namespace string
	Version   modver.Version
	Linkage   Linkage
	// SymbolPtr is the opaque handle a real module would resolve through;
	// modlink never dereferences it, only carries it through to the
	// registered instance.
	SymbolPtr interface{}
}

// DynamicSymbolExport is a SymbolExport whose value is produced lazily
// by a constructor during instance construction instead of being
// available statically at descriptor-admission time.
type DynamicSymbolExport struct {
	SymbolExport

	Constructor func() (interface{}, error)
	Destructor  func(interface{})
}

// Parameter is a named, typed, access-controlled configuration value,
// queried and read/written through the owning instance.
type Parameter struct {
	Name       string
	Type       string
	Default    interface{}
	ReadGroup  AccessGroup
	WriteGroup AccessGroup
}

// Resource names a typed resource the instance claims, handed off to the
// "worlds" collaborator layer (out of scope here; modlink only tracks the
// declaration).
type Resource struct {
	Name string
	Type string
}

// Modifier is one tagged, validated modifier attached to a descriptor.
// Payload is tag-specific (e.g. ModifierDependency carries the referenced
// instance name as a string).
type Modifier struct {
	Tag     ModifierTag
	Payload interface{}
}

// Descriptor is the immutable export descriptor a module presents to a
// LoadingSet. Binary layout stability across processes is a non-goal;
// the struct shape is what stays wire-compatible across callers within
// this process.
type Descriptor struct {
	Name        string
	Description string
	Author      string
	License     string

	ContextVersion modver.Version

	NamespaceImports     []string
	SymbolImports        []SymbolImport
	SymbolExports        []SymbolExport
	DynamicSymbolExports []DynamicSymbolExport

	Parameters []Parameter
	Resources  []Resource
	Modifiers  []Modifier

	// Next is reserved for a future descriptor-chaining extension and
	// must be nil.
	Next interface{}
}
