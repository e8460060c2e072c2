// Package source turns on-disk and over-the-wire manifests into
// export.Descriptor values a LoadingSet can stage, and watches
// directories for newly written manifests.
package source

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/modver"
)

// fileDescriptor is the JSON-on-disk shape of a static export manifest.
// Dynamic exports carry constructor/destructor closures and so can only
// be built programmatically; a manifest file only ever describes static
// symbol exports.
type fileDescriptor struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Author           string            `json:"author"`
	License          string            `json:"license"`
	ContextVersion   string            `json:"context_version"`
	NamespaceImports []string          `json:"namespace_imports"`
	SymbolImports    []fileImport      `json:"symbol_imports"`
	SymbolExports    []fileExport      `json:"symbol_exports"`
	Parameters       []fileParameter   `json:"parameters"`
	Resources        []fileResource    `json:"resources"`
	Modifiers        []fileModifierRaw `json:"modifiers"`
}

type fileImport struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
}

type fileExport struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Version   string `json:"version"`
}

type fileParameter struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Default    string `json:"default"`
	ReadGroup  string `json:"read_group"`
	WriteGroup string `json:"write_group"`
}

type fileResource struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type fileModifierRaw struct {
	Tag     string `json:"tag"`
	Payload string `json:"payload"`
}

// ParseFile reads and decodes one manifest file into an export.Descriptor.
func ParseFile(path string) (export.Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return export.Descriptor{}, fmt.Errorf("source: read %s: %w", path, err)
	}

	return Parse(raw)
}

// Parse decodes one manifest document into an export.Descriptor.
func Parse(raw []byte) (export.Descriptor, error) {
	var fd fileDescriptor
	if err := json.Unmarshal(raw, &fd); err != nil {
		return export.Descriptor{}, fmt.Errorf("source: decode manifest: %w", err)
	}

	return fd.toDescriptor()
}

func (fd fileDescriptor) toDescriptor() (export.Descriptor, error) {
	ctxVer, err := modver.Parse(fd.ContextVersion)
	if err != nil {
		return export.Descriptor{}, fmt.Errorf("source: module %q: %w", fd.Name, err)
	}

	d := export.Descriptor{
		Name:             fd.Name,
		Description:      fd.Description,
		Author:           fd.Author,
		License:          fd.License,
		ContextVersion:   ctxVer,
		NamespaceImports: fd.NamespaceImports,
	}

	for _, si := range fd.SymbolImports {
		v, err := modver.Parse(si.Version)
		if err != nil {
			return export.Descriptor{}, fmt.Errorf("source: module %q import %q: %w", fd.Name, si.Name, err)
		}

		d.SymbolImports = append(d.SymbolImports, export.SymbolImport{
			Name:      si.Name,
			Namespace: si.Namespace,
			Version:   v,
		})
	}

	for _, se := range fd.SymbolExports {
		v, err := modver.Parse(se.Version)
		if err != nil {
			return export.Descriptor{}, fmt.Errorf("source: module %q export %q: %w", fd.Name, se.Name, err)
		}

		d.SymbolExports = append(d.SymbolExports, export.SymbolExport{
			Name:      se.Name,
			Namespace: se.Namespace,
			Version:   v,
			Linkage:   export.LinkageGlobal,
		})
	}

	for _, p := range fd.Parameters {
		d.Parameters = append(d.Parameters, export.Parameter{
			Name:       p.Name,
			Type:       p.Type,
			Default:    p.Default,
			ReadGroup:  export.AccessGroup(p.ReadGroup),
			WriteGroup: export.AccessGroup(p.WriteGroup),
		})
	}

	for _, r := range fd.Resources {
		d.Resources = append(d.Resources, export.Resource{Name: r.Name, Type: r.Type})
	}

	for _, m := range fd.Modifiers {
		d.Modifiers = append(d.Modifiers, export.Modifier{
			Tag:     export.ModifierTag(m.Tag),
			Payload: m.Payload,
		})
	}

	return d, nil
}
