package serializer

import (
	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

// TypeRegistry deduplicates type definitions by name and tracks names that
// were referenced before being defined. Insertion order is preserved.
type TypeRegistry struct {
	defs  []spec.TypeDefinition
	index map[string]int

	// exported maps a declaration name to the public name it is exported
	// under; publicNames holds the public names themselves.
	exported    map[string]string
	publicNames map[string]bool

	referenced []string
	refSet     map[string]bool
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		index:       make(map[string]int),
		exported:    make(map[string]string),
		publicNames: make(map[string]bool),
		refSet:      make(map[string]bool),
	}
}

// RegisterExportedType records that the declaration targetName is exported
// as exportName. The first export of a declaration wins.
func (r *TypeRegistry) RegisterExportedType(exportName, targetName string) {
	if _, ok := r.exported[targetName]; !ok {
		r.exported[targetName] = exportName
	}
	r.publicNames[exportName] = true
}

// PublicName returns the name references to declaration name should use.
func (r *TypeRegistry) PublicName(name string) string {
	if pub, ok := r.exported[name]; ok {
		return pub
	}
	return name
}

// IsExportedType reports whether name is a public type name.
func (r *TypeRegistry) IsExportedType(name string) bool {
	return r.publicNames[name]
}

// RegisterTypeDefinition stores def unless a definition with the same name
// exists. It reports whether def was stored.
func (r *TypeRegistry) RegisterTypeDefinition(def spec.TypeDefinition) bool {
	if _, ok := r.index[def.ID]; ok {
		return false
	}
	r.index[def.ID] = len(r.defs)
	r.defs = append(r.defs, def)
	return true
}

// IsKnownType reports whether name is exported or already defined.
func (r *TypeRegistry) IsKnownType(name string) bool {
	if r.publicNames[name] {
		return true
	}
	_, ok := r.index[name]
	return ok
}

// AddReference records that a schema referenced name.
func (r *TypeRegistry) AddReference(name string) {
	if name == "" || r.refSet[name] {
		return
	}
	r.refSet[name] = true
	r.referenced = append(r.referenced, name)
}

// GetReferencedTypes returns every referenced name in first-seen order.
func (r *TypeRegistry) GetReferencedTypes() []string {
	return append([]string(nil), r.referenced...)
}

// Definition returns the stored definition for name.
func (r *TypeRegistry) Definition(name string) (*spec.TypeDefinition, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return &r.defs[i], true
}

// Definitions returns the stored definitions in insertion order.
func (r *TypeRegistry) Definitions() []spec.TypeDefinition {
	return r.defs
}
