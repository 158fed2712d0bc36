package spec

import (
	"encoding/json"
	"strings"
)

// Schema is a JSON-Schema-like description of a TypeScript type. A schema
// holding nothing but Type encodes as the primitive shorthand string.
type Schema struct {
	Ref                  string             `json:"$ref,omitempty"`
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	PrefixItems          []*Schema          `json:"prefixItems,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
	OneOf                []*Schema          `json:"oneOf,omitempty"`
	AllOf                []*Schema          `json:"allOf,omitempty"`
	TypeArguments        []*Schema          `json:"typeArguments,omitempty"`
	Signatures           []Signature        `json:"signatures,omitempty"`
	Description          string             `json:"description,omitempty"`
	TSType               string             `json:"tsType,omitempty"`
	Truncated            bool               `json:"truncated,omitempty"`
	External             bool               `json:"external,omitempty"`
}

// Primitive returns the shorthand schema for a primitive type name.
func Primitive(name string) *Schema {
	return &Schema{Type: name}
}

// Ref returns a schema referencing the named type definition.
func Ref(name string) *Schema {
	return &Schema{Ref: TypeRefPrefix + name}
}

// RefName returns the type name a $ref points at, or "" when s is not a
// local type reference.
func (s *Schema) RefName() string {
	if s == nil || !strings.HasPrefix(s.Ref, TypeRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(s.Ref, TypeRefPrefix)
}

func (s *Schema) isShorthand() bool {
	return s.Type != "" && s.Ref == "" && s.Format == "" && len(s.Enum) == 0 &&
		len(s.Properties) == 0 && len(s.Required) == 0 && s.AdditionalProperties == nil &&
		s.Items == nil && len(s.PrefixItems) == 0 && len(s.AnyOf) == 0 &&
		len(s.OneOf) == 0 && len(s.AllOf) == 0 && len(s.TypeArguments) == 0 &&
		len(s.Signatures) == 0 && s.Description == "" && s.TSType == "" &&
		!s.Truncated && !s.External
}

// MarshalJSON emits the primitive shorthand when possible.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.isShorthand() {
		return json.Marshal(s.Type)
	}
	type plain Schema
	return json.Marshal(plain(s))
}

// UnmarshalJSON accepts both the shorthand string and the object form.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = Schema{Type: name}
		return nil
	}
	type plain Schema
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Schema(p)
	return nil
}

// Walk calls fn for s and every schema nested inside it, depth first.
// Returning false from fn skips the children of that schema.
func (s *Schema) Walk(fn func(*Schema) bool) {
	if s == nil || !fn(s) {
		return
	}
	for _, k := range sortedKeys(s.Properties) {
		s.Properties[k].Walk(fn)
	}
	s.AdditionalProperties.Walk(fn)
	s.Items.Walk(fn)
	for _, group := range [][]*Schema{s.PrefixItems, s.AnyOf, s.OneOf, s.AllOf, s.TypeArguments} {
		for _, c := range group {
			c.Walk(fn)
		}
	}
	for i := range s.Signatures {
		s.Signatures[i].walkSchemas(fn)
	}
}

func (sig *Signature) walkSchemas(fn func(*Schema) bool) {
	for i := range sig.Parameters {
		sig.Parameters[i].Schema.Walk(fn)
	}
	if sig.Returns != nil {
		sig.Returns.Schema.Walk(fn)
	}
	walkTypeParams(sig.TypeParameters, fn)
}

func walkTypeParams(tps []TypeParameter, fn func(*Schema) bool) {
	for i := range tps {
		tps[i].Constraint.Walk(fn)
		tps[i].Default.Walk(fn)
	}
}

func walkMembers(members []Member, fn func(*Schema) bool) {
	for i := range members {
		members[i].Schema.Walk(fn)
		for j := range members[i].Signatures {
			members[i].Signatures[j].walkSchemas(fn)
		}
	}
}

// WalkSchemas visits every schema reachable from the export.
func (e *Export) WalkSchemas(fn func(*Schema) bool) {
	e.Schema.Walk(fn)
	for i := range e.Signatures {
		e.Signatures[i].walkSchemas(fn)
	}
	walkTypeParams(e.TypeParameters, fn)
	walkMembers(e.Members, fn)
}

// WalkSchemas visits every schema reachable from the type definition.
func (t *TypeDefinition) WalkSchemas(fn func(*Schema) bool) {
	t.Schema.Walk(fn)
	walkTypeParams(t.TypeParameters, fn)
	walkMembers(t.Members, fn)
}

// WalkSchemas visits every schema in the spec.
func (s *Spec) WalkSchemas(fn func(*Schema) bool) {
	for i := range s.Exports {
		s.Exports[i].WalkSchemas(fn)
	}
	for i := range s.Types {
		s.Types[i].WalkSchemas(fn)
	}
}
