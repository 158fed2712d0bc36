package serializer

import (
	"fmt"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
)

// Result is the output of serializing one declaration. Type is set for
// declarations that name a type.
type Result struct {
	Export *spec.Export
	Type   *spec.TypeDefinition
}

// Serializer converts one kind of declaration.
type Serializer interface {
	Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result
}

var serializers = map[program.DeclKind]Serializer{
	program.DeclFunction:  functionSerializer{},
	program.DeclClass:     classSerializer{},
	program.DeclInterface: interfaceSerializer{},
	program.DeclTypeAlias: typeAliasSerializer{},
	program.DeclEnum:      enumSerializer{},
	program.DeclVariable:  variableSerializer{},
	program.DeclNamespace: namespaceSerializer{},
}

// For returns the serializer for a declaration kind.
func For(kind program.DeclKind) (Serializer, bool) {
	s, ok := serializers[kind]
	return s, ok
}

// Serialize dispatches decl to its serializer. A panic inside a serializer
// is reported as an error so one malformed declaration cannot abort a whole
// extraction.
func Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) (res Result, err error) {
	s, ok := For(decl.Kind)
	if !ok {
		return Result{}, fmt.Errorf("no serializer for %s declaration %q", decl.Kind, decl.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("serializing %s %q: %v", decl.Kind, decl.Name, r)
		}
	}()
	return s.Serialize(decl, sym, ctx), nil
}

// Stub is the minimal entry emitted when a declaration fails to serialize.
func Stub(name string, kind program.DeclKind, ctx *Context, decl *program.Declaration) spec.Export {
	e := spec.Export{ID: name, Name: name, Kind: exportKind(kind), Schema: spec.Primitive("any")}
	if decl != nil {
		e.Source = ctx.source(decl)
	}
	return e
}

// External is the entry for a re-export whose module could not be resolved.
func External(name, module string) spec.Export {
	return spec.Export{
		ID:    name,
		Name:  name,
		Kind:  spec.KindExternal,
		Flags: map[string]any{"module": module},
	}
}

func exportKind(k program.DeclKind) spec.ExportKind {
	switch k {
	case program.DeclFunction:
		return spec.KindFunction
	case program.DeclClass:
		return spec.KindClass
	case program.DeclInterface:
		return spec.KindInterface
	case program.DeclTypeAlias:
		return spec.KindType
	case program.DeclEnum:
		return spec.KindEnum
	case program.DeclNamespace:
		return spec.KindNamespace
	}
	return spec.KindVariable
}

// typeDefinition derives the type definition from an export so both stay
// in sync.
func typeDefinition(e *spec.Export) *spec.TypeDefinition {
	return &spec.TypeDefinition{
		ID:             e.ID,
		Name:           e.Name,
		Kind:           e.Kind,
		Schema:         e.Schema,
		Type:           e.Type,
		TypeParameters: e.TypeParameters,
		Members:        e.Members,
		Extends:        e.Extends,
		Implements:     e.Implements,
		Description:    e.Description,
		Deprecated:     e.Deprecated,
		Source:         e.Source,
		Tags:           e.Tags,
		RawComments:    e.RawComments,
	}
}

// newExport fills the fields shared by every kind.
func newExport(decl *program.Declaration, sym *program.Symbol, kind spec.ExportKind, ctx *Context) *spec.Export {
	e := &spec.Export{ID: decl.Name, Name: decl.Name, Kind: kind, Source: ctx.source(decl)}
	if decl.Node != nil {
		doc, deprecated := symbolDoc(sym, decl)
		applyDocs(e, doc, deprecated)
	}
	return e
}
