package serializer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

type interfaceSerializer struct{}

// Serialize merges every interface declaration of the symbol.
func (interfaceSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	e := newExport(decl, sym, spec.KindInterface, ctx)

	decls := []*program.Declaration{decl}
	if sym != nil {
		decls = sym.DeclarationsOf(program.DeclInterface)
	}

	schema := &spec.Schema{Type: "object"}
	for i, d := range decls {
		s := siteOf(d)
		tps, names := ctx.typeParameters(s, d.Node)
		if i == 0 {
			e.TypeParameters = tps
		}
		pop := ctx.pushTypeParams(names)

		if ext := tsast.ChildOfType(d.Node, "extends_type_clause"); ext != nil {
			for _, t := range tsast.NamedChildren(ext) {
				ctx.formatType(s, t)
				e.Extends = append(e.Extends, tsast.NormalizeSpace(s.text(t)))
			}
		}
		body := tsast.Field(d.Node, "body")
		e.Members = append(e.Members, ctx.classMembers(s, body)...)
		mergeObject(schema, ctx.formatObjectType(s, body))
		pop()
	}
	e.Schema = schema
	return Result{Export: e, Type: typeDefinition(e)}
}

// mergeObject folds the properties of src into dst.
func mergeObject(dst, src *spec.Schema) {
	for name, p := range src.Properties {
		if dst.Properties == nil {
			dst.Properties = make(map[string]*spec.Schema)
		}
		if _, ok := dst.Properties[name]; !ok {
			dst.Properties[name] = p
		}
	}
	seen := make(map[string]bool, len(dst.Required))
	for _, r := range dst.Required {
		seen[r] = true
	}
	for _, r := range src.Required {
		if !seen[r] {
			dst.Required = append(dst.Required, r)
		}
	}
	if dst.AdditionalProperties == nil {
		dst.AdditionalProperties = src.AdditionalProperties
	}
	dst.Signatures = append(dst.Signatures, src.Signatures...)
}

type typeAliasSerializer struct{}

func (typeAliasSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	e := newExport(decl, sym, spec.KindType, ctx)
	s := siteOf(decl)

	tps, names := ctx.typeParameters(s, decl.Node)
	e.TypeParameters = tps
	defer ctx.pushTypeParams(names)()

	value := tsast.Field(decl.Node, "value")
	e.Schema = ctx.formatType(s, value)
	e.Type = ctx.Checker.TypeToString(s.file, value)
	if obj := objectTypeOf(value); obj != nil {
		e.Members = ctx.classMembers(s, obj)
	}
	return Result{Export: e, Type: typeDefinition(e)}
}

// objectTypeOf unwraps parentheses around an object type literal.
func objectTypeOf(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_type" {
		n = tsast.FirstNamed(n)
	}
	if n != nil && n.Type() == "object_type" {
		return n
	}
	return nil
}
