package serializer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

type variableSerializer struct{}

// Serialize handles variable declarators and "export default <expr>".
// Variables initialised with a function serialize as functions.
func (variableSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	s := siteOf(decl)
	n := decl.Node

	var typeNode, value *sitter.Node
	if decl.Expression {
		value = n
	} else {
		typeNode = tsast.Field(n, "type")
		value = tsast.Field(n, "value")
	}

	if fn := functionInitializer(value); fn != nil && typeNode == nil {
		e := newExport(decl, sym, spec.KindFunction, ctx)
		doc := docOf(s, n)
		e.Signatures = []spec.Signature{ctx.signature(s, fn, &doc)}
		if tsast.HasToken(fn, "async") {
			setFlag(e, "async", true)
		}
		if decl.VarKind != "" {
			setFlag(e, "declarationKind", decl.VarKind)
		}
		return Result{Export: e}
	}

	e := newExport(decl, sym, spec.KindVariable, ctx)
	if decl.VarKind != "" {
		setFlag(e, "declarationKind", decl.VarKind)
	}
	switch {
	case typeNode != nil:
		e.Schema = ctx.formatType(s, typeNode)
		e.Type = ctx.Checker.TypeToString(s.file, tsast.FirstNamed(typeNode))
		if ft := tsast.FirstNamed(typeNode); ft != nil && ft.Type() == "function_type" {
			e.Signatures = e.Schema.Signatures
		}
	case value != nil:
		e.Schema = ctx.inferLiteral(s, value, decl.VarKind == "const")
	default:
		e.Schema = spec.Primitive("any")
	}
	return Result{Export: e}
}

// functionInitializer returns the function expression a variable is
// initialised with, looking through parentheses.
func functionInitializer(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		n = tsast.FirstNamed(n)
	}
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return n
	}
	return nil
}
