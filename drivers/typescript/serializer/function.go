package serializer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

type functionSerializer struct{}

func (functionSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	e := newExport(decl, sym, spec.KindFunction, ctx)

	decls := []*program.Declaration{decl}
	if sym != nil && !decl.Expression {
		decls = sym.DeclarationsOf(program.DeclFunction)
	}
	nodes := make([]*sitter.Node, 0, len(decls))
	sites := make([]site, 0, len(decls))
	for _, d := range decls {
		nodes = append(nodes, d.Node)
		sites = append(sites, siteOf(d))
	}
	e.Signatures = ctx.overloads(sites, nodes)

	for _, n := range nodes {
		if tsast.HasToken(n, "async") {
			setFlag(e, "async", true)
		}
		if tsast.HasToken(n, "*") || n.Type() == "generator_function_declaration" || n.Type() == "generator_function" {
			setFlag(e, "generator", true)
		}
	}
	return Result{Export: e}
}

// overloads serializes the signatures of a possibly overloaded function or
// method. When bodiless overload signatures exist, the implementation is
// not part of the public surface and is dropped.
func (c *Context) overloads(sites []site, nodes []*sitter.Node) []spec.Signature {
	hasSignatures := false
	for _, n := range nodes {
		if isOverloadSignature(n) {
			hasSignatures = true
			break
		}
	}

	var sigs []spec.Signature
	for i, n := range nodes {
		if hasSignatures && !isOverloadSignature(n) {
			continue
		}
		doc := docOf(sites[i], n)
		sig := c.signature(sites[i], n, &doc)
		sig.Description = doc.Description
		sigs = append(sigs, sig)
	}
	if len(sigs) > 1 {
		for i := range sigs {
			idx := i
			sigs[i].OverloadIndex = &idx
		}
	} else if len(sigs) == 1 {
		// A single signature shares the export's description.
		sigs[0].Description = ""
	}
	return sigs
}

func isOverloadSignature(n *sitter.Node) bool {
	switch n.Type() {
	case "function_signature", "method_signature", "abstract_method_signature":
		return true
	}
	return false
}

func setFlag(e *spec.Export, key string, v any) {
	if e.Flags == nil {
		e.Flags = make(map[string]any)
	}
	e.Flags[key] = v
}
