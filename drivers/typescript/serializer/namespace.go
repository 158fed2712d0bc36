package serializer

import (
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
)

type namespaceSerializer struct{}

// Serialize lists the namespace's exported members. Type-like members are
// referenced rather than inlined so they appear once under types.
func (namespaceSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	e := newExport(decl, sym, spec.KindNamespace, ctx)

	var members []program.ExportedSymbol
	if decl.Module != nil {
		members = ctx.Checker.ExportsOfModule(decl.Module)
		setFlag(e, "module", ctx.Program.RelPath(decl.Module.Path))
	} else if sym != nil {
		members = ctx.Checker.MembersOf(sym)
	}

	for _, m := range members {
		e.Members = append(e.Members, ctx.namespaceMember(m))
	}
	return Result{Export: e}
}

func (c *Context) namespaceMember(m program.ExportedSymbol) spec.Member {
	member := spec.Member{Name: m.Name, Kind: spec.MemberProperty}
	target, ok := c.Checker.ResolveAlias(m.Symbol)
	if !ok {
		member.Schema = &spec.Schema{TSType: m.Name, External: true}
		return member
	}
	d := target.PrimaryDeclaration()
	if d == nil {
		member.Schema = spec.Primitive("any")
		return member
	}

	switch d.Kind {
	case program.DeclClass, program.DeclInterface, program.DeclTypeAlias, program.DeclEnum:
		ref := c.Registry.PublicName(d.Name)
		c.noteTarget(ref, target)
		member.Schema = spec.Ref(ref)
	case program.DeclNamespace:
		member.Schema = &spec.Schema{TSType: "namespace"}
	case program.DeclFunction, program.DeclVariable:
		res, err := Serialize(d, target, c)
		if err != nil || res.Export == nil {
			member.Schema = spec.Primitive("any")
			break
		}
		if len(res.Export.Signatures) > 0 {
			member.Kind = spec.MemberMethod
			member.Signatures = res.Export.Signatures
		} else {
			member.Schema = res.Export.Schema
		}
		member.Description = res.Export.Description
		member.Deprecated = res.Export.Deprecated
	}
	return member
}
