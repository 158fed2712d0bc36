package serializer

import (
	"strconv"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

type enumSerializer struct{}

// Serialize captures member names and initializer text. Initializers are
// never evaluated; the schema lists only literal values.
func (enumSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	e := newExport(decl, sym, spec.KindEnum, ctx)

	decls := []*program.Declaration{decl}
	if sym != nil {
		decls = sym.DeclarationsOf(program.DeclEnum)
	}

	var values []any
	strs, nums, other := 0, 0, 0
	for _, d := range decls {
		if tsast.HasToken(d.Node, "const") {
			setFlag(e, "const", true)
		}
		ds := siteOf(d)
		for _, m := range tsast.NamedChildren(tsast.Field(d.Node, "body")) {
			member := spec.Member{Kind: spec.MemberEnumMember}
			switch m.Type() {
			case "enum_assignment":
				member.Name = propertyName(ds, tsast.Field(m, "name"))
				value := tsast.Field(m, "value")
				member.Value = tsast.NormalizeSpace(ds.text(value))
				switch value.Type() {
				case "string":
					values = append(values, ds.file.StringValue(value))
					strs++
				case "number":
					if f, err := strconv.ParseFloat(ds.text(value), 64); err == nil {
						values = append(values, f)
						nums++
						break
					}
					other++
				default:
					other++
				}
			case "property_identifier", "string":
				member.Name = propertyName(ds, m)
				nums++
			default:
				continue
			}
			memberDocs(&member, docOf(ds, m))
			e.Members = append(e.Members, member)
		}
	}

	switch {
	case other == 0 && nums == 0 && strs > 0:
		e.Schema = &spec.Schema{Type: "string", Enum: values}
	case other == 0 && strs == 0:
		e.Schema = &spec.Schema{Type: "number", Enum: values}
	default:
		e.Schema = &spec.Schema{Enum: values}
	}
	return Result{Export: e, Type: typeDefinition(e)}
}
