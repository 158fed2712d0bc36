package serializer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

type classSerializer struct{}

func (classSerializer) Serialize(decl *program.Declaration, sym *program.Symbol, ctx *Context) Result {
	e := newExport(decl, sym, spec.KindClass, ctx)
	s := siteOf(decl)
	n := decl.Node

	tps, names := ctx.typeParameters(s, n)
	e.TypeParameters = tps
	defer ctx.pushTypeParams(names)()

	e.Extends, e.Implements = ctx.heritage(s, n)
	e.Members = ctx.classMembers(s, tsast.Field(n, "body"))

	if n.Type() == "abstract_class_declaration" || tsast.HasToken(n, "abstract") {
		setFlag(e, "abstract", true)
	}
	return Result{Export: e, Type: typeDefinition(e)}
}

// heritage returns the extends and implements clauses as written. Each
// named type is formatted so it is recorded as a reference.
func (c *Context) heritage(s site, n *sitter.Node) (extends, implements []string) {
	h := tsast.ChildOfType(n, "class_heritage")
	if h == nil {
		return nil, nil
	}
	for _, clause := range tsast.NamedChildren(h) {
		switch clause.Type() {
		case "extends_clause":
			for _, v := range tsast.NamedChildren(clause) {
				if v.Type() == "type_arguments" {
					continue
				}
				c.formatReference(s, s.text(v), nil)
				extends = append(extends, tsast.NormalizeSpace(s.text(v)))
			}
		case "implements_clause":
			for _, t := range tsast.NamedChildren(clause) {
				c.formatType(s, t)
				implements = append(implements, tsast.NormalizeSpace(s.text(t)))
			}
		}
	}
	return extends, implements
}

type memberKey struct {
	name   string
	static bool
}

// classMembers serializes a class or interface body. Members keep the
// order of first appearance; overloads and get/set pairs merge into one
// member.
func (c *Context) classMembers(s site, body *sitter.Node) []spec.Member {
	var members []spec.Member
	index := make(map[memberKey]int)
	methodNodes := make(map[memberKey][]*sitter.Node)
	var methodOrder []memberKey
	addMethodNode := func(k memberKey, n *sitter.Node) {
		if _, ok := methodNodes[k]; !ok {
			methodOrder = append(methodOrder, k)
		}
		methodNodes[k] = append(methodNodes[k], n)
	}

	add := func(k memberKey, m spec.Member) int {
		if i, ok := index[k]; ok {
			return i
		}
		index[k] = len(members)
		members = append(members, m)
		return index[k]
	}

	for _, n := range tsast.NamedChildren(body) {
		switch n.Type() {
		case "call_signature", "construct_signature":
			name, kind := "()", spec.MemberCallSignature
			if n.Type() == "construct_signature" {
				name, kind = "new()", spec.MemberConstructSignature
			}
			k := memberKey{name: name}
			i := add(k, spec.Member{Name: name, Kind: kind})
			if len(methodNodes[k]) == 0 {
				memberDocs(&members[i], docOf(s, n))
			}
			addMethodNode(k, n)
			continue
		}

		nameNode := tsast.Field(n, "name")
		if nameNode == nil && n.Type() != "index_signature" {
			continue
		}
		if nameNode != nil && nameNode.Type() == "private_property_identifier" {
			continue
		}
		name := propertyName(s, nameNode)
		k := memberKey{name: name, static: tsast.HasToken(n, "static")}

		switch n.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			if name == "constructor" {
				k.static = false
				i := add(k, spec.Member{Name: "constructor", Kind: spec.MemberConstructor})
				if len(methodNodes[k]) == 0 {
					memberDocs(&members[i], docOf(s, n))
				}
				addMethodNode(k, n)
				members = c.parameterProperties(s, n, members, index)
				continue
			}
			if tsast.HasToken(n, "get") || tsast.HasToken(n, "set") {
				c.accessor(s, n, k, &members, index)
				continue
			}
			i := add(k, c.memberBase(s, n, name, spec.MemberMethod))
			addMethodNode(k, n)
			if tsast.HasToken(n, "?") {
				members[i].Optional = true
			}
		case "public_field_definition", "property_signature":
			m := c.memberBase(s, n, name, spec.MemberProperty)
			m.Optional = tsast.HasToken(n, "?")
			if t := tsast.Field(n, "type"); t != nil {
				m.Schema = c.formatType(s, t)
			} else if v := tsast.Field(n, "value"); v != nil {
				m.Schema = c.inferLiteral(s, v, m.Readonly)
			} else {
				m.Schema = spec.Primitive("any")
			}
			add(k, m)
		case "index_signature":
			m := spec.Member{Name: "[index]", Kind: spec.MemberIndexSignature, Static: k.static, Readonly: tsast.HasToken(n, "readonly")}
			m.Schema = c.formatType(s, indexSignatureType(n))
			add(memberKey{name: "[index]", static: k.static}, m)
		}
	}

	for _, k := range methodOrder {
		nodes := methodNodes[k]
		sites := make([]site, len(nodes))
		for i := range sites {
			sites[i] = s
		}
		members[index[k]].Signatures = c.overloads(sites, nodes)
	}
	return members
}

// memberBase fills modifiers and docs shared by every member kind.
func (c *Context) memberBase(s site, n *sitter.Node, name string, kind spec.MemberKind) spec.Member {
	m := spec.Member{
		Name:       name,
		Kind:       kind,
		Visibility: visibility(s, n),
		Static:     tsast.HasToken(n, "static"),
		Readonly:   tsast.HasToken(n, "readonly"),
		Abstract:   n.Type() == "abstract_method_signature" || tsast.HasToken(n, "abstract"),
	}
	memberDocs(&m, docOf(s, n))
	return m
}

func visibility(s site, n *sitter.Node) spec.Visibility {
	if mod := tsast.ChildOfType(n, "accessibility_modifier"); mod != nil {
		return spec.Visibility(s.text(mod))
	}
	return spec.VisibilityPublic
}

// accessor merges get/set pairs into one accessor member. The getter's
// return type wins over the setter's parameter type.
func (c *Context) accessor(s site, n *sitter.Node, k memberKey, members *[]spec.Member, index map[memberKey]int) {
	isGetter := tsast.HasToken(n, "get")
	var schema *spec.Schema
	if isGetter {
		schema = c.returnSchema(s, n)
	} else if params := tsast.NamedChildren(tsast.Field(n, "parameters")); len(params) > 0 {
		schema = c.formatType(s, tsast.Field(params[0], "type"))
	}

	i, ok := index[k]
	if !ok {
		m := c.memberBase(s, n, k.name, spec.MemberAccessor)
		m.Schema = schema
		m.Readonly = isGetter
		index[k] = len(*members)
		*members = append(*members, m)
		return
	}
	m := &(*members)[i]
	if isGetter {
		m.Schema = schema
	} else {
		m.Readonly = false
		if m.Schema == nil {
			m.Schema = schema
		}
	}
	if m.Description == "" {
		memberDocs(m, docOf(s, n))
	}
}

// parameterProperties adds members declared through constructor
// parameters such as "constructor(private readonly x: number)".
func (c *Context) parameterProperties(s site, ctor *sitter.Node, members []spec.Member, index map[memberKey]int) []spec.Member {
	for _, p := range tsast.NamedChildren(tsast.Field(ctor, "parameters")) {
		if tsast.ChildOfType(p, "accessibility_modifier") == nil && !tsast.HasToken(p, "readonly") {
			continue
		}
		pattern := tsast.Field(p, "pattern")
		if pattern == nil || pattern.Type() != "identifier" {
			continue
		}
		k := memberKey{name: s.text(pattern)}
		if _, ok := index[k]; ok {
			continue
		}
		m := spec.Member{
			Name:       k.name,
			Kind:       spec.MemberProperty,
			Visibility: visibility(s, p),
			Readonly:   tsast.HasToken(p, "readonly"),
			Optional:   p.Type() == "optional_parameter",
		}
		if t := tsast.Field(p, "type"); t != nil {
			m.Schema = c.formatType(s, t)
		} else {
			m.Schema = spec.Primitive("any")
		}
		index[k] = len(members)
		members = append(members, m)
	}
	return members
}
