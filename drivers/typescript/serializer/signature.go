package serializer

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
	"github.com/ryanwaits/openpkg-sub004/pkg/jsdoc"
)

// typeParameters serializes a type_parameters node and returns the names so
// callers can scope them while formatting.
func (c *Context) typeParameters(s site, n *sitter.Node) ([]spec.TypeParameter, []string) {
	tp := tsast.Field(n, "type_parameters")
	if tp == nil {
		return nil, nil
	}
	params := tsast.NamedChildren(tp)
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, s.text(tsast.Field(p, "name")))
	}
	// Constraints may mention sibling parameters.
	defer c.pushTypeParams(names)()

	out := make([]spec.TypeParameter, 0, len(params))
	for i, p := range params {
		t := spec.TypeParameter{Name: names[i]}
		if con := tsast.Field(p, "constraint"); con != nil {
			t.Constraint = c.formatType(s, con)
		}
		if def := tsast.Field(p, "value"); def != nil {
			t.Default = c.formatType(s, def)
		}
		out = append(out, t)
	}
	return out, names
}

// signature serializes any function-like node: declarations, signatures,
// methods, arrow functions and function types. doc supplies parameter and
// return descriptions when non-nil.
func (c *Context) signature(s site, n *sitter.Node, doc *jsdoc.Comment) spec.Signature {
	tps, names := c.typeParameters(s, n)
	defer c.pushTypeParams(names)()

	sig := spec.Signature{Parameters: []spec.Parameter{}, TypeParameters: tps}

	if params := tsast.Field(n, "parameters"); params != nil {
		index := 0
		for _, p := range tsast.NamedChildren(params) {
			param, ok := c.parameter(s, p, index)
			if !ok {
				continue
			}
			if doc != nil {
				if tag, ok := doc.Param(param.Name); ok {
					param.Description = tag.Text
				}
			}
			sig.Parameters = append(sig.Parameters, param)
			index++
		}
	} else if single := tsast.Field(n, "parameter"); single != nil {
		// x => x
		sig.Parameters = append(sig.Parameters, spec.Parameter{Name: s.text(single), Required: true, Schema: spec.Primitive("any")})
	}

	ret := &spec.Returns{Schema: c.returnSchema(s, n)}
	if doc != nil {
		if tag, ok := doc.Returns(); ok {
			ret.Description = tag.Text
		}
	}
	sig.Returns = ret
	return sig
}

func (c *Context) returnSchema(s site, n *sitter.Node) *spec.Schema {
	if rt := tsast.Field(n, "return_type"); rt != nil {
		return c.formatType(s, rt)
	}
	async := tsast.HasToken(n, "async")
	inner := spec.Primitive("void")
	if body := tsast.Field(n, "body"); body != nil && returnsValue(body) {
		inner = spec.Primitive("any")
	}
	if async {
		return &spec.Schema{TSType: "Promise", TypeArguments: []*spec.Schema{inner}}
	}
	return inner
}

// returnsValue reports whether a function body returns a value, ignoring
// nested functions. Expression bodies of arrow functions always do.
func returnsValue(body *sitter.Node) bool {
	if body.Type() != "statement_block" {
		return true
	}
	found := false
	tsast.Walk(body, func(n *sitter.Node) bool {
		if found {
			return false
		}
		switch n.Type() {
		case "function_declaration", "function_expression", "function", "arrow_function", "class", "class_declaration", "method_definition":
			return false
		case "return_statement":
			if tsast.FirstNamed(n) != nil {
				found = true
			}
			return false
		}
		return true
	})
	return found
}

// parameter serializes one formal parameter. The "this" pseudo-parameter is
// skipped.
func (c *Context) parameter(s site, p *sitter.Node, index int) (spec.Parameter, bool) {
	switch p.Type() {
	case "required_parameter", "optional_parameter":
	default:
		return spec.Parameter{}, false
	}
	pattern := tsast.Field(p, "pattern")
	if pattern == nil {
		return spec.Parameter{}, false
	}

	param := spec.Parameter{}
	switch pattern.Type() {
	case "this":
		return spec.Parameter{}, false
	case "identifier":
		param.Name = s.text(pattern)
	case "rest_pattern":
		param.Rest = true
		param.Name = s.text(tsast.FirstNamed(pattern))
	default:
		param.Name = fmt.Sprintf("__%d", index)
	}

	value := tsast.Field(p, "value")
	if value != nil {
		param.Default = tsast.NormalizeSpace(s.text(value))
	}
	param.Required = p.Type() == "required_parameter" && value == nil && !param.Rest

	switch t := tsast.Field(p, "type"); {
	case t != nil:
		param.Schema = c.formatType(s, t)
	case value != nil:
		param.Schema = c.inferLiteral(s, value, false)
	case param.Rest:
		param.Schema = &spec.Schema{Type: "array", Items: spec.Primitive("any")}
	default:
		param.Schema = spec.Primitive("any")
	}
	return param, true
}
