package serializer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

// maxTypeText is the longest fallback type string kept verbatim.
const maxTypeText = 200

// site is where a type node was written: names in it resolve in scope.
type site struct {
	scope *program.Scope
	file  *program.SourceFile
}

func siteOf(d *program.Declaration) site {
	return site{scope: d.Scope, file: d.File()}
}

func (s site) text(n *sitter.Node) string {
	if s.file == nil {
		return ""
	}
	return s.file.Text(n)
}

var primitives = map[string]bool{
	"string": true, "number": true, "boolean": true, "bigint": true,
	"symbol": true, "object": true, "any": true, "unknown": true,
	"never": true, "void": true, "undefined": true, "null": true,
}

// builtinTypes are lib types that never become $refs.
var builtinTypes = map[string]bool{
	"Array": true, "ReadonlyArray": true, "Promise": true, "PromiseLike": true,
	"Record": true, "Partial": true, "Required": true, "Readonly": true,
	"Pick": true, "Omit": true, "Exclude": true, "Extract": true,
	"NonNullable": true, "ReturnType": true, "Parameters": true,
	"InstanceType": true, "ConstructorParameters": true, "Awaited": true,
	"ThisType": true, "Uppercase": true, "Lowercase": true, "Capitalize": true,
	"Uncapitalize": true, "Map": true, "Set": true, "WeakMap": true,
	"WeakSet": true, "ReadonlyMap": true, "ReadonlySet": true, "Date": true,
	"RegExp": true, "Error": true, "TypeError": true, "RangeError": true,
	"Function": true, "Object": true, "String": true, "Number": true,
	"Boolean": true, "Symbol": true, "BigInt": true, "Iterable": true,
	"Iterator": true, "IterableIterator": true, "AsyncIterable": true,
	"AsyncIterator": true, "AsyncIterableIterator": true, "Generator": true,
	"AsyncGenerator": true, "ArrayBuffer": true, "SharedArrayBuffer": true,
	"DataView": true, "Uint8Array": true, "Int8Array": true,
	"Uint16Array": true, "Int16Array": true, "Uint32Array": true,
	"Int32Array": true, "Float32Array": true, "Float64Array": true,
	"BigInt64Array": true, "BigUint64Array": true, "Uint8ClampedArray": true,
	"URL": true, "URLSearchParams": true, "Headers": true, "Request": true,
	"Response": true, "AbortSignal": true, "AbortController": true,
	"Blob": true, "File": true, "FormData": true, "ReadableStream": true,
	"WritableStream": true, "TextEncoder": true, "TextDecoder": true,
	"Buffer": true, "NodeJS": true, "JSX": true, "React": true,
	"Element": true, "HTMLElement": true, "Event": true, "EventTarget": true,
}

// IsBuiltinType reports whether name is a lib type that is never referenced.
func IsBuiltinType(name string) bool {
	head, _, _ := strings.Cut(name, ".")
	return builtinTypes[head]
}

// formatType converts a type node to a schema. Named user types become
// $refs and are recorded as references; anything that cannot be captured
// structurally falls back to its source text.
func (c *Context) formatType(s site, n *sitter.Node) *spec.Schema {
	if n == nil {
		return spec.Primitive("any")
	}
	switch n.Type() {
	case "type_annotation", "opting_type_annotation", "omitting_type_annotation", "adding_type_annotation",
		"parenthesized_type", "readonly_type", "constraint", "default_type":
		return c.formatType(s, tsast.FirstNamed(n))
	case "predefined_type":
		return spec.Primitive(s.text(n))
	case "this_type":
		return &spec.Schema{TSType: "this"}
	case "type_identifier", "identifier", "nested_type_identifier":
		return c.formatReference(s, s.text(n), nil)
	case "generic_type":
		name := s.text(tsast.Field(n, "name"))
		var args []*sitter.Node
		if ta := tsast.Field(n, "type_arguments"); ta != nil {
			args = tsast.NamedChildren(ta)
		} else if ta := tsast.ChildOfType(n, "type_arguments"); ta != nil {
			args = tsast.NamedChildren(ta)
		}
		return c.formatReference(s, name, args)
	case "literal_type":
		return c.formatLiteralType(s, n)
	case "union_type":
		return &spec.Schema{AnyOf: c.flatten(s, n, "union_type")}
	case "intersection_type":
		return &spec.Schema{AllOf: c.flatten(s, n, "intersection_type")}
	case "array_type":
		return &spec.Schema{Type: "array", Items: c.formatType(s, tsast.FirstNamed(n))}
	case "tuple_type":
		out := &spec.Schema{Type: "array"}
		for _, el := range tsast.NamedChildren(n) {
			out.PrefixItems = append(out.PrefixItems, c.formatTupleElement(s, el))
		}
		return out
	case "object_type":
		return c.formatObjectType(s, n)
	case "function_type":
		sig := c.signature(s, n, nil)
		return &spec.Schema{Type: "function", Signatures: []spec.Signature{sig}}
	case "type_predicate", "type_predicate_annotation":
		return spec.Primitive("boolean")
	case "asserts", "asserts_annotation":
		return spec.Primitive("void")
	case "string", "number", "true", "false", "null", "undefined":
		return c.formatLiteralType(s, n)
	}
	return c.fallback(s, n)
}

func (c *Context) flatten(s site, n *sitter.Node, typ string) []*spec.Schema {
	var out []*spec.Schema
	for _, child := range tsast.NamedChildren(n) {
		if child.Type() == typ {
			out = append(out, c.flatten(s, child, typ)...)
			continue
		}
		out = append(out, c.formatType(s, child))
	}
	return out
}

func (c *Context) formatTupleElement(s site, el *sitter.Node) *spec.Schema {
	switch el.Type() {
	case "optional_type":
		return c.formatType(s, tsast.FirstNamed(el))
	case "rest_type":
		return &spec.Schema{Type: "array", Items: c.formatType(s, tsast.FirstNamed(el))}
	case "required_parameter", "optional_parameter":
		// Labeled tuple members: [name: T].
		return c.formatType(s, tsast.Field(el, "type"))
	}
	return c.formatType(s, el)
}

func (c *Context) formatLiteralType(s site, n *sitter.Node) *spec.Schema {
	lit := n
	if n.Type() == "literal_type" {
		lit = tsast.FirstNamed(n)
		if lit == nil {
			lit = n.Child(0)
		}
	}
	if lit == nil {
		return c.fallback(s, n)
	}
	switch lit.Type() {
	case "string":
		return &spec.Schema{Type: "string", Enum: []any{s.file.StringValue(lit)}}
	case "number", "unary_expression":
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s.text(lit), " ", ""), 64); err == nil {
			return &spec.Schema{Type: "number", Enum: []any{f}}
		}
	case "true":
		return &spec.Schema{Type: "boolean", Enum: []any{true}}
	case "false":
		return &spec.Schema{Type: "boolean", Enum: []any{false}}
	case "null":
		return spec.Primitive("null")
	case "undefined":
		return spec.Primitive("undefined")
	}
	return c.fallback(s, n)
}

// formatReference resolves a (possibly qualified) type name.
func (c *Context) formatReference(s site, name string, args []*sitter.Node) *spec.Schema {
	name = tsast.NormalizeSpace(name)
	name = strings.ReplaceAll(name, " ", "")

	var typeArgs []*spec.Schema
	for _, a := range args {
		typeArgs = append(typeArgs, c.formatType(s, a))
	}

	if !strings.Contains(name, ".") && c.isTypeParam(name) {
		return &spec.Schema{TSType: name}
	}
	if !strings.Contains(name, ".") && primitives[name] {
		return spec.Primitive(name)
	}

	var sym *program.Symbol
	if s.scope != nil {
		sym = c.Checker.Lookup(s.scope, name)
	}
	if sym != nil {
		resolved, ok := c.Checker.ResolveAlias(sym)
		if ok {
			if d := resolved.TypeDeclaration(); d != nil && !(IsBuiltinType(name) && d.File() != nil && d.File().External) {
				ref := c.Registry.PublicName(d.Name)
				c.noteTarget(ref, resolved)
				return withTypeArgs(spec.Ref(ref), typeArgs)
			}
		}
		if !ok {
			// Imported from a module that did not resolve.
			ref := importedName(sym, name)
			c.Registry.AddReference(ref)
			return withTypeArgs(spec.Ref(ref), typeArgs)
		}
	}

	if IsBuiltinType(name) {
		return builtinSchema(name, typeArgs)
	}

	ref := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		ref = name[i+1:]
	}
	ref = c.Registry.PublicName(ref)
	c.Registry.AddReference(ref)
	return withTypeArgs(spec.Ref(ref), typeArgs)
}

func (c *Context) noteTarget(ref string, sym *program.Symbol) {
	if _, ok := c.targets[ref]; !ok {
		c.targets[ref] = sym
	}
	c.Registry.AddReference(ref)
}

// importedName returns the name a symbol has in the module it was imported
// from, when that is a plain identifier.
func importedName(sym *program.Symbol, written string) string {
	if sym.Alias != nil && sym.Alias.Name != "" && sym.Alias.Name != "*" && sym.Alias.Name != "default" {
		return sym.Alias.Name
	}
	if i := strings.LastIndex(written, "."); i >= 0 {
		return written[i+1:]
	}
	return written
}

func withTypeArgs(s *spec.Schema, args []*spec.Schema) *spec.Schema {
	if len(args) > 0 {
		s.TypeArguments = args
	}
	return s
}

func builtinSchema(name string, args []*spec.Schema) *spec.Schema {
	arg := func(i int) *spec.Schema {
		if i < len(args) {
			return args[i]
		}
		return spec.Primitive("any")
	}
	switch name {
	case "Date":
		return &spec.Schema{Type: "string", Format: "date-time"}
	case "Array", "ReadonlyArray":
		return &spec.Schema{Type: "array", Items: arg(0)}
	case "Record":
		return &spec.Schema{Type: "object", AdditionalProperties: arg(1)}
	}
	return withTypeArgs(&spec.Schema{TSType: name}, args)
}

func (c *Context) formatObjectType(s site, n *sitter.Node) *spec.Schema {
	out := &spec.Schema{Type: "object"}
	for _, m := range tsast.NamedChildren(n) {
		switch m.Type() {
		case "property_signature":
			name := propertyName(s, tsast.Field(m, "name"))
			if name == "" {
				continue
			}
			if out.Properties == nil {
				out.Properties = make(map[string]*spec.Schema)
			}
			out.Properties[name] = c.formatType(s, tsast.Field(m, "type"))
			if !tsast.HasToken(m, "?") {
				out.Required = append(out.Required, name)
			}
		case "method_signature":
			name := propertyName(s, tsast.Field(m, "name"))
			if name == "" {
				continue
			}
			if out.Properties == nil {
				out.Properties = make(map[string]*spec.Schema)
			}
			sig := c.signature(s, m, nil)
			if prev, ok := out.Properties[name]; ok && prev.Type == "function" {
				prev.Signatures = append(prev.Signatures, sig)
				continue
			}
			out.Properties[name] = &spec.Schema{Type: "function", Signatures: []spec.Signature{sig}}
			if !tsast.HasToken(m, "?") {
				out.Required = append(out.Required, name)
			}
		case "index_signature":
			out.AdditionalProperties = c.formatType(s, indexSignatureType(m))
		case "call_signature", "construct_signature":
			out.Signatures = append(out.Signatures, c.signature(s, m, nil))
		}
	}
	return out
}

// indexSignatureType returns the value type of "[key: K]: V".
func indexSignatureType(n *sitter.Node) *sitter.Node {
	if t := tsast.Field(n, "type"); t != nil {
		return t
	}
	var last *sitter.Node
	for _, c := range tsast.NamedChildren(n) {
		if c.Type() == "type_annotation" {
			last = c
		}
	}
	return last
}

// propertyName returns the written name of a property key, unquoting
// string keys. Computed keys return their source text.
func propertyName(s site, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "string":
		return s.file.StringValue(n)
	case "private_property_identifier":
		return ""
	}
	return s.text(n)
}

func (c *Context) fallback(s site, n *sitter.Node) *spec.Schema {
	text := tsast.NormalizeSpace(s.text(n))
	if text == "" {
		return spec.Primitive("any")
	}
	out := &spec.Schema{TSType: text}
	if len(text) > maxTypeText {
		out.TSType = truncateText(text, maxTypeText) + "..."
		out.Truncated = true
	}
	return out
}

// truncateText cuts text to at most n bytes without splitting a rune.
func truncateText(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

// inferLiteral infers a schema from an initializer expression. Literals
// keep their value when narrow is set, as for const declarations.
func (c *Context) inferLiteral(s site, n *sitter.Node, narrow bool) *spec.Schema {
	if n == nil {
		return spec.Primitive("any")
	}
	switch n.Type() {
	case "string", "template_string":
		if narrow && n.Type() == "string" {
			return &spec.Schema{Type: "string", Enum: []any{s.file.StringValue(n)}}
		}
		return spec.Primitive("string")
	case "number":
		if narrow {
			if f, err := strconv.ParseFloat(s.text(n), 64); err == nil {
				return &spec.Schema{Type: "number", Enum: []any{f}}
			}
		}
		return spec.Primitive("number")
	case "unary_expression":
		if arg := tsast.Field(n, "argument"); arg != nil && arg.Type() == "number" {
			return c.inferLiteral(s, arg, false)
		}
		if tsast.HasToken(n, "!") {
			return spec.Primitive("boolean")
		}
		return spec.Primitive("number")
	case "true", "false":
		if narrow {
			return &spec.Schema{Type: "boolean", Enum: []any{n.Type() == "true"}}
		}
		return spec.Primitive("boolean")
	case "null":
		return spec.Primitive("null")
	case "undefined":
		return spec.Primitive("undefined")
	case "array":
		elems := tsast.NamedChildren(n)
		if len(elems) == 0 {
			return &spec.Schema{Type: "array", Items: spec.Primitive("any")}
		}
		return &spec.Schema{Type: "array", Items: c.inferLiteral(s, elems[0], false)}
	case "object":
		out := &spec.Schema{Type: "object"}
		for _, p := range tsast.NamedChildren(n) {
			var key string
			var val *spec.Schema
			switch p.Type() {
			case "pair":
				key = propertyName(s, tsast.Field(p, "key"))
				val = c.inferLiteral(s, tsast.Field(p, "value"), false)
			case "shorthand_property_identifier":
				key = s.text(p)
				val = spec.Primitive("any")
			case "method_definition":
				key = propertyName(s, tsast.Field(p, "name"))
				val = &spec.Schema{Type: "function", Signatures: []spec.Signature{c.signature(s, p, nil)}}
			}
			if key == "" {
				continue
			}
			if out.Properties == nil {
				out.Properties = make(map[string]*spec.Schema)
			}
			out.Properties[key] = val
			out.Required = append(out.Required, key)
		}
		return out
	case "arrow_function", "function_expression", "function", "generator_function":
		return &spec.Schema{Type: "function", Signatures: []spec.Signature{c.signature(s, n, nil)}}
	case "new_expression":
		if ctor := tsast.Field(n, "constructor"); ctor != nil {
			return c.formatReference(s, s.text(ctor), typeArgNodes(n))
		}
	case "as_expression", "satisfies_expression":
		children := tsast.NamedChildren(n)
		if n.Type() == "as_expression" && len(children) == 2 {
			return c.formatType(s, children[1])
		}
		if len(children) > 0 {
			// "x as const" keeps literal values.
			return c.inferLiteral(s, children[0], narrow || n.Type() == "as_expression")
		}
	case "parenthesized_expression":
		return c.inferLiteral(s, tsast.FirstNamed(n), narrow)
	case "class":
		return &spec.Schema{TSType: "typeof " + s.text(tsast.Field(n, "name"))}
	}
	return spec.Primitive("unknown")
}

func typeArgNodes(n *sitter.Node) []*sitter.Node {
	if ta := tsast.Field(n, "type_arguments"); ta != nil {
		return tsast.NamedChildren(ta)
	}
	return nil
}
