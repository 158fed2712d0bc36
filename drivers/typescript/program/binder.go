package program

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

// DeclKind classifies a declaration by syntax.
type DeclKind int

const (
	DeclUnknown DeclKind = iota
	DeclFunction
	DeclClass
	DeclInterface
	DeclTypeAlias
	DeclEnum
	DeclVariable
	DeclNamespace
)

func (k DeclKind) String() string {
	switch k {
	case DeclFunction:
		return "function"
	case DeclClass:
		return "class"
	case DeclInterface:
		return "interface"
	case DeclTypeAlias:
		return "type"
	case DeclEnum:
		return "enum"
	case DeclVariable:
		return "variable"
	case DeclNamespace:
		return "namespace"
	default:
		return "unknown"
	}
}

// IsType reports whether declarations of this kind name a type.
func (k DeclKind) IsType() bool {
	switch k {
	case DeclClass, DeclInterface, DeclTypeAlias, DeclEnum:
		return true
	}
	return false
}

func (k DeclKind) isValue() bool {
	switch k {
	case DeclFunction, DeclClass, DeclEnum, DeclVariable:
		return true
	}
	return false
}

// Declaration is one syntactic declaration of a symbol.
type Declaration struct {
	Kind DeclKind
	Name string

	// Node is the declaring syntax node: a function, class, interface,
	// type alias, enum or module declaration, a variable_declarator, or an
	// expression for "export default <expr>".
	Node *sitter.Node

	// Scope is the scope the declaration appears in.
	Scope *Scope

	// Body is the bound body of a namespace declaration.
	Body *Scope

	// Module is set on the synthetic namespace declaration created for
	// "import * as ns" and "export * as ns".
	Module *SourceFile

	Ambient    bool
	Expression bool
	VarKind    string
}

// File returns the source file containing the declaration.
func (d *Declaration) File() *SourceFile {
	if d.Scope == nil {
		return d.Module
	}
	return d.Scope.File
}

// Alias describes what an import or re-export points at.
type Alias struct {
	// Specifier is the module specifier as written; empty for local aliases.
	Specifier string
	// Module is the resolved target file, nil when unresolved or local.
	Module *SourceFile
	// Name is the export name in Module: "default", "*" or an identifier.
	Name string
	// Local names a symbol in the same scope for "export { a as b }".
	Local string
	// Scope is the scope Local is looked up in.
	Scope *Scope
}

// Symbol is a named entity in a scope: either declarations or an alias.
type Symbol struct {
	Name  string
	Decls []*Declaration
	Alias *Alias
}

// IsAlias reports whether the symbol is an import or re-export.
func (s *Symbol) IsAlias() bool {
	return s.Alias != nil
}

// ValueDeclaration returns the first class, function, enum or variable
// declaration.
func (s *Symbol) ValueDeclaration() *Declaration {
	for _, d := range s.Decls {
		if d.Kind.isValue() {
			return d
		}
	}
	return nil
}

// PrimaryDeclaration prefers the value declaration, falling back to the
// first declaration.
func (s *Symbol) PrimaryDeclaration() *Declaration {
	if d := s.ValueDeclaration(); d != nil {
		return d
	}
	if len(s.Decls) > 0 {
		return s.Decls[0]
	}
	return nil
}

// TypeDeclaration returns the first declaration that names a type.
func (s *Symbol) TypeDeclaration() *Declaration {
	for _, d := range s.Decls {
		if d.Kind.IsType() {
			return d
		}
	}
	return nil
}

// DeclarationsOf returns the declarations of the given kind.
func (s *Symbol) DeclarationsOf(kind DeclKind) []*Declaration {
	var out []*Declaration
	for _, d := range s.Decls {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// ExportedSymbol pairs a public export name with its symbol.
type ExportedSymbol struct {
	Name   string
	Symbol *Symbol
}

// starExport is an "export * from" clause.
type starExport struct {
	Specifier string
	Module    *SourceFile
}

// Scope holds the bindings of a file or namespace body.
type Scope struct {
	File   *SourceFile
	Parent *Scope
	Locals map[string]*Symbol

	exports     []ExportedSymbol
	exportIndex map[string]int
	stars       []starExport
	assignment  *sitter.Node
	isModule    bool
}

func newScope(file *SourceFile, parent *Scope) *Scope {
	return &Scope{
		File:        file,
		Parent:      parent,
		Locals:      make(map[string]*Symbol),
		exportIndex: make(map[string]int),
	}
}

// IsModule reports whether the scope's file has imports or exports.
func (s *Scope) IsModule() bool {
	return s.isModule
}

func (s *Scope) declare(d *Declaration) *Symbol {
	sym, ok := s.Locals[d.Name]
	if !ok || sym.IsAlias() {
		sym = &Symbol{Name: d.Name}
		s.Locals[d.Name] = sym
	}
	sym.Decls = append(sym.Decls, d)
	return sym
}

func (s *Scope) addExport(name string, sym *Symbol) {
	if i, ok := s.exportIndex[name]; ok {
		s.exports[i].Symbol = sym
		return
	}
	s.exportIndex[name] = len(s.exports)
	s.exports = append(s.exports, ExportedSymbol{Name: name, Symbol: sym})
}

// binder walks statements of one file, creating symbols and exports.
type binder struct {
	prog *Program
	file *SourceFile
}

func (b *binder) text(n *sitter.Node) string {
	return b.file.Text(n)
}

// bindStatements binds the statements directly under container into scope.
func (b *binder) bindStatements(scope *Scope, container *sitter.Node, ambient bool) {
	for _, stmt := range tsast.NamedChildren(container) {
		b.bindStatement(scope, stmt, ambient)
	}
}

func (b *binder) bindStatement(scope *Scope, stmt *sitter.Node, ambient bool) {
	switch stmt.Type() {
	case "export_statement":
		scope.isModule = true
		b.bindExport(scope, stmt, ambient)
	case "import_statement":
		scope.isModule = true
		b.bindImport(scope, stmt)
	case "import_alias":
		b.bindImportAlias(scope, stmt)
	case "ambient_declaration":
		b.bindAmbient(scope, stmt)
	case "expression_statement":
		if inner := tsast.FirstNamed(stmt); inner != nil && isModuleDecl(inner) {
			b.bindDeclaration(scope, inner, ambient)
		}
	default:
		b.bindDeclaration(scope, stmt, ambient)
	}
}

func isModuleDecl(n *sitter.Node) bool {
	return n.Type() == "internal_module" || n.Type() == "module"
}

// bindDeclaration declares the symbols introduced by a declaration node and
// returns them.
func (b *binder) bindDeclaration(scope *Scope, n *sitter.Node, ambient bool) []*Symbol {
	kind := DeclUnknown
	switch n.Type() {
	case "function_declaration", "function_signature", "generator_function_declaration":
		kind = DeclFunction
	case "class_declaration", "abstract_class_declaration":
		kind = DeclClass
	case "interface_declaration":
		kind = DeclInterface
	case "type_alias_declaration":
		kind = DeclTypeAlias
	case "enum_declaration":
		kind = DeclEnum
	case "lexical_declaration", "variable_declaration":
		return b.bindVariables(scope, n, ambient)
	case "internal_module", "module":
		return b.bindNamespace(scope, n, ambient)
	case "ambient_declaration":
		return b.bindAmbient(scope, n)
	default:
		return nil
	}

	nameNode := tsast.Field(n, "name")
	if nameNode == nil {
		return nil
	}
	d := &Declaration{Kind: kind, Name: b.text(nameNode), Node: n, Scope: scope, Ambient: ambient}
	return []*Symbol{scope.declare(d)}
}

func (b *binder) bindVariables(scope *Scope, n *sitter.Node, ambient bool) []*Symbol {
	varKind := "var"
	if k := tsast.Field(n, "kind"); k != nil {
		varKind = b.text(k)
	} else if n.Type() == "lexical_declaration" {
		if tsast.HasToken(n, "const") {
			varKind = "const"
		} else {
			varKind = "let"
		}
	}

	var syms []*Symbol
	for _, c := range tsast.NamedChildren(n) {
		if c.Type() != "variable_declarator" {
			continue
		}
		nameNode := tsast.Field(c, "name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		d := &Declaration{Kind: DeclVariable, Name: b.text(nameNode), Node: c, Scope: scope, Ambient: ambient, VarKind: varKind}
		syms = append(syms, scope.declare(d))
	}
	return syms
}

func (b *binder) bindNamespace(scope *Scope, n *sitter.Node, ambient bool) []*Symbol {
	nameNode := tsast.Field(n, "name")
	if nameNode == nil {
		return nil
	}
	if nameNode.Type() == "string" {
		// declare module "pkg" { ... } augments another module.
		b.prog.logger.Debug("skipping ambient module declaration", "file", b.file.Path, "module", b.file.StringValue(nameNode))
		return nil
	}

	// "namespace A.B.C {}" binds the outermost name.
	name, _, _ := strings.Cut(b.text(nameNode), ".")

	body := newScope(b.file, scope)
	if bodyNode := tsast.Field(n, "body"); bodyNode != nil {
		b.bindStatements(body, bodyNode, ambient)
	}
	// Ambient namespaces export every member implicitly.
	if ambient && len(body.exports) == 0 {
		for _, stmt := range tsast.NamedChildren(tsast.Field(n, "body")) {
			for _, sym := range b.symbolsOf(body, stmt) {
				body.addExport(sym.Name, sym)
			}
		}
	}

	d := &Declaration{Kind: DeclNamespace, Name: name, Node: n, Scope: scope, Body: body, Ambient: ambient}
	return []*Symbol{scope.declare(d)}
}

// symbolsOf returns the already-bound symbols declared by stmt.
func (b *binder) symbolsOf(scope *Scope, stmt *sitter.Node) []*Symbol {
	var names []string
	switch stmt.Type() {
	case "lexical_declaration", "variable_declaration":
		for _, c := range tsast.NamedChildren(stmt) {
			if c.Type() == "variable_declarator" {
				names = append(names, b.text(tsast.Field(c, "name")))
			}
		}
	case "ambient_declaration":
		if inner := tsast.FirstNamed(stmt); inner != nil {
			return b.symbolsOf(scope, inner)
		}
	default:
		if n := tsast.Field(stmt, "name"); n != nil {
			names = append(names, b.text(n))
		}
	}
	var out []*Symbol
	for _, name := range names {
		if sym, ok := scope.Locals[name]; ok {
			out = append(out, sym)
		}
	}
	return out
}

func (b *binder) bindAmbient(scope *Scope, n *sitter.Node) []*Symbol {
	if tsast.HasToken(n, "global") {
		if block := tsast.ChildOfType(n, "statement_block"); block != nil {
			b.bindStatements(b.prog.globals, block, true)
		}
		return nil
	}
	inner := tsast.FirstNamed(n)
	if inner == nil {
		return nil
	}
	return b.bindDeclaration(scope, inner, true)
}

func (b *binder) bindExport(scope *Scope, n *sitter.Node, ambient bool) {
	isDefault := tsast.HasToken(n, "default")
	source := tsast.Field(n, "source")

	if decl := tsast.Field(n, "declaration"); decl != nil {
		syms := b.bindDeclaration(scope, decl, ambient || decl.Type() == "ambient_declaration")
		for _, sym := range syms {
			if isDefault {
				scope.addExport("default", sym)
			} else {
				scope.addExport(sym.Name, sym)
			}
		}
		if isDefault && len(syms) == 0 {
			// export default class { } / function () { }
			d := &Declaration{Kind: declKindOfExpression(decl), Name: "default", Node: decl, Scope: scope, Expression: true}
			scope.addExport("default", &Symbol{Name: "default", Decls: []*Declaration{d}})
		}
		return
	}

	if source != nil {
		spec := b.file.StringValue(source)
		target := b.prog.importModule(b.file, spec)
		if clause := tsast.ChildOfType(n, "export_clause"); clause != nil {
			for _, es := range tsast.NamedChildren(clause) {
				name, alias := b.specifierNames(es)
				if name == "" {
					continue
				}
				scope.addExport(alias, &Symbol{Name: alias, Alias: &Alias{Specifier: spec, Module: target, Name: name}})
			}
			return
		}
		if ns := tsast.ChildOfType(n, "namespace_export"); ns != nil {
			name := b.text(tsast.FirstNamed(ns))
			scope.addExport(name, &Symbol{Name: name, Alias: &Alias{Specifier: spec, Module: target, Name: "*"}})
			return
		}
		scope.stars = append(scope.stars, starExport{Specifier: spec, Module: target})
		return
	}

	if clause := tsast.ChildOfType(n, "export_clause"); clause != nil {
		for _, es := range tsast.NamedChildren(clause) {
			name, alias := b.specifierNames(es)
			if name == "" {
				continue
			}
			scope.addExport(alias, &Symbol{Name: alias, Alias: &Alias{Local: name, Scope: scope}})
		}
		return
	}

	if tsast.HasToken(n, "=") {
		scope.assignment = tsast.FirstNamed(n)
		return
	}

	value := tsast.Field(n, "value")
	if value == nil {
		value = tsast.FirstNamed(n)
	}
	if isDefault && value != nil {
		if value.Type() == "identifier" {
			scope.addExport("default", &Symbol{Name: "default", Alias: &Alias{Local: b.text(value), Scope: scope}})
			return
		}
		d := &Declaration{Kind: declKindOfExpression(value), Name: "default", Node: value, Scope: scope, Expression: true}
		scope.addExport("default", &Symbol{Name: "default", Decls: []*Declaration{d}})
	}
}

func declKindOfExpression(n *sitter.Node) DeclKind {
	switch n.Type() {
	case "class", "class_declaration", "abstract_class_declaration":
		return DeclClass
	case "function", "function_expression", "function_declaration", "arrow_function", "generator_function", "generator_function_declaration":
		return DeclFunction
	}
	return DeclVariable
}

// specifierNames returns the (name, alias) pair of an export or import
// specifier; alias equals name when absent.
func (b *binder) specifierNames(n *sitter.Node) (string, string) {
	nameNode := tsast.Field(n, "name")
	if nameNode == nil {
		nameNode = tsast.FirstNamed(n)
	}
	if nameNode == nil {
		return "", ""
	}
	name := b.text(nameNode)
	if nameNode.Type() == "string" {
		name = b.file.StringValue(nameNode)
	}
	alias := name
	if a := tsast.Field(n, "alias"); a != nil {
		alias = b.text(a)
		if a.Type() == "string" {
			alias = b.file.StringValue(a)
		}
	}
	return name, alias
}

func (b *binder) bindImport(scope *Scope, n *sitter.Node) {
	source := tsast.Field(n, "source")
	if source == nil {
		source = tsast.ChildOfType(n, "string")
	}
	if source == nil {
		if req := tsast.ChildOfType(n, "import_require_clause"); req != nil {
			b.bindImportRequire(scope, req)
		}
		return
	}
	spec := b.file.StringValue(source)
	target := b.prog.importModule(b.file, spec)

	clause := tsast.ChildOfType(n, "import_clause")
	if clause == nil {
		if req := tsast.ChildOfType(n, "import_require_clause"); req != nil {
			b.bindImportRequire(scope, req)
		}
		return
	}
	for _, c := range tsast.NamedChildren(clause) {
		switch c.Type() {
		case "identifier":
			name := b.text(c)
			scope.Locals[name] = &Symbol{Name: name, Alias: &Alias{Specifier: spec, Module: target, Name: "default"}}
		case "namespace_import":
			name := b.text(tsast.FirstNamed(c))
			scope.Locals[name] = &Symbol{Name: name, Alias: &Alias{Specifier: spec, Module: target, Name: "*"}}
		case "named_imports":
			for _, is := range tsast.NamedChildren(c) {
				if is.Type() != "import_specifier" {
					continue
				}
				name, alias := b.specifierNames(is)
				if name == "" {
					continue
				}
				scope.Locals[alias] = &Symbol{Name: alias, Alias: &Alias{Specifier: spec, Module: target, Name: name}}
			}
		}
	}
}

// bindImportRequire handles "import x = require('y')".
func (b *binder) bindImportRequire(scope *Scope, n *sitter.Node) {
	nameNode := tsast.ChildOfType(n, "identifier")
	source := tsast.Field(n, "source")
	if source == nil {
		source = tsast.ChildOfType(n, "string")
	}
	if nameNode == nil || source == nil {
		return
	}
	spec := b.file.StringValue(source)
	name := b.text(nameNode)
	scope.Locals[name] = &Symbol{Name: name, Alias: &Alias{Specifier: spec, Module: b.prog.importModule(b.file, spec), Name: "*"}}
}

// bindImportAlias handles "import A = B.C" inside namespaces.
func (b *binder) bindImportAlias(scope *Scope, n *sitter.Node) {
	children := tsast.NamedChildren(n)
	if len(children) < 2 {
		return
	}
	name := b.text(children[0])
	scope.Locals[name] = &Symbol{Name: name, Alias: &Alias{Local: b.text(children[1]), Scope: scope}}
}
