package program

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

// maxAliasHops bounds alias chains such as re-exports of re-exports.
const maxAliasHops = 32

// Checker answers symbol queries over a bound program: module exports,
// alias targets and name lookups.
type Checker struct {
	prog       *Program
	exports    map[*Scope][]ExportedSymbol
	namespaces map[*SourceFile]*Symbol
}

func newChecker(p *Program) *Checker {
	return &Checker{
		prog:       p,
		exports:    make(map[*Scope][]ExportedSymbol),
		namespaces: make(map[*SourceFile]*Symbol),
	}
}

// ExportsOfModule returns the exports of f in declaration order, followed
// by names contributed through "export *". Star exports never re-export
// "default" and never shadow an explicit export.
func (c *Checker) ExportsOfModule(f *SourceFile) []ExportedSymbol {
	if f == nil || f.Scope == nil {
		return nil
	}
	return c.exportsOfScope(f.Scope, make(map[*Scope]bool))
}

func (c *Checker) exportsOfScope(scope *Scope, visiting map[*Scope]bool) []ExportedSymbol {
	if cached, ok := c.exports[scope]; ok {
		return cached
	}
	if visiting[scope] {
		return nil
	}
	visiting[scope] = true
	defer delete(visiting, scope)

	if scope.assignment != nil {
		out := c.exportAssignment(scope, visiting)
		c.exports[scope] = out
		return out
	}

	out := append([]ExportedSymbol(nil), scope.exports...)
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[e.Name] = true
	}
	for _, star := range scope.stars {
		if star.Module == nil {
			continue
		}
		for _, e := range c.exportsOfScope(star.Module.Scope, visiting) {
			if e.Name == "default" || seen[e.Name] {
				continue
			}
			seen[e.Name] = true
			out = append(out, e)
		}
	}

	// Results computed while a cycle was open may be partial.
	if len(visiting) == 1 {
		c.exports[scope] = out
	}
	return out
}

// exportAssignment expands "export = target". A namespace target exposes
// its members; a value target is exported as "default".
func (c *Checker) exportAssignment(scope *Scope, visiting map[*Scope]bool) []ExportedSymbol {
	target := scope.assignment
	sym := c.Lookup(scope, scope.File.Text(target))
	if sym == nil {
		if target.Type() == "identifier" || target.Type() == "member_expression" || target.Type() == "nested_identifier" {
			return nil
		}
		d := &Declaration{Kind: declKindOfExpression(target), Name: "default", Node: target, Scope: scope, Expression: true}
		return []ExportedSymbol{{Name: "default", Symbol: &Symbol{Name: "default", Decls: []*Declaration{d}}}}
	}
	if resolved, ok := c.ResolveAlias(sym); ok {
		sym = resolved
	}

	var out []ExportedSymbol
	seen := make(map[string]bool)
	for _, d := range sym.DeclarationsOf(DeclNamespace) {
		var members []ExportedSymbol
		switch {
		case d.Body != nil:
			members = c.exportsOfScope(d.Body, visiting)
		case d.Module != nil:
			members = c.exportsOfScope(d.Module.Scope, visiting)
		}
		for _, m := range members {
			if !seen[m.Name] {
				seen[m.Name] = true
				out = append(out, m)
			}
		}
	}
	if sym.ValueDeclaration() != nil || len(out) == 0 {
		out = append(out, ExportedSymbol{Name: "default", Symbol: sym})
	}
	return out
}

// UnresolvedStarExports returns the specifiers of "export * from" clauses
// in f whose target could not be resolved.
func (c *Checker) UnresolvedStarExports(f *SourceFile) []string {
	if f == nil || f.Scope == nil {
		return nil
	}
	var out []string
	for _, s := range f.Scope.stars {
		if s.Module == nil {
			out = append(out, s.Specifier)
		}
	}
	return out
}

// ResolveAlias follows import and re-export aliases to the declaring
// symbol. The boolean is false when the chain ends at an unresolved module
// or missing export; the last symbol reached is returned in that case.
func (c *Checker) ResolveAlias(sym *Symbol) (*Symbol, bool) {
	seen := make(map[*Symbol]bool)
	for hops := 0; sym != nil && sym.IsAlias(); hops++ {
		if seen[sym] || hops >= maxAliasHops {
			return sym, false
		}
		seen[sym] = true

		a := sym.Alias
		if a.Local != "" {
			next := c.Lookup(a.Scope, a.Local)
			if next == nil || next == sym {
				return sym, false
			}
			sym = next
			continue
		}
		if a.Module == nil {
			return sym, false
		}
		if a.Name == "*" {
			return c.moduleNamespace(a.Module, sym.Name), true
		}
		next := c.exportNamed(a.Module, a.Name)
		if next == nil {
			return sym, false
		}
		sym = next
	}
	return sym, sym != nil
}

func (c *Checker) exportNamed(f *SourceFile, name string) *Symbol {
	for _, e := range c.ExportsOfModule(f) {
		if e.Name == name {
			return e.Symbol
		}
	}
	return nil
}

// moduleNamespace returns the synthetic namespace symbol standing for all
// exports of f.
func (c *Checker) moduleNamespace(f *SourceFile, name string) *Symbol {
	if sym, ok := c.namespaces[f]; ok {
		return sym
	}
	sym := &Symbol{Name: name}
	sym.Decls = []*Declaration{{Kind: DeclNamespace, Name: name, Module: f}}
	c.namespaces[f] = sym
	return sym
}

// Lookup resolves name as written in scope: locals of the scope chain, then
// globals. Dotted names walk namespace members.
func (c *Checker) Lookup(scope *Scope, name string) *Symbol {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	head, rest, qualified := strings.Cut(name, ".")
	sym := c.lookupLocal(scope, head)
	if !qualified || sym == nil {
		return sym
	}
	for _, part := range strings.Split(rest, ".") {
		if resolved, ok := c.ResolveAlias(sym); ok {
			sym = resolved
		}
		sym = c.member(sym, strings.TrimSpace(part))
		if sym == nil {
			return nil
		}
	}
	return sym
}

func (c *Checker) lookupLocal(scope *Scope, name string) *Symbol {
	for s := scope; s != nil; s = s.Parent {
		if sym, ok := s.Locals[name]; ok {
			return sym
		}
	}
	if sym, ok := c.prog.globals.Locals[name]; ok {
		return sym
	}
	return nil
}

func (c *Checker) member(sym *Symbol, name string) *Symbol {
	for _, m := range c.MembersOf(sym) {
		if m.Name == name {
			return m.Symbol
		}
	}
	return nil
}

// MembersOf returns the exported members of a namespace symbol, merged
// across its declarations.
func (c *Checker) MembersOf(sym *Symbol) []ExportedSymbol {
	if sym == nil {
		return nil
	}
	var out []ExportedSymbol
	seen := make(map[string]bool)
	for _, d := range sym.DeclarationsOf(DeclNamespace) {
		var members []ExportedSymbol
		switch {
		case d.Module != nil:
			members = c.ExportsOfModule(d.Module)
		case d.Body != nil:
			members = c.exportsOfScope(d.Body, make(map[*Scope]bool))
		}
		for _, m := range members {
			if !seen[m.Name] {
				seen[m.Name] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// FindExportedDeclaration searches every program file for an exported
// type-like declaration named name. External files are searched only when
// includeExternal is set.
func (c *Checker) FindExportedDeclaration(name string, includeExternal bool) (*Symbol, *Declaration) {
	for _, f := range c.prog.files {
		if f.External && !includeExternal {
			continue
		}
		for _, e := range f.Scope.exports {
			sym := e.Symbol
			if sym.IsAlias() || sym.Name != name {
				continue
			}
			if d := sym.TypeDeclaration(); d != nil {
				return sym, d
			}
		}
		// Declaration files and scripts declare types without exporting.
		if f.IsDeclaration() || !f.Scope.isModule {
			if sym, ok := f.Scope.Locals[name]; ok && !sym.IsAlias() {
				if d := sym.TypeDeclaration(); d != nil {
					return sym, d
				}
			}
		}
	}
	return nil, nil
}

// TypeToString renders a type node as whitespace-normalised source text.
func (c *Checker) TypeToString(f *SourceFile, n *sitter.Node) string {
	if f == nil || n == nil {
		return ""
	}
	return tsast.NormalizeSpace(f.Text(n))
}
