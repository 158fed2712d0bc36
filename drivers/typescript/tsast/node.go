package tsast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/pkg/jsdoc"
)

// Field returns the child of n stored under a grammar field name.
func Field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

// Children returns every child of n, named or not.
func Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children of n, skipping comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FirstNamed returns the first named, non-comment child of n.
func FirstNamed(n *sitter.Node) *sitter.Node {
	for _, c := range NamedChildren(n) {
		return c
	}
	return nil
}

// ChildOfType returns the first direct child whose type is one of types.
func ChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range Children(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// HasToken reports whether n has a direct child of type tok, such as
// "async", "static", "?" or "default".
func HasToken(n *sitter.Node, tok string) bool {
	return ChildOfType(n, tok) != nil
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of that node.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// StringValue returns the unquoted content of a string literal node.
func (f *File) StringValue(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	found := false
	for _, c := range Children(n) {
		switch c.Type() {
		case "string_fragment", "escape_sequence":
			b.WriteString(f.Text(c))
			found = true
		}
	}
	if found {
		return b.String()
	}
	return strings.Trim(f.Text(n), "\"'`")
}

// NormalizeSpace collapses runs of whitespace into single spaces.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// docAnchorParents are wrappers whose leading comment documents the
// declaration inside them.
var docAnchorParents = map[string]bool{
	"export_statement":     true,
	"ambient_declaration":  true,
	"lexical_declaration":  true,
	"variable_declaration": true,
	"expression_statement": true,
}

// DocComment returns the closest /** */ comment preceding n, climbing out
// of export, declare and variable statement wrappers first.
func (f *File) DocComment(n *sitter.Node) string {
	anchor := n
	for anchor != nil {
		p := anchor.Parent()
		if p == nil || !docAnchorParents[p.Type()] {
			break
		}
		// Only the first declarator of "const a = 1, b = 2" owns the comment.
		if (p.Type() == "lexical_declaration" || p.Type() == "variable_declaration") && anchor.PrevNamedSibling() != nil &&
			anchor.PrevNamedSibling().Type() == "variable_declarator" {
			return ""
		}
		anchor = p
	}

	for prev := anchor.PrevSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevSibling() {
		text := f.Text(prev)
		if jsdoc.IsDocComment(text) {
			return text
		}
	}
	return ""
}
