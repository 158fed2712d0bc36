package serializer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/pkg/jsdoc"
)

// docOf parses the JSDoc block attached to a declaration node.
func docOf(s site, n *sitter.Node) jsdoc.Comment {
	if s.file == nil || n == nil {
		return jsdoc.Comment{}
	}
	raw := s.file.DocComment(n)
	if raw == "" {
		return jsdoc.Comment{}
	}
	return jsdoc.Parse(raw)
}

// symbolDoc returns the first documented declaration's comment and whether
// any declaration of sym is deprecated.
func symbolDoc(sym *program.Symbol, primary *program.Declaration) (jsdoc.Comment, bool) {
	doc := docOf(siteOf(primary), primary.Node)
	deprecated := doc.Deprecated()
	var decls []*program.Declaration
	if sym != nil {
		decls = sym.Decls
	}
	for _, d := range decls {
		if d == primary {
			continue
		}
		other := docOf(siteOf(d), d.Node)
		if doc.Raw == "" && other.Raw != "" {
			doc = other
		}
		if other.Deprecated() {
			deprecated = true
		}
	}
	return doc, deprecated
}

// tags converts parsed JSDoc tags.
func tags(c jsdoc.Comment) []spec.Tag {
	if len(c.Tags) == 0 {
		return nil
	}
	out := make([]spec.Tag, 0, len(c.Tags))
	for _, t := range c.Tags {
		text := t.Text
		if t.ParamName != "" {
			text = strings.TrimSpace(t.ParamName + " " + t.Text)
		}
		out = append(out, spec.Tag{Name: t.Name, Text: text})
	}
	return out
}

// applyDocs copies description, tags, examples and deprecation onto e.
func applyDocs(e *spec.Export, c jsdoc.Comment, deprecated bool) {
	e.Description = c.Description
	e.Tags = tags(c)
	e.Examples = c.Examples()
	e.Deprecated = deprecated
	e.RawComments = c.Raw
}

func memberDocs(m *spec.Member, c jsdoc.Comment) {
	m.Description = c.Description
	m.Deprecated = c.Deprecated()
	m.Tags = tags(c)
}
