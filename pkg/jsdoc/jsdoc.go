// Package jsdoc parses JSDoc block comments.
package jsdoc

import (
	"strings"
)

// Comment is a parsed /** ... */ block.
type Comment struct {
	Description string
	Tags        []Tag
	Raw         string
}

// Tag is one block tag such as @param or @returns.
type Tag struct {
	Name      string
	Type      string
	ParamName string
	Optional  bool
	Default   string
	Text      string
}

// IsDocComment reports whether raw is a /** */ block rather than a plain
// block or line comment.
func IsDocComment(raw string) bool {
	return strings.HasPrefix(raw, "/**") && !strings.HasPrefix(raw, "/**/")
}

// Parse parses a raw /** ... */ comment.
func Parse(raw string) Comment {
	c := Comment{Raw: raw}
	lines := bodyLines(raw)

	var desc []string
	var cur *Tag
	var body []string
	flush := func() {
		if cur == nil {
			return
		}
		finishTag(cur, body)
		c.Tags = append(c.Tags, *cur)
		cur, body = nil, nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "@") && cur != nil && cur.Name == "example" && inFence(body) {
			body = append(body, line)
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			flush()
			name, rest, _ := strings.Cut(trimmed[1:], " ")
			if n, r, ok := strings.Cut(name, "\t"); ok {
				name, rest = n, r+" "+rest
			}
			cur = &Tag{Name: name}
			body = []string{rest}
			continue
		}
		if cur != nil {
			body = append(body, line)
		} else {
			desc = append(desc, line)
		}
	}
	flush()

	c.Description = strings.TrimSpace(strings.Join(desc, "\n"))
	return c
}

func bodyLines(raw string) []string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimSuffix(s, "*/")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		t := strings.TrimLeft(l, " \t")
		if strings.HasPrefix(t, "*") {
			t = strings.TrimPrefix(t, "*")
			t = strings.TrimPrefix(t, " ")
		}
		out = append(out, t)
	}
	// A single-line comment leaves its text on the first line.
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

func inFence(body []string) bool {
	n := 0
	for _, l := range body {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			n++
		}
	}
	return n%2 == 1
}

func finishTag(t *Tag, body []string) {
	first := strings.TrimSpace(body[0])
	rest := body[1:]

	switch t.Name {
	case "example":
		text := strings.Join(append([]string{first}, rest...), "\n")
		t.Text = strings.TrimSpace(text)
		return
	case "param", "arg", "argument", "prop", "property":
		first = parseTypeExpr(t, first)
		first = parseParamName(t, first)
	case "returns", "return", "throws", "exception", "type", "yields":
		first = parseTypeExpr(t, first)
	}

	first = strings.TrimPrefix(strings.TrimSpace(first), "- ")
	text := strings.TrimSpace(strings.Join(append([]string{first}, rest...), "\n"))
	t.Text = text
}

// parseTypeExpr consumes a leading balanced {type} expression.
func parseTypeExpr(t *Tag, s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return s
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				t.Type = strings.TrimSpace(s[1:i])
				return strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s
}

func parseParamName(t *Tag, s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return s
		}
		inner := s[1:end]
		t.Optional = true
		if name, def, ok := strings.Cut(inner, "="); ok {
			t.ParamName = strings.TrimSpace(name)
			t.Default = strings.TrimSpace(def)
		} else {
			t.ParamName = strings.TrimSpace(inner)
		}
		return s[end+1:]
	}
	name, rest, _ := strings.Cut(s, " ")
	t.ParamName = name
	return rest
}

// Tag returns the first tag with the given name.
func (c *Comment) Tag(name string) (Tag, bool) {
	for _, t := range c.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// HasTag reports whether any tag has the given name.
func (c *Comment) HasTag(name string) bool {
	_, ok := c.Tag(name)
	return ok
}

// Params returns the @param tags for top-level parameters, in order.
// Dotted names describing nested properties are skipped.
func (c *Comment) Params() []Tag {
	var out []Tag
	for _, t := range c.Tags {
		switch t.Name {
		case "param", "arg", "argument":
			if t.ParamName != "" && !strings.Contains(t.ParamName, ".") {
				out = append(out, t)
			}
		}
	}
	return out
}

// Param returns the @param tag documenting name.
func (c *Comment) Param(name string) (Tag, bool) {
	for _, t := range c.Params() {
		if t.ParamName == name {
			return t, true
		}
	}
	return Tag{}, false
}

// Returns returns the @returns (or @return) tag.
func (c *Comment) Returns() (Tag, bool) {
	if t, ok := c.Tag("returns"); ok {
		return t, true
	}
	return c.Tag("return")
}

// Examples returns the body of every @example tag.
func (c *Comment) Examples() []string {
	var out []string
	for _, t := range c.Tags {
		if t.Name == "example" && t.Text != "" {
			out = append(out, t.Text)
		}
	}
	return out
}

// Deprecated reports whether the comment carries @deprecated.
func (c *Comment) Deprecated() bool {
	return c.HasTag("deprecated")
}
