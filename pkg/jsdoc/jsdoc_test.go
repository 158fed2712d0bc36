package jsdoc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_DescriptionAndTags(t *testing.T) {
	raw := `/**
 * Fetches a user by id.
 *
 * Falls back to the cache when offline.
 * @param {string} id - The user id
 * @param {Options} [opts={}] Request options
 * @param opts.timeout Timeout in ms
 * @returns {Promise<User>} The user
 * @deprecated use fetchUser
 */`
	c := Parse(raw)

	if c.Description != "Fetches a user by id.\n\nFalls back to the cache when offline." {
		t.Errorf("description = %q", c.Description)
	}

	wantParams := []Tag{
		{Name: "param", Type: "string", ParamName: "id", Text: "The user id"},
		{Name: "param", Type: "Options", ParamName: "opts", Optional: true, Default: "{}", Text: "Request options"},
	}
	if diff := cmp.Diff(wantParams, c.Params()); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	ret, ok := c.Returns()
	if !ok {
		t.Fatal("missing @returns")
	}
	if ret.Type != "Promise<User>" || ret.Text != "The user" {
		t.Errorf("returns = %+v", ret)
	}
	if !c.Deprecated() {
		t.Error("expected deprecated")
	}
	if c.Raw != raw {
		t.Error("raw comment not preserved")
	}
}

func TestParse_SingleLine(t *testing.T) {
	c := Parse("/** Adds two numbers. */")
	if c.Description != "Adds two numbers." {
		t.Errorf("description = %q", c.Description)
	}
	if len(c.Tags) != 0 {
		t.Errorf("tags = %v, want none", c.Tags)
	}
}

func TestParse_ExampleKeepsFencedAtLines(t *testing.T) {
	raw := "/**\n * Decorates.\n * @example\n * ```ts\n * @decorate()\n * class A {}\n * ```\n * @since 2.0\n */"
	c := Parse(raw)

	examples := c.Examples()
	if len(examples) != 1 {
		t.Fatalf("examples = %d, want 1", len(examples))
	}
	want := "```ts\n@decorate()\nclass A {}\n```"
	if examples[0] != want {
		t.Errorf("example = %q, want %q", examples[0], want)
	}
	since, ok := c.Tag("since")
	if !ok || since.Text != "2.0" {
		t.Errorf("since = %+v, %v", since, ok)
	}
}

func TestParse_NestedBracesInType(t *testing.T) {
	c := Parse("/** @param {{a: number}} point the point */")
	p, ok := c.Param("point")
	if !ok {
		t.Fatal("missing param point")
	}
	if p.Type != "{a: number}" {
		t.Errorf("type = %q", p.Type)
	}
	if p.Text != "the point" {
		t.Errorf("text = %q", p.Text)
	}
}

func TestIsDocComment(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"/** doc */", true},
		{"/* plain */", false},
		{"// line", false},
		{"/**/", false},
	}
	for _, tt := range tests {
		if got := IsDocComment(tt.raw); got != tt.want {
			t.Errorf("IsDocComment(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
