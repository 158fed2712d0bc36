package tsast

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func parseString(t *testing.T, path, src string) *File {
	t.Helper()
	f, err := Parse(context.Background(), path, []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func findFirst(root *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node
	Walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == typ {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestParse_Basic(t *testing.T) {
	f := parseString(t, "index.ts", "export function add(a: number, b: number): number { return a + b; }\n")
	if f.HasError() {
		t.Fatal("unexpected syntax error")
	}
	fn := findFirst(f.Root, "function_declaration")
	if fn == nil {
		t.Fatal("missing function_declaration")
	}
	if got := f.Text(Field(fn, "name")); got != "add" {
		t.Errorf("name = %q, want add", got)
	}
	if got := f.Line(fn); got != 1 {
		t.Errorf("line = %d, want 1", got)
	}
	params := NamedChildren(Field(fn, "parameters"))
	if len(params) != 2 {
		t.Errorf("got %d params, want 2", len(params))
	}
}

func TestParse_SyntaxError(t *testing.T) {
	f := parseString(t, "broken.ts", "export function (\n")
	if !f.HasError() {
		t.Error("expected syntax error")
	}
	if f.FirstError() == nil {
		t.Error("expected an error node")
	}
}

func TestDocComment(t *testing.T) {
	src := `// not docs
/** Adds numbers. */
export function add(a: number, b: number): number { return a + b; }

/** The version. */
export const version = "1.0.0";

function undocumented() {}
`
	f := parseString(t, "index.ts", src)

	fn := findFirst(f.Root, "function_declaration")
	if got := f.DocComment(fn); got != "/** Adds numbers. */" {
		t.Errorf("function doc = %q", got)
	}

	decl := findFirst(f.Root, "variable_declarator")
	if got := f.DocComment(decl); got != "/** The version. */" {
		t.Errorf("variable doc = %q", got)
	}

	var last *sitter.Node
	for _, c := range NamedChildren(f.Root) {
		if c.Type() == "function_declaration" {
			last = c
		}
	}
	if got := f.DocComment(last); got != "" {
		t.Errorf("undocumented function doc = %q, want empty", got)
	}
}

func TestStringValue(t *testing.T) {
	f := parseString(t, "index.ts", `export * from "./util";`)
	str := findFirst(f.Root, "string")
	if str == nil {
		t.Fatal("missing string node")
	}
	if got := f.StringValue(str); got != "./util" {
		t.Errorf("StringValue = %q, want ./util", got)
	}
}

func TestIsDeclarationFile(t *testing.T) {
	tests := map[string]bool{
		"index.d.ts":  true,
		"index.d.mts": true,
		"index.ts":    false,
		"d.ts.ts":     false,
	}
	for path, want := range tests {
		if got := IsDeclarationFile(path); got != want {
			t.Errorf("IsDeclarationFile(%q) = %v, want %v", path, got, want)
		}
	}
}
