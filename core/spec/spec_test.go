package spec

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchema_PrimitiveShorthand(t *testing.T) {
	data, err := json.Marshal(Primitive("string"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"string"` {
		t.Errorf("shorthand = %s, want \"string\"", data)
	}

	data, err = json.Marshal(&Schema{Type: "array", Items: Primitive("number")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"type":"array","items":"number"}` {
		t.Errorf("array schema = %s", data)
	}
}

func TestSchema_UnmarshalBothForms(t *testing.T) {
	var params []Parameter
	input := `[{"name":"a","required":true,"schema":"number"},{"name":"b","required":false,"schema":{"$ref":"#/types/User"}}]`
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if params[0].Schema.Type != "number" {
		t.Errorf("a schema type = %q, want number", params[0].Schema.Type)
	}
	if got := params[1].Schema.RefName(); got != "User" {
		t.Errorf("b ref name = %q, want User", got)
	}
}

func TestSpec_ExportsNeverNull(t *testing.T) {
	var s Spec
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"exports":[]`) {
		t.Errorf("exports should encode as [], got %s", data)
	}

	parsed, err := Parse([]byte(`{"openpkg":"0.2.0","meta":{"name":"x","ecosystem":"js/ts"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Exports == nil {
		t.Error("parsed exports should be non-nil")
	}
}

func TestCanonical_SortsKeys(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"y": true, "x": []any{"z"}}}
	got, err := Canonical(a)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := `{"a":{"x":["z"],"y":true},"b":1}`
	if string(got) != want {
		t.Errorf("Canonical = %s, want %s", got, want)
	}
}

func TestHash_IgnoresGeneration(t *testing.T) {
	s1 := New(Meta{Name: "pkg", Version: "1.0.0"})
	s1.Exports = append(s1.Exports, Export{ID: "foo", Name: "foo", Kind: KindFunction})
	s2 := New(Meta{Name: "pkg", Version: "1.0.0"})
	s2.Exports = append(s2.Exports, Export{ID: "foo", Name: "foo", Kind: KindFunction})
	s2.Generation = &Generation{Timestamp: "2026-01-01T00:00:00Z"}

	h1, err := Hash(s1)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash(s2)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
}

func TestSaveLoad(t *testing.T) {
	s := New(Meta{Name: "pkg", Version: "1.0.0"})
	s.Exports = append(s.Exports, Export{
		ID:   "greet",
		Name: "greet",
		Kind: KindFunction,
		Signatures: []Signature{{
			Parameters: []Parameter{{Name: "name", Required: true, Schema: Primitive("string")}},
			Returns:    &Returns{Schema: Primitive("string")},
		}},
	})

	path := filepath.Join(t.TempDir(), "openpkg.json")
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(s, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkSchemas_VisitsNested(t *testing.T) {
	s := New(Meta{Name: "pkg"})
	s.Exports = append(s.Exports, Export{
		ID:   "f",
		Kind: KindFunction,
		Signatures: []Signature{{
			Parameters: []Parameter{{Name: "u", Schema: &Schema{Type: "array", Items: Ref("User")}}},
			Returns:    &Returns{Schema: &Schema{AnyOf: []*Schema{Ref("Err"), Primitive("null")}}},
		}},
	})
	s.Types = append(s.Types, TypeDefinition{
		ID:     "User",
		Kind:   KindInterface,
		Schema: &Schema{Type: "object", Properties: map[string]*Schema{"org": Ref("Org")}},
	})

	var refs []string
	s.WalkSchemas(func(sc *Schema) bool {
		if name := sc.RefName(); name != "" {
			refs = append(refs, name)
		}
		return true
	})
	if diff := cmp.Diff([]string{"User", "Err", "Org"}, refs); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}
}
