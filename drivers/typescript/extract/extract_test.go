package extract

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/speccache"
	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
)

var fixedNow = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

var kitFiles = map[string]string{
	"/proj/package.json": `{"name": "@acme/kit", "version": "2.1.0", "description": "Kit", "license": "MIT"}`,
	"/proj/src/index.ts": `
import { Options } from "./options";
export { Widget as PublicWidget } from "./widget";
export * from "./util";

/** Creates a thing. */
export function create(opts: Options): Result {
  return { ok: true };
}

interface Result { ok: boolean; detail?: Detail }
interface Detail { code: number }

export const VERSION = "2.1.0";
`,
	"/proj/src/options.ts": `export interface Options { name: string }`,
	"/proj/src/widget.ts":  `export class Widget { render(): string { return ""; } }`,
	"/proj/src/util.ts":    `export type Id = string;`,
}

func extractFiles(t *testing.T, files map[string]string, entry string, opts Options) *Result {
	t.Helper()
	opts.FS = fsys.NewMemory(files)
	if opts.PackageDir == "" {
		opts.PackageDir = "/proj"
	}
	opts.Now = fixedNow
	res, err := ExtractPackageSpec(context.Background(), entry, opts)
	if err != nil {
		t.Fatalf("ExtractPackageSpec: %v", err)
	}
	return res
}

func exportIDs(s *spec.Spec) []string {
	var ids []string
	for _, e := range s.Exports {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

func typeIDs(s *spec.Spec) []string {
	var ids []string
	for _, t := range s.Types {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

func codes(diags []spec.Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Code)
	}
	sort.Strings(out)
	return out
}

func TestExtractPackageSpec(t *testing.T) {
	res := extractFiles(t, kitFiles, "/proj/src/index.ts", Options{})
	s := res.Spec

	wantMeta := spec.Meta{Name: "@acme/kit", Version: "2.1.0", Description: "Kit", License: "MIT", Ecosystem: "js/ts"}
	if diff := cmp.Diff(wantMeta, s.Meta); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Id", "PublicWidget", "VERSION", "create"}, exportIDs(s)); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
	// Result and Detail are not exported; the closure pass defines them.
	if diff := cmp.Diff([]string{"Detail", "Id", "Options", "PublicWidget", "Result"}, typeIDs(s)); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %+v", res.Diagnostics)
	}

	create, ok := s.ExportByID("create")
	if !ok {
		t.Fatal("create missing")
	}
	if create.Description != "Creates a thing." {
		t.Errorf("description = %q", create.Description)
	}
	sig := create.Signatures[0]
	if got := sig.Parameters[0].Schema.RefName(); got != "Options" {
		t.Errorf("param ref = %q, want Options", got)
	}
	if got := sig.Returns.Schema.RefName(); got != "Result" {
		t.Errorf("return ref = %q, want Result", got)
	}

	widget, _ := s.ExportByID("PublicWidget")
	if widget.Name != "PublicWidget" || widget.Kind != spec.KindClass {
		t.Errorf("aliased export = %+v", widget)
	}
	if td, ok := s.TypeByID("PublicWidget"); !ok || td.Name != "PublicWidget" {
		t.Errorf("aliased type definition = %+v", td)
	}

	want := &spec.Generation{
		Timestamp: "2024-01-02T03:04:05Z",
		Generator: spec.Generator{Name: GeneratorName, Version: "dev"},
		Analysis: spec.Analysis{
			EntryPoint:       "src/index.ts",
			EntryPointSource: "explicit",
			SchemaExtraction: "static",
		},
	}
	if diff := cmp.Diff(want, s.Generation); diff != "" {
		t.Errorf("generation mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPackageSpec_Idempotent(t *testing.T) {
	first := extractFiles(t, kitFiles, "/proj/src/index.ts", Options{Docs: true})
	second := extractFiles(t, kitFiles, "/proj/src/index.ts", Options{Docs: true})

	a, err := spec.Canonical(first.Spec)
	if err != nil {
		t.Fatal(err)
	}
	b, err := spec.Canonical(second.Spec)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("extraction is not deterministic:\n%s\n---\n%s", a, b)
	}
	if first.Spec.Docs == nil {
		t.Error("docs enrichment missing")
	}
}

func TestExtractPackageSpec_Unresolved(t *testing.T) {
	files := map[string]string{
		"/proj/index.ts": `
import type { Foo } from "missing-pkg";
export { Bar } from "./nowhere";
export * from "./gone";
export function f(x: Foo, y: Missing): void {}
`,
	}
	res := extractFiles(t, files, "/proj/index.ts", Options{})

	want := []string{
		CodeMissingNodeModules,
		CodeUnresolvedReexport,
		CodeUnresolvedReexport,
		CodeUnresolvedType,
		CodeUnresolvedType,
	}
	if diff := cmp.Diff(want, codes(res.Diagnostics)); diff != "" {
		t.Errorf("diagnostic codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(res.Diagnostics, res.Spec.Generation.Issues); diff != "" {
		t.Errorf("generation issues differ from diagnostics (-want +got):\n%s", diff)
	}

	bar, ok := res.Spec.ExportByID("Bar")
	if !ok || bar.Kind != spec.KindExternal || bar.Flags["module"] != "./nowhere" {
		t.Errorf("unresolved re-export = %+v", bar)
	}
	f, _ := res.Spec.ExportByID("f")
	for _, p := range f.Signatures[0].Parameters {
		if p.Schema.RefName() == "" || !p.Schema.External {
			t.Errorf("parameter %s schema = %+v, want external $ref", p.Name, p.Schema)
		}
	}
}

func TestExtractPackageSpec_ExternalTypes(t *testing.T) {
	files := map[string]string{
		"/proj/index.ts":                    `import { Ext } from "lib"; export function h(x: Ext): void {}`,
		"/proj/node_modules/lib/index.d.ts": `export interface Ext { id: string }`,
	}

	t.Run("default resolves when node_modules exists", func(t *testing.T) {
		res := extractFiles(t, files, "/proj/index.ts", Options{})
		if diff := cmp.Diff([]string{"Ext"}, typeIDs(res.Spec)); diff != "" {
			t.Errorf("types mismatch (-want +got):\n%s", diff)
		}
		g := res.Spec.Generation
		if !g.Analysis.ResolvedExternalTypes || !g.Environment.HasNodeModules || g.Environment.NodeModulesPath != "node_modules" {
			t.Errorf("generation = %+v", g)
		}
	})

	t.Run("disabled leaves a dangling ref", func(t *testing.T) {
		off := false
		res := extractFiles(t, files, "/proj/index.ts", Options{ResolveExternalTypes: &off})
		if len(res.Spec.Types) != 0 {
			t.Errorf("types = %v, want none", typeIDs(res.Spec))
		}
		if diff := cmp.Diff([]string{CodeDanglingRef}, codes(res.Diagnostics)); diff != "" {
			t.Errorf("diagnostic codes mismatch (-want +got):\n%s", diff)
		}
		h, _ := res.Spec.ExportByID("h")
		if s := h.Signatures[0].Parameters[0].Schema; s.RefName() != "Ext" || !s.External {
			t.Errorf("param schema = %+v", s)
		}
	})

	transitive := map[string]string{
		"/proj/index.ts":                    `import { Ext } from "lib"; export function h(x: Ext): void {}`,
		"/proj/node_modules/lib/index.d.ts": `import { Deep } from "./deep"; export interface Ext { d: Deep }`,
		"/proj/node_modules/lib/deep.d.ts":  `export interface Deep { n: number }`,
	}
	on := true
	for name, opts := range map[string]Options{
		"default follows external imports": {},
		"enabled follows external imports": {ResolveExternalTypes: &on},
	} {
		t.Run(name, func(t *testing.T) {
			res := extractFiles(t, transitive, "/proj/index.ts", opts)
			if diff := cmp.Diff([]string{"Deep", "Ext"}, typeIDs(res.Spec)); diff != "" {
				t.Errorf("types mismatch (-want +got):\n%s", diff)
			}
			if len(res.Diagnostics) != 0 {
				t.Errorf("diagnostics = %v, want none", codes(res.Diagnostics))
			}
		})
	}
}

func TestExtractPackageSpec_EmptyModule(t *testing.T) {
	files := map[string]string{
		"/proj/package.json": `{"name": "empty", "version": "next"}`,
		"/proj/index.ts":     `const local = 1;`,
	}
	res := extractFiles(t, files, "/proj/index.ts", Options{})
	if len(res.Spec.Exports) != 0 || len(res.Spec.Types) != 0 {
		t.Errorf("exports = %v, types = %v", exportIDs(res.Spec), typeIDs(res.Spec))
	}
	if diff := cmp.Diff([]string{CodeInvalidVersion}, codes(res.Diagnostics)); diff != "" {
		t.Errorf("diagnostic codes mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPackageSpec_ParseError(t *testing.T) {
	files := map[string]string{
		"/proj/index.ts": "export function ok(): void {}\nexport function broken( {\n",
	}
	res := extractFiles(t, files, "/proj/index.ts", Options{})
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == "PARSE_ERROR" && d.File == "index.ts" {
			found = true
		}
	}
	if !found {
		t.Errorf("PARSE_ERROR missing from %+v", res.Diagnostics)
	}
}

func TestExtractPackageSpec_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExtractPackageSpec(ctx, "/proj/src/index.ts", Options{FS: fsys.NewMemory(kitFiles)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

type fakeDetector struct {
	schemas map[string]DetectedSchema
	err     error
}

func (d fakeDetector) Detect(context.Context, string) (map[string]DetectedSchema, error) {
	return d.schemas, d.err
}

func TestExtractPackageSpec_RuntimeSchemas(t *testing.T) {
	files := map[string]string{
		"/proj/index.ts": `
declare function make(): any;
export const loose: any = make();
export const typed: string = "";
`,
	}
	objectSchema := &spec.Schema{Type: "object", Properties: map[string]*spec.Schema{"id": spec.Primitive("string")}}
	detector := fakeDetector{schemas: map[string]DetectedSchema{
		"loose": {Schema: objectSchema, Vendor: "zod"},
		"typed": {Schema: objectSchema, Vendor: "zod"},
	}}

	tests := []struct {
		mode      SchemaMode
		detector  SchemaDetector
		wantLoose string
		wantTyped string
	}{
		{mode: SchemaStatic, detector: detector, wantLoose: "any", wantTyped: "string"},
		{mode: SchemaHybrid, detector: detector, wantLoose: "object", wantTyped: "string"},
		{mode: SchemaRuntime, detector: detector, wantLoose: "object", wantTyped: "object"},
		{mode: SchemaRuntime, detector: fakeDetector{err: errors.New("sandbox unavailable")}, wantLoose: "any", wantTyped: "string"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res := extractFiles(t, files, "/proj/index.ts", Options{SchemaExtraction: tt.mode, SchemaDetector: tt.detector})
			loose, _ := res.Spec.ExportByID("loose")
			typed, _ := res.Spec.ExportByID("typed")
			if loose.Schema.Type != tt.wantLoose || typed.Schema.Type != tt.wantTyped {
				t.Errorf("schemas = (%s, %s), want (%s, %s)", loose.Schema.Type, typed.Schema.Type, tt.wantLoose, tt.wantTyped)
			}
			if tt.wantLoose == "object" && loose.Flags["schemaVendor"] != "zod" {
				t.Errorf("flags = %v", loose.Flags)
			}
		})
	}
}

func TestExtractor_Cache(t *testing.T) {
	cache, err := speccache.New(4, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	fs := fsys.NewMemory(kitFiles)
	x := NewExtractor(cache, Options{FS: fs, PackageDir: "/proj", Now: fixedNow})

	first, hit, err := x.Extract(context.Background(), "/proj/src/index.ts")
	if err != nil || hit {
		t.Fatalf("first Extract: hit=%v err=%v", hit, err)
	}
	second, hit, err := x.Extract(context.Background(), "/proj/src/index.ts")
	if err != nil || !hit {
		t.Fatalf("second Extract: hit=%v err=%v", hit, err)
	}
	a, _ := spec.Canonical(first.Spec)
	b, _ := spec.Canonical(second.Spec)
	if string(a) != string(b) {
		t.Errorf("cached spec differs:\n%s\n---\n%s", a, b)
	}

	fs.WriteFile("/proj/src/util.ts", []byte(`export type Id = number;`))
	_, hit, err = x.Extract(context.Background(), "/proj/src/index.ts")
	if err != nil || hit {
		t.Fatalf("Extract after edit: hit=%v err=%v", hit, err)
	}
}
