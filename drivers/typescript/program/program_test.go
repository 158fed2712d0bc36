package program

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
)

func build(t *testing.T, files map[string]string, entry string) *Program {
	t.Helper()
	p, err := Build(context.Background(), Options{
		EntryFile: entry,
		BaseDir:   "/proj",
		FS:        fsys.NewMemory(files),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func exportNames(c *Checker, f *SourceFile) []string {
	var names []string
	for _, e := range c.ExportsOfModule(f) {
		names = append(names, e.Name)
	}
	return names
}

func TestBuild_MissingEntry(t *testing.T) {
	_, err := Build(context.Background(), Options{
		EntryFile: "/proj/src/missing.ts",
		FS:        fsys.NewMemory(nil),
	})
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
	if !fsys.IsNotFound(err) {
		t.Errorf("LoadError should unwrap to FileNotFoundError, got %v", le.Err)
	}
}

func TestBuild_InMemoryContent(t *testing.T) {
	files := map[string]string{
		"/proj/src/index.ts": "export const onDisk = 1;\n",
		"/proj/src/util.ts":  "export interface Options { verbose?: boolean }\n",
	}
	p, err := Build(context.Background(), Options{
		EntryFile: "/proj/src/index.ts",
		BaseDir:   "/proj",
		Content:   []byte("export { Options } from './util';\nexport function run(): void {}\n"),
		FS:        fsys.NewMemory(files),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()

	got := exportNames(p.Checker(), p.Entry)
	if diff := cmp.Diff([]string{"Options", "run"}, got); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
	if p.File("/proj/src/util.ts") == nil {
		t.Error("import of in-memory entry was not loaded from the base file system")
	}
}

func TestBuild_TSConfigDefaults(t *testing.T) {
	p := build(t, map[string]string{"/proj/index.ts": "export const a = 1;"}, "/proj/index.ts")
	opts := p.Config.CompilerOptions
	if opts.Module != "CommonJS" || opts.ModuleResolution != "node" || opts.Target != "ESNext" {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if opts.Declaration == nil || !*opts.Declaration {
		t.Error("declaration should default to true")
	}
	if p.Config.Path != "" {
		t.Errorf("Config.Path = %q, want empty", p.Config.Path)
	}
}

func TestBuild_TSConfigExtendsAndPaths(t *testing.T) {
	files := map[string]string{
		"/proj/tsconfig.base.json": `{
  // shared settings
  "compilerOptions": { "strict": true, "module": "ESNext", },
}`,
		"/proj/tsconfig.json": `{
  "extends": "./tsconfig.base.json",
  "compilerOptions": {
    "baseUrl": ".",
    "paths": { "@lib/*": ["lib/*"] }
  },
  "include": ["src"]
}`,
		"/proj/src/index.ts":  "export { helper } from '@lib/helper';\n",
		"/proj/src/extra.ts":  "export const extra = true;\n",
		"/proj/lib/helper.ts": "export function helper(): string { return ''; }\n",
	}
	p := build(t, files, "/proj/src/index.ts")

	opts := p.Config.CompilerOptions
	if opts.Strict == nil || !*opts.Strict {
		t.Error("strict should be inherited from the extended config")
	}
	if opts.Module != "ESNext" {
		t.Errorf("module = %q, want ESNext", opts.Module)
	}
	if p.File("/proj/lib/helper.ts") == nil {
		t.Error("paths mapping was not resolved")
	}
	if p.File("/proj/src/extra.ts") == nil {
		t.Error("include pattern did not pick up src/extra.ts")
	}

	sym, ok := p.Checker().ResolveAlias(p.Checker().ExportsOfModule(p.Entry)[0].Symbol)
	if !ok || sym.ValueDeclaration() == nil || sym.ValueDeclaration().Kind != DeclFunction {
		t.Errorf("helper did not resolve to a function declaration")
	}
}

func TestBuild_NodeModules(t *testing.T) {
	files := map[string]string{
		"/proj/src/index.ts":                     "import type { Thing } from 'dep';\nexport function make(): Thing { return null as any; }\n",
		"/proj/node_modules/dep/package.json":    `{"name":"dep","types":"./dist/index.d.ts"}`,
		"/proj/node_modules/dep/dist/index.d.ts": "export interface Thing { id: string }\n",
	}
	p := build(t, files, "/proj/src/index.ts")

	if !p.HasNodeModules || p.NodeModulesPath != "/proj/node_modules" {
		t.Errorf("HasNodeModules = %v, path = %q", p.HasNodeModules, p.NodeModulesPath)
	}
	if !p.HasExternalImports {
		t.Error("HasExternalImports should be set")
	}
	dep := p.File("/proj/node_modules/dep/dist/index.d.ts")
	if dep == nil {
		t.Fatal("package types were not resolved")
	}
	if !dep.External {
		t.Error("node_modules file should be external")
	}

	if sym, _ := p.Checker().FindExportedDeclaration("Thing", false); sym != nil {
		t.Error("external declarations should be skipped without includeExternal")
	}
	if sym, d := p.Checker().FindExportedDeclaration("Thing", true); sym == nil || d.Kind != DeclInterface {
		t.Error("Thing should be found when external files are included")
	}
}

func TestBuild_ParseErrorDiagnostic(t *testing.T) {
	p := build(t, map[string]string{"/proj/index.ts": "export const ok = 1;\nexport function (\n"}, "/proj/index.ts")
	found := false
	for _, d := range p.Diagnostics {
		if d.Code == "PARSE_ERROR" && d.File == "index.ts" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected PARSE_ERROR diagnostic, got %+v", p.Diagnostics)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, Options{
		EntryFile: "/proj/index.ts",
		FS:        fsys.NewMemory(map[string]string{"/proj/index.ts": "export {}"}),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestContentHash(t *testing.T) {
	files := map[string]string{"/proj/index.ts": "export const a = 1;"}
	h1 := build(t, files, "/proj/index.ts").ContentHash()
	h2 := build(t, files, "/proj/index.ts").ContentHash()
	if h1 != h2 {
		t.Error("hash should be stable for identical sources")
	}
	h3 := build(t, map[string]string{"/proj/index.ts": "export const a = 2;"}, "/proj/index.ts").ContentHash()
	if h1 == h3 {
		t.Error("hash should change when sources change")
	}
}

func TestWalk_FileLimitSpansDirectories(t *testing.T) {
	p := build(t, map[string]string{
		"/proj/index.ts":         "export const x = 1;\n",
		"/proj/a/1.ts":           "export const a = 1;\n",
		"/proj/a/b/2.ts":         "export const b = 2;\n",
		"/proj/a/b/c/3.ts":       "export const c = 3;\n",
		"/proj/a/b/c/d/4.ts":     "export const d = 4;\n",
		"/proj/a/b/c/d/e/5.d.ts": "export declare const e: number;\n",
	}, "/proj/index.ts")
	p.maxFiles = 2

	got, err := p.walk(context.Background(), "/proj", "/proj", []string{"**/*.ts"}, nil, nil)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if diff := cmp.Diff([]string{"/proj/a/1.ts", "/proj/a/b/2.ts"}, got); diff != "" {
		t.Errorf("walked files mismatch (-want +got):\n%s", diff)
	}
}
