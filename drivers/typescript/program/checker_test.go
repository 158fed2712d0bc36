package program

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExportsOfModule(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name: "declarations and clauses",
			files: map[string]string{"/proj/index.ts": `
export function f() {}
export class C {}
export interface I {}
export type T = string;
export enum E { A }
export const a = 1, b = 2;
const hidden = 3;
export { hidden as visible };
`},
			want: []string{"f", "C", "I", "T", "E", "a", "b", "visible"},
		},
		{
			name: "star exports skip default and duplicates",
			files: map[string]string{
				"/proj/index.ts": "export const x = 1;\nexport * from './a';\n",
				"/proj/a.ts":     "export const x = 2;\nexport const y = 3;\nexport default 4;\n",
			},
			want: []string{"x", "y"},
		},
		{
			name: "star export cycle",
			files: map[string]string{
				"/proj/index.ts": "export * from './a';\nexport const root = 1;\n",
				"/proj/a.ts":     "export * from './index';\nexport const leaf = 1;\n",
			},
			want: []string{"root", "leaf"},
		},
		{
			name: "namespace re-export and default",
			files: map[string]string{
				"/proj/index.ts": "export * as util from './util';\nexport default function main() {}\n",
				"/proj/util.ts":  "export const helper = 1;\n",
			},
			want: []string{"util", "default"},
		},
		{
			name: "export assignment of namespace",
			files: map[string]string{"/proj/index.d.ts": `
declare function lib(): void;
declare namespace lib {
  interface Options { debug: boolean }
  const version: string;
}
export = lib;
`},
			want: []string{"Options", "version", "default"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := "/proj/index.ts"
			if _, ok := tt.files[entry]; !ok {
				entry = "/proj/index.d.ts"
			}
			p := build(t, tt.files, entry)
			if diff := cmp.Diff(tt.want, exportNames(p.Checker(), p.Entry)); diff != "" {
				t.Errorf("exports mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveAlias(t *testing.T) {
	files := map[string]string{
		"/proj/index.ts": "export { Widget as PublicWidget } from './mid';\nexport { gone } from './mid';\nexport * as ns from './impl';\n",
		"/proj/mid.ts":   "export { Widget } from './impl';\n",
		"/proj/impl.ts":  "export class Widget {}\n",
	}
	p := build(t, files, "/proj/index.ts")
	c := p.Checker()
	exports := c.ExportsOfModule(p.Entry)

	sym, ok := c.ResolveAlias(exports[0].Symbol)
	if !ok {
		t.Fatal("PublicWidget did not resolve")
	}
	if sym.Name != "Widget" || sym.ValueDeclaration().Kind != DeclClass {
		t.Errorf("resolved to %q, want class Widget", sym.Name)
	}
	if got := p.RelPath(sym.ValueDeclaration().File().Path); got != "impl.ts" {
		t.Errorf("declared in %q, want impl.ts", got)
	}

	if _, ok := c.ResolveAlias(exports[1].Symbol); ok {
		t.Error("missing export should not resolve")
	}

	ns, ok := c.ResolveAlias(exports[2].Symbol)
	if !ok || ns.PrimaryDeclaration().Kind != DeclNamespace {
		t.Fatal("namespace re-export should resolve to a namespace")
	}
	var members []string
	for _, m := range c.MembersOf(ns) {
		members = append(members, m.Name)
	}
	if diff := cmp.Diff([]string{"Widget"}, members); diff != "" {
		t.Errorf("namespace members mismatch (-want +got):\n%s", diff)
	}
}

func TestUnresolvedStarExports(t *testing.T) {
	p := build(t, map[string]string{"/proj/index.ts": "export * from './missing';\nexport * from 'not-installed';\n"}, "/proj/index.ts")
	got := p.Checker().UnresolvedStarExports(p.Entry)
	if diff := cmp.Diff([]string{"./missing", "not-installed"}, got); diff != "" {
		t.Errorf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup(t *testing.T) {
	files := map[string]string{
		"/proj/index.ts": `
import { Shape } from './shapes';
import * as geo from './geo';
export namespace Outer {
  export interface Inner {}
}
export function area(s: Shape, p: geo.Point, i: Outer.Inner, g: GlobalThing): void {}
`,
		"/proj/shapes.ts":     "export interface Shape { sides: number }\n",
		"/proj/geo.ts":        "export interface Point { x: number }\n",
		"/proj/globals.d.ts":  "interface GlobalThing { id: string }\n",
		"/proj/tsconfig.json": "{}",
	}
	p := build(t, files, "/proj/index.ts")
	c := p.Checker()
	scope := p.Entry.Scope

	tests := []struct {
		name string
		kind DeclKind
	}{
		{"Shape", DeclInterface},
		{"geo.Point", DeclInterface},
		{"Outer.Inner", DeclInterface},
		{"GlobalThing", DeclInterface},
		{"area", DeclFunction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym := c.Lookup(scope, tt.name)
			if sym == nil {
				t.Fatal("not found")
			}
			sym, ok := c.ResolveAlias(sym)
			if !ok {
				t.Fatal("alias did not resolve")
			}
			if got := sym.PrimaryDeclaration().Kind; got != tt.kind {
				t.Errorf("kind = %v, want %v", got, tt.kind)
			}
		})
	}

	if c.Lookup(scope, "Missing") != nil {
		t.Error("unknown name should not resolve")
	}
}

func TestBinder_MergedDeclarations(t *testing.T) {
	p := build(t, map[string]string{"/proj/index.ts": `
export function parse(s: string): number;
export function parse(s: string, radix: number): number;
export function parse(s: string, radix?: number): number { return 0; }
export interface Config { a: string }
export interface Config { b: number }
`}, "/proj/index.ts")

	sym := p.Entry.Scope.Locals["parse"]
	if got := len(sym.DeclarationsOf(DeclFunction)); got != 3 {
		t.Errorf("parse has %d declarations, want 3", got)
	}
	cfg := p.Entry.Scope.Locals["Config"]
	if got := len(cfg.DeclarationsOf(DeclInterface)); got != 2 {
		t.Errorf("Config has %d declarations, want 2", got)
	}
	if got := exportNames(p.Checker(), p.Entry); len(got) != 2 {
		t.Errorf("merged declarations exported %v, want two names", got)
	}
}

func TestBinder_VariableKinds(t *testing.T) {
	p := build(t, map[string]string{"/proj/index.ts": "export const a = 1;\nexport let b = 2;\nexport var c = 3;\n"}, "/proj/index.ts")
	for name, want := range map[string]string{"a": "const", "b": "let", "c": "var"} {
		d := p.Entry.Scope.Locals[name].PrimaryDeclaration()
		if d.VarKind != want {
			t.Errorf("%s VarKind = %q, want %q", name, d.VarKind, want)
		}
	}
}
