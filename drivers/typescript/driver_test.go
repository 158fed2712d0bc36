package typescript

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/ryanwaits/openpkg-sub004/core/changespec"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/extract"
	"github.com/ryanwaits/openpkg-sub004/pkg/npmregistry"
)

const (
	oldIndex = `/** Parses input. */
export function parse(input: string): number {
  return input.length;
}

export class Client {
  connect(): void {}
  close(): void {}
}
`
	newIndex = `export class Client {
  connect(): void {}
}

export function format(value: number): string {
  return String(value);
}
`
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func packageDir(t *testing.T, version, index string) string {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"package.json": `{"name": "kit", "version": "` + version + `", "types": "index.ts"}`,
		"index.ts":     index,
	})
	return dir
}

func TestComputeChanges(t *testing.T) {
	d := NewDriver(npmregistry.NewClient("http://registry.invalid"), nil, extract.Options{})
	oldDir := packageDir(t, "1.0.0", oldIndex)
	newDir := packageDir(t, "1.1.0", newIndex)

	r, err := d.Compare(context.Background(), oldDir, newDir)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if diff := cmp.Diff([]string{"parse", "Client"}, r.Diff.Breaking); diff != "" {
		t.Errorf("breaking mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"format"}, r.Diff.NonBreaking); diff != "" {
		t.Errorf("non-breaking mismatch (-want +got):\n%s", diff)
	}

	cs, err := d.ComputeChanges(context.Background(), oldDir, newDir, "", "")
	if err != nil {
		t.Fatalf("ComputeChanges: %v", err)
	}
	if cs.Package != "kit" || cs.Bump != specdiff.BumpMajor || cs.NextVersion != "2.0.0" {
		t.Errorf("change spec header = %s %s %s", cs.Package, cs.Bump, cs.NextVersion)
	}
	var kinds []changespec.ChangeKind
	for _, c := range cs.Changes {
		kinds = append(kinds, c.Kind)
	}
	if diff := cmp.Diff([]changespec.ChangeKind{changespec.ChangeKindRemoved, changespec.ChangeKindMemberRemoved}, kinds); diff != "" {
		t.Errorf("change kinds mismatch (-want +got):\n%s", diff)
	}
	if len(cs.Changes) == 2 && cs.Changes[1].Member != "close" {
		t.Errorf("member change = %+v, want close", cs.Changes[1])
	}
}

func TestCompare_PackageMismatch(t *testing.T) {
	d := NewDriver(nil, nil, extract.Options{})
	oldDir := packageDir(t, "1.0.0", oldIndex)
	other := t.TempDir()
	writeTree(t, other, map[string]string{
		"package.json": `{"name": "other", "version": "1.0.0", "types": "index.ts"}`,
		"index.ts":     oldIndex,
	})
	if _, err := d.Compare(context.Background(), oldDir, other); err == nil {
		t.Fatal("expected package mismatch error")
	}
}

func TestFetchSource(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range map[string]string{
		"package/package.json": `{"name": "kit", "version": "1.0.0", "types": "index.ts"}`,
		"package/index.ts":     oldIndex,
	} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gz.Close()
	tarball := buf.Bytes()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/kit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(npmregistry.Packument{
			Name:     "kit",
			DistTags: map[string]string{"latest": "1.0.0"},
			Versions: map[string]*npmregistry.VersionManifest{
				"1.0.0": {Name: "kit", Version: "1.0.0", Dist: npmregistry.Dist{Tarball: srv.URL + "/kit-1.0.0.tgz"}},
			},
		})
	})
	mux.HandleFunc("/kit-1.0.0.tgz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(tarball)
	})

	d := NewDriver(npmregistry.NewClient(srv.URL), nil, extract.Options{})
	dir, cleanup, err := d.FetchSource(context.Background(), "kit", "latest")
	if err != nil {
		t.Fatalf("FetchSource: %v", err)
	}
	defer cleanup()

	s, _, err := d.ExtractSpec(context.Background(), dir)
	if err != nil {
		t.Fatalf("ExtractSpec: %v", err)
	}
	if s.Meta.Name != "kit" || len(s.Exports) != 2 {
		t.Errorf("spec = %s with %d exports, want kit with 2", s.Meta.Name, len(s.Exports))
	}
	if s.Generation == nil || s.Generation.Analysis.EntryPointSource != "types" {
		t.Errorf("generation = %+v, want entry point source types", s.Generation)
	}
}

func TestFindAffectedFiles(t *testing.T) {
	repo := t.TempDir()
	writeTree(t, repo, map[string]string{
		"src/a.ts":                 `import { parse } from "kit";`,
		"src/b.tsx":                `import sub from "kit/sub";`,
		"src/c.ts":                 `import other from "kitten";`,
		"src/d.js":                 `const kit = require("kit");`,
		"src/e.ts":                 `export * from "kit";`,
		"src/f.ts":                 "const lazy = () => import(\"kit/lazy\");\nconst n = require(\"kit-extra\");",
		"src/types.d.ts":           `import { parse } from "kit";`,
		"node_modules/kit/main.ts": `import { parse } from "kit";`,
	})

	d := NewDriver(nil, nil, extract.Options{})
	got, err := d.FindAffectedFiles(context.Background(), "kit", repo)
	if err != nil {
		t.Fatalf("FindAffectedFiles: %v", err)
	}
	want := []string{
		filepath.Join(repo, "src", "a.ts"),
		filepath.Join(repo, "src", "b.tsx"),
		filepath.Join(repo, "src", "d.js"),
		filepath.Join(repo, "src", "e.ts"),
		filepath.Join(repo, "src", "f.ts"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("affected files mismatch (-want +got):\n%s", diff)
	}

	if _, err := d.FindAffectedFiles(context.Background(), "kit", filepath.Join(repo, "missing")); err == nil {
		t.Error("expected error for missing repo path")
	}
}
