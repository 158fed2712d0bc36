package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type entry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildTarGz(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: e.typeflag, Linkname: e.linkname}
		if e.typeflag == 0 {
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Typeflag != tar.TypeReg {
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", e.name, err)
		}
		if hdr.Size > 0 {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("write body %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractTarGz(t *testing.T) {
	data := buildTarGz(t,
		entry{name: "package/package.json", body: `{"name":"kit"}`},
		entry{name: "package/dist/", typeflag: tar.TypeDir},
		entry{name: "package/dist/index.d.ts", body: "export declare const a: number;"},
		entry{name: "package/link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"},
	)

	dir, cleanup, err := ExtractTarGz(data, "@acme/kit")
	if err != nil {
		t.Fatalf("ExtractTarGz: %v", err)
	}
	defer cleanup()

	if strings.Contains(filepath.Base(dir), "/") || strings.Contains(filepath.Base(dir), "@") {
		t.Errorf("temp dir name not sanitized: %s", dir)
	}
	got, err := os.ReadFile(filepath.Join(dir, "dist", "index.d.ts"))
	if err != nil || string(got) != "export declare const a: number;" {
		t.Errorf("index.d.ts = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		t.Errorf("package.json not extracted at root: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dir, "link")); !os.IsNotExist(err) {
		t.Errorf("symlink should be skipped, stat err = %v", err)
	}

	cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("cleanup left %s behind", dir)
	}
}

func TestExtractTarGz_Traversal(t *testing.T) {
	data := buildTarGz(t, entry{name: "package/../../evil.txt", body: "x"})
	if _, _, err := ExtractTarGz(data, "evil"); err == nil || !strings.Contains(err.Error(), "path traversal") {
		t.Fatalf("err = %v, want path traversal error", err)
	}
}

func TestExtractTarGz_NotGzip(t *testing.T) {
	if _, _, err := ExtractTarGz([]byte("plain"), "bad"); err == nil {
		t.Fatal("expected error for non-gzip input")
	}
}

func TestStripFirstComponent(t *testing.T) {
	tests := map[string]string{
		"package/index.d.ts": "index.d.ts",
		"./package/a/b.ts":   "a/b.ts",
		"kit/lib/":           "lib",
		"package":            "",
	}
	for in, want := range tests {
		if got := stripFirstComponent(in); got != want {
			t.Errorf("stripFirstComponent(%q) = %q, want %q", in, got, want)
		}
	}
}
