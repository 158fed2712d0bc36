package npmregistry

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newRegistry(t *testing.T, tarball []byte, integrity string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/@acme%2Fkit", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("User-Agent = %q", ua)
		}
		json.NewEncoder(w).Encode(Packument{
			Name:     "@acme/kit",
			DistTags: map[string]string{"latest": "1.1.0", "next": "2.0.0-beta.1"},
			Versions: map[string]*VersionManifest{
				"1.0.0": {Name: "@acme/kit", Version: "1.0.0", Dist: Dist{Tarball: srv.URL + "/kit-1.0.0.tgz", Integrity: integrity}},
				"1.1.0": {Name: "@acme/kit", Version: "1.1.0", Dist: Dist{Tarball: srv.URL + "/kit-1.1.0.tgz", Integrity: "sha512-AAAA"}},
			},
		})
	})
	mux.HandleFunc("/kit-1.0.0.tgz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(tarball)
	})
	mux.HandleFunc("/kit-1.1.0.tgz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(tarball)
	})
	return srv
}

func TestDownloadTarball(t *testing.T) {
	tarball := []byte("not really a tarball")
	sum := sha512.Sum512(tarball)
	srv := newRegistry(t, tarball, "sha512-"+base64.StdEncoding.EncodeToString(sum[:]))
	c := NewClient(srv.URL + "/")

	data, m, err := c.DownloadTarball(context.Background(), "@acme/kit", "v1.0.0")
	if err != nil {
		t.Fatalf("DownloadTarball: %v", err)
	}
	if string(data) != string(tarball) || m.Version != "1.0.0" {
		t.Errorf("got %q %s", data, m.Version)
	}

	if _, _, err := c.DownloadTarball(context.Background(), "@acme/kit", "latest"); err == nil {
		t.Error("expected integrity mismatch for 1.1.0")
	}
}

func TestNotFound(t *testing.T) {
	srv := newRegistry(t, nil, "")
	c := NewClient(srv.URL)

	_, err := c.Packument(context.Background(), "left-pad")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing package error = %v, want ErrNotFound", err)
	}

	_, _, err = c.DownloadTarball(context.Background(), "@acme/kit", "9.9.9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing version error = %v, want ErrNotFound", err)
	}
}

func TestResolve(t *testing.T) {
	p := &Packument{
		Name:     "kit",
		DistTags: map[string]string{"latest": "1.1.0", "next": "2.0.0-beta.1"},
		Versions: map[string]*VersionManifest{
			"1.0.0":        {Version: "1.0.0"},
			"1.1.0":        {Version: "1.1.0"},
			"2.0.0-beta.1": {Version: "2.0.0-beta.1"},
		},
	}
	tests := map[string]string{
		"":       "1.1.0",
		"latest": "1.1.0",
		"next":   "2.0.0-beta.1",
		"v1.0.0": "1.0.0",
	}
	for in, want := range tests {
		m, err := p.Resolve(in)
		if err != nil || m.Version != want {
			t.Errorf("Resolve(%q) = %v, %v; want %s", in, m, err, want)
		}
	}

	delete(p.DistTags, "latest")
	if got := p.LatestVersion(); got != "2.0.0-beta.1" {
		t.Errorf("LatestVersion without tag = %q", got)
	}
}

func TestEscapeName(t *testing.T) {
	if got := escapeName("@types/node"); got != "@types%2Fnode" {
		t.Errorf("escapeName = %q", got)
	}
	if got := escapeName("lodash"); got != "lodash" {
		t.Errorf("escapeName = %q", got)
	}
}
