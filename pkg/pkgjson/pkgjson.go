// Package pkgjson reads package.json manifests: package metadata, dependency
// versions and the entry point a package publishes its types from.
package pkgjson

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
)

// FileName is the manifest file name.
const FileName = "package.json"

// PackageJSON is the subset of package.json this module reads.
type PackageJSON struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	License     json.RawMessage `json:"license"`
	Repository  json.RawMessage `json:"repository"`

	Types   string          `json:"types"`
	Typings string          `json:"typings"`
	Main    string          `json:"main"`
	Module  string          `json:"module"`
	Exports json.RawMessage `json:"exports"`

	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

// Parse decodes a package.json document.
func Parse(data []byte) (*PackageJSON, error) {
	var pj PackageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}
	return &pj, nil
}

// Read loads dir/package.json. A missing file is reported as a
// *fsys.FileNotFoundError.
func Read(fs fsys.FileSystem, dir string) (*PackageJSON, error) {
	p := filepath.Join(dir, FileName)
	data, err := fs.ReadFile(p)
	if err != nil {
		if fsys.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return Parse(data)
}

// FindPackageDir returns the nearest directory at or above start that
// holds a package.json, stopping at node_modules boundaries.
func FindPackageDir(fs fsys.FileSystem, start string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		if fs.Exists(filepath.Join(dir, FileName)) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir || filepath.Base(dir) == "node_modules" {
			return "", false
		}
		dir = parent
	}
}

// LicenseName returns the license identifier. Both the SPDX string form and
// the legacy {"type": ...} object form are accepted.
func (p *PackageJSON) LicenseName() string {
	var s string
	if json.Unmarshal(p.License, &s) == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(p.License, &obj) == nil {
		return obj.Type
	}
	return ""
}

// RepositoryURL returns the repository URL from either the string or the
// {"url": ...} object form.
func (p *PackageJSON) RepositoryURL() string {
	var s string
	if json.Unmarshal(p.Repository, &s) == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(p.Repository, &obj) == nil {
		return obj.URL
	}
	return ""
}

// HasValidVersion reports whether Version is a valid semantic version.
func (p *PackageJSON) HasValidVersion() bool {
	return ValidVersion(p.Version)
}

// ValidVersion reports whether v, with or without a leading "v", is a valid
// semantic version.
func ValidVersion(v string) bool {
	if v == "" {
		return false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.IsValid(v)
}

// DependencyVersion returns the version range declared for name, searching
// dependencies, then peerDependencies, then devDependencies.
func (p *PackageJSON) DependencyVersion(name string) (string, bool) {
	for _, deps := range []map[string]string{p.Dependencies, p.PeerDependencies, p.DevDependencies} {
		if v, ok := deps[name]; ok {
			return v, true
		}
	}
	return "", false
}

// FindDependencyVersion reads the package.json at repoPath and returns the
// exact version declared for dep. Range operators (^, ~, >=, =) are stripped;
// ranges that do not reduce to a single version are an error.
func FindDependencyVersion(fs fsys.FileSystem, repoPath, dep string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pj, err := Read(fs, repoPath)
	if err != nil {
		if fsys.IsNotFound(err) {
			return "", fmt.Errorf("no package.json found at %s", filepath.Join(repoPath, FileName))
		}
		return "", err
	}

	raw, ok := pj.DependencyVersion(dep)
	if !ok {
		return "", fmt.Errorf("package %s not found in package.json at %s", dep, repoPath)
	}
	for _, prefix := range []string{"workspace:", "file:", "link:", "git+", "github:", "http:", "https:"} {
		if strings.HasPrefix(raw, prefix) {
			return "", fmt.Errorf("package %s uses a %s dependency (%s), not a registry version", dep, strings.TrimSuffix(prefix, ":"), raw)
		}
	}

	v := strings.TrimLeft(strings.TrimSpace(raw), "^~>=v ")
	if strings.ContainsAny(v, " |<*") || !ValidVersion(v) {
		return "", fmt.Errorf("package %s has version range %q, which does not name a single version", dep, raw)
	}
	if v != raw {
		logger.Warn("using the lower bound of a version range", "package", dep, "range", raw, "version", v)
	}
	return v, nil
}

// TypesFor returns the types-bearing exports target for a subpath ("." for
// the package root), preferring "types" conditions. It returns "" when the
// exports map has no entry for the subpath.
func (p *PackageJSON) TypesFor(subpath string) string {
	if len(p.Exports) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(p.Exports, &v); err != nil {
		return ""
	}
	if m, ok := v.(map[string]any); ok {
		hasSubpaths := false
		for k := range m {
			if strings.HasPrefix(k, ".") {
				hasSubpaths = true
				break
			}
		}
		if hasSubpaths {
			entry, ok := m[subpath]
			if !ok {
				return ""
			}
			v = entry
		} else if subpath != "." {
			return ""
		}
	} else if subpath != "." {
		return ""
	}
	return conditionTarget(v)
}

func conditionTarget(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["types"].(string); ok {
			return s
		}
		for _, cond := range []string{"import", "require", "node", "default"} {
			if nested, ok := t[cond]; ok {
				if r := conditionTarget(nested); r != "" {
					return r
				}
			}
		}
	case []any:
		for _, item := range t {
			if r := conditionTarget(item); r != "" {
				return r
			}
		}
	}
	return ""
}

// Entry-point detection methods recorded in generation metadata.
const (
	SourceTypes    = "types"
	SourceTypings  = "typings"
	SourceExports  = "exports"
	SourceMain     = "main"
	SourceFallback = "fallback"
)

// fallbackEntries are probed, in order, when package.json names no entry.
var fallbackEntries = []string{
	"src/index.ts",
	"src/index.tsx",
	"index.ts",
	"index.d.ts",
	"lib/index.ts",
	"dist/index.d.ts",
}

// EntryPoint returns the absolute path of the file a package publishes its
// API from, and which package.json field it came from. For JavaScript
// targets the sibling .d.ts or .ts file is used.
func EntryPoint(fs fsys.FileSystem, dir string) (string, string, error) {
	pj, err := Read(fs, dir)
	if err != nil && !fsys.IsNotFound(err) {
		return "", "", err
	}
	if pj != nil {
		candidates := []struct{ field, source string }{
			{pj.Types, SourceTypes},
			{pj.Typings, SourceTypings},
			{pj.TypesFor("."), SourceExports},
			{pj.Main, SourceMain},
			{pj.Module, SourceMain},
		}
		for _, c := range candidates {
			if c.field == "" {
				continue
			}
			if p := probeTS(fs, filepath.Join(dir, filepath.FromSlash(c.field))); p != "" {
				return p, c.source, nil
			}
		}
	}
	for _, rel := range fallbackEntries {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if fs.Exists(p) && !fs.IsDirectory(p) {
			return p, SourceFallback, nil
		}
	}
	return "", "", fmt.Errorf("no TypeScript entry point found in %s", dir)
}

// probeTS maps a manifest target to an existing TypeScript file.
func probeTS(fs fsys.FileSystem, target string) string {
	isFile := func(p string) bool { return fs.Exists(p) && !fs.IsDirectory(p) }

	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	var candidates []string
	switch ext {
	case ".ts", ".tsx", ".mts", ".cts":
		candidates = []string{target}
	case ".js", ".cjs", ".mjs", ".jsx":
		candidates = []string{stem + ".d.ts", stem + ".ts", stem + ".tsx"}
	default:
		candidates = []string{
			target + ".d.ts", target + ".ts", target + ".tsx",
			filepath.Join(target, "index.d.ts"), filepath.Join(target, "index.ts"),
		}
	}
	for _, c := range candidates {
		if isFile(c) {
			return c
		}
	}
	return ""
}
