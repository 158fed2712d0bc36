package program

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
)

// maxExtendsDepth bounds tsconfig "extends" chains.
const maxExtendsDepth = 8

// CompilerOptions is the subset of tsconfig compilerOptions the builder uses.
// BaseURL, RootDir and Paths targets are absolute after loading.
type CompilerOptions struct {
	Target           string              `json:"target,omitempty"`
	Module           string              `json:"module,omitempty"`
	ModuleResolution string              `json:"moduleResolution,omitempty"`
	Declaration      *bool               `json:"declaration,omitempty"`
	BaseURL          string              `json:"baseUrl,omitempty"`
	Paths            map[string][]string `json:"paths,omitempty"`
	Strict           *bool               `json:"strict,omitempty"`
	AllowJS          *bool               `json:"allowJs,omitempty"`
	RootDir          string              `json:"rootDir,omitempty"`
	OutDir           string              `json:"outDir,omitempty"`
}

// DefaultCompilerOptions returns the options used when no tsconfig is found
// and underneath any tsconfig that is.
func DefaultCompilerOptions() CompilerOptions {
	decl := true
	return CompilerOptions{
		Target:           "ESNext",
		Module:           "CommonJS",
		ModuleResolution: "node",
		Declaration:      &decl,
	}
}

// merge overlays non-zero fields of o onto base.
func (base CompilerOptions) merge(o CompilerOptions) CompilerOptions {
	if o.Target != "" {
		base.Target = o.Target
	}
	if o.Module != "" {
		base.Module = o.Module
	}
	if o.ModuleResolution != "" {
		base.ModuleResolution = o.ModuleResolution
	}
	if o.Declaration != nil {
		base.Declaration = o.Declaration
	}
	if o.BaseURL != "" {
		base.BaseURL = o.BaseURL
	}
	if o.Paths != nil {
		base.Paths = o.Paths
	}
	if o.Strict != nil {
		base.Strict = o.Strict
	}
	if o.AllowJS != nil {
		base.AllowJS = o.AllowJS
	}
	if o.RootDir != "" {
		base.RootDir = o.RootDir
	}
	if o.OutDir != "" {
		base.OutDir = o.OutDir
	}
	return base
}

// AllowsJS reports whether allowJs is set.
func (o CompilerOptions) AllowsJS() bool {
	return o.AllowJS != nil && *o.AllowJS
}

// TSConfig is a loaded and merged tsconfig.json.
type TSConfig struct {
	Path            string
	Dir             string
	CompilerOptions CompilerOptions
	Include         []string
	Exclude         []string
	Files           []string
}

type rawTSConfig struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions CompilerOptions `json:"compilerOptions"`
	Include         []string        `json:"include"`
	Exclude         []string        `json:"exclude"`
	Files           []string        `json:"files"`
}

// FindTSConfig walks upward from dir looking for tsconfig.json. It returns
// "" when none exists.
func FindTSConfig(fs fsys.FileSystem, dir string) string {
	dir = filepath.Clean(dir)
	for {
		candidate := filepath.Join(dir, "tsconfig.json")
		if fs.Exists(candidate) && !fs.IsDirectory(candidate) {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadTSConfig reads a tsconfig.json (JSON with comments), following its
// extends chain, and merges the result over DefaultCompilerOptions.
func LoadTSConfig(fs fsys.FileSystem, configPath string) (*TSConfig, error) {
	cfg, err := loadTSConfig(fs, configPath, 0)
	if err != nil {
		return nil, err
	}
	cfg.CompilerOptions = DefaultCompilerOptions().merge(cfg.CompilerOptions)
	return cfg, nil
}

func loadTSConfig(fs fsys.FileSystem, configPath string, depth int) (*TSConfig, error) {
	if depth > maxExtendsDepth {
		return nil, fmt.Errorf("tsconfig extends chain deeper than %d at %s", maxExtendsDepth, configPath)
	}

	data, err := fs.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	var raw rawTSConfig
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", configPath, err)
	}

	dir := filepath.Dir(configPath)
	raw.CompilerOptions = absolutizeOptions(raw.CompilerOptions, dir)

	cfg := &TSConfig{Path: configPath, Dir: dir}
	for _, parentPath := range extendsPaths(fs, raw.Extends, dir) {
		parent, err := loadTSConfig(fs, parentPath, depth+1)
		if err != nil {
			return nil, err
		}
		cfg.CompilerOptions = cfg.CompilerOptions.merge(parent.CompilerOptions)
		if parent.Include != nil {
			cfg.Include = rebase(parent.Include, parent.Dir, dir)
		}
		if parent.Exclude != nil {
			cfg.Exclude = rebase(parent.Exclude, parent.Dir, dir)
		}
		if parent.Files != nil {
			cfg.Files = rebase(parent.Files, parent.Dir, dir)
		}
	}

	cfg.CompilerOptions = cfg.CompilerOptions.merge(raw.CompilerOptions)
	if raw.Include != nil {
		cfg.Include = raw.Include
	}
	if raw.Exclude != nil {
		cfg.Exclude = raw.Exclude
	}
	if raw.Files != nil {
		cfg.Files = raw.Files
	}
	return cfg, nil
}

func absolutizeOptions(o CompilerOptions, dir string) CompilerOptions {
	if o.BaseURL != "" && !filepath.IsAbs(o.BaseURL) {
		o.BaseURL = filepath.Join(dir, o.BaseURL)
	}
	if o.RootDir != "" && !filepath.IsAbs(o.RootDir) {
		o.RootDir = filepath.Join(dir, o.RootDir)
	}
	if o.OutDir != "" && !filepath.IsAbs(o.OutDir) {
		o.OutDir = filepath.Join(dir, o.OutDir)
	}
	if o.Paths != nil {
		// Paths without baseUrl resolve relative to the declaring config.
		base := o.BaseURL
		if base == "" {
			base = dir
		}
		abs := make(map[string][]string, len(o.Paths))
		for pattern, targets := range o.Paths {
			for _, t := range targets {
				if !filepath.IsAbs(t) {
					t = filepath.Join(base, t)
				}
				abs[pattern] = append(abs[pattern], t)
			}
		}
		o.Paths = abs
	}
	return o
}

// extendsPaths resolves the "extends" value, a string or a list of strings,
// to config file paths.
func extendsPaths(fs fsys.FileSystem, raw json.RawMessage, dir string) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var specs []string
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		specs = []string{single}
	} else if err := json.Unmarshal(raw, &specs); err != nil {
		return nil
	}

	var out []string
	for _, s := range specs {
		if p := resolveExtends(fs, s, dir); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func resolveExtends(fs fsys.FileSystem, spec, dir string) string {
	if strings.HasPrefix(spec, ".") || filepath.IsAbs(spec) {
		p := spec
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		for _, c := range []string{p, p + ".json", filepath.Join(p, "tsconfig.json")} {
			if fs.Exists(c) && !fs.IsDirectory(c) {
				return c
			}
		}
		return ""
	}

	for d := dir; ; {
		base := filepath.Join(d, "node_modules", filepath.FromSlash(spec))
		for _, c := range []string{base, base + ".json", filepath.Join(base, "tsconfig.json")} {
			if fs.Exists(c) && !fs.IsDirectory(c) {
				return c
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			return ""
		}
		d = parent
	}
}

// rebase rewrites patterns relative to from so they are relative to to.
func rebase(patterns []string, from, to string) []string {
	if from == to {
		return patterns
	}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		abs := filepath.Join(from, p)
		rel, err := filepath.Rel(to, abs)
		if err != nil {
			rel = abs
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// includePatterns returns doublestar patterns for the config's include list.
// Bare directory entries match everything beneath them.
func (c *TSConfig) includePatterns() []string {
	include := c.Include
	if include == nil && c.Files == nil {
		include = []string{"**/*"}
	}
	return expandPatterns(include)
}

func (c *TSConfig) excludePatterns() []string {
	exclude := c.Exclude
	if exclude == nil {
		exclude = []string{"node_modules", "bower_components", "jspm_packages"}
		if c.CompilerOptions.OutDir != "" {
			if rel, err := filepath.Rel(c.Dir, c.CompilerOptions.OutDir); err == nil {
				exclude = append(exclude, filepath.ToSlash(rel))
			}
		}
	}
	return expandPatterns(exclude)
}

func expandPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")
		p = strings.TrimSuffix(p, "/")
		if !strings.ContainsAny(p, "*?[{") && path.Ext(p) == "" {
			p += "/**/*"
		}
		out = append(out, p)
	}
	return out
}
