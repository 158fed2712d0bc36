package program

import (
	"path/filepath"
	"strings"

	"github.com/ryanwaits/openpkg-sub004/pkg/pkgjson"
)

// tsExtensions are probed, in order, when resolving an import.
var tsExtensions = []string{".ts", ".tsx", ".d.ts", ".mts", ".cts", ".d.mts", ".d.cts"}

var jsExtensions = []string{".js", ".jsx", ".mjs", ".cjs"}

// jsToTS maps an emitted JavaScript extension to the sources that produce it.
var jsToTS = map[string][]string{
	".js":  {".ts", ".tsx", ".d.ts"},
	".jsx": {".tsx"},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

var nodeBuiltins = map[string]bool{
	"assert": true, "async_hooks": true, "buffer": true, "child_process": true,
	"cluster": true, "console": true, "constants": true, "crypto": true,
	"dgram": true, "diagnostics_channel": true, "dns": true, "domain": true,
	"events": true, "fs": true, "http": true, "http2": true, "https": true,
	"inspector": true, "module": true, "net": true, "os": true, "path": true,
	"perf_hooks": true, "process": true, "punycode": true, "querystring": true,
	"readline": true, "repl": true, "stream": true, "string_decoder": true,
	"sys": true, "timers": true, "tls": true, "trace_events": true, "tty": true,
	"url": true, "util": true, "v8": true, "vm": true, "wasi": true,
	"worker_threads": true, "zlib": true,
}

// IsNodeBuiltin reports whether spec names a Node.js core module.
func IsNodeBuiltin(spec string) bool {
	if strings.HasPrefix(spec, "node:") {
		return true
	}
	head, _, _ := strings.Cut(spec, "/")
	return nodeBuiltins[head]
}

// IsBareSpecifier reports whether spec names a package rather than a path.
func IsBareSpecifier(spec string) bool {
	return !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "/") && !IsNodeBuiltin(spec)
}

// resolveModule maps an import specifier written in fromFile to a source
// file path, or "" when it cannot be resolved.
func (p *Program) resolveModule(fromFile, spec string) string {
	if spec == "" || IsNodeBuiltin(spec) {
		return ""
	}
	dir := filepath.Dir(fromFile)

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".." || filepath.IsAbs(spec) {
		base := spec
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, filepath.FromSlash(spec))
		}
		return p.tryFileOrDir(base)
	}

	opts := p.Config.CompilerOptions
	if r := p.resolvePaths(spec, opts); r != "" {
		return r
	}
	if opts.BaseURL != "" {
		if r := p.tryFileOrDir(filepath.Join(opts.BaseURL, filepath.FromSlash(spec))); r != "" {
			return r
		}
	}
	return p.resolveNodeModules(dir, spec)
}

// resolvePaths applies tsconfig "paths" patterns, each with at most one "*".
func (p *Program) resolvePaths(spec string, opts CompilerOptions) string {
	bestLen := -1
	var bestTargets []string
	var bestStar string
	for pattern, targets := range opts.Paths {
		prefix, suffix, hasStar := strings.Cut(pattern, "*")
		switch {
		case !hasStar && pattern == spec:
			if len(pattern) > bestLen {
				bestLen, bestTargets, bestStar = len(pattern), targets, ""
			}
		case hasStar && strings.HasPrefix(spec, prefix) && strings.HasSuffix(spec, suffix) && len(spec) >= len(prefix)+len(suffix):
			if len(prefix) > bestLen {
				bestLen, bestTargets = len(prefix), targets
				bestStar = spec[len(prefix) : len(spec)-len(suffix)]
			}
		}
	}
	for _, t := range bestTargets {
		candidate := strings.Replace(t, "*", bestStar, 1)
		if r := p.tryFileOrDir(candidate); r != "" {
			return r
		}
	}
	return ""
}

func (p *Program) tryFileOrDir(base string) string {
	if r := p.tryFile(base); r != "" {
		return r
	}
	if p.fs.IsDirectory(base) {
		return p.tryDirectory(base)
	}
	return ""
}

func (p *Program) tryFile(base string) string {
	ext := filepath.Ext(base)
	if alts, ok := jsToTS[ext]; ok {
		stem := strings.TrimSuffix(base, ext)
		for _, alt := range alts {
			if p.isFile(stem + alt) {
				return stem + alt
			}
		}
		if p.Config.CompilerOptions.AllowsJS() && p.isFile(base) {
			return base
		}
	}
	if isTSFile(base) && p.isFile(base) {
		return base
	}
	for _, e := range tsExtensions {
		if p.isFile(base + e) {
			return base + e
		}
	}
	if p.Config.CompilerOptions.AllowsJS() {
		for _, e := range jsExtensions {
			if p.isFile(base + e) {
				return base + e
			}
		}
	}
	return ""
}

func (p *Program) tryDirectory(dir string) string {
	if r := p.tryPackageTypes(dir, ""); r != "" {
		return r
	}
	return p.tryFile(filepath.Join(dir, "index"))
}

func (p *Program) isFile(path string) bool {
	return p.fs.Exists(path) && !p.fs.IsDirectory(path)
}

func isTSFile(path string) bool {
	for _, e := range tsExtensions {
		if strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}

// splitPackageSpec splits "@scope/name/sub/path" into "@scope/name" and
// "sub/path".
func splitPackageSpec(spec string) (string, string) {
	parts := strings.Split(spec, "/")
	n := 1
	if strings.HasPrefix(spec, "@") && len(parts) > 1 {
		n = 2
	}
	if len(parts) <= n {
		return spec, ""
	}
	return strings.Join(parts[:n], "/"), strings.Join(parts[n:], "/")
}

// typesPackageName maps a package name to its DefinitelyTyped name.
func typesPackageName(pkg string) string {
	if strings.HasPrefix(pkg, "@") {
		return "@types/" + strings.Replace(strings.TrimPrefix(pkg, "@"), "/", "__", 1)
	}
	return "@types/" + pkg
}

func (p *Program) resolveNodeModules(fromDir, spec string) string {
	pkg, sub := splitPackageSpec(spec)
	for dir := fromDir; ; {
		nm := filepath.Join(dir, "node_modules")
		if p.fs.IsDirectory(nm) {
			for _, name := range []string{pkg, typesPackageName(pkg)} {
				pkgDir := filepath.Join(nm, filepath.FromSlash(name))
				if !p.fs.IsDirectory(pkgDir) {
					continue
				}
				if r := p.resolveInPackage(pkgDir, sub); r != "" {
					return r
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (p *Program) resolveInPackage(pkgDir, sub string) string {
	if r := p.tryPackageTypes(pkgDir, sub); r != "" {
		return r
	}
	if sub != "" {
		return p.tryFileOrDir(filepath.Join(pkgDir, filepath.FromSlash(sub)))
	}
	return p.tryFile(filepath.Join(pkgDir, "index"))
}

// tryPackageTypes reads pkgDir/package.json and follows its exports map,
// types, typings and main fields for the given subpath.
func (p *Program) tryPackageTypes(pkgDir, sub string) string {
	data, err := p.fs.ReadFile(filepath.Join(pkgDir, pkgjson.FileName))
	if err != nil {
		return ""
	}
	pj, err := pkgjson.Parse(data)
	if err != nil {
		return ""
	}

	key := "."
	if sub != "" {
		key = "./" + sub
	}
	if target := pj.TypesFor(key); target != "" {
		if r := p.tryFile(filepath.Join(pkgDir, filepath.FromSlash(target))); r != "" {
			return r
		}
	}
	if sub != "" {
		return ""
	}
	for _, field := range []string{pj.Types, pj.Typings, pj.Main} {
		if field == "" {
			continue
		}
		if r := p.tryFileOrDirNoPkg(filepath.Join(pkgDir, filepath.FromSlash(field))); r != "" {
			return r
		}
	}
	return ""
}

func (p *Program) tryFileOrDirNoPkg(base string) string {
	if r := p.tryFile(base); r != "" {
		return r
	}
	if p.fs.IsDirectory(base) {
		return p.tryFile(filepath.Join(base, "index"))
	}
	return ""
}
