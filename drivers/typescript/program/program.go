// Package program builds an analysable view of a TypeScript project: it
// discovers and parses source files, resolves imports and binds every file's
// declarations and exports so the checker can answer symbol queries.
package program

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
)

// DefaultMaxFiles bounds how many files a program loads.
const DefaultMaxFiles = 5000

// Options configures Build.
type Options struct {
	// EntryFile is the file whose exports are analysed.
	EntryFile string
	// BaseDir is where tsconfig discovery starts. Defaults to the entry
	// file's directory.
	BaseDir string
	// Content, when non-nil, replaces the entry file's on-disk content.
	Content []byte
	// FS defaults to the local disk.
	FS     fsys.FileSystem
	Logger *slog.Logger

	// Include and Exclude are doublestar globs relative to BaseDir that add
	// or remove files discovered beyond the import graph.
	Include []string
	Exclude []string

	// FollowExternal loads the imports of node_modules files too. Nil
	// follows them when a node_modules directory is found.
	FollowExternal *bool
	MaxFiles       int
}

// LoadError reports that the entry file could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SourceFile is a parsed and bound file of the program.
type SourceFile struct {
	*tsast.File

	// External is set for files under node_modules and declaration files
	// outside the base directory.
	External bool
	Scope    *Scope

	specifiers []string
}

// IsDeclaration reports whether the file is a .d.ts file.
func (f *SourceFile) IsDeclaration() bool {
	return tsast.IsDeclarationFile(f.Path)
}

// Program is the set of files reachable from an entry file.
type Program struct {
	// Config is the loaded tsconfig, or defaults when none was found.
	Config  *TSConfig
	BaseDir string
	Entry   *SourceFile

	// HasNodeModules reports whether a node_modules directory exists at or
	// above BaseDir; NodeModulesPath is the nearest one.
	HasNodeModules  bool
	NodeModulesPath string
	// HasExternalImports reports whether a project file imports a package.
	HasExternalImports bool

	Diagnostics []spec.Diagnostic

	fs       fsys.FileSystem
	logger   *slog.Logger
	files    []*SourceFile
	byPath   map[string]*SourceFile
	resolved map[string]string
	globals  *Scope
	maxFiles int
	follow   bool
	checker  *Checker
}

// Build loads the entry file, the files selected by tsconfig and options, and
// everything they import. Only a failure to load the entry file is an error;
// other unreadable files are logged and skipped.
func Build(ctx context.Context, opts Options) (*Program, error) {
	if opts.EntryFile == "" {
		return nil, &LoadError{Path: opts.EntryFile, Err: fmt.Errorf("no entry file")}
	}
	entry, err := filepath.Abs(opts.EntryFile)
	if err != nil {
		return nil, &LoadError{Path: opts.EntryFile, Err: err}
	}
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(entry)
	}
	if baseDir, err = filepath.Abs(baseDir); err != nil {
		return nil, &LoadError{Path: opts.EntryFile, Err: err}
	}

	fs := opts.FS
	if fs == nil {
		fs = fsys.Local{}
	}
	if opts.Content != nil {
		fs = fsys.NewOverlay(fs, map[string][]byte{entry: opts.Content})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	p := &Program{
		BaseDir:  baseDir,
		fs:       fs,
		logger:   logger,
		byPath:   make(map[string]*SourceFile),
		resolved: make(map[string]string),
		maxFiles: maxFiles,
	}
	p.globals = newScope(nil, nil)
	p.loadConfig(baseDir)
	p.NodeModulesPath = findNodeModules(fs, baseDir)
	p.HasNodeModules = p.NodeModulesPath != ""
	p.follow = p.HasNodeModules
	if opts.FollowExternal != nil {
		p.follow = *opts.FollowExternal
	}

	src, err := fs.ReadFile(entry)
	if err != nil {
		return nil, &LoadError{Path: entry, Err: err}
	}
	p.Entry, err = p.addFile(ctx, entry, src)
	if err != nil {
		return nil, &LoadError{Path: entry, Err: err}
	}

	roots, err := p.discover(ctx, opts.Include, opts.Exclude)
	if err != nil {
		p.Close()
		return nil, err
	}
	for _, path := range roots {
		if err := p.load(ctx, path); err != nil {
			p.Close()
			return nil, err
		}
	}
	if err := p.loadImports(ctx); err != nil {
		p.Close()
		return nil, err
	}

	p.bind()
	p.checker = newChecker(p)
	logger.Debug("program built", "entry", entry, "files", len(p.files), "tsconfig", p.Config.Path)
	return p, nil
}

func (p *Program) loadConfig(baseDir string) {
	p.Config = &TSConfig{Dir: baseDir, CompilerOptions: DefaultCompilerOptions()}
	path := FindTSConfig(p.fs, baseDir)
	if path == "" {
		return
	}
	cfg, err := LoadTSConfig(p.fs, path)
	if err != nil {
		p.logger.Warn("ignoring unreadable tsconfig", "path", path, "err", err)
		p.Diagnostics = append(p.Diagnostics, spec.Diagnostic{
			Severity: spec.SeverityWarning,
			Code:     "TSCONFIG_ERROR",
			Message:  err.Error(),
			File:     path,
		})
		return
	}
	p.Config = cfg
}

func findNodeModules(fs fsys.FileSystem, dir string) string {
	for {
		nm := filepath.Join(dir, "node_modules")
		if fs.IsDirectory(nm) {
			return nm
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// FollowsExternal reports whether the imports of node_modules files were
// loaded.
func (p *Program) FollowsExternal() bool {
	return p.follow
}

// Checker returns the program's checker.
func (p *Program) Checker() *Checker {
	return p.checker
}

// Files returns the program's files in load order, entry first.
func (p *Program) Files() []*SourceFile {
	return p.files
}

// File returns the loaded file at path, or nil.
func (p *Program) File(path string) *SourceFile {
	return p.byPath[filepath.Clean(path)]
}

// FS returns the file system the program reads from.
func (p *Program) FS() fsys.FileSystem {
	return p.fs
}

// RelPath returns path relative to BaseDir using forward slashes.
func (p *Program) RelPath(path string) string {
	rel, err := filepath.Rel(p.BaseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Close releases every syntax tree.
func (p *Program) Close() {
	for _, f := range p.files {
		f.Close()
	}
}

// ContentHash identifies the program's project sources and configuration.
// External files are excluded so that reinstalling dependencies does not
// change it.
func (p *Program) ContentHash() string {
	var paths []string
	for _, f := range p.files {
		if !f.External {
			paths = append(paths, f.Path)
		}
	}
	sort.Strings(paths)

	h := sha256.New()
	fmt.Fprintf(h, "tsconfig:%s\n", p.Config.Path)
	for _, path := range paths {
		f := p.byPath[path]
		fmt.Fprintf(h, "%s\n%d\n", p.RelPath(path), len(f.Source))
		h.Write(f.Source)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *Program) isExternal(path string) bool {
	if strings.Contains(filepath.ToSlash(path), "/node_modules/") {
		return true
	}
	if !tsast.IsDeclarationFile(path) {
		return false
	}
	rel, err := filepath.Rel(p.BaseDir, path)
	return err != nil || strings.HasPrefix(rel, "..")
}

// load reads and parses path if it is not loaded yet. Read failures are
// logged and skipped.
func (p *Program) load(ctx context.Context, path string) error {
	if _, ok := p.byPath[path]; ok {
		return nil
	}
	if len(p.files) >= p.maxFiles {
		p.logger.Warn("file limit reached, skipping", "path", path, "limit", p.maxFiles)
		return nil
	}
	src, err := p.fs.ReadFile(path)
	if err != nil {
		p.logger.Warn("skipping unreadable file", "path", path, "err", err)
		return nil
	}
	_, err = p.addFile(ctx, path, src)
	return err
}

func (p *Program) addFile(ctx context.Context, path string, src []byte) (*SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := tsast.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	f := &SourceFile{File: parsed, External: p.isExternal(path)}
	f.specifiers = ModuleSpecifiers(parsed)
	if !f.External && parsed.HasError() {
		line := parsed.Line(parsed.FirstError())
		p.Diagnostics = append(p.Diagnostics, spec.Diagnostic{
			Severity: spec.SeverityWarning,
			Code:     "PARSE_ERROR",
			Message:  fmt.Sprintf("syntax error in %s at line %d", p.RelPath(path), line),
			File:     p.RelPath(path),
			Line:     line,
		})
	}
	p.files = append(p.files, f)
	p.byPath[path] = f
	return f, nil
}

// loadImports loads the transitive closure of module specifiers.
func (p *Program) loadImports(ctx context.Context) error {
	for i := 0; i < len(p.files); i++ {
		f := p.files[i]
		if f.External && !p.follow && f != p.Entry {
			continue
		}
		for _, s := range f.specifiers {
			if !f.External && IsBareSpecifier(s) {
				p.HasExternalImports = true
			}
			target := p.resolveCached(f.Path, s)
			if target == "" {
				continue
			}
			if err := p.load(ctx, target); err != nil {
				return fmt.Errorf("loading imports of %s: %w", p.RelPath(f.Path), err)
			}
		}
	}
	return nil
}

func (p *Program) resolveCached(from, s string) string {
	key := filepath.Dir(from) + "\x00" + s
	if r, ok := p.resolved[key]; ok {
		return r
	}
	r := p.resolveModule(from, s)
	p.resolved[key] = r
	return r
}

// importModule returns the loaded file a specifier in from resolves to.
func (p *Program) importModule(from *SourceFile, s string) *SourceFile {
	r := p.resolveCached(from.Path, s)
	if r == "" {
		return nil
	}
	return p.byPath[r]
}

// ModuleSpecifiers collects the import and re-export sources of a file,
// including "import x = require()".
func ModuleSpecifiers(f *tsast.File) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, stmt := range tsast.NamedChildren(f.Root) {
		switch stmt.Type() {
		case "import_statement", "export_statement":
			if src := tsast.Field(stmt, "source"); src != nil {
				add(f.StringValue(src))
				continue
			}
			if req := tsast.ChildOfType(stmt, "import_require_clause"); req != nil {
				add(f.StringValue(tsast.ChildOfType(req, "string")))
			} else if stmt.Type() == "import_statement" {
				add(f.StringValue(tsast.ChildOfType(stmt, "string")))
			}
		}
	}
	return out
}

// discover returns the files selected by tsconfig include/files and the
// Include option, minus exclusions, in lexical order.
func (p *Program) discover(ctx context.Context, include, exclude []string) ([]string, error) {
	var out []string
	for _, f := range p.Config.Files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Config.Dir, f)
		}
		out = append(out, filepath.Clean(path))
	}

	type root struct {
		dir     string
		include []string
		exclude []string
	}
	var roots []root
	if p.Config.Path != "" {
		roots = append(roots, root{p.Config.Dir, p.Config.includePatterns(), append(p.Config.excludePatterns(), exclude...)})
	}
	if len(include) > 0 {
		roots = append(roots, root{p.BaseDir, expandPatterns(include), expandPatterns(exclude)})
	}

	for _, r := range roots {
		var err error
		if out, err = p.walk(ctx, r.dir, r.dir, r.include, r.exclude, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// walk appends the matching files under dir to out, stopping once out holds
// maxFiles paths.
func (p *Program) walk(ctx context.Context, root, dir string, include, exclude, out []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := p.fs.ReadDir(dir)
	if err != nil {
		p.logger.Debug("skipping unreadable directory", "dir", dir, "err", err)
		return out, nil
	}
	sort.Strings(names)

	for _, name := range names {
		if len(out) >= p.maxFiles {
			break
		}
		path := filepath.Join(dir, name)
		rel := filepath.ToSlash(strings.TrimPrefix(path, root+string(filepath.Separator)))
		if matchAny(exclude, rel) {
			continue
		}
		if p.fs.IsDirectory(path) {
			if name == "node_modules" || strings.HasPrefix(name, ".") {
				continue
			}
			if out, err = p.walk(ctx, root, path, include, exclude, out); err != nil {
				return nil, err
			}
			continue
		}
		if !p.isSourceFile(path) || !matchAny(include, rel) {
			continue
		}
		out = append(out, path)
	}
	return out, nil
}

func (p *Program) isSourceFile(path string) bool {
	if isTSFile(path) {
		return true
	}
	if p.Config.CompilerOptions.AllowsJS() {
		for _, e := range jsExtensions {
			if strings.HasSuffix(path, e) {
				return true
			}
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// bind builds scopes for every file. Script files, those without imports or
// exports, contribute their declarations to the global scope.
func (p *Program) bind() {
	for _, f := range p.files {
		f.Scope = newScope(f, nil)
		b := &binder{prog: p, file: f}
		b.bindStatements(f.Scope, f.Root, f.IsDeclaration())
	}
	for _, f := range p.files {
		if f.Scope.isModule {
			continue
		}
		names := make([]string, 0, len(f.Scope.Locals))
		for name := range f.Scope.Locals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, ok := p.globals.Locals[name]; !ok {
				p.globals.Locals[name] = f.Scope.Locals[name]
			}
		}
	}
}
