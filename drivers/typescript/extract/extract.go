// Package extract builds an OpenPkg spec from a TypeScript entry file.
//
// Extraction runs in three passes over the entry module's exports: exported
// type names are registered first so references resolve to $refs, every
// export is then serialized, and finally a closure pass serializes the type
// definitions of names that were referenced but never exported.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ryanwaits/openpkg-sub004/core/enrich"
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/serializer"
	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
	"github.com/ryanwaits/openpkg-sub004/pkg/pkgjson"
)

// GeneratorName is recorded in generation metadata.
const GeneratorName = "openpkg"

// Diagnostic codes emitted by extraction.
const (
	CodeMissingNodeModules = "MISSING_NODE_MODULES"
	CodeUnresolvedType     = "UNRESOLVED_TYPE"
	CodeDanglingRef        = "DANGLING_REF"
	CodeSerializerFailed   = "SERIALIZER_FAILED"
	CodeUnresolvedReexport = "UNRESOLVED_REEXPORT"
	CodeInvalidVersion     = "INVALID_VERSION"
)

// SchemaMode selects where export schemas come from.
type SchemaMode string

const (
	SchemaStatic  SchemaMode = "static"
	SchemaRuntime SchemaMode = "runtime"
	SchemaHybrid  SchemaMode = "hybrid"
)

// DetectedSchema is an output schema discovered by running the package.
type DetectedSchema struct {
	Schema *spec.Schema
	Vendor string
}

// SchemaDetector finds runtime schemas (zod, valibot, ...) exported by a
// package, keyed by export name.
type SchemaDetector interface {
	Detect(ctx context.Context, entryFile string) (map[string]DetectedSchema, error)
}

// Options configures ExtractPackageSpec.
type Options struct {
	// PackageDir holds package.json and is where tsconfig discovery starts.
	// Defaults to the entry file's directory.
	PackageDir string
	// Content replaces the entry file's on-disk content.
	Content []byte
	FS      fsys.FileSystem
	Logger  *slog.Logger

	// ResolveExternalTypes controls whether types declared under
	// node_modules are serialized. Nil enables it when node_modules exists.
	ResolveExternalTypes *bool

	SchemaExtraction SchemaMode
	SchemaDetector   SchemaDetector

	// Docs attaches coverage and drift metadata.
	Docs bool

	Include []string
	Exclude []string

	// EntryPointSource records how the entry file was chosen.
	EntryPointSource string
	GeneratorVersion string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FS == nil {
		o.FS = fsys.Local{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.SchemaExtraction == "" {
		o.SchemaExtraction = SchemaStatic
	}
	if o.EntryPointSource == "" {
		o.EntryPointSource = "explicit"
	}
	if o.GeneratorVersion == "" {
		o.GeneratorVersion = "dev"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Result is an extracted spec with the diagnostics found along the way.
type Result struct {
	Spec        *spec.Spec
	Diagnostics []spec.Diagnostic
}

// ExtractPackageSpec builds the spec of the package whose public API is
// entryFile. Only a failure to load the entry file, or cancellation, is an
// error; everything else is reported as a diagnostic.
func ExtractPackageSpec(ctx context.Context, entryFile string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	p, err := buildProgram(ctx, entryFile, opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return extract(ctx, p, opts)
}

func buildProgram(ctx context.Context, entryFile string, opts Options) (*program.Program, error) {
	return program.Build(ctx, program.Options{
		EntryFile:      entryFile,
		BaseDir:        opts.PackageDir,
		Content:        opts.Content,
		FS:             opts.FS,
		Logger:         opts.Logger,
		Include:        opts.Include,
		Exclude:        opts.Exclude,
		FollowExternal: opts.ResolveExternalTypes,
	})
}

// builder holds the state of one extraction.
type builder struct {
	p               *program.Program
	sctx            *serializer.Context
	opts            Options
	resolveExternal bool
	diags           []spec.Diagnostic
	// unresolved holds referenced names already reported as unresolvable.
	unresolved map[string]bool
}

func extract(ctx context.Context, p *program.Program, opts Options) (*Result, error) {
	b := &builder{
		p:               p,
		sctx:            serializer.NewContext(p, opts.Logger),
		opts:            opts,
		resolveExternal: p.FollowsExternal(),
		unresolved:      make(map[string]bool),
	}

	s := spec.New(b.meta())
	exports, err := b.serializeExports(ctx)
	if err != nil {
		return nil, err
	}
	s.Exports = exports
	if err := b.closure(ctx); err != nil {
		return nil, err
	}
	s.Types = append([]spec.TypeDefinition(nil), b.sctx.Registry.Definitions()...)
	b.markDangling(s)

	if p.HasExternalImports && !p.HasNodeModules {
		b.diags = append(b.diags, spec.Diagnostic{
			Severity:   spec.SeverityInfo,
			Code:       CodeMissingNodeModules,
			Message:    "the package imports external modules but no node_modules directory was found",
			Suggestion: "install dependencies so external types can be resolved",
		})
	}

	if opts.SchemaExtraction == SchemaRuntime || opts.SchemaExtraction == SchemaHybrid {
		b.applyRuntimeSchemas(ctx, s)
	}
	if opts.Docs {
		enrich.Spec(s)
	}

	var diags []spec.Diagnostic
	diags = append(diags, p.Diagnostics...)
	diags = append(diags, b.sctx.Diagnostics...)
	diags = append(diags, b.diags...)
	s.Generation = b.generation(diags)

	opts.Logger.Debug("spec extracted", "package", s.Meta.Name, "exports", len(s.Exports), "types", len(s.Types), "diagnostics", len(diags))
	return &Result{Spec: s, Diagnostics: diags}, nil
}

// meta reads package metadata. A missing package.json names the package
// after its directory.
func (b *builder) meta() spec.Meta {
	dir := b.p.BaseDir
	pj, err := pkgjson.Read(b.p.FS(), dir)
	if err != nil {
		if !fsys.IsNotFound(err) {
			b.opts.Logger.Warn("ignoring unreadable package.json", "dir", dir, "err", err)
		}
		return spec.Meta{Name: filepath.Base(dir)}
	}
	if pj.Version != "" && !pj.HasValidVersion() {
		b.diags = append(b.diags, spec.Diagnostic{
			Severity: spec.SeverityWarning,
			Code:     CodeInvalidVersion,
			Message:  fmt.Sprintf("package version %q is not a valid semantic version", pj.Version),
			File:     pkgjson.FileName,
		})
	}
	name := pj.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	return spec.Meta{
		Name:        name,
		Version:     pj.Version,
		Description: pj.Description,
		License:     pj.LicenseName(),
		Repository:  pj.RepositoryURL(),
	}
}

type resolvedExport struct {
	name   string
	target *program.Symbol
}

func (b *builder) serializeExports(ctx context.Context) ([]spec.Export, error) {
	checker := b.sctx.Checker
	registry := b.sctx.Registry

	var exports []resolvedExport
	var out []spec.Export
	for _, e := range checker.ExportsOfModule(b.p.Entry) {
		target, ok := checker.ResolveAlias(e.Symbol)
		if !ok {
			module := ""
			if e.Symbol.Alias != nil {
				module = e.Symbol.Alias.Specifier
			}
			b.warn(CodeUnresolvedReexport, fmt.Sprintf("re-export %q from %q could not be resolved", e.Name, module))
			out = append(out, serializer.External(e.Name, module))
			continue
		}
		exports = append(exports, resolvedExport{name: e.Name, target: target})
	}
	for _, module := range checker.UnresolvedStarExports(b.p.Entry) {
		b.warn(CodeUnresolvedReexport, fmt.Sprintf("export * from %q could not be resolved", module))
	}

	for _, e := range exports {
		if d := e.target.PrimaryDeclaration(); d != nil && d.Kind.IsType() {
			registry.RegisterExportedType(e.name, d.Name)
		}
	}

	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[e.ID] = true
	}
	for _, e := range exports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[e.name] {
			continue
		}
		decl := e.target.PrimaryDeclaration()
		if decl == nil {
			b.opts.Logger.Debug("export has no declaration", "name", e.name)
			continue
		}

		res, err := serializer.Serialize(decl, e.target, b.sctx)
		if err != nil {
			b.sctx.Warn(CodeSerializerFailed, err.Error(), decl.File(), lineOf(decl))
			stub := serializer.Stub(e.name, decl.Kind, b.sctx, decl)
			res = serializer.Result{Export: &stub}
		}
		if res.Export == nil {
			continue
		}

		// Re-exports keep their public name.
		res.Export.ID, res.Export.Name = e.name, e.name
		seen[e.name] = true
		out = append(out, *res.Export)

		if res.Type != nil {
			pub := registry.PublicName(decl.Name)
			res.Type.ID, res.Type.Name = pub, pub
			registry.RegisterTypeDefinition(*res.Type)
		}
	}
	return out, nil
}

// closure serializes the definitions of referenced types until no new
// names appear. Cancellation is checked once per round.
func (b *builder) closure(ctx context.Context) error {
	checker := b.sctx.Checker
	registry := b.sctx.Registry
	attempted := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		progressed := false
		for _, name := range registry.GetReferencedTypes() {
			if attempted[name] || registry.IsKnownType(name) {
				continue
			}
			attempted[name] = true

			sym := b.sctx.ReferenceTarget(name)
			var decl *program.Declaration
			if sym != nil {
				decl = sym.TypeDeclaration()
			}
			if decl == nil {
				sym, decl = checker.FindExportedDeclaration(name, b.resolveExternal)
			}
			if decl == nil {
				if !b.resolveExternal {
					if _, ext := checker.FindExportedDeclaration(name, true); ext != nil {
						continue
					}
				}
				b.unresolved[name] = true
				b.warn(CodeUnresolvedType, fmt.Sprintf("type %s could not be resolved", name))
				continue
			}
			if f := decl.File(); f != nil && f.External && !b.resolveExternal {
				continue
			}

			res, err := serializer.Serialize(decl, sym, b.sctx)
			if err != nil {
				b.sctx.Warn(CodeSerializerFailed, err.Error(), decl.File(), lineOf(decl))
				continue
			}
			if res.Type == nil {
				continue
			}
			res.Type.ID, res.Type.Name = name, name
			if registry.RegisterTypeDefinition(*res.Type) {
				progressed = true
			}
		}
		if !progressed {
			return nil
		}
	}
}

// markDangling flags $refs to undefined types as external in place.
func (b *builder) markDangling(s *spec.Spec) {
	defined := make(map[string]bool, len(s.Types))
	for _, t := range s.Types {
		defined[t.ID] = true
	}
	reported := make(map[string]bool)
	s.WalkSchemas(func(sch *spec.Schema) bool {
		name := sch.RefName()
		if name == "" || defined[name] {
			return true
		}
		sch.External = true
		if !reported[name] && !b.unresolved[name] {
			reported[name] = true
			b.warn(CodeDanglingRef, fmt.Sprintf("type %s is referenced but not defined", name))
		}
		return true
	})
}

// applyRuntimeSchemas merges detector output. Runtime mode replaces static
// schemas; hybrid mode only fills exports whose static schema is opaque.
// Detector errors fall back to static extraction.
func (b *builder) applyRuntimeSchemas(ctx context.Context, s *spec.Spec) {
	if b.opts.SchemaDetector == nil {
		return
	}
	detected, err := b.opts.SchemaDetector.Detect(ctx, b.p.Entry.Path)
	if err != nil {
		b.opts.Logger.Debug("runtime schema detection failed", "err", err)
		return
	}
	for i := range s.Exports {
		e := &s.Exports[i]
		d, ok := detected[e.Name]
		if !ok || d.Schema == nil {
			continue
		}
		if b.opts.SchemaExtraction == SchemaHybrid && !isOpaque(e.Schema) {
			continue
		}
		e.Schema = d.Schema
		if e.Flags == nil {
			e.Flags = make(map[string]any)
		}
		e.Flags["schemaSource"] = string(SchemaRuntime)
		if d.Vendor != "" {
			e.Flags["schemaVendor"] = d.Vendor
		}
	}
}

func isOpaque(s *spec.Schema) bool {
	if s == nil {
		return true
	}
	switch s.Type {
	case "any", "unknown":
		return true
	}
	return s.Truncated || (s.TSType != "" && s.Type == "" && s.Ref == "")
}

func (b *builder) generation(issues []spec.Diagnostic) *spec.Generation {
	p := b.p
	g := &spec.Generation{
		Timestamp: b.opts.Now().UTC().Format(time.RFC3339),
		Generator: spec.Generator{Name: GeneratorName, Version: b.opts.GeneratorVersion},
		Analysis: spec.Analysis{
			EntryPoint:            p.RelPath(p.Entry.Path),
			EntryPointSource:      b.opts.EntryPointSource,
			IsDeclarationOnly:     p.Entry.IsDeclaration(),
			ResolvedExternalTypes: b.resolveExternal,
			SchemaExtraction:      string(b.opts.SchemaExtraction),
		},
		Environment: spec.Environment{
			HasNodeModules: p.HasNodeModules,
			HasTsconfig:    p.Config != nil && p.Config.Path != "",
		},
		Issues: issues,
	}
	if p.NodeModulesPath != "" {
		g.Environment.NodeModulesPath = p.RelPath(p.NodeModulesPath)
	}
	return g
}

func (b *builder) warn(code, message string) {
	b.diags = append(b.diags, spec.Diagnostic{Severity: spec.SeverityWarning, Code: code, Message: message})
	b.opts.Logger.Warn(message, "code", code)
}

func lineOf(d *program.Declaration) int {
	if f := d.File(); f != nil && d.Node != nil {
		return f.Line(d.Node)
	}
	return 0
}
