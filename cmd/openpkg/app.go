package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ryanwaits/openpkg-sub004/core/changespec"
	"github.com/ryanwaits/openpkg-sub004/core/cli"
	"github.com/ryanwaits/openpkg-sub004/core/config"
	"github.com/ryanwaits/openpkg-sub004/core/logging"
	"github.com/ryanwaits/openpkg-sub004/core/report"
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/speccache"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
	tsdriver "github.com/ryanwaits/openpkg-sub004/drivers/typescript"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/extract"
	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
	"github.com/ryanwaits/openpkg-sub004/pkg/npmregistry"
	"github.com/ryanwaits/openpkg-sub004/pkg/pkgjson"
)

// app holds what the commands share once setup has run.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *slog.Logger
	format report.Format
	cache  *speccache.Cache
	driver *tsdriver.Driver
	fs     fsys.FileSystem
}

func (a *app) setup(ctx context.Context, opts cli.GlobalOptions) error {
	cfg, err := config.Load(config.LoadOptions{Dir: ".", File: opts.ConfigFile})
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}
	logger, err := logging.New(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	format := cfg.Output.Format
	if opts.Format != "" {
		format = opts.Format
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}

	var cache *speccache.Cache
	if cfg.CacheSize > 0 {
		cache, err = speccache.New(cfg.CacheSize, cfg.CacheDir, logger)
		if err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = logger
	a.format = f
	a.cache = cache
	a.fs = fsys.Local{}
	client := npmregistry.NewClient(cfg.Registry, npmregistry.WithLogger(logger))
	a.driver = tsdriver.NewDriver(client, cache, a.extractOptions())
	return nil
}

func (a *app) extractOptions() extract.Options {
	return extract.Options{
		FS:                   a.fs,
		Logger:               a.logger,
		ResolveExternalTypes: a.cfg.ResolveExternalTypes,
		SchemaExtraction:     extract.SchemaMode(a.cfg.SchemaExtraction),
		Docs:                 a.cfg.Docs,
		Include:              a.cfg.Include,
		Exclude:              a.cfg.Exclude,
		GeneratorVersion:     version,
	}
}

func (a *app) runSpec(ctx context.Context, opts cli.SpecOptions) error {
	xopts := a.extractOptions()
	if opts.ResolveExternalTypes != nil {
		xopts.ResolveExternalTypes = opts.ResolveExternalTypes
	}
	if opts.Docs != nil {
		xopts.Docs = *opts.Docs
	}
	if opts.SchemaExtraction != "" {
		xopts.SchemaExtraction = extract.SchemaMode(opts.SchemaExtraction)
	}
	if len(opts.Include) > 0 {
		xopts.Include = opts.Include
	}
	if len(opts.Exclude) > 0 {
		xopts.Exclude = opts.Exclude
	}

	entry, err := a.resolveEntry(opts.Entry, opts.PackageDir, &xopts)
	if err != nil {
		return err
	}

	cache := a.cache
	if opts.NoCache {
		cache = nil
	}
	res, hit, err := extract.NewExtractor(cache, xopts).Extract(ctx, entry)
	if err != nil {
		return err
	}
	a.logger.Debug("extracted spec", "entry", entry, "exports", len(res.Spec.Exports), "cached", hit)
	a.logDiagnostics(res.Diagnostics)

	return a.writeOutput(opts.Output, func(w io.Writer) error {
		return report.WriteSpec(w, res.Spec, a.format)
	})
}

// resolveEntry turns a command-line entry into an entry file, filling in
// the package directory and entry point source on xopts.
func (a *app) resolveEntry(entry, packageDir string, xopts *extract.Options) (string, error) {
	if entry == "" {
		entry = "."
	}
	entry, err := filepath.Abs(entry)
	if err != nil {
		return "", err
	}

	if a.fs.IsDirectory(entry) {
		file, source, err := pkgjson.EntryPoint(a.fs, entry)
		if err != nil {
			return "", err
		}
		xopts.PackageDir = entry
		xopts.EntryPointSource = source
		return file, nil
	}
	if !a.fs.Exists(entry) {
		return "", fmt.Errorf("entry file does not exist: %s", entry)
	}

	switch {
	case packageDir != "":
		xopts.PackageDir = packageDir
	default:
		if dir, ok := pkgjson.FindPackageDir(a.fs, filepath.Dir(entry)); ok {
			xopts.PackageDir = dir
		}
	}
	xopts.EntryPointSource = "explicit"
	return entry, nil
}

func (a *app) runDiff(ctx context.Context, opts cli.DiffOptions) error {
	old, err := a.loadSpec(ctx, opts.Old)
	if err != nil {
		return fmt.Errorf("loading old spec: %w", err)
	}
	new, err := a.loadSpec(ctx, opts.New)
	if err != nil {
		return fmt.Errorf("loading new spec: %w", err)
	}

	r := specdiff.Compare(old, new)
	a.logger.Debug("compared specs", "breaking", len(r.Diff.Breaking), "bump", r.Recommendation.Bump)

	if err := a.writeOutput(opts.Output, func(w io.Writer) error {
		return report.WriteDiff(w, r, a.format)
	}); err != nil {
		return err
	}
	if opts.FailOnBreaking && len(r.Diff.Breaking) > 0 {
		return cli.ErrBreakingChanges
	}
	return nil
}

// loadSpec reads a spec JSON file, or extracts one from an entry file or
// package directory.
func (a *app) loadSpec(ctx context.Context, path string) (*spec.Spec, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") && !a.fs.IsDirectory(path) {
		return spec.Load(path)
	}
	xopts := a.extractOptions()
	entry, err := a.resolveEntry(path, "", &xopts)
	if err != nil {
		return nil, err
	}
	res, _, err := extract.NewExtractor(a.cache, xopts).Extract(ctx, entry)
	if err != nil {
		return nil, err
	}
	a.logDiagnostics(res.Diagnostics)
	return res.Spec, nil
}

func (a *app) runCompare(ctx context.Context, opts cli.CompareOptions) error {
	from := opts.From
	if from == "" {
		v, err := pkgjson.FindDependencyVersion(a.fs, opts.Repo, opts.Package, a.logger)
		if err != nil {
			return err
		}
		from = v
	}

	if from == opts.To {
		return fmt.Errorf("package %s is already at %s", opts.Package, opts.To)
	}
	if semver.IsValid("v"+from) && semver.IsValid("v"+opts.To) {
		if semver.Compare("v"+opts.To, "v"+from) < 0 {
			a.logger.Warn("target version is older than current version", "target", opts.To, "current", from)
		}
	}

	a.logger.Info("downloading", "package", opts.Package, "version", from)
	oldPath, oldCleanup, err := a.driver.FetchSource(ctx, opts.Package, from)
	if err != nil {
		return fmt.Errorf("fetching old version: %w", err)
	}
	defer oldCleanup()

	a.logger.Info("downloading", "package", opts.Package, "version", opts.To)
	newPath, newCleanup, err := a.driver.FetchSource(ctx, opts.Package, opts.To)
	if err != nil {
		return fmt.Errorf("fetching new version: %w", err)
	}
	defer newCleanup()

	r, err := a.driver.Compare(ctx, oldPath, newPath)
	if err != nil {
		return err
	}

	files, err := a.driver.FindAffectedFiles(ctx, opts.Package, opts.Repo)
	if err != nil {
		return fmt.Errorf("finding affected files: %w", err)
	}

	u := report.Upgrade{
		Result:        r,
		Changes:       changespec.FromResult(opts.Package, r),
		RepoPath:      opts.Repo,
		AffectedFiles: files,
	}
	if err := a.writeOutput(opts.Output, func(w io.Writer) error {
		return report.WriteUpgrade(w, u, a.format)
	}); err != nil {
		return err
	}
	if opts.FailOnBreaking && len(r.Diff.Breaking) > 0 {
		return cli.ErrBreakingChanges
	}
	return nil
}

func (a *app) logDiagnostics(diags []spec.Diagnostic) {
	for _, d := range diags {
		attrs := []any{"code", d.Code}
		if d.File != "" {
			attrs = append(attrs, "file", d.File)
		}
		switch d.Severity {
		case spec.SeverityError:
			a.logger.Error(d.Message, attrs...)
		case spec.SeverityWarning:
			a.logger.Warn(d.Message, attrs...)
		default:
			a.logger.Debug(d.Message, attrs...)
		}
	}
}

// writeOutput renders to stdout, or to path when it is set.
func (a *app) writeOutput(path string, render func(io.Writer) error) error {
	if path == "" {
		return render(a.stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	a.logger.Info("wrote output", "path", path)
	return nil
}
