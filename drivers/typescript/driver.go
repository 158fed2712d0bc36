// Package typescript implements driver.LanguageDriver for npm packages
// written in TypeScript or shipping declaration files.
package typescript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ryanwaits/openpkg-sub004/core/changespec"
	"github.com/ryanwaits/openpkg-sub004/core/driver"
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/speccache"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/extract"
	"github.com/ryanwaits/openpkg-sub004/pkg/archive"
	"github.com/ryanwaits/openpkg-sub004/pkg/fsys"
	"github.com/ryanwaits/openpkg-sub004/pkg/npmregistry"
	"github.com/ryanwaits/openpkg-sub004/pkg/pkgjson"
)

var (
	_ driver.LanguageDriver = (*Driver)(nil)
	_ driver.RepoResolver   = (*Driver)(nil)
)

// Driver implements driver.LanguageDriver for npm packages.
type Driver struct {
	registry *npmregistry.Client
	cache    *speccache.Cache
	opts     extract.Options
	fs       fsys.FileSystem
	logger   *slog.Logger
}

// NewDriver creates a Driver. opts is the base extraction configuration;
// PackageDir and EntryPointSource are set per package. A nil cache disables
// spec caching.
func NewDriver(registry *npmregistry.Client, cache *speccache.Cache, opts extract.Options) *Driver {
	if registry == nil {
		registry = npmregistry.NewClient("")
	}
	if opts.FS == nil {
		opts.FS = fsys.Local{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{
		registry: registry,
		cache:    cache,
		opts:     opts,
		fs:       opts.FS,
		logger:   opts.Logger,
	}
}

// FetchSource downloads the package tarball from the registry and extracts it to a temp directory.
func (d *Driver) FetchSource(ctx context.Context, pkg, version string) (string, func(), error) {
	data, m, err := d.registry.DownloadTarball(ctx, pkg, version)
	if err != nil {
		return "", nil, fmt.Errorf("downloading tarball for %s@%s: %w", pkg, version, err)
	}

	dir, cleanup, err := archive.ExtractTarGz(data, pkg+"-"+m.Version)
	if err != nil {
		return "", nil, fmt.Errorf("extracting tarball for %s@%s: %w", pkg, version, err)
	}

	return dir, cleanup, nil
}

// ExtractSpec locates the package's entry point from its package.json and
// extracts its spec, through the cache when one is configured.
func (d *Driver) ExtractSpec(ctx context.Context, path string) (*spec.Spec, []spec.Diagnostic, error) {
	entry, source, err := pkgjson.EntryPoint(d.fs, path)
	if err != nil {
		return nil, nil, err
	}

	opts := d.opts
	opts.PackageDir = path
	opts.EntryPointSource = source
	res, hit, err := extract.NewExtractor(d.cache, opts).Extract(ctx, entry)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting %s: %w", entry, err)
	}
	d.logger.Debug("spec ready", "package", res.Spec.Meta.Name, "version", res.Spec.Meta.Version, "cached", hit)
	return res.Spec, res.Diagnostics, nil
}

// Compare extracts both unpacked versions and diffs their specs. Both
// directories must hold the same package.
func (d *Driver) Compare(ctx context.Context, oldPath, newPath string) (specdiff.Result, error) {
	old, oldDiags, err := d.ExtractSpec(ctx, oldPath)
	if err != nil {
		return specdiff.Result{}, fmt.Errorf("extracting old version: %w", err)
	}
	new, newDiags, err := d.ExtractSpec(ctx, newPath)
	if err != nil {
		return specdiff.Result{}, fmt.Errorf("extracting new version: %w", err)
	}
	if old.Meta.Name != new.Meta.Name {
		return specdiff.Result{}, fmt.Errorf("package mismatch: old=%s new=%s", old.Meta.Name, new.Meta.Name)
	}
	d.logDiagnostics(old.Meta.Version, oldDiags)
	d.logDiagnostics(new.Meta.Version, newDiags)

	return specdiff.Compare(old, new), nil
}

func (d *Driver) logDiagnostics(version string, diags []spec.Diagnostic) {
	for _, diag := range diags {
		if diag.Severity == spec.SeverityInfo {
			continue
		}
		d.logger.Warn(diag.Message, "version", version, "code", diag.Code, "file", diag.File)
	}
}

// ComputeChanges diffs two unpacked package versions. The given versions
// override the ones read from package.json when set.
func (d *Driver) ComputeChanges(ctx context.Context, oldPath, newPath, oldVersion, newVersion string) (changespec.ChangeSpec, error) {
	r, err := d.Compare(ctx, oldPath, newPath)
	if err != nil {
		return changespec.ChangeSpec{}, err
	}
	if oldVersion != "" {
		r.OldVersion = oldVersion
		r.NextVersion = specdiff.CalculateNextVersion(oldVersion, r.Recommendation.Bump)
	}
	if newVersion != "" {
		r.NewVersion = newVersion
	}

	pj, err := pkgjson.Read(d.fs, newPath)
	if err != nil {
		return changespec.ChangeSpec{}, fmt.Errorf("reading package name from %s: %w", newPath, err)
	}
	return changespec.FromResult(pj.Name, r), nil
}

// ApplyChanges is not supported for TypeScript yet.
func (d *Driver) ApplyChanges(ctx context.Context, changes changespec.ChangeSpec, files []string, repoPath string) (changespec.ApplyResult, error) {
	return changespec.ApplyResult{}, errors.New("not implemented")
}
