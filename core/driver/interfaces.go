package driver

import (
	"context"

	"github.com/ryanwaits/openpkg-sub004/core/changespec"
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
)

// LanguageDriver is the interface each ecosystem must implement to compare
// published package versions.
type LanguageDriver interface {
	// FetchSource downloads a published package version and unpacks it to a
	// local directory. Returns the path to the unpacked source and a cleanup
	// function that removes the temp directory.
	FetchSource(ctx context.Context, pkg, version string) (path string, cleanup func(), err error)

	// ExtractSpec builds the OpenPkg spec of the package unpacked at path.
	ExtractSpec(ctx context.Context, path string) (*spec.Spec, []spec.Diagnostic, error)

	// Compare extracts both unpacked versions and diffs their specs.
	Compare(ctx context.Context, oldPath, newPath string) (specdiff.Result, error)

	// ComputeChanges diffs two unpacked package versions and returns the
	// breaking changes between them.
	ComputeChanges(ctx context.Context, oldPath, newPath, oldVersion, newVersion string) (changespec.ChangeSpec, error)

	// ApplyChanges applies breaking change fixes to the affected files in the repository.
	// Returns which changes were applied and which failed.
	ApplyChanges(ctx context.Context, changes changespec.ChangeSpec, files []string, repoPath string) (changespec.ApplyResult, error)
}

// RepoResolver finds files affected by a package upgrade.
type RepoResolver interface {
	// FindAffectedFiles returns all source files that import the given
	// package or one of its subpaths.
	FindAffectedFiles(ctx context.Context, pkg, repoPath string) ([]string, error)
}
