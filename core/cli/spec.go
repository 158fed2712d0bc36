package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// SpecOptions holds the parsed flags for "spec".
type SpecOptions struct {
	// Entry is the entry file or package directory; empty means the
	// working directory.
	Entry      string
	PackageDir string
	Output     string
	// ResolveExternalTypes and Docs are nil unless the flag was given.
	ResolveExternalTypes *bool
	Docs                 *bool
	SchemaExtraction     string
	Include              []string
	Exclude              []string
	NoCache              bool
}

// SpecRunFunc is the function signature for the spec command handler.
type SpecRunFunc func(ctx context.Context, opts SpecOptions) error

// NewSpecCmd creates the "spec" command.
func NewSpecCmd(runFunc SpecRunFunc) *cobra.Command {
	var (
		opts    SpecOptions
		resolve bool
		docs    bool
	)

	cmd := &cobra.Command{
		Use:   "spec [entry]",
		Short: "Extract the OpenPkg spec of a package",
		Long: "Extract the OpenPkg spec of a TypeScript package. The entry may be a source or " +
			"declaration file, or a package directory whose package.json names one.",
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Entry = args[0]
			}
			if cmd.Flags().Changed("resolve-external-types") {
				opts.ResolveExternalTypes = &resolve
			}
			if cmd.Flags().Changed("docs") {
				opts.Docs = &docs
			}
			return validateSchemaMode(opts.SchemaExtraction)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunc(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the spec to a file instead of stdout")
	cmd.Flags().StringVar(&opts.PackageDir, "package-dir", "", "Directory holding package.json (default: the entry's directory)")
	cmd.Flags().BoolVar(&resolve, "resolve-external-types", false, "Serialize types declared under node_modules (default: when node_modules exists)")
	cmd.Flags().BoolVar(&docs, "docs", true, "Attach documentation coverage and drift metadata")
	cmd.Flags().StringVar(&opts.SchemaExtraction, "schema-extraction", "", "Schema source: static, runtime, hybrid")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "Extra source globs to load, relative to the package directory")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Source globs to skip")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Bypass the spec cache")

	return cmd
}

func validateSchemaMode(mode string) error {
	switch mode {
	case "", "static", "runtime", "hybrid":
		return nil
	}
	return fmt.Errorf("--schema-extraction must be static, runtime or hybrid, got %q", mode)
}
