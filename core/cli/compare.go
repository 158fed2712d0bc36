package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CompareOptions holds the parsed flags for "compare".
type CompareOptions struct {
	Package string
	// From defaults to the version the repository depends on.
	From           string
	To             string
	Repo           string
	Output         string
	FailOnBreaking bool
}

// CompareRunFunc is the function signature for the compare command handler.
// It is injected by the wiring layer (cmd/openpkg/main.go).
type CompareRunFunc func(ctx context.Context, opts CompareOptions) error

// NewCompareCmd creates the "compare" command.
func NewCompareCmd(runFunc CompareRunFunc) *cobra.Command {
	var opts CompareOptions

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a dependency's published versions",
		Long: "Download two published versions of an npm package, compare their APIs and list " +
			"the repository files that import it.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateCompareFlags(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunc(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Package, "package", "", "npm package to compare (required)")
	cmd.Flags().StringVar(&opts.From, "from", "", "Version to compare from (default: the version in the repository's package.json)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Version or dist-tag to compare to (required)")
	cmd.Flags().StringVar(&opts.Repo, "repo", "", "Path to the repository (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.FailOnBreaking, "fail-on-breaking", false, "Exit non-zero when breaking changes are found")

	cmd.MarkFlagRequired("package")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("repo")

	return cmd
}

func validateCompareFlags(opts CompareOptions) error {
	if opts.Package == "" {
		return fmt.Errorf("--package is required")
	}
	if opts.To == "" {
		return fmt.Errorf("--to is required")
	}

	info, err := os.Stat(opts.Repo)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("repo path does not exist: %s", opts.Repo)
		}
		return fmt.Errorf("cannot access repo path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repo path is not a directory: %s", opts.Repo)
	}

	return nil
}
