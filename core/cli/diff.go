package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// ErrBreakingChanges is returned by "diff" and "compare" with
// --fail-on-breaking when the comparison found breaking changes.
var ErrBreakingChanges = errors.New("breaking changes detected")

// DiffOptions holds the parsed flags for "diff".
type DiffOptions struct {
	// Old and New are spec JSON files, entry files or package directories.
	Old            string
	New            string
	Output         string
	FailOnBreaking bool
}

// DiffRunFunc is the function signature for the diff command handler.
type DiffRunFunc func(ctx context.Context, opts DiffOptions) error

// NewDiffCmd creates the "diff" command.
func NewDiffCmd(runFunc DiffRunFunc) *cobra.Command {
	var opts DiffOptions

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two specs",
		Long: "Compare two OpenPkg specs and report breaking, non-breaking and documentation-only " +
			"changes with a recommended semver bump. Each argument is a spec JSON file, or a " +
			"TypeScript entry file or package directory to extract first.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Old, opts.New = args[0], args[1]
			return runFunc(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.FailOnBreaking, "fail-on-breaking", false, "Exit non-zero when breaking changes are found")

	return cmd
}
