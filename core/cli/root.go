package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	Format     string
}

// SetupFunc runs after flag parsing and before any command. It is injected
// by the wiring layer (cmd/openpkg/main.go) to load configuration and build
// the logger.
type SetupFunc func(ctx context.Context, opts GlobalOptions) error

// NewRootCmd creates the top-level openpkg command.
func NewRootCmd(version string, setup SetupFunc) *cobra.Command {
	var opts GlobalOptions

	cmd := &cobra.Command{
		Use:   "openpkg",
		Short: "Extract and diff the public API of TypeScript packages",
		Long: "openpkg extracts an OpenPkg spec describing the public API of a TypeScript package " +
			"and compares specs to find breaking changes and recommend a semver bump.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if setup == nil {
				return nil
			}
			return setup(cmd.Context(), opts)
		},
	}

	cmd.Version = version

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "Path to a config file (default: openpkg.config.* in the working directory)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.LogFormat, "log-format", "", "Log format: text, json, logfmt")
	flags.StringVarP(&opts.Format, "format", "f", "", "Output format: json, yaml, text")

	return cmd
}
