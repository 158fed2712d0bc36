// Package logging builds the slog.Logger used by the openpkg binary.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is shown before every text-formatted line.
const Prefix = "openpkg"

// New returns a logger writing to w at the given level ("debug", "info",
// "warn", "error", "fatal") in the given format ("text", "json", "logfmt").
// An empty level or format selects info and text.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		var err error
		lvl, err = log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	formatter, err := parseFormat(format)
	if err != nil {
		return nil, err
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix:    Prefix,
		Level:     lvl,
		Formatter: formatter,
	})
	return slog.New(handler), nil
}

func parseFormat(format string) (log.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("invalid log format %q", format)
	}
}
