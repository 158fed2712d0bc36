// Package report renders specs and spec comparisons as json, yaml or text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/ryanwaits/openpkg-sub004/core/changespec"
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat accepts "json", "yaml", "yml" and "text".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// WriteSpec renders s. JSON output is the document spec.Save writes.
func WriteSpec(w io.Writer, s *spec.Spec, format Format) error {
	switch format {
	case FormatJSON:
		return spec.Write(w, s)
	case FormatYAML:
		return writeYAML(w, s)
	case FormatText:
		return writeSpecText(w, s)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// WriteDiff renders a comparison.
func WriteDiff(w io.Writer, r specdiff.Result, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode diff: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		return writeYAML(w, r)
	case FormatText:
		return writeDiffText(w, r)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// Upgrade is a dependency comparison together with the repository files
// that import the dependency.
type Upgrade struct {
	Result specdiff.Result `json:"result"`
	// Changes lists what importing code has to fix.
	Changes       changespec.ChangeSpec `json:"changes"`
	RepoPath      string                `json:"repoPath"`
	AffectedFiles []string              `json:"affectedFiles"`
}

// WriteUpgrade renders an upgrade report. Text output lists affected files
// relative to the repository.
func WriteUpgrade(w io.Writer, u Upgrade, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(u, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode upgrade report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		return writeYAML(w, u)
	case FormatText:
		if err := writeDiffText(w, u.Result); err != nil {
			return err
		}
		return writeAffectedText(w, u)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// writeYAML goes through JSON so YAML keys match the JSON field names.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// styles renders with the colour profile of the destination, so text written
// to files or buffers carries no escape codes.
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	high    lipgloss.Style
	medium  lipgloss.Style
	low     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		added:   r.NewStyle().Foreground(lipgloss.Color("42")),
		removed: r.NewStyle().Foreground(lipgloss.Color("196")),
		high:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		medium:  r.NewStyle().Foreground(lipgloss.Color("214")),
		low:     r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (st styles) severity(s specdiff.Severity) lipgloss.Style {
	switch s {
	case specdiff.SeverityHigh:
		return st.high
	case specdiff.SeverityMedium:
		return st.medium
	}
	return st.low
}

func (st styles) diagnostic(s spec.Severity) lipgloss.Style {
	switch s {
	case spec.SeverityError:
		return st.high
	case spec.SeverityWarning:
		return st.medium
	}
	return st.muted
}

func writeSpecText(w io.Writer, s *spec.Spec) error {
	st := newStyles(w)
	var sb strings.Builder

	title := s.Meta.Name
	if s.Meta.Version != "" {
		title += "@" + s.Meta.Version
	}
	sb.WriteString(st.title.Render(title))
	sb.WriteString("\n")
	if s.Meta.Description != "" {
		sb.WriteString(st.muted.Render(s.Meta.Description))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\n%s %d\n", st.label.Render("Exports:"), len(s.Exports))
	for _, e := range s.Exports {
		line := fmt.Sprintf("  %-10s %s", e.Kind, e.Name)
		if e.Deprecated {
			line += " (deprecated)"
		}
		if e.Docs != nil {
			line += st.muted.Render(fmt.Sprintf("  %.0f%%", e.Docs.CoverageScore))
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\n%s %d\n", st.label.Render("Types:"), len(s.Types))
	for _, t := range s.Types {
		fmt.Fprintf(&sb, "  %-10s %s\n", t.Kind, t.Name)
	}

	if s.Docs != nil {
		fmt.Fprintf(&sb, "\n%s %.0f%% (%d drift)\n", st.label.Render("Coverage:"), s.Docs.CoverageScore, s.Docs.DriftCount)
	}

	if s.Generation != nil && len(s.Generation.Issues) > 0 {
		fmt.Fprintf(&sb, "\n%s %d\n", st.label.Render("Diagnostics:"), len(s.Generation.Issues))
		for _, d := range s.Generation.Issues {
			sb.WriteString("  ")
			sb.WriteString(st.diagnostic(d.Severity).Render(fmt.Sprintf("%-7s", d.Severity)))
			fmt.Fprintf(&sb, " %s %s\n", d.Code, d.Message)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeDiffText(w io.Writer, r specdiff.Result) error {
	st := newStyles(w)
	var sb strings.Builder

	header := "Comparison"
	if r.OldVersion != "" || r.NewVersion != "" {
		header = fmt.Sprintf("%s -> %s", orUnknown(r.OldVersion), orUnknown(r.NewVersion))
	}
	sb.WriteString(st.title.Render(header))
	sb.WriteString("\n")

	rec := r.Recommendation
	fmt.Fprintf(&sb, "%s %s (%s)", st.label.Render("Recommended bump:"), rec.Bump, rec.Reason)
	if r.NextVersion != "" && rec.Bump != specdiff.BumpNone {
		fmt.Fprintf(&sb, " -> %s", r.NextVersion)
	}
	sb.WriteString("\n")

	if len(r.Breaking) > 0 {
		fmt.Fprintf(&sb, "\n%s %d\n", st.label.Render("Breaking:"), len(r.Breaking))
		for _, c := range r.Breaking {
			sb.WriteString("  ")
			sb.WriteString(st.severity(c.Severity).Render(fmt.Sprintf("%-6s", c.Severity)))
			fmt.Fprintf(&sb, " %s %s: %s\n", c.Kind, c.Name, c.Reason)
		}
	}

	if len(r.MemberChanges) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", st.label.Render("Member changes:"))
		for _, mc := range r.MemberChanges {
			line := fmt.Sprintf("  %s.%s %s", mc.ClassName, mc.MemberName, mc.ChangeType)
			switch mc.ChangeType {
			case specdiff.MemberAdded:
				line = st.added.Render(line)
			case specdiff.MemberRemoved:
				line = st.removed.Render(line)
			}
			sb.WriteString(line)
			if mc.Suggestion != "" {
				sb.WriteString(st.muted.Render(" (" + mc.Suggestion + ")"))
			}
			sb.WriteString("\n")
		}
	}

	writeIDs(&sb, st, "Added or changed (non-breaking):", r.Diff.NonBreaking)
	writeIDs(&sb, st, "Documentation only:", r.Diff.DocsOnly)

	d := r.Diff
	if d.OldCoverage != 0 || d.NewCoverage != 0 {
		fmt.Fprintf(&sb, "\n%s %.0f%% -> %.0f%% (%+.0f)\n", st.label.Render("Coverage:"), d.OldCoverage, d.NewCoverage, d.CoverageDelta)
		if d.DriftIntroduced > 0 || d.DriftResolved > 0 {
			fmt.Fprintf(&sb, "  drift +%d -%d\n", d.DriftIntroduced, d.DriftResolved)
		}
		if len(d.NewUndocumented) > 0 {
			fmt.Fprintf(&sb, "  undocumented: %s\n", strings.Join(d.NewUndocumented, ", "))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeAffectedText(w io.Writer, u Upgrade) error {
	st := newStyles(w)
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s %d\n", st.label.Render("Affected files:"), len(u.AffectedFiles))
	for _, f := range u.AffectedFiles {
		if rel, err := filepath.Rel(u.RepoPath, f); err == nil && u.RepoPath != "" {
			f = rel
		}
		fmt.Fprintf(&sb, "  %s\n", f)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeIDs(sb *strings.Builder, st styles, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s %d\n", st.label.Render(label), len(ids))
	for _, id := range ids {
		fmt.Fprintf(sb, "  %s\n", id)
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
