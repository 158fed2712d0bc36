package specdiff

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

// Severity ranks a breaking change.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func severityOrder(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// Reasons attached to categorized breaking changes.
const (
	ReasonRemoved          = "removed"
	ReasonConstructor      = "constructor changed"
	ReasonMethodsRemoved   = "methods removed"
	ReasonMembersChanged   = "members changed"
	ReasonTypeDefinition   = "type definition changed"
	ReasonSignatureChanged = "signature changed"
	ReasonChanged          = "changed"
)

// CategorizedBreaking is a breaking change with its severity.
type CategorizedBreaking struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Kind     spec.ExportKind `json:"kind"`
	Severity Severity        `json:"severity"`
	Reason   string          `json:"reason"`
}

// CategorizeBreakingChanges assigns a severity to every breaking id and
// returns them ordered high, medium, low. When memberChanges is nil, member
// changes are computed for the affected classes.
func CategorizeBreakingChanges(breakingIDs []string, old, new *spec.Spec, memberChanges []MemberChange) []CategorizedBreaking {
	if memberChanges == nil {
		memberChanges = DiffMembers(old, new, ChangedClasses(breakingIDs, old, new))
	}
	byClass := make(map[string][]MemberChange)
	for _, mc := range memberChanges {
		byClass[mc.ClassName] = append(byClass[mc.ClassName], mc)
	}

	out := make([]CategorizedBreaking, 0, len(breakingIDs))
	for _, id := range breakingIDs {
		name, kind, inOld := lookupKind(old, id)
		_, newKind, _ := lookupKind(new, id)
		inNew := presentIn(old, new, id)
		if !inOld {
			name, kind = id, newKind
		}
		if name == "" {
			name = id
		}

		severity, reason := categorize(kind, inOld && !inNew, byClass[name])
		out = append(out, CategorizedBreaking{
			ID:       id,
			Name:     name,
			Kind:     kind,
			Severity: severity,
			Reason:   reason,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return severityOrder(out[i].Severity) < severityOrder(out[j].Severity)
	})
	return out
}

// categorize applies the severity rules in order; the first match wins.
func categorize(kind spec.ExportKind, removed bool, members []MemberChange) (Severity, string) {
	if removed {
		if kind == spec.KindFunction || kind == spec.KindClass {
			return SeverityHigh, ReasonRemoved
		}
		return SeverityMedium, ReasonRemoved
	}

	if kind == spec.KindClass && len(members) > 0 {
		for _, mc := range members {
			if mc.MemberKind == spec.MemberConstructor && mc.ChangeType != MemberAdded {
				return SeverityHigh, ReasonConstructor
			}
		}
		for _, mc := range members {
			if mc.MemberKind == spec.MemberMethod && mc.ChangeType == MemberRemoved {
				return SeverityHigh, ReasonMethodsRemoved
			}
		}
		return SeverityMedium, ReasonMembersChanged
	}

	switch kind {
	case spec.KindInterface, spec.KindType:
		return SeverityMedium, ReasonTypeDefinition
	case spec.KindFunction:
		return SeverityHigh, ReasonSignatureChanged
	}
	return SeverityLow, ReasonChanged
}

// lookupKind finds id among exports, then types.
func lookupKind(s *spec.Spec, id string) (string, spec.ExportKind, bool) {
	if e, ok := s.ExportByID(id); ok {
		return e.Name, e.Kind, true
	}
	if t, ok := s.TypeByID(id); ok {
		return t.Name, t.Kind, true
	}
	return "", "", false
}

// presentIn reports whether id survives in new. An id that was an export is
// looked up among new's exports only, so an export whose definition stays
// behind in types still counts as removed.
func presentIn(old, new *spec.Spec, id string) bool {
	if _, ok := old.ExportByID(id); ok {
		_, ok := new.ExportByID(id)
		return ok
	}
	_, _, ok := lookupKind(new, id)
	return ok
}

// ChangedClasses returns the names of the classes among ids that exist in
// both specs, which are the ones worth a member diff.
func ChangedClasses(ids []string, old, new *spec.Spec) []string {
	var names []string
	for _, id := range ids {
		name, kind, ok := lookupKind(old, id)
		if !ok || kind != spec.KindClass {
			continue
		}
		if presentIn(old, new, id) {
			names = append(names, name)
		}
	}
	return names
}

// Bump is a semantic version increment.
type Bump string

const (
	BumpMajor Bump = "major"
	BumpMinor Bump = "minor"
	BumpPatch Bump = "patch"
	BumpNone  Bump = "none"
)

// SemverRecommendation is the suggested version bump for a diff.
type SemverRecommendation struct {
	Bump             Bump   `json:"bump"`
	Reason           string `json:"reason"`
	BreakingCount    int    `json:"breakingCount"`
	NonBreakingCount int    `json:"nonBreakingCount"`
	DocsOnlyCount    int    `json:"docsOnlyCount"`
}

// RecommendSemverBump picks major for any breaking change, then minor for
// additions, then patch for documentation-only changes.
func RecommendSemverBump(d SpecDiff) SemverRecommendation {
	r := SemverRecommendation{
		BreakingCount:    len(d.Breaking),
		NonBreakingCount: len(d.NonBreaking),
		DocsOnlyCount:    len(d.DocsOnly),
	}
	switch {
	case r.BreakingCount > 0:
		r.Bump = BumpMajor
		r.Reason = fmt.Sprintf("%d breaking %s", r.BreakingCount, plural(r.BreakingCount, "change", "changes"))
	case r.NonBreakingCount > 0:
		r.Bump = BumpMinor
		r.Reason = fmt.Sprintf("%d new %s", r.NonBreakingCount, plural(r.NonBreakingCount, "export", "exports"))
	case r.DocsOnlyCount > 0:
		r.Bump = BumpPatch
		r.Reason = fmt.Sprintf("%d documentation-only %s", r.DocsOnlyCount, plural(r.DocsOnlyCount, "change", "changes"))
	default:
		r.Bump = BumpNone
		r.Reason = "no changes"
	}
	return r
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var versionPattern = regexp.MustCompile(`^(v?)(\d+)\.(\d+)\.(\d+)(?:[-+].*)?$`)

// CalculateNextVersion applies bump to a MAJOR.MINOR.PATCH version, keeping
// a leading "v" and dropping any pre-release or build suffix. Unparseable
// versions and BumpNone return the input unchanged.
func CalculateNextVersion(version string, bump Bump) string {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil || bump == BumpNone {
		return version
	}
	major, err1 := strconv.Atoi(m[2])
	minor, err2 := strconv.Atoi(m[3])
	patch, err3 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return version
	}

	switch bump {
	case BumpMajor:
		major, minor, patch = major+1, 0, 0
	case BumpMinor:
		minor, patch = minor+1, 0
	case BumpPatch:
		patch++
	default:
		return version
	}
	return fmt.Sprintf("%s%d.%d.%d", m[1], major, minor, patch)
}
