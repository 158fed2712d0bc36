package specdiff

import "github.com/ryanwaits/openpkg-sub004/core/spec"

// Result is everything known about the change from one spec to another.
type Result struct {
	OldVersion     string                `json:"oldVersion,omitempty"`
	NewVersion     string                `json:"newVersion,omitempty"`
	Diff           SpecDiff              `json:"diff"`
	Breaking       []CategorizedBreaking `json:"categorizedBreaking"`
	MemberChanges  []MemberChange        `json:"memberChanges"`
	Recommendation SemverRecommendation  `json:"recommendation"`
	// NextVersion is the old version with the recommended bump applied.
	NextVersion string `json:"nextVersion,omitempty"`
}

// Compare diffs old against new, diffs the members of changed classes,
// categorizes the breaking changes and recommends a version bump. Nil specs
// compare as empty.
func Compare(old, new *spec.Spec) Result {
	if old == nil {
		old = &spec.Spec{}
	}
	if new == nil {
		new = &spec.Spec{}
	}
	d := DiffSpec(old, new)
	members := DiffMembers(old, new, ChangedClasses(d.Breaking, old, new))
	if members == nil {
		members = []MemberChange{}
	}
	rec := RecommendSemverBump(d)

	r := Result{
		OldVersion:     old.Meta.Version,
		NewVersion:     new.Meta.Version,
		Diff:           d,
		Breaking:       CategorizeBreakingChanges(d.Breaking, old, new, members),
		MemberChanges:  members,
		Recommendation: rec,
	}
	if old.Meta.Version != "" {
		r.NextVersion = CalculateNextVersion(old.Meta.Version, rec.Bump)
	}
	return r
}
