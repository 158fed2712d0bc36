package specdiff

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

func TestCategorizeBreakingChanges_Severities(t *testing.T) {
	ctor := func(params ...spec.Parameter) spec.Member {
		return spec.Member{Name: "constructor", Kind: spec.MemberConstructor, Signatures: []spec.Signature{{Parameters: params}}}
	}
	prop := func(name, typ string) spec.Member {
		return spec.Member{Name: name, Kind: spec.MemberProperty, Schema: spec.Primitive(typ)}
	}
	iface := func(name, typ string) spec.Export {
		return spec.Export{ID: name, Name: name, Kind: spec.KindInterface, Type: typ}
	}

	old := buildSpec(
		fn("removedFn"),
		class("RemovedClass"),
		iface("RemovedIface", "{}"),
		class("Ctor", ctor()),
		class("Methods", method("a"), method("b")),
		class("Props", prop("x", "string")),
		iface("Changed", "{ a: string }"),
		fn("sig"),
		spec.Export{ID: "v", Name: "v", Kind: spec.KindVariable, Type: "string"},
		class("Unexported", method("run")),
		spec.Export{ID: "Plain", Name: "Plain", Kind: spec.KindClass, Extends: []string{"Base"}},
	)
	new := buildSpec(
		class("Ctor", ctor(spec.Parameter{Name: "x", Required: true, Schema: spec.Primitive("number")})),
		class("Methods", method("a")),
		class("Props", prop("x", "number")),
		iface("Changed", "{ a: number }"),
		fn("sig", spec.Parameter{Name: "x", Required: true, Schema: spec.Primitive("number")}),
		spec.Export{ID: "v", Name: "v", Kind: spec.KindVariable, Type: "number"},
		spec.Export{ID: "Plain", Name: "Plain", Kind: spec.KindClass, Extends: []string{"Other"}},
	)
	// Unexported stays referenced, so its definition remains in types.
	unexported := spec.TypeDefinition{ID: "Unexported", Name: "Unexported", Kind: spec.KindClass, Members: []spec.Member{method("run")}}
	old.Types = append(old.Types, unexported)
	new.Types = append(new.Types, unexported)

	d := DiffSpec(old, new)
	got := CategorizeBreakingChanges(d.Breaking, old, new, nil)

	byID := make(map[string]CategorizedBreaking)
	for _, c := range got {
		byID[c.ID] = c
	}

	want := []struct {
		id       string
		severity Severity
		reason   string
	}{
		{"removedFn", SeverityHigh, ReasonRemoved},
		{"RemovedClass", SeverityHigh, ReasonRemoved},
		{"RemovedIface", SeverityMedium, ReasonRemoved},
		{"Ctor", SeverityHigh, ReasonConstructor},
		{"Methods", SeverityHigh, ReasonMethodsRemoved},
		{"Props", SeverityMedium, ReasonMembersChanged},
		{"Changed", SeverityMedium, ReasonTypeDefinition},
		{"sig", SeverityHigh, ReasonSignatureChanged},
		{"v", SeverityLow, ReasonChanged},
		{"Unexported", SeverityHigh, ReasonRemoved},
		{"Plain", SeverityLow, ReasonChanged},
	}
	for _, w := range want {
		c, ok := byID[w.id]
		if !ok {
			t.Errorf("missing categorized change for %s", w.id)
			continue
		}
		if c.Severity != w.severity || c.Reason != w.reason {
			t.Errorf("%s = %s/%q, want %s/%q", w.id, c.Severity, c.Reason, w.severity, w.reason)
		}
	}

	for i := 1; i < len(got); i++ {
		if severityOrder(got[i-1].Severity) > severityOrder(got[i].Severity) {
			t.Errorf("results not sorted by severity at %d: %s before %s", i, got[i-1].Severity, got[i].Severity)
		}
	}
}

func TestCategorizeBreakingChanges_UsesGivenMemberChanges(t *testing.T) {
	old := buildSpec(class("C", method("a")))
	new := buildSpec(class("C", method("a", spec.Parameter{Name: "x", Required: true})))
	members := []MemberChange{{ClassName: "C", MemberName: "a", MemberKind: spec.MemberMethod, ChangeType: MemberRemoved}}

	got := CategorizeBreakingChanges([]string{"C"}, old, new, members)
	if len(got) != 1 || got[0].Reason != ReasonMethodsRemoved {
		t.Errorf("got %+v, want methods removed", got)
	}
}

func TestRecommendSemverBump(t *testing.T) {
	tests := []struct {
		name string
		diff SpecDiff
		want Bump
	}{
		{"breaking wins", SpecDiff{Breaking: []string{"a"}, NonBreaking: []string{"b"}, DocsOnly: []string{"c"}}, BumpMajor},
		{"additions", SpecDiff{NonBreaking: []string{"b"}, DocsOnly: []string{"c"}}, BumpMinor},
		{"docs only", SpecDiff{DocsOnly: []string{"c"}}, BumpPatch},
		{"nothing", SpecDiff{}, BumpNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RecommendSemverBump(tt.diff)
			if r.Bump != tt.want {
				t.Errorf("bump = %s, want %s", r.Bump, tt.want)
			}
			if r.Reason == "" {
				t.Error("reason should not be empty")
			}
		})
	}

	r := RecommendSemverBump(SpecDiff{Breaking: []string{"a", "b"}, NonBreaking: []string{"c"}})
	want := SemverRecommendation{Bump: BumpMajor, Reason: "2 breaking changes", BreakingCount: 2, NonBreakingCount: 1}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("recommendation mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculateNextVersion(t *testing.T) {
	tests := []struct {
		version string
		bump    Bump
		want    string
	}{
		{"1.2.3", BumpMajor, "2.0.0"},
		{"1.2.3", BumpMinor, "1.3.0"},
		{"1.2.3", BumpPatch, "1.2.4"},
		{"1.2.3", BumpNone, "1.2.3"},
		{"v1.2.3", BumpMinor, "v1.3.0"},
		{"1.2.3-beta.1", BumpPatch, "1.2.4"},
		{"not-a-version", BumpMajor, "not-a-version"},
		{"1.2", BumpMajor, "1.2"},
	}
	for _, tt := range tests {
		if got := CalculateNextVersion(tt.version, tt.bump); got != tt.want {
			t.Errorf("CalculateNextVersion(%q, %s) = %q, want %q", tt.version, tt.bump, got, tt.want)
		}
	}
}
