package specdiff

import (
	"testing"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

func TestCompare(t *testing.T) {
	old := buildSpec(fn("keep"), fn("drop"), class("Client", method("connect"), method("close")))
	new := buildSpec(fn("keep"), fn("added"), class("Client", method("connect")))
	new.Meta.Version = "1.1.0"

	r := Compare(old, new)

	if r.OldVersion != "1.0.0" || r.NewVersion != "1.1.0" {
		t.Errorf("versions = %q -> %q", r.OldVersion, r.NewVersion)
	}
	if r.Recommendation.Bump != BumpMajor {
		t.Errorf("bump = %s, want major", r.Recommendation.Bump)
	}
	if r.NextVersion != "2.0.0" {
		t.Errorf("next version = %q, want 2.0.0", r.NextVersion)
	}
	if len(r.MemberChanges) != 1 || r.MemberChanges[0].MemberName != "close" || r.MemberChanges[0].ChangeType != MemberRemoved {
		t.Errorf("member changes = %+v, want close removed", r.MemberChanges)
	}
	if len(r.Breaking) != 2 {
		t.Fatalf("categorized = %+v, want 2 entries", r.Breaking)
	}
	for _, c := range r.Breaking {
		if c.Severity != SeverityHigh {
			t.Errorf("%s severity = %s, want high", c.ID, c.Severity)
		}
	}
}

func TestCompare_NoChanges(t *testing.T) {
	r := Compare(buildSpec(fn("a")), buildSpec(fn("a")))
	if r.Recommendation.Bump != BumpNone || r.NextVersion != "1.0.0" {
		t.Errorf("got %s -> %q, want none -> 1.0.0", r.Recommendation.Bump, r.NextVersion)
	}
	if r.MemberChanges == nil {
		t.Error("member changes should be empty, not nil")
	}

	if r := Compare(nil, nil); r.Diff.HasChanges() || r.NextVersion != "" {
		t.Errorf("nil specs = %+v", r)
	}
}

func TestCompare_UnexportedClassKeptInTypes(t *testing.T) {
	widget := spec.TypeDefinition{ID: "Widget", Name: "Widget", Kind: spec.KindClass, Members: []spec.Member{method("render")}}
	old := buildSpec(class("Widget", method("render")), fn("make"))
	old.Types = []spec.TypeDefinition{widget}
	new := buildSpec(fn("make"))
	new.Types = []spec.TypeDefinition{widget}

	r := Compare(old, new)
	if len(r.Breaking) != 1 {
		t.Fatalf("categorized = %+v, want Widget only", r.Breaking)
	}
	if c := r.Breaking[0]; c.ID != "Widget" || c.Severity != SeverityHigh || c.Reason != ReasonRemoved {
		t.Errorf("Widget = %s/%q, want high/%q", c.Severity, c.Reason, ReasonRemoved)
	}
	if len(r.MemberChanges) != 0 {
		t.Errorf("member changes = %+v, want none for a removed class", r.MemberChanges)
	}
}
