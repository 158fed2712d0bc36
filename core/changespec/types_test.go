package changespec

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
)

func TestFromResult(t *testing.T) {
	r := specdiff.Result{
		OldVersion: "1.0.0",
		NewVersion: "2.0.0",
		Breaking: []specdiff.CategorizedBreaking{
			{ID: "parse", Name: "parse", Kind: spec.KindFunction, Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonRemoved},
			{ID: "Client", Name: "Client", Kind: spec.KindClass, Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonMethodsRemoved},
			{ID: "format", Name: "format", Kind: spec.KindFunction, Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonSignatureChanged},
			{ID: "Options", Name: "Options", Kind: spec.KindInterface, Severity: specdiff.SeverityMedium, Reason: specdiff.ReasonTypeDefinition},
		},
		MemberChanges: []specdiff.MemberChange{
			{ClassName: "Client", MemberName: "close", MemberKind: spec.MemberMethod, ChangeType: specdiff.MemberRemoved, OldSignature: "close(): void", Suggestion: "Use shutdown() instead"},
			{ClassName: "Client", MemberName: "shutdown", MemberKind: spec.MemberMethod, ChangeType: specdiff.MemberAdded},
			{ClassName: "Client", MemberName: "send", MemberKind: spec.MemberMethod, ChangeType: specdiff.MemberSignatureChanged, OldSignature: "send(a: string): void", NewSignature: "send(a: Buffer): void"},
		},
		Recommendation: specdiff.SemverRecommendation{Bump: specdiff.BumpMajor},
		NextVersion:    "2.0.0",
	}

	got := FromResult("kit", r)
	want := ChangeSpec{
		Package:     "kit",
		OldVersion:  "1.0.0",
		NewVersion:  "2.0.0",
		Bump:        specdiff.BumpMajor,
		NextVersion: "2.0.0",
		Changes: []Change{
			{Kind: ChangeKindRemoved, Symbol: "parse", SymbolKind: spec.KindFunction, Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonRemoved},
			{
				Kind: ChangeKindMemberRemoved, Symbol: "Client", SymbolKind: spec.KindClass, Member: "close",
				Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonMethodsRemoved,
				OldSignature: "close(): void", Suggestion: "Use shutdown() instead",
			},
			{
				Kind: ChangeKindMemberChanged, Symbol: "Client", SymbolKind: spec.KindClass, Member: "send",
				Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonMethodsRemoved,
				OldSignature: "send(a: string): void", NewSignature: "send(a: Buffer): void",
			},
			{Kind: ChangeKindSignatureChanged, Symbol: "format", SymbolKind: spec.KindFunction, Severity: specdiff.SeverityHigh, Reason: specdiff.ReasonSignatureChanged},
			{Kind: ChangeKindTypeChanged, Symbol: "Options", SymbolKind: spec.KindInterface, Severity: specdiff.SeverityMedium, Reason: specdiff.ReasonTypeDefinition},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromResult mismatch (-want +got):\n%s", diff)
	}
}

func TestFromResult_NoChanges(t *testing.T) {
	got := FromResult("kit", specdiff.Result{})
	if got.Changes == nil || len(got.Changes) != 0 {
		t.Errorf("changes = %#v, want empty slice", got.Changes)
	}
}
