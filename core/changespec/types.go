// Package changespec describes the breaking changes between two published
// versions of a package in the form consumers fix them: one entry per
// removed export, changed signature or changed class member.
package changespec

import (
	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/core/specdiff"
)

// ChangeKind represents the type of breaking API change.
type ChangeKind string

const (
	ChangeKindRemoved          ChangeKind = "removed"
	ChangeKindSignatureChanged ChangeKind = "signature_changed"
	ChangeKindTypeChanged      ChangeKind = "type_changed"
	ChangeKindMemberRemoved    ChangeKind = "member_removed"
	ChangeKindMemberChanged    ChangeKind = "member_changed"
)

// Change represents a single breaking API change between two versions.
type Change struct {
	Kind         ChangeKind        `json:"kind"`
	Symbol       string            `json:"symbol"`
	SymbolKind   spec.ExportKind   `json:"symbol_kind"`
	Member       string            `json:"member,omitempty"`
	Severity     specdiff.Severity `json:"severity"`
	Reason       string            `json:"reason"`
	OldSignature string            `json:"old_signature,omitempty"`
	NewSignature string            `json:"new_signature,omitempty"`
	Suggestion   string            `json:"suggestion,omitempty"`
}

// ChangeSpec is the full set of breaking changes between two package versions.
type ChangeSpec struct {
	Package     string        `json:"package"`
	OldVersion  string        `json:"old_version"`
	NewVersion  string        `json:"new_version"`
	Bump        specdiff.Bump `json:"bump"`
	NextVersion string        `json:"next_version,omitempty"`
	Changes     []Change      `json:"changes"`
}

// ApplyResult reports which changes were successfully applied and which failed.
type ApplyResult struct {
	Applied []Change `json:"applied"`
	Failed  []Change `json:"failed"`
}

// FromResult flattens a comparison into changes, in categorized severity
// order. A class whose members changed yields one change per removed or
// changed member instead of one for the class.
func FromResult(pkg string, r specdiff.Result) ChangeSpec {
	byClass := make(map[string][]specdiff.MemberChange)
	for _, mc := range r.MemberChanges {
		if mc.ChangeType == specdiff.MemberAdded {
			continue
		}
		byClass[mc.ClassName] = append(byClass[mc.ClassName], mc)
	}

	cs := ChangeSpec{
		Package:     pkg,
		OldVersion:  r.OldVersion,
		NewVersion:  r.NewVersion,
		Bump:        r.Recommendation.Bump,
		NextVersion: r.NextVersion,
		Changes:     []Change{},
	}
	for _, b := range r.Breaking {
		base := Change{
			Symbol:     b.Name,
			SymbolKind: b.Kind,
			Severity:   b.Severity,
			Reason:     b.Reason,
		}
		switch {
		case b.Reason == specdiff.ReasonRemoved:
			base.Kind = ChangeKindRemoved
			cs.Changes = append(cs.Changes, base)
		case b.Kind == spec.KindClass && len(byClass[b.Name]) > 0:
			for _, mc := range byClass[b.Name] {
				c := base
				c.Member = mc.MemberName
				c.Kind = ChangeKindMemberChanged
				if mc.ChangeType == specdiff.MemberRemoved {
					c.Kind = ChangeKindMemberRemoved
				}
				c.OldSignature = mc.OldSignature
				c.NewSignature = mc.NewSignature
				c.Suggestion = mc.Suggestion
				cs.Changes = append(cs.Changes, c)
			}
		case b.Kind == spec.KindFunction:
			base.Kind = ChangeKindSignatureChanged
			cs.Changes = append(cs.Changes, base)
		default:
			base.Kind = ChangeKindTypeChanged
			cs.Changes = append(cs.Changes, base)
		}
	}
	return cs
}
