// Package specdiff compares two OpenPkg specs: it classifies changed ids as
// breaking, non-breaking or documentation-only, diffs class members, assigns
// breaking-change severity and recommends a semver bump.
package specdiff

import (
	"bytes"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

// DocKeys are the fields whose differences count as documentation-only.
// Every other field is structural. Adding a field to the spec model without
// adding it here makes changes to it breaking.
var DocKeys = map[string]bool{
	"description": true,
	"examples":    true,
	"tags":        true,
	"rawComments": true,
	"source":      true,
	"docs":        true,
}

// SpecDiff is the comparison of two specs.
type SpecDiff struct {
	Breaking         []string `json:"breaking"`
	NonBreaking      []string `json:"nonBreaking"`
	DocsOnly         []string `json:"docsOnly"`
	CoverageDelta    float64  `json:"coverageDelta"`
	OldCoverage      float64  `json:"oldCoverage"`
	NewCoverage      float64  `json:"newCoverage"`
	NewUndocumented  []string `json:"newUndocumented"`
	ImprovedExports  []string `json:"improvedExports"`
	RegressedExports []string `json:"regressedExports"`
	DriftIntroduced  int      `json:"driftIntroduced"`
	DriftResolved    int      `json:"driftResolved"`
}

// HasChanges reports whether any id was classified.
func (d *SpecDiff) HasChanges() bool {
	return len(d.Breaking) > 0 || len(d.NonBreaking) > 0 || len(d.DocsOnly) > 0
}

// diffState accumulates classification across the exports and types
// namespaces.
type diffState struct {
	breaking    idSet
	nonBreaking idSet
	docsOnly    idSet
}

// idSet is an insertion-ordered set of ids.
type idSet struct {
	ids  []string
	seen map[string]bool
}

func (s *idSet) add(id string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.ids = append(s.ids, id)
}

func (s *idSet) has(id string) bool {
	return s.seen[id]
}

func (s *idSet) without(other ...*idSet) []string {
	out := []string{}
	for _, id := range s.ids {
		skip := false
		for _, o := range other {
			if o.has(id) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}

// item is one id-keyed entry from either namespace.
type item struct {
	id    string
	value any
}

// DiffSpec compares old and new. It never fails: nil specs compare as empty
// and absent coverage or drift metadata counts as zero.
func DiffSpec(old, new *spec.Spec) SpecDiff {
	if old == nil {
		old = &spec.Spec{}
	}
	if new == nil {
		new = &spec.Spec{}
	}

	s := &diffState{}
	s.compare(exportItems(old), exportItems(new))
	s.compare(typeItems(old), typeItems(new))

	d := SpecDiff{
		Breaking:         s.breaking.without(),
		NonBreaking:      s.nonBreaking.without(&s.breaking),
		DocsOnly:         s.docsOnly.without(&s.breaking, &s.nonBreaking),
		NewUndocumented:  []string{},
		ImprovedExports:  []string{},
		RegressedExports: []string{},
	}

	d.OldCoverage = specCoverage(old)
	d.NewCoverage = specCoverage(new)
	d.CoverageDelta = d.NewCoverage - d.OldCoverage

	oldExports := make(map[string]*spec.Export, len(old.Exports))
	for i := range old.Exports {
		oldExports[old.Exports[i].ID] = &old.Exports[i]
	}
	for i := range new.Exports {
		ne := &new.Exports[i]
		oe, ok := oldExports[ne.ID]
		if !ok {
			if ne.Docs != nil && len(ne.Docs.Missing) > 0 {
				d.NewUndocumented = append(d.NewUndocumented, ne.ID)
			}
			continue
		}

		oldDrift, newDrift := driftCount(oe), driftCount(ne)
		if newDrift > oldDrift {
			d.DriftIntroduced += newDrift - oldDrift
		} else {
			d.DriftResolved += oldDrift - newDrift
		}

		delta := exportCoverage(ne) - exportCoverage(oe)
		switch {
		case delta > 0:
			d.ImprovedExports = append(d.ImprovedExports, ne.ID)
		case delta < 0:
			d.RegressedExports = append(d.RegressedExports, ne.ID)
		}
	}

	return d
}

// compare classifies one namespace. Removals and changes follow old order,
// additions follow new order.
func (s *diffState) compare(old, new []item) {
	newByID := make(map[string]any, len(new))
	for _, it := range new {
		newByID[it.id] = it.value
	}
	oldIDs := make(map[string]bool, len(old))

	for _, it := range old {
		oldIDs[it.id] = true
		nv, ok := newByID[it.id]
		if !ok {
			s.breaking.add(it.id)
			continue
		}
		switch classify(it.value, nv) {
		case changeStructural:
			s.breaking.add(it.id)
		case changeDocsOnly:
			s.docsOnly.add(it.id)
		}
	}

	for _, it := range new {
		if !oldIDs[it.id] {
			s.nonBreaking.add(it.id)
		}
	}
}

type changeClass int

const (
	changeNone changeClass = iota
	changeDocsOnly
	changeStructural
)

// classify compares the full normalized forms first, then the forms with
// documentation keys stripped.
func classify(old, new any) changeClass {
	oldVal, oldErr := spec.CanonicalValue(old)
	newVal, newErr := spec.CanonicalValue(new)
	if oldErr != nil || newErr != nil {
		return changeStructural
	}

	if equalCanonical(oldVal, newVal) {
		return changeNone
	}
	if equalCanonical(StripDocKeys(oldVal), StripDocKeys(newVal)) {
		return changeDocsOnly
	}
	return changeStructural
}

func equalCanonical(a, b any) bool {
	ab, errA := spec.MarshalCanonical(a)
	bb, errB := spec.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// StripDocKeys returns a copy of a canonical value with every DocKeys field
// removed at any depth. Property names inside a schema "properties" map are
// data, not fields, and are never stripped.
func StripDocKeys(v any) any {
	return stripValue(v, false)
}

func stripValue(v any, isPropertyMap bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if !isPropertyMap && DocKeys[k] {
				continue
			}
			out[k] = stripValue(child, !isPropertyMap && k == "properties")
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = stripValue(child, false)
		}
		return out
	default:
		return v
	}
}

func exportItems(s *spec.Spec) []item {
	items := make([]item, 0, len(s.Exports))
	for i := range s.Exports {
		items = append(items, item{id: s.Exports[i].ID, value: s.Exports[i]})
	}
	return items
}

func typeItems(s *spec.Spec) []item {
	items := make([]item, 0, len(s.Types))
	for i := range s.Types {
		items = append(items, item{id: s.Types[i].ID, value: s.Types[i]})
	}
	return items
}

func specCoverage(s *spec.Spec) float64 {
	if s.Docs == nil {
		return 0
	}
	return s.Docs.CoverageScore
}

func exportCoverage(e *spec.Export) float64 {
	if e.Docs == nil {
		return 0
	}
	return e.Docs.CoverageScore
}

func driftCount(e *spec.Export) int {
	if e.Docs == nil {
		return 0
	}
	return len(e.Docs.Drift)
}
