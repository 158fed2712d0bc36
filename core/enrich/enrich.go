// Package enrich attaches documentation metadata to a spec: a per-export
// coverage score with the missing signals, and drift between the JSDoc and
// the declared API.
package enrich

import (
	"math"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/pkg/jsdoc"
)

// Spec enriches every export of s in place and sets the spec-level summary.
// The spec coverage score is the mean of the export scores.
func Spec(s *spec.Spec) {
	if s == nil {
		return
	}
	var total float64
	drift := 0
	for i := range s.Exports {
		e := &s.Exports[i]
		e.Docs = Export(e)
		total += e.Docs.CoverageScore
		drift += len(e.Docs.Drift)
	}
	summary := &spec.SpecDocs{DriftCount: drift}
	if len(s.Exports) > 0 {
		summary.CoverageScore = math.Round(total / float64(len(s.Exports)))
	}
	s.Docs = summary
}

// Export computes the documentation metadata of one export.
func Export(e *spec.Export) *spec.DocsMetadata {
	doc := jsdoc.Parse(e.RawComments)
	score, missing := coverage(e)
	return &spec.DocsMetadata{
		CoverageScore: score,
		Missing:       missing,
		Drift:         detectDrift(e, doc),
	}
}

// coverage scores the applicable signals. Parameter and return signals only
// apply to callable exports.
func coverage(e *spec.Export) (float64, []string) {
	applicable, satisfied := 0, 0
	var missing []string
	check := func(signal string, ok bool) {
		applicable++
		if ok {
			satisfied++
			return
		}
		missing = append(missing, signal)
	}

	check(spec.SignalDescription, e.Description != "")
	if e.IsCallable() {
		if hasParams(e) {
			check(spec.SignalParams, paramsDocumented(e))
		}
		if returnsValue(e) {
			check(spec.SignalReturns, returnsDocumented(e))
		}
	}
	check(spec.SignalExamples, len(e.Examples) > 0)

	return math.Round(100 * float64(satisfied) / float64(applicable)), missing
}

func hasParams(e *spec.Export) bool {
	for _, sig := range e.Signatures {
		if len(sig.Parameters) > 0 {
			return true
		}
	}
	return false
}

func paramsDocumented(e *spec.Export) bool {
	for _, sig := range e.Signatures {
		for _, p := range sig.Parameters {
			if p.Description == "" {
				return false
			}
		}
	}
	return true
}

func returnsValue(e *spec.Export) bool {
	for _, sig := range e.Signatures {
		if sig.Returns != nil && !isVoid(sig.Returns.Schema) {
			return true
		}
	}
	return false
}

func returnsDocumented(e *spec.Export) bool {
	for _, sig := range e.Signatures {
		if sig.Returns != nil && !isVoid(sig.Returns.Schema) && sig.Returns.Description == "" {
			return false
		}
	}
	return true
}

func isVoid(s *spec.Schema) bool {
	if s == nil {
		return true
	}
	switch s.Type {
	case "void", "never", "undefined":
		return true
	}
	if s.TSType == "Promise" && len(s.TypeArguments) == 1 {
		return isVoid(s.TypeArguments[0])
	}
	return false
}
