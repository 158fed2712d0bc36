package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/pkg/jsdoc"
)

// Drift types.
const (
	DriftParamMismatch       = "param-mismatch"
	DriftParamTypeMismatch   = "param-type-mismatch"
	DriftReturnTypeMismatch  = "return-type-mismatch"
	DriftDeprecatedMismatch  = "deprecated-mismatch"
	DriftAsyncMismatch       = "async-mismatch"
	DriftOptionalityMismatch = "optionality-mismatch"
)

// minSuggestionSimilarity is the lowest name similarity offered as a rename.
const minSuggestionSimilarity = 0.5

var deprecatedWord = regexp.MustCompile(`(?i)\bdeprecated\b`)

func detectDrift(e *spec.Export, doc jsdoc.Comment) []spec.Drift {
	var out []spec.Drift
	if e.IsCallable() {
		out = append(out, paramDrift(e, doc)...)
		out = append(out, returnDrift(e, doc)...)
	}
	if !e.Deprecated && deprecatedWord.MatchString(e.Description) {
		out = append(out, spec.Drift{
			Type:       DriftDeprecatedMismatch,
			Issue:      "description mentions deprecation but there is no @deprecated tag",
			Suggestion: "add a @deprecated tag",
		})
	}
	return out
}

// paramDrift compares @param tags against the parameters of every
// signature. A tag matches if any signature has a parameter of that name.
func paramDrift(e *spec.Export, doc jsdoc.Comment) []spec.Drift {
	params := make(map[string]spec.Parameter)
	var names []string
	destructured := false
	for _, sig := range e.Signatures {
		for _, p := range sig.Parameters {
			if strings.HasPrefix(p.Name, "__") {
				destructured = true
				continue
			}
			if _, ok := params[p.Name]; !ok {
				params[p.Name] = p
				names = append(names, p.Name)
			}
		}
	}

	var out []spec.Drift
	for _, tag := range doc.Params() {
		p, ok := params[tag.ParamName]
		if !ok {
			// Destructured parameters have no source name to match.
			if destructured {
				continue
			}
			d := spec.Drift{
				Type:   DriftParamMismatch,
				Target: tag.ParamName,
				Issue:  fmt.Sprintf("@param %s does not match any parameter", tag.ParamName),
			}
			if best := closestName(tag.ParamName, names); best != "" {
				d.Suggestion = fmt.Sprintf("rename to %s", best)
			}
			out = append(out, d)
			continue
		}
		if tag.Optional && p.Required {
			out = append(out, spec.Drift{
				Type:       DriftOptionalityMismatch,
				Target:     p.Name,
				Issue:      fmt.Sprintf("@param marks %s optional but the parameter is required", p.Name),
				Suggestion: fmt.Sprintf("write @param %s without brackets", p.Name),
			})
		}
		if declared := primitiveName(p.Schema); declared != "" && tag.Type != "" {
			if documented := normalizeDocType(tag.Type); isPrimitive(documented) && documented != declared {
				out = append(out, spec.Drift{
					Type:       DriftParamTypeMismatch,
					Target:     p.Name,
					Issue:      fmt.Sprintf("@param %s is documented as %s but declared as %s", p.Name, documented, declared),
					Suggestion: fmt.Sprintf("change the documented type to {%s}", declared),
				})
			}
		}
	}
	return out
}

func returnDrift(e *spec.Export, doc jsdoc.Comment) []spec.Drift {
	var returns *spec.Schema
	if len(e.Signatures) > 0 && e.Signatures[0].Returns != nil {
		returns = e.Signatures[0].Returns.Schema
	}
	isPromise := returns != nil && returns.TSType == "Promise"
	async, _ := e.Flags["async"].(bool)

	var out []spec.Drift
	if doc.HasTag("async") && !async && !isPromise {
		out = append(out, spec.Drift{
			Type:       DriftAsyncMismatch,
			Issue:      "documented with @async but the function does not return a Promise",
			Suggestion: "remove the @async tag",
		})
	}

	tag, ok := doc.Returns()
	if !ok || tag.Type == "" || returns == nil {
		return out
	}
	documented := normalizeDocType(tag.Type)
	docPromise := strings.HasPrefix(documented, "promise<")
	if isPromise != docPromise {
		issue := "@returns documents a Promise but the function returns synchronously"
		if isPromise {
			issue = "the function returns a Promise but @returns documents a plain value"
		}
		return append(out, spec.Drift{Type: DriftAsyncMismatch, Issue: issue})
	}

	declaredSchema := returns
	if isPromise && len(returns.TypeArguments) == 1 {
		declaredSchema = returns.TypeArguments[0]
		documented = strings.TrimSuffix(strings.TrimPrefix(documented, "promise<"), ">")
	}
	declared := primitiveName(declaredSchema)
	if declared != "" && isPrimitive(documented) && documented != declared {
		out = append(out, spec.Drift{
			Type:       DriftReturnTypeMismatch,
			Issue:      fmt.Sprintf("@returns is documented as %s but declared as %s", documented, declared),
			Suggestion: fmt.Sprintf("change the documented type to {%s}", declared),
		})
	}
	return out
}

var primitives = map[string]bool{
	"string": true, "number": true, "boolean": true, "bigint": true,
	"symbol": true, "void": true, "undefined": true, "null": true,
	"object": true, "any": true, "unknown": true, "never": true,
}

func isPrimitive(name string) bool {
	return primitives[name]
}

// primitiveName returns the bare primitive a schema encodes, or "".
func primitiveName(s *spec.Schema) string {
	if s == nil || s.Type == "" || s.Ref != "" || len(s.Enum) > 0 || len(s.AnyOf) > 0 {
		return ""
	}
	if !isPrimitive(s.Type) {
		return ""
	}
	return s.Type
}

// normalizeDocType lowercases the boxed JSDoc spellings (String, Number).
func normalizeDocType(t string) string {
	t = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(t), " ", ""))
	if t == "bool" {
		return "boolean"
	}
	return t
}

// closestName returns the candidate most similar to name, if any is
// similar enough to suggest.
func closestName(name string, candidates []string) string {
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := levenshtein.Similarity(strings.ToLower(name), strings.ToLower(c), nil)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < minSuggestionSimilarity {
		return ""
	}
	return best
}
