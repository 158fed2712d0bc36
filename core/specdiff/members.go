package specdiff

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

const (
	// MinReplacementScore is the minimum score for a member to be suggested
	// as the replacement of a removed one.
	MinReplacementScore = 0.5

	suffixMatchWeight = 0.5
	wordOverlapWeight = 0.3
	editWeight        = 0.2
)

// MemberChangeType classifies a member-level change.
type MemberChangeType string

const (
	MemberAdded            MemberChangeType = "added"
	MemberRemoved          MemberChangeType = "removed"
	MemberSignatureChanged MemberChangeType = "signature-changed"
)

// MemberChange is one added, removed or changed member of a class or
// interface.
type MemberChange struct {
	ClassName    string           `json:"className"`
	MemberName   string           `json:"memberName"`
	MemberKind   spec.MemberKind  `json:"memberKind"`
	ChangeType   MemberChangeType `json:"changeType"`
	OldSignature string           `json:"oldSignature,omitempty"`
	NewSignature string           `json:"newSignature,omitempty"`
	Suggestion   string           `json:"suggestion,omitempty"`
}

type memberKey struct {
	class  string
	member string
	change MemberChangeType
}

// DiffMembers compares the members of every named class or interface present
// in both specs.
func DiffMembers(old, new *spec.Spec, changedClassNames []string) []MemberChange {
	var changes []MemberChange
	seen := make(map[memberKey]bool)
	emit := func(c MemberChange) {
		k := memberKey{class: c.ClassName, member: c.MemberName, change: c.ChangeType}
		if seen[k] {
			return
		}
		seen[k] = true
		changes = append(changes, c)
	}

	for _, name := range changedClassNames {
		oldMembers, ok := findMembers(old, name)
		if !ok {
			continue
		}
		newMembers, ok := findMembers(new, name)
		if !ok {
			continue
		}
		diffClassMembers(name, oldMembers, newMembers, emit)
	}
	return changes
}

func diffClassMembers(class string, oldMembers, newMembers []spec.Member, emit func(MemberChange)) {
	oldByName := indexMembers(oldMembers)
	newByName := indexMembers(newMembers)

	var added []*spec.Member
	for i := range newMembers {
		m := &newMembers[i]
		if _, ok := oldByName[m.Name]; !ok {
			added = append(added, m)
		}
	}

	for i := range oldMembers {
		om := &oldMembers[i]
		nm, ok := newByName[om.Name]
		if !ok {
			emit(MemberChange{
				ClassName:    class,
				MemberName:   om.Name,
				MemberKind:   om.Kind,
				ChangeType:   MemberRemoved,
				OldSignature: memberSignature(om),
				Suggestion:   suggestReplacement(om, added, newMembers),
			})
			continue
		}
		if signatureChanged(om, nm) {
			emit(MemberChange{
				ClassName:    class,
				MemberName:   om.Name,
				MemberKind:   nm.Kind,
				ChangeType:   MemberSignatureChanged,
				OldSignature: memberSignature(om),
				NewSignature: memberSignature(nm),
			})
		}
	}

	for _, m := range added {
		emit(MemberChange{
			ClassName:    class,
			MemberName:   m.Name,
			MemberKind:   m.Kind,
			ChangeType:   MemberAdded,
			NewSignature: memberSignature(m),
		})
	}
}

// findMembers looks the class up among exports first, then types.
func findMembers(s *spec.Spec, name string) ([]spec.Member, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Exports {
		if s.Exports[i].ID == name || s.Exports[i].Name == name {
			return s.Exports[i].Members, true
		}
	}
	for i := range s.Types {
		if s.Types[i].ID == name || s.Types[i].Name == name {
			return s.Types[i].Members, true
		}
	}
	return nil, false
}

// indexMembers keys members by name; the first declaration wins.
func indexMembers(members []spec.Member) map[string]*spec.Member {
	m := make(map[string]*spec.Member, len(members))
	for i := range members {
		if _, ok := m[members[i].Name]; !ok {
			m[members[i].Name] = &members[i]
		}
	}
	return m
}

// signatureChanged compares parameter count, each parameter's name,
// required flag and schema, and the return schema of every signature, plus
// the schema of properties.
func signatureChanged(old, new *spec.Member) bool {
	if len(old.Signatures) != len(new.Signatures) {
		return true
	}
	for i := range old.Signatures {
		os, ns := old.Signatures[i], new.Signatures[i]
		if len(os.Parameters) != len(ns.Parameters) {
			return true
		}
		for j := range os.Parameters {
			op, np := os.Parameters[j], ns.Parameters[j]
			if op.Name != np.Name || op.Required != np.Required {
				return true
			}
			if schemaString(op.Schema) != schemaString(np.Schema) {
				return true
			}
		}
		if schemaString(returnSchema(os)) != schemaString(returnSchema(ns)) {
			return true
		}
	}
	return schemaString(old.Schema) != schemaString(new.Schema)
}

func returnSchema(sig spec.Signature) *spec.Schema {
	if sig.Returns == nil {
		return nil
	}
	return sig.Returns.Schema
}

func schemaString(s *spec.Schema) string {
	if s == nil {
		return ""
	}
	data, err := spec.Canonical(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// memberSignature renders a short human-readable signature.
func memberSignature(m *spec.Member) string {
	if len(m.Signatures) == 0 {
		if m.Schema == nil {
			return m.Name
		}
		return m.Name + ": " + schemaLabel(m.Schema)
	}
	sig := m.Signatures[0]
	params := make([]string, 0, len(sig.Parameters))
	for _, p := range sig.Parameters {
		name := p.Name
		if p.Rest {
			name = "..." + name
		}
		if !p.Required && !p.Rest {
			name += "?"
		}
		params = append(params, name+": "+schemaLabel(p.Schema))
	}
	out := fmt.Sprintf("%s(%s)", m.Name, strings.Join(params, ", "))
	if r := returnSchema(sig); r != nil {
		out += ": " + schemaLabel(r)
	}
	return out
}

// schemaLabel renders a schema compactly for display.
func schemaLabel(s *spec.Schema) string {
	switch {
	case s == nil:
		return "unknown"
	case s.RefName() != "":
		return s.RefName()
	case s.TSType != "":
		return s.TSType
	case s.Type == "array" && s.Items != nil:
		return schemaLabel(s.Items) + "[]"
	case len(s.AnyOf) > 0:
		parts := make([]string, len(s.AnyOf))
		for i, c := range s.AnyOf {
			parts[i] = schemaLabel(c)
		}
		return strings.Join(parts, " | ")
	case s.Type != "":
		return s.Type
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "unknown"
	}
	return string(data)
}

// suggestReplacement picks the best-scoring added member, falling back to
// any current member.
func suggestReplacement(removed *spec.Member, added []*spec.Member, current []spec.Member) string {
	best, score := bestCandidate(removed.Name, added)
	if score < MinReplacementScore {
		all := make([]*spec.Member, 0, len(current))
		for i := range current {
			all = append(all, &current[i])
		}
		best, score = bestCandidate(removed.Name, all)
	}
	if best == nil || score < MinReplacementScore {
		return ""
	}
	if best.Kind == spec.MemberMethod {
		return fmt.Sprintf("Use %s() instead", best.Name)
	}
	return fmt.Sprintf("Use %s instead", best.Name)
}

func bestCandidate(name string, candidates []*spec.Member) (*spec.Member, float64) {
	var best *spec.Member
	bestScore := 0.0
	for _, c := range candidates {
		if c.Name == name || c.Kind == spec.MemberConstructor {
			continue
		}
		score := ReplacementScore(name, c.Name)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}

// ReplacementScore rates how likely newName replaces oldName: a heavy bonus
// when the final camelCase words match, the ratio of shared words, and the
// normalized edit similarity of the lowercase names.
func ReplacementScore(oldName, newName string) float64 {
	oldWords := splitWords(oldName)
	newWords := splitWords(newName)

	score := 0.0
	if len(oldWords) > 0 && len(newWords) > 0 && oldWords[len(oldWords)-1] == newWords[len(newWords)-1] {
		score += suffixMatchWeight
	}
	score += wordOverlapWeight * wordOverlap(oldWords, newWords)
	score += editWeight * nameSimilarity(strings.ToLower(oldName), strings.ToLower(newName))
	return score
}

// splitWords splits a camelCase, PascalCase or snake_case identifier into
// lowercase words.
func splitWords(name string) []string {
	var words []string
	var cur []rune
	runes := []rune(name)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '$' || r == '#':
			flush()
		case unicode.IsUpper(r):
			// Break before an upper-case rune unless it continues an acronym.
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if len(cur) > 0 && (!unicode.IsUpper(cur[len(cur)-1]) || nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// wordOverlap is the share of the larger word set found in both.
func wordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	shared := 0
	for _, w := range a {
		if set[w] {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}

// nameSimilarity returns the normalized Levenshtein similarity between two
// strings, in [0.0, 1.0].
func nameSimilarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}
