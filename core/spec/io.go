package spec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Load reads and decodes a spec JSON file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing spec %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes spec JSON. Missing exports decode as an empty list.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Exports == nil {
		s.Exports = []Export{}
	}
	return &s, nil
}

// Write encodes s as indented JSON.
func Write(w io.Writer, s *Spec) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}

// Save writes s to path as indented JSON.
func Save(path string, s *Spec) error {
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return fmt.Errorf("encoding spec: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing spec %s: %w", path, err)
	}
	return nil
}

// Canonical returns the JSON encoding of v with object keys deep-sorted, so
// two values that differ only in field order encode identically.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	generic, err := decodeGeneric(raw)
	if err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

// CanonicalValue decodes v into plain maps, slices and json.Number values.
func CanonicalValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(raw)
}

// MarshalCanonical encodes a value produced by CanonicalValue.
func MarshalCanonical(v any) ([]byte, error) {
	return marshalSorted(v)
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// marshalSorted relies on encoding/json writing map keys in sorted order.
func marshalSorted(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Hash returns the hex sha256 of the canonical encoding of s with its
// generation metadata removed, so regenerating an unchanged package yields
// the same hash.
func Hash(s *Spec) (string, error) {
	clone := *s
	clone.Generation = nil
	data, err := Canonical(clone)
	if err != nil {
		return "", fmt.Errorf("canonicalizing spec: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ExportByID returns the export with the given id.
func (s *Spec) ExportByID(id string) (*Export, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Exports {
		if s.Exports[i].ID == id {
			return &s.Exports[i], true
		}
	}
	return nil, false
}

// TypeByID returns the type definition with the given id.
func (s *Spec) TypeByID(id string) (*TypeDefinition, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Types {
		if s.Types[i].ID == id {
			return &s.Types[i], true
		}
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
