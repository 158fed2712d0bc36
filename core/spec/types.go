// Package spec defines the OpenPkg document: the wire format shared by the
// extractor, the differ and every downstream renderer.
package spec

import "encoding/json"

const (
	// SchemaVersion is the OpenPkg schema version emitted by this module.
	SchemaVersion = "0.2.0"

	// SchemaURL is the $schema value written into every spec.
	SchemaURL = "https://unpkg.com/@openpkg-ts/spec/schemas/v0.2.0/openpkg.schema.json"

	// TypeRefPrefix prefixes every $ref that points into the spec's types.
	TypeRefPrefix = "#/types/"
)

// ExportKind classifies a publicly visible declaration.
type ExportKind string

const (
	KindFunction  ExportKind = "function"
	KindClass     ExportKind = "class"
	KindVariable  ExportKind = "variable"
	KindInterface ExportKind = "interface"
	KindType      ExportKind = "type"
	KindEnum      ExportKind = "enum"
	KindModule    ExportKind = "module"
	KindNamespace ExportKind = "namespace"
	KindReference ExportKind = "reference"
	KindExternal  ExportKind = "external"
)

// MemberKind classifies a member of a class, interface or enum.
type MemberKind string

const (
	MemberConstructor        MemberKind = "constructor"
	MemberProperty           MemberKind = "property"
	MemberMethod             MemberKind = "method"
	MemberAccessor           MemberKind = "accessor"
	MemberIndexSignature     MemberKind = "index-signature"
	MemberCallSignature      MemberKind = "call-signature"
	MemberConstructSignature MemberKind = "construct-signature"
	MemberEnumMember         MemberKind = "enum-member"
)

// Visibility of a class member.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// Spec is the root OpenPkg document.
type Spec struct {
	Schema     string           `json:"$schema"`
	OpenPkg    string           `json:"openpkg"`
	Meta       Meta             `json:"meta"`
	Exports    []Export         `json:"exports"`
	Types      []TypeDefinition `json:"types,omitempty"`
	Examples   []string         `json:"examples,omitempty"`
	Docs       *SpecDocs        `json:"docs,omitempty"`
	Generation *Generation      `json:"generation,omitempty"`
}

// MarshalJSON writes exports as an empty array rather than null.
func (s Spec) MarshalJSON() ([]byte, error) {
	type plain Spec
	if s.Exports == nil {
		s.Exports = []Export{}
	}
	return json.Marshal(plain(s))
}

// New returns an empty spec for the named package.
func New(meta Meta) *Spec {
	if meta.Ecosystem == "" {
		meta.Ecosystem = "js/ts"
	}
	return &Spec{
		Schema:  SchemaURL,
		OpenPkg: SchemaVersion,
		Meta:    meta,
		Exports: []Export{},
	}
}

// Meta is package metadata, usually taken from package.json.
type Meta struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	License     string `json:"license,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Ecosystem   string `json:"ecosystem"`
}

// Export is one publicly visible declaration.
type Export struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           ExportKind      `json:"kind"`
	Signatures     []Signature     `json:"signatures,omitempty"`
	TypeParameters []TypeParameter `json:"typeParameters,omitempty"`
	Members        []Member        `json:"members,omitempty"`
	Schema         *Schema         `json:"schema,omitempty"`
	Type           string          `json:"type,omitempty"`
	Extends        []string        `json:"extends,omitempty"`
	Implements     []string        `json:"implements,omitempty"`
	Description    string          `json:"description,omitempty"`
	Examples       []string        `json:"examples,omitempty"`
	Deprecated     bool            `json:"deprecated,omitempty"`
	Source         *Source         `json:"source,omitempty"`
	Flags          map[string]any  `json:"flags,omitempty"`
	Tags           []Tag           `json:"tags,omitempty"`
	RawComments    string          `json:"rawComments,omitempty"`
	Docs           *DocsMetadata   `json:"docs,omitempty"`
}

// IsCallable reports whether the export carries call signatures.
func (e *Export) IsCallable() bool {
	return len(e.Signatures) > 0
}

// TypeDefinition is a named type referenced through $ref.
type TypeDefinition struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           ExportKind      `json:"kind"`
	Schema         *Schema         `json:"schema,omitempty"`
	Type           string          `json:"type,omitempty"`
	TypeParameters []TypeParameter `json:"typeParameters,omitempty"`
	Members        []Member        `json:"members,omitempty"`
	Extends        []string        `json:"extends,omitempty"`
	Implements     []string        `json:"implements,omitempty"`
	Description    string          `json:"description,omitempty"`
	Deprecated     bool            `json:"deprecated,omitempty"`
	Source         *Source         `json:"source,omitempty"`
	Tags           []Tag           `json:"tags,omitempty"`
	RawComments    string          `json:"rawComments,omitempty"`
}

// Signature is one call signature of a function, method or constructor.
type Signature struct {
	Parameters     []Parameter     `json:"parameters"`
	Returns        *Returns        `json:"returns,omitempty"`
	TypeParameters []TypeParameter `json:"typeParameters,omitempty"`
	Description    string          `json:"description,omitempty"`
	OverloadIndex  *int            `json:"overloadIndex,omitempty"`
}

// Returns describes a signature's return value.
type Returns struct {
	Schema      *Schema `json:"schema,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Parameter is one formal parameter of a signature.
type Parameter struct {
	Name        string  `json:"name"`
	Required    bool    `json:"required"`
	Schema      *Schema `json:"schema,omitempty"`
	Description string  `json:"description,omitempty"`
	Default     string  `json:"default,omitempty"`
	Rest        bool    `json:"rest,omitempty"`
}

// TypeParameter is a generic type parameter.
type TypeParameter struct {
	Name       string  `json:"name"`
	Constraint *Schema `json:"constraint,omitempty"`
	Default    *Schema `json:"default,omitempty"`
}

// Member is a class, interface or enum member.
type Member struct {
	Name        string      `json:"name"`
	Kind        MemberKind  `json:"kind"`
	Visibility  Visibility  `json:"visibility,omitempty"`
	Static      bool        `json:"static,omitempty"`
	Readonly    bool        `json:"readonly,omitempty"`
	Abstract    bool        `json:"abstract,omitempty"`
	Optional    bool        `json:"optional,omitempty"`
	Schema      *Schema     `json:"schema,omitempty"`
	Signatures  []Signature `json:"signatures,omitempty"`
	Value       string      `json:"value,omitempty"`
	Description string      `json:"description,omitempty"`
	Deprecated  bool        `json:"deprecated,omitempty"`
	Tags        []Tag       `json:"tags,omitempty"`
}

// Source locates a declaration. Line is 1-based.
type Source struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Tag is a JSDoc block tag.
type Tag struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
}

// DocsMetadata is attached to exports by the enrichment layer.
type DocsMetadata struct {
	CoverageScore float64  `json:"coverageScore"`
	Missing       []string `json:"missing,omitempty"`
	Drift         []Drift  `json:"drift,omitempty"`
}

// Drift is one detected divergence between code and its documentation.
type Drift struct {
	Type       string `json:"type"`
	Target     string `json:"target,omitempty"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion,omitempty"`
}

// SpecDocs is the spec-level documentation summary.
type SpecDocs struct {
	CoverageScore float64 `json:"coverageScore"`
	DriftCount    int     `json:"driftCount,omitempty"`
}

// Missing documentation signals.
const (
	SignalDescription = "description"
	SignalParams      = "params"
	SignalReturns     = "returns"
	SignalExamples    = "examples"
)

// Severity of a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a recoverable problem found while building a spec.
type Diagnostic struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Generation records how and when a spec was produced.
type Generation struct {
	Timestamp   string       `json:"timestamp"`
	Generator   Generator    `json:"generator"`
	Analysis    Analysis     `json:"analysis"`
	Environment Environment  `json:"environment"`
	Issues      []Diagnostic `json:"issues,omitempty"`
}

// Generator identifies the tool that produced a spec.
type Generator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Analysis describes the extraction inputs.
type Analysis struct {
	EntryPoint            string `json:"entryPoint"`
	EntryPointSource      string `json:"entryPointSource,omitempty"`
	IsDeclarationOnly     bool   `json:"isDeclarationOnly"`
	ResolvedExternalTypes bool   `json:"resolvedExternalTypes"`
	SchemaExtraction      string `json:"schemaExtraction,omitempty"`
}

// Environment records facts about the analysed project directory.
type Environment struct {
	HasNodeModules  bool   `json:"hasNodeModules"`
	HasTsconfig     bool   `json:"hasTsconfig"`
	NodeModulesPath string `json:"nodeModulesPath,omitempty"`
}
