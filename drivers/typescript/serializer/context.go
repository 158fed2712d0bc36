// Package serializer turns bound TypeScript declarations into OpenPkg
// export entries and type definitions.
package serializer

import (
	"io"
	"log/slog"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
)

// Context carries the per-extraction state threaded through every
// serializer call. It is not safe for concurrent use.
type Context struct {
	Program  *program.Program
	Checker  *program.Checker
	Registry *TypeRegistry
	Logger   *slog.Logger

	Diagnostics []spec.Diagnostic

	typeParams [][]string
	// targets remembers which symbol a referenced name resolved to, so the
	// closure pass can serialize non-exported local types.
	targets map[string]*program.Symbol
}

// NewContext returns a context with an empty registry.
func NewContext(p *program.Program, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		Program:  p,
		Checker:  p.Checker(),
		Registry: NewTypeRegistry(),
		Logger:   logger,
		targets:  make(map[string]*program.Symbol),
	}
}

// ReferenceTarget returns the symbol a referenced type name resolved to
// during serialization, if any.
func (c *Context) ReferenceTarget(name string) *program.Symbol {
	return c.targets[name]
}

// Warn records a warning diagnostic.
func (c *Context) Warn(code, message string, file *program.SourceFile, line int) {
	d := spec.Diagnostic{Severity: spec.SeverityWarning, Code: code, Message: message, Line: line}
	if file != nil {
		d.File = c.Program.RelPath(file.Path)
	}
	c.Diagnostics = append(c.Diagnostics, d)
	c.Logger.Warn(message, "code", code, "file", d.File, "line", line)
}

func (c *Context) pushTypeParams(names []string) func() {
	c.typeParams = append(c.typeParams, names)
	return func() { c.typeParams = c.typeParams[:len(c.typeParams)-1] }
}

func (c *Context) isTypeParam(name string) bool {
	for i := len(c.typeParams) - 1; i >= 0; i-- {
		for _, n := range c.typeParams[i] {
			if n == name {
				return true
			}
		}
	}
	return false
}

// source returns the location of decl relative to the base directory.
func (c *Context) source(decl *program.Declaration) *spec.Source {
	f := decl.File()
	if f == nil || decl.Node == nil {
		return nil
	}
	return &spec.Source{File: c.Program.RelPath(f.Path), Line: f.Line(decl.Node)}
}
