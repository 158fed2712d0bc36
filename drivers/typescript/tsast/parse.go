// Package tsast parses TypeScript sources with tree-sitter and provides
// helpers for walking the resulting syntax trees.
package tsast

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// File is a parsed source file. Nodes stay valid until Close.
type File struct {
	Path   string
	Source []byte
	Root   *sitter.Node

	tree *sitter.Tree
}

// Parse parses src. A new parser is created per call so Parse is safe for
// concurrent use. Syntax errors do not fail the parse; check HasError.
func Parse(ctx context.Context, path string, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if strings.HasSuffix(path, ".tsx") || strings.HasSuffix(path, ".jsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, fmt.Errorf("parsing %s: empty syntax tree", path)
	}

	return &File{Path: path, Source: src, Root: root, tree: tree}, nil
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// HasError reports whether the tree contains syntax errors.
func (f *File) HasError() bool {
	return f.Root.HasError()
}

// FirstError returns the first ERROR or missing node, or nil.
func (f *File) FirstError() *sitter.Node {
	var found *sitter.Node
	Walk(f.Root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	return found
}

// Text returns the source text of n.
func (f *File) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.Source)
}

// Line returns the 1-based line on which n starts.
func (f *File) Line(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPoint().Row) + 1
}

// IsDeclarationFile reports whether path names a .d.ts style file.
func IsDeclarationFile(path string) bool {
	for _, ext := range []string{".d.ts", ".d.mts", ".d.cts"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
