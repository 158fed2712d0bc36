package typescript

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/program"
	"github.com/ryanwaits/openpkg-sub004/drivers/typescript/tsast"
)

var sourceExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".mts": true, ".cts": true,
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
}

// FindAffectedFiles returns the source files under repoPath that import pkg
// or one of its subpaths, in lexical order. node_modules and dot
// directories are skipped.
func (d *Driver) FindAffectedFiles(ctx context.Context, pkg, repoPath string) ([]string, error) {
	if !d.fs.IsDirectory(repoPath) {
		return nil, fmt.Errorf("repo path is not a directory: %s", repoPath)
	}
	var out []string
	if err := d.scanDir(ctx, pkg, repoPath, &out); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (d *Driver) scanDir(ctx context.Context, pkg, dir string, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names, err := d.fs.ReadDir(dir)
	if err != nil {
		d.logger.Debug("skipping unreadable directory", "dir", dir, "err", err)
		return nil
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if d.fs.IsDirectory(path) {
			if name == "node_modules" || strings.HasPrefix(name, ".") {
				continue
			}
			if err := d.scanDir(ctx, pkg, path, out); err != nil {
				return err
			}
			continue
		}
		if !sourceExtensions[filepath.Ext(name)] || tsast.IsDeclarationFile(name) {
			continue
		}
		ok, err := d.imports(ctx, path, pkg)
		if err != nil {
			return err
		}
		if ok {
			*out = append(*out, path)
		}
	}
	return nil
}

func (d *Driver) imports(ctx context.Context, path, pkg string) (bool, error) {
	src, err := d.fs.ReadFile(path)
	if err != nil {
		d.logger.Debug("skipping unreadable file", "path", path, "err", err)
		return false, nil
	}
	// Cheap pre-filter before parsing.
	if !strings.Contains(string(src), pkg) {
		return false, nil
	}
	f, err := tsast.Parse(ctx, path, src)
	if err != nil {
		return false, err
	}
	defer f.Close()

	matches := func(spec string) bool {
		return spec == pkg || strings.HasPrefix(spec, pkg+"/")
	}
	for _, spec := range program.ModuleSpecifiers(f) {
		if matches(spec) {
			return true, nil
		}
	}
	found := false
	tsast.Walk(f.Root, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if spec, ok := requireSpecifier(f, n); ok && matches(spec) {
			found = true
		}
		return true
	})
	return found, nil
}

// requireSpecifier recognises require("x") and import("x") calls with a
// literal argument.
func requireSpecifier(f *tsast.File, n *sitter.Node) (string, bool) {
	if n.Type() != "call_expression" {
		return "", false
	}
	fn := tsast.Field(n, "function")
	if fn == nil {
		return "", false
	}
	if fn.Type() != "import" && !(fn.Type() == "identifier" && f.Text(fn) == "require") {
		return "", false
	}
	arg := tsast.FirstNamed(tsast.Field(n, "arguments"))
	if arg == nil || arg.Type() != "string" {
		return "", false
	}
	return f.StringValue(arg), true
}
