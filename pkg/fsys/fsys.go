// Package fsys abstracts the file system reads the extractor performs, so the
// same engine can run against local disk, an in-memory snapshot, or a remote
// sandbox.
package fsys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileSystem is the minimal read-only surface the extractor needs.
type FileSystem interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]string, error)
	IsDirectory(path string) bool
}

// FileNotFoundError is returned by ReadFile when the path does not exist.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// IsNotFound reports whether err is (or wraps) a FileNotFoundError.
func IsNotFound(err error) bool {
	var nf *FileNotFoundError
	return errors.As(err, &nf)
}

// Local reads from the host file system.
type Local struct{}

var _ FileSystem = Local{}

func (Local) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func (Local) ReadFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: p}
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

// ReadDir returns the sorted entry names of a directory.
func (Local) ReadDir(p string) ([]string, error) {
	entries, err := os.ReadDir(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: p}
		}
		return nil, fmt.Errorf("reading directory %s: %w", p, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (Local) IsDirectory(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Memory is an in-memory file tree keyed by slash-cleaned absolute paths.
// Directories are implied by the files they contain.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ FileSystem = (*Memory)(nil)

// NewMemory creates a Memory file system seeded with files.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string][]byte, len(files))}
	for p, content := range files {
		m.files[memKey(p)] = []byte(content)
	}
	return m
}

// WriteFile adds or replaces a file.
func (m *Memory) WriteFile(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[memKey(p)] = content
}

func (m *Memory) Exists(p string) bool {
	return m.hasFile(p) || m.IsDirectory(p)
}

func (m *Memory) hasFile(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[memKey(p)]
	return ok
}

func (m *Memory) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[memKey(p)]
	if !ok {
		return nil, &FileNotFoundError{Path: p}
	}
	return data, nil
}

func (m *Memory) ReadDir(p string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dir := memKey(p)
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	seen := make(map[string]bool)
	for k := range m.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		name, _, _ := strings.Cut(rest, "/")
		seen[name] = true
	}
	if len(seen) == 0 {
		return nil, &FileNotFoundError{Path: p}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) IsDirectory(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dir := memKey(p)
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func memKey(p string) string {
	return path.Clean("/" + filepath.ToSlash(p))
}

// Overlay serves a fixed set of in-memory files on top of a base file system.
// It backs analysis of unsaved or synthetic snippets.
type Overlay struct {
	Base  FileSystem
	files map[string][]byte
}

var _ FileSystem = (*Overlay)(nil)

// NewOverlay returns base with the given files shadowed by in-memory content.
func NewOverlay(base FileSystem, files map[string][]byte) *Overlay {
	o := &Overlay{Base: base, files: make(map[string][]byte, len(files))}
	for p, content := range files {
		o.files[filepath.Clean(p)] = content
	}
	return o
}

func (o *Overlay) Exists(p string) bool {
	if _, ok := o.files[filepath.Clean(p)]; ok {
		return true
	}
	return o.Base.Exists(p)
}

func (o *Overlay) ReadFile(p string) ([]byte, error) {
	if data, ok := o.files[filepath.Clean(p)]; ok {
		return data, nil
	}
	return o.Base.ReadFile(p)
}

func (o *Overlay) ReadDir(p string) ([]string, error) {
	names, err := o.Base.ReadDir(p)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	dir := filepath.Clean(p)
	for f := range o.files {
		if filepath.Dir(f) == dir && !seen[filepath.Base(f)] {
			seen[filepath.Base(f)] = true
			names = append(names, filepath.Base(f))
		}
	}
	if len(names) == 0 && err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (o *Overlay) IsDirectory(p string) bool {
	if _, ok := o.files[filepath.Clean(p)]; ok {
		return false
	}
	return o.Base.IsDirectory(p)
}
