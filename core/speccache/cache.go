// Package speccache reuses extracted specs across runs. Entries are keyed by
// a content hash of the analysed sources and kept in an in-memory LRU,
// optionally backed by gzip-compressed files in a cache directory.
package speccache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/ryanwaits/openpkg-sub004/core/spec"
)

// DefaultSize is the number of specs kept in memory.
const DefaultSize = 64

// Cache stores encoded specs so callers never share a mutable *spec.Spec.
// It is safe for concurrent use.
type Cache struct {
	mem    *lru.Cache[string, []byte]
	dir    string
	logger *slog.Logger
}

// New returns a cache holding up to size specs in memory. When dir is not
// empty, entries are also written to and read from that directory.
func New(size int, dir string, logger *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mem, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating spec cache: %w", err)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}
	return &Cache{mem: mem, dir: dir, logger: logger}, nil
}

// Key derives a cache key from its parts.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

// Get returns a fresh copy of the spec stored under key.
func (c *Cache) Get(key string) (*spec.Spec, bool) {
	data, ok := c.mem.Get(key)
	if !ok {
		var err error
		data, err = c.readDisk(key)
		if err != nil {
			if !os.IsNotExist(err) {
				c.logger.Warn("ignoring unreadable cache entry", "key", key, "err", err)
			}
			return nil, false
		}
		c.mem.Add(key, data)
	}
	s, err := spec.Parse(data)
	if err != nil {
		c.logger.Warn("dropping corrupt cache entry", "key", key, "err", err)
		c.mem.Remove(key)
		return nil, false
	}
	return s, true
}

// Put stores s under key.
func (c *Cache) Put(key string, s *spec.Spec) error {
	var buf bytes.Buffer
	if err := spec.Write(&buf, s); err != nil {
		return fmt.Errorf("encoding spec for cache: %w", err)
	}
	data := buf.Bytes()
	c.mem.Add(key, data)
	if c.dir == "" {
		return nil
	}
	return c.writeDisk(key, data)
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	return c.mem.Len()
}

// Purge drops every in-memory entry. Files on disk are kept.
func (c *Cache) Purge() {
	c.mem.Purge()
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json.gz")
}

func (c *Cache) readDisk(key string) ([]byte, error) {
	if c.dir == "" {
		return nil, os.ErrNotExist
	}
	f, err := os.Open(c.path(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (c *Cache) writeDisk(key string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if _, err := zw.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		return fmt.Errorf("installing cache file: %w", err)
	}
	return nil
}
