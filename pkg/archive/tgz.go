// Package archive unpacks downloaded package archives into temporary
// directories.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	maxFileSize  = 100 * 1024 * 1024  // 100 MB per file
	maxTotalSize = 1024 * 1024 * 1024 // 1 GB total extracted
	maxFileCount = 50000              // maximum number of files in archive
)

// ExtractTarGz unpacks a gzipped tarball to a temp directory, dropping the
// first path component of every entry the way npm does ("package/..." on
// most tarballs). Returns the path to the extracted directory and a cleanup
// function that removes it.
// Validates all paths to prevent path traversal and enforces size limits
// against decompression bombs. Links and special files are skipped.
func ExtractTarGz(data []byte, prefix string) (dir string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "openpkg-"+sanitize(prefix)+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanupFn := func() { os.RemoveAll(tmpDir) }

	if err := extractTarGz(data, tmpDir); err != nil {
		cleanupFn()
		return "", nil, err
	}
	return tmpDir, cleanupFn, nil
}

func extractTarGz(data []byte, base string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gz.Close()

	resolvedBase, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	tr := tar.NewReader(gz)
	var totalExtracted int64
	count := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("tar entry attempts path traversal: %s", hdr.Name)
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		count++
		if count > maxFileCount {
			return fmt.Errorf("tar archive contains more than %d entries", maxFileCount)
		}

		name := stripFirstComponent(hdr.Name)
		if name == "" {
			continue
		}
		target := filepath.Join(resolvedBase, filepath.FromSlash(name))
		if !strings.HasPrefix(target, resolvedBase+string(os.PathSeparator)) && target != resolvedBase {
			return fmt.Errorf("tar entry attempts path traversal: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
			continue
		case tar.TypeReg:
		default:
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %s: %w", hdr.Name, err)
		}
		n, err := writeFile(target, tr)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
		if n > maxFileSize {
			return fmt.Errorf("file %s exceeds maximum size of %d bytes", hdr.Name, maxFileSize)
		}
		totalExtracted += n
		if totalExtracted > maxTotalSize {
			return fmt.Errorf("total extracted size exceeds maximum of %d bytes", maxTotalSize)
		}
	}
}

// writeFile copies at most maxFileSize+1 bytes so oversized entries are
// detected without being fully written.
func writeFile(target string, r io.Reader) (int64, error) {
	out, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(r, maxFileSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func stripFirstComponent(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	_, rest, ok := strings.Cut(name, "/")
	if !ok {
		return ""
	}
	return strings.TrimSuffix(rest, "/")
}

// sanitize makes a package name usable in a temp directory pattern.
func sanitize(prefix string) string {
	return strings.NewReplacer("/", "-", "@", "", string(os.PathSeparator), "-").Replace(prefix)
}
