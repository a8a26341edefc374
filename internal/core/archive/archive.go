// Package archive unpacks bundle zip buffers onto disk.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// MaxFileSize is the maximum size of a single file in a bundle archive (100MB).
// This prevents decompression bombs.
const MaxFileSize = 100 * 1024 * 1024

// ErrExtractionFailed wraps every failure to unpack a bundle.
var ErrExtractionFailed = errors.New("extraction failed")

// Extract unpacks a zip buffer into a new, uniquely named directory under
// destRoot and returns its path. On failure nothing is left on disk.
func Extract(data []byte, destRoot string) (string, error) {
	return ExtractWithLimit(data, destRoot, MaxFileSize)
}

// ExtractWithLimit is Extract with a per-file size limit.
// It rejects symlinks, non-regular entries, and paths containing traversal sequences.
func ExtractWithLimit(data []byte, destRoot string, maxFileSize int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: reading zip: %v", ErrExtractionFailed, err)
	}

	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrExtractionFailed, destRoot, err)
	}
	pattern := fmt.Sprintf("bundle-%d-*", time.Now().UnixMilli())
	dir, err := os.MkdirTemp(destRoot, pattern)
	if err != nil {
		return "", fmt.Errorf("%w: creating temp dir: %v", ErrExtractionFailed, err)
	}

	for _, f := range zr.File {
		if err := extractFile(f, dir, maxFileSize); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
	}
	return dir, nil
}

func extractFile(f *zip.File, dir string, maxFileSize int64) error {
	name := strings.ReplaceAll(f.Name, `\`, "/")
	if err := validatePath(name); err != nil {
		return err
	}

	mode := f.Mode()
	target := filepath.Join(dir, filepath.FromSlash(path.Clean(name)))

	if mode.IsDir() || strings.HasSuffix(name, "/") {
		return os.MkdirAll(target, 0o755)
	}
	if mode&os.ModeSymlink != 0 {
		return fmt.Errorf("archive contains disallowed link: %s", f.Name)
	}
	if !mode.IsRegular() {
		return fmt.Errorf("archive contains disallowed entry type %s: %s", mode.Type(), f.Name)
	}
	if f.UncompressedSize64 > uint64(maxFileSize) {
		return fmt.Errorf("file %s exceeds maximum size of %d bytes", f.Name, maxFileSize)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	// The declared size can lie; enforce the limit while copying too.
	n, err := io.Copy(out, io.LimitReader(rc, maxFileSize+1))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", f.Name, err)
	}
	if n > maxFileSize {
		_ = out.Close()
		return fmt.Errorf("file %s exceeds maximum size of %d bytes", f.Name, maxFileSize)
	}
	return out.Close()
}

// ReadFile returns the contents of a single archive entry. It reports
// os.ErrNotExist when the entry is absent.
func ReadFile(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading zip: %w", err)
	}
	for _, f := range zr.File {
		if path.Clean(strings.ReplaceAll(f.Name, `\`, "/")) != name {
			continue
		}
		if f.UncompressedSize64 > MaxFileSize {
			return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", f.Name, MaxFileSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(io.LimitReader(rc, MaxFileSize))
	}
	return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
}

// validatePath checks that an archive entry path is safe.
func validatePath(p string) error {
	// path.Clean resolves all ".." segments; any remaining leading ".."
	// means the path escapes the archive root.
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path traversal detected in archive: %s", p)
	}
	if path.IsAbs(cleaned) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return fmt.Errorf("absolute path not allowed in archive: %s", p)
	}
	return nil
}
