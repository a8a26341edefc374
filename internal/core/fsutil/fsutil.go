// Package fsutil holds the filesystem primitives the promptrow engine builds
// on: link-aware inspection, tree copy, symlink-or-copy, link-safe recursive
// removal, and line-ending tolerant content comparison.
package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// excludedFiles are never copied into install or sync targets.
var excludedFiles = map[string]bool{
	".git":      true,
	".DS_Store": true,
}

var sanitizeRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// PathState is the link-aware view of a path. A broken symlink reports
// Exists and IsSymlink with IsBroken set; an absent path reports !Exists.
type PathState struct {
	Exists    bool
	IsSymlink bool
	IsBroken  bool
	IsDir     bool // true for directories and symlinks resolving to directories
}

// Inspect lstats path and, for symlinks, stats the target to tell healthy
// links from broken ones.
func Inspect(path string) (PathState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PathState{}, nil
		}
		return PathState{}, err
	}

	st := PathState{Exists: true}
	if info.Mode()&os.ModeSymlink == 0 {
		st.IsDir = info.IsDir()
		return st, nil
	}

	st.IsSymlink = true
	target, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			st.IsBroken = true
			return st, nil
		}
		return st, err
	}
	st.IsDir = target.IsDir()
	return st, nil
}

// PathExists reports whether anything, including a broken symlink, is at path.
func PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// DirExists returns true if the path exists and is (or links to) a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CopyTree mirrors src into dst directory by directory. Symlinks inside src
// are recreated as symlinks, never followed. A symlinked src root is resolved.
func CopyTree(src, dst string) error {
	if resolved, err := filepath.EvalSymlinks(src); err == nil {
		src = resolved
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if path != src && excludedFiles[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dstPath := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(dstPath, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(dstPath)
			return os.Symlink(target, dstPath)
		default:
			return CopyFile(path, dstPath)
		}
	})
}

// CopySkillFolders copies only the top-level directories of src into dst,
// one per skill. Loose files such as the deployment manifest are skipped.
// It returns the names of the copied folders.
func CopySkillFolders(src, dst string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dst, err)
	}

	var copied []string
	for _, entry := range entries {
		if excludedFiles[entry.Name()] {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		if !DirExists(srcPath) {
			continue
		}
		if err := CopyTree(srcPath, filepath.Join(dst, entry.Name())); err != nil {
			return copied, fmt.Errorf("copying skill folder %s: %w", entry.Name(), err)
		}
		copied = append(copied, entry.Name())
	}
	return copied, nil
}

// CopyFile copies a single file from src to dst, creating parent directories.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// LinkOrCopyFile symlinks dst to src, falling back to a copy when the
// platform or permissions refuse the link. It reports whether a link was made.
func LinkOrCopyFile(src, dst string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	if err := os.Symlink(src, dst); err == nil {
		return true, nil
	} else if copyErr := CopyFile(src, dst); copyErr != nil {
		return false, fmt.Errorf("symlink and copy both failed: symlink: %w, copy: %v", err, copyErr)
	}
	return false, nil
}

// LinkOrCopyDir is LinkOrCopyFile for directories.
func LinkOrCopyDir(src, dst string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	if err := os.Symlink(src, dst); err == nil {
		return true, nil
	} else if copyErr := CopyTree(src, dst); copyErr != nil {
		_ = RemoveTree(dst)
		return false, fmt.Errorf("symlink and copy both failed: symlink: %w, copy: %v", err, copyErr)
	}
	return false, nil
}

// RemoveTree deletes path without ever following a symlink. Links met at any
// level are unlinked, directories are emptied recursively and removed last.
// A missing path is not an error.
func RemoveTree(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 || !info.IsDir() {
		return os.Remove(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := RemoveTree(filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}
	return os.Remove(path)
}

// CleanupEmptyDir removes a directory if it is empty.
func CleanupEmptyDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	if len(entries) == 0 {
		_ = os.Remove(dir)
	}
}

// NormalizeLineEndings converts CRLF and lone CR to LF.
func NormalizeLineEndings(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}

// ContentEqual compares two files after line-ending normalization.
func ContentEqual(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(NormalizeLineEndings(da), NormalizeLineEndings(db)), nil
}

// TreeContentEqual reports whether every file under copyDir matches the file
// at the same relative path under srcDir, and no file is missing from copyDir.
func TreeContentEqual(copyDir, srcDir string) (bool, error) {
	seen := 0
	err := filepath.WalkDir(copyDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(copyDir, path)
		if err != nil {
			return err
		}
		equal, err := ContentEqual(path, filepath.Join(srcDir, rel))
		if err != nil || !equal {
			return errNotEqual
		}
		seen++
		return nil
	})
	if errors.Is(err, errNotEqual) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	want, err := countFiles(srcDir)
	if err != nil {
		return false, err
	}
	return seen == want, nil
}

var errNotEqual = errors.New("content differs")

func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && excludedFiles[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Type()&fs.ModeSymlink == 0 {
			n++
		}
		return nil
	})
	return n, err
}

// WriteFileAtomic writes data to a uniquely named temp file next to path,
// then renames it over path. Concurrent writers of the same path never share
// a temp file; the last rename wins.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// SanitizeName normalizes a bundle or skill name for use as a directory name.
func SanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = sanitizeRegexp.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if len(name) > 255 {
		name = name[:255]
	}
	if name == "" {
		name = "unnamed"
	}
	return name
}
