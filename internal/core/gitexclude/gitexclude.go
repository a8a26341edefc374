// Package gitexclude maintains promptrow-managed blocks in a repository's
// .git/info/exclude so local-only files stay out of commits.
package gitexclude

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/barysiuk/promptrow/internal/core/fsutil"
)

const markerPrefix = "# promptrow:"

// Path returns the exclude file for a workspace, or "" if the workspace is
// not the root of a git checkout.
func Path(workspace string) string {
	gitDir := filepath.Join(workspace, ".git")
	if !fsutil.DirExists(gitDir) {
		return ""
	}
	return filepath.Join(gitDir, "info", "exclude")
}

// Add writes (or replaces) the block for id listing paths relative to the
// workspace. It is a no-op outside a git checkout.
func Add(workspace, id string, paths []string) error {
	excludePath := Path(workspace)
	if excludePath == "" || len(paths) == 0 {
		return nil
	}

	lines, err := readLines(excludePath)
	if err != nil {
		return err
	}
	lines = stripBlock(lines, id)

	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	lines = append(lines, begin(id))
	for _, p := range sorted {
		lines = append(lines, "/"+filepath.ToSlash(p))
	}
	lines = append(lines, end(id))

	return writeLines(excludePath, lines)
}

// Remove deletes the block for id, if any.
func Remove(workspace, id string) error {
	excludePath := Path(workspace)
	if excludePath == "" {
		return nil
	}
	lines, err := readLines(excludePath)
	if err != nil {
		return err
	}
	stripped := stripBlock(lines, id)
	if len(stripped) == len(lines) {
		return nil
	}
	return writeLines(excludePath, stripped)
}

// Entries returns the paths listed in the block for id.
func Entries(workspace, id string) ([]string, error) {
	excludePath := Path(workspace)
	if excludePath == "" {
		return nil, nil
	}
	lines, err := readLines(excludePath)
	if err != nil {
		return nil, err
	}
	var out []string
	inBlock := false
	for _, l := range lines {
		switch {
		case l == begin(id):
			inBlock = true
		case l == end(id):
			inBlock = false
		case inBlock:
			out = append(out, strings.TrimPrefix(l, "/"))
		}
	}
	return out, nil
}

func begin(id string) string { return markerPrefix + id + " begin" }
func end(id string) string   { return markerPrefix + id + " end" }

func stripBlock(lines []string, id string) []string {
	out := make([]string, 0, len(lines))
	inBlock := false
	for _, l := range lines {
		switch {
		case l == begin(id):
			inBlock = true
		case l == end(id):
			inBlock = false
		case !inBlock:
			out = append(out, l)
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text := strings.TrimRight(string(fsutil.NormalizeLineEndings(data)), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return fsutil.WriteFileAtomic(path, []byte(content))
}
